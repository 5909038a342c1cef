// Package redirect picks the post-login destination, honouring a caller-supplied
// "next" hint only when it stays on the request's own origin.
package redirect

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultIndexPath is the landing page used when no safe hint is available.
const DefaultIndexPath = "/"

// Filter builds fallback URLs and validates next hints.
type Filter struct {
	// IndexPath is the default landing page; the case context is appended as ?cid=.
	IndexPath string
}

// Index returns the default landing URL for caseID.
func (f Filter) Index(caseID int64) string {
	path := f.IndexPath
	if path == "" {
		path = DefaultIndexPath
	}

	u, err := url.Parse(path)
	if err != nil {
		u = &url.URL{Path: DefaultIndexPath}
	}
	q := u.Query()
	q.Set("cid", strconv.FormatInt(caseID, 10))
	u.RawQuery = q.Encode()

	return u.String()
}

// Pick returns next with backslashes removed when it is same-origin with
// origin, and the index URL for caseID otherwise.
func (f Filter) Pick(next string, origin *url.URL, caseID int64) string {
	if next == "" {
		return f.Index(caseID)
	}

	next = strings.ReplaceAll(next, `\`, "")
	if IsSafe(next, origin) {
		return next
	}

	return f.Index(caseID)
}

// IsSafe reports whether target, resolved against origin, is an http(s) URL
// on exactly origin's host and port.
func IsSafe(target string, origin *url.URL) bool {
	if origin == nil || origin.Host == "" {
		return false
	}

	ref, err := url.Parse(target)
	if err != nil {
		return false
	}
	// "///host/path" parses with an empty authority but browsers treat it as protocol-relative
	if ref.Host == "" && strings.HasPrefix(ref.Path, "//") {
		return false
	}

	resolved := origin.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return false
	}

	return resolved.Host == origin.Host
}

// Origin builds the scheme://host origin of a request.
func Origin(scheme, host string) *url.URL {
	if scheme == "" {
		scheme = "http"
	}
	return &url.URL{Scheme: scheme, Host: host, Path: "/"}
}
