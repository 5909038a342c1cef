package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

const defaultTimeout = 10 * time.Second

// ErrAmbiguousUser is returned when the user search matches more than one entry.
var ErrAmbiguousUser = errors.New("ldap search returned more than one entry")

// Config describes how to reach the directory and locate user entries.
type Config struct {
	URL                string
	StartTLS           bool
	InsecureSkipVerify bool
	ServerName         string

	// UserDNTemplate builds the bind DN directly, e.g. "uid=%s,ou=people,dc=example,dc=org".
	// When empty, the user DN is found by searching BaseDN with UserFilter.
	UserDNTemplate string

	BindDN       string
	BindPassword string
	BaseDN       string
	UserFilter   string

	Timeout time.Duration
}

// Validate checks the configuration for a usable lookup strategy.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "ldap" && u.Scheme != "ldaps") || u.Host == "" {
		return fmt.Errorf("ldap url %q must be ldap:// or ldaps://", c.URL)
	}
	if u.Scheme == "ldaps" && c.StartTLS {
		return errors.New("ldap StartTLS cannot be combined with ldaps://")
	}
	if c.UserDNTemplate != "" {
		if strings.Count(c.UserDNTemplate, "%s") != 1 {
			return errors.New("ldap UserDNTemplate must contain exactly one %s")
		}
		return nil
	}
	if c.BaseDN == "" || c.UserFilter == "" {
		return errors.New("ldap BaseDN and UserFilter required when UserDNTemplate is empty")
	}
	if strings.Count(c.UserFilter, "%s") != 1 {
		return errors.New("ldap UserFilter must contain exactly one %s")
	}
	return nil
}

type conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Unbind() error
}

// LDAP is a directory verifier backed by github.com/go-ldap/ldap/v3.
type LDAP struct {
	cfg  Config
	dial func(ctx context.Context) (conn, error)
}

// NewLDAP validates cfg and returns a verifier that dials a fresh connection per call.
func NewLDAP(cfg Config) (*LDAP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	l := &LDAP{cfg: cfg}
	l.dial = l.dialURL
	return l, nil
}

func (l *LDAP) dialURL(ctx context.Context) (conn, error) {
	timeout := l.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	tlsConfig := &tls.Config{
		ServerName:         l.cfg.ServerName,
		InsecureSkipVerify: l.cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in for lab directories
		MinVersion:         tls.VersionTLS12,
	}
	if tlsConfig.ServerName == "" {
		if u, err := url.Parse(l.cfg.URL); err == nil {
			tlsConfig.ServerName = u.Hostname()
		}
	}

	c, err := ldap.DialURL(
		l.cfg.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: timeout}),
		ldap.DialWithTLSConfig(tlsConfig),
	)
	if err != nil {
		return nil, err
	}
	c.SetTimeout(timeout)

	if l.cfg.StartTLS {
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Unbind()
			return nil, err
		}
	}

	return c, nil
}

// Verify reports whether username/password bind successfully.
func (l *LDAP) Verify(ctx context.Context, username, password string) (bool, error) {
	// an empty password would be an unauthenticated bind, which most servers accept
	if username == "" || password == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c, err := l.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("ldap dial: %w", err)
	}
	defer func() { _ = c.Unbind() }()

	dn, err := l.userDN(c, username)
	if err != nil {
		return false, err
	}
	if dn == "" {
		return false, nil
	}

	err = c.Bind(dn, password)
	if err == nil {
		return true, nil
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) && ldapErr.ResultCode == ldap.LDAPResultInvalidCredentials {
		return false, nil
	}

	return false, fmt.Errorf("ldap bind: %w", err)
}

func (l *LDAP) userDN(c conn, username string) (string, error) {
	if l.cfg.UserDNTemplate != "" {
		return fmt.Sprintf(l.cfg.UserDNTemplate, ldap.EscapeDN(username)), nil
	}

	if l.cfg.BindDN != "" {
		if err := c.Bind(l.cfg.BindDN, l.cfg.BindPassword); err != nil {
			return "", fmt.Errorf("ldap service bind: %w", err)
		}
	}

	req := ldap.NewSearchRequest(
		l.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2,
		int(l.cfg.Timeout/time.Second),
		false,
		fmt.Sprintf(l.cfg.UserFilter, ldap.EscapeFilter(username)),
		[]string{"dn"},
		nil,
	)

	res, err := c.Search(req)
	if err != nil {
		var ldapErr *ldap.Error
		if errors.As(err, &ldapErr) && ldapErr.ResultCode == ldap.LDAPResultNoSuchObject {
			return "", nil
		}
		return "", fmt.Errorf("ldap search: %w", err)
	}

	switch len(res.Entries) {
	case 0:
		return "", nil
	case 1:
		return res.Entries[0].DN, nil
	default:
		return "", ErrAmbiguousUser
	}
}
