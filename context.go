package caseAuth

import (
	"context"
	"net/url"

	"github.com/MrEthical07/caseAuth/redirect"
)

type clientIPContextKey struct{}
type originContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is recorded on
// audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithOrigin attaches the scheme and host the request arrived on. Post-login
// redirects are only honored when they stay on this origin; without it every
// "next" hint falls back to the index.
func WithOrigin(ctx context.Context, scheme, host string) context.Context {
	if host == "" {
		return ctx
	}
	return context.WithValue(ctx, originContextKey{}, redirect.Origin(scheme, host))
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func originFromContext(ctx context.Context) *url.URL {
	if ctx == nil {
		return nil
	}

	origin, _ := ctx.Value(originContextKey{}).(*url.URL)
	return origin
}
