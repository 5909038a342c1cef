package middleware

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/MrEthical07/caseAuth/session"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SessionIDKey is the cookie-session key holding the server-side session id.
const SessionIDKey = "sid"

const stateKey = "caseauth.session"

// SessionLoader is satisfied by [*caseAuth.Engine].
type SessionLoader interface {
	Session(ctx context.Context, sessionID string) (*session.State, error)
}

// SessionID returns the session id stored in the cookie session, or "".
func SessionID(c *gin.Context) string {
	sid, _ := sessions.Default(c).Get(SessionIDKey).(string)
	return sid
}

// StateFromContext returns the session state attached by [RequireLogin].
func StateFromContext(c *gin.Context) (*session.State, bool) {
	v, ok := c.Get(stateKey)
	if !ok {
		return nil, false
	}
	st, ok := v.(*session.State)
	return st, ok && st != nil
}

// RequireLogin rejects requests without an authenticated session. Browser
// navigations are redirected to loginPath with the requested URI as next;
// everything else gets 401.
func RequireLogin(loader SessionLoader, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := SessionID(c)
		if sid == "" {
			deny(c, loginPath)
			return
		}

		st, err := loader.Session(c.Request.Context(), sid)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session unavailable"})
			return
		}
		if !st.Authenticated() {
			deny(c, loginPath)
			return
		}

		c.Set(stateKey, st)
		c.Next()
	}
}

// RequirePermission rejects requests whose session lacks name. It must run
// after [RequireLogin].
func RequirePermission(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := StateFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !slices.Contains(st.PermissionNames, name) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func deny(c *gin.Context, loginPath string) {
	if c.Request.Method == http.MethodGet && strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusFound, loginPath+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}
