package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	caseAuth "github.com/MrEthical07/caseAuth"
	"github.com/MrEthical07/caseAuth/internal/rate"
	"github.com/MrEthical07/caseAuth/middleware"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	DefaultSessionName = "caseauth"

	msgInvalidLogin    = "invalid username or password"
	msgTooManyAttempts = "too many failed login attempts"
	msgUnavailable     = "login temporarily unavailable"
)

// Authenticator is satisfied by [*caseAuth.Engine].
type Authenticator interface {
	Login(ctx context.Context, sessionID string, creds caseAuth.Credentials, next string) (*caseAuth.LoginResult, error)
	AuthenticateExternal(ctx context.Context, sessionID, token, next string) (*caseAuth.LoginResult, error)
}

// Throttle is satisfied by the failed-login limiter in internal/rate.
type Throttle interface {
	Check(ctx context.Context, username, ip string) error
	RecordFailure(ctx context.Context, username, ip string) error
	Reset(ctx context.Context, username string) error
}

// Config tunes the HTTP surface.
type Config struct {
	SessionName string
	// TrustForwardedProto honors X-Forwarded-Proto when deriving the
	// request origin. Enable only behind a proxy that sets it.
	TrustForwardedProto bool
	AllowLocalFallback  bool
	EnableExternal      bool
}

// Deps are the collaborators a [LoginHandler] needs. Throttle, Sessions,
// and Metrics are optional.
type Deps struct {
	Auth     Authenticator
	Store    sessions.Store
	Throttle Throttle
	Sessions middleware.SessionLoader
	Metrics  http.Handler
	Logger   *slog.Logger
}

// LoginHandler serves the login endpoints.
type LoginHandler struct {
	cfg  Config
	deps Deps
}

// New creates a LoginHandler.
func New(cfg Config, deps Deps) *LoginHandler {
	if cfg.SessionName == "" {
		cfg.SessionName = DefaultSessionName
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &LoginHandler{cfg: cfg, deps: deps}
}

// Register mounts the handler's routes on router.
func (h *LoginHandler) Register(router gin.IRouter) {
	group := router.Group("/login")
	group.Use(sessions.Sessions(h.cfg.SessionName, h.deps.Store))
	group.POST("", h.Login)
	if h.cfg.EnableExternal {
		group.POST("/external", h.External)
	}

	if h.deps.Sessions != nil {
		router.GET("/session",
			sessions.Sessions(h.cfg.SessionName, h.deps.Store),
			middleware.RequireLogin(h.deps.Sessions, "/login"),
			h.Current,
		)
	}

	if h.deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.deps.Metrics))
	}
}

// Login handles POST /login with form fields username and password. The
// optional next query parameter (or form field) is the post-login hint.
func (h *LoginHandler) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	next := nextHint(c)
	ip := c.ClientIP()

	ctx := h.requestContext(c, ip)

	if h.deps.Throttle != nil {
		if err := h.deps.Throttle.Check(ctx, username, ip); err != nil {
			h.throttleFailure(c, err, username)
			return
		}
	}

	sid := uuid.NewString()
	res, err := h.deps.Auth.Login(ctx, sid, caseAuth.Credentials{
		Username:           username,
		Password:           password,
		AllowLocalFallback: h.cfg.AllowLocalFallback,
	}, next)
	if err != nil {
		if caseAuth.IsRejected(err) && h.deps.Throttle != nil {
			if terr := h.deps.Throttle.RecordFailure(ctx, username, ip); terr != nil && !errors.Is(terr, rate.ErrRateLimited) {
				h.deps.Logger.WarnContext(ctx, "login throttle update failed", "username", username, "error", terr)
			}
		}
		h.loginFailure(c, err, username)
		return
	}

	if h.deps.Throttle != nil {
		if err := h.deps.Throttle.Reset(ctx, username); err != nil {
			h.deps.Logger.WarnContext(ctx, "login throttle reset failed", "username", username, "error", err)
		}
	}

	h.finish(ctx, c, sid, res)
}

// External handles POST /login/external. The identity token comes from the
// token form field or a bearer Authorization header.
func (h *LoginHandler) External(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}
	ctx := h.requestContext(c, c.ClientIP())

	sid := uuid.NewString()
	res, err := h.deps.Auth.AuthenticateExternal(ctx, sid, token, nextHint(c))
	if err != nil {
		h.loginFailure(c, err, "")
		return
	}

	h.finish(ctx, c, sid, res)
}

// finish points the cookie at the session just established under sid and
// sends the browser on. Every login gets a new sid.
func (h *LoginHandler) finish(ctx context.Context, c *gin.Context, sid string, res *caseAuth.LoginResult) {
	s := sessions.Default(c)
	s.Set(middleware.SessionIDKey, sid)
	if err := s.Save(); err != nil {
		h.deps.Logger.ErrorContext(ctx, "session cookie save failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msgUnavailable})
		return
	}

	c.Redirect(http.StatusFound, res.Redirect.Location)
}

// Current handles GET /session and describes the logged-in session.
func (h *LoginHandler) Current(c *gin.Context) {
	st, ok := middleware.StateFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	body := gin.H{
		"username":         st.Username,
		"authenticated_at": st.AuthenticatedAt,
		"permissions":      st.PermissionNames,
		"mfa_verified":     st.MFAVerified,
	}
	if st.CurrentCase != nil {
		body["current_case"] = gin.H{"id": st.CurrentCase.ID, "name": st.CurrentCase.Name}
	}
	c.JSON(http.StatusOK, body)
}

func (h *LoginHandler) requestContext(c *gin.Context, ip string) context.Context {
	ctx := caseAuth.WithClientIP(c.Request.Context(), ip)
	return caseAuth.WithOrigin(ctx, h.scheme(c), c.Request.Host)
}

func (h *LoginHandler) scheme(c *gin.Context) string {
	if c.Request.TLS != nil {
		return "https"
	}
	if h.cfg.TrustForwardedProto {
		switch proto := strings.ToLower(strings.TrimSpace(c.GetHeader("X-Forwarded-Proto"))); proto {
		case "http", "https":
			return proto
		}
	}
	return "http"
}

func (h *LoginHandler) loginFailure(c *gin.Context, err error, username string) {
	ctx := c.Request.Context()
	if !caseAuth.IsRejected(err) {
		// rejections are already audited by the engine
		h.deps.Logger.WarnContext(ctx, "login failed", "username", username, "error", err)
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": msgInvalidLogin})
}

func (h *LoginHandler) throttleFailure(c *gin.Context, err error, username string) {
	if errors.Is(err, rate.ErrRateLimited) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": msgTooManyAttempts})
		return
	}
	h.deps.Logger.ErrorContext(c.Request.Context(), "login throttle check failed", "username", username, "error", err)
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": msgUnavailable})
}

func nextHint(c *gin.Context) string {
	if next := c.Query("next"); next != "" {
		return next
	}
	return c.PostForm("next")
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
