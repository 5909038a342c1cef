package caseAuth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/caseAuth/jwt"
	"github.com/MrEthical07/caseAuth/permission"
	"github.com/MrEthical07/caseAuth/redirect"
	"github.com/MrEthical07/caseAuth/session"
	"github.com/MrEthical07/caseAuth/settings"
)

// Engine validates credentials and establishes sessions. Build it with [New].
type Engine struct {
	config      Config
	directory   DirectoryVerifier
	passwords   PasswordVerifier
	users       UserStore
	cases       CaseStore
	permissions PermissionEngine
	registry    *permission.Registry
	settings    *settings.Provider
	sessions    SessionStore
	external    *jwt.Verifier
	redirects   redirect.Filter
	audit       *auditDispatcher
	metrics     *Metrics
	logger      *slog.Logger
	clock       func() time.Time
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports events dropped by an async dispatcher under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// InvalidateSettings drops cached server settings so the next session
// establishment reads them again.
func (e *Engine) InvalidateSettings() {
	if e == nil || e.settings == nil {
		return
	}
	e.settings.Invalidate()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) logError(ctx context.Context, msg string, args ...any) {
	e.logger.ErrorContext(ctx, msg, args...)
}

func (e *Engine) findActive(ctx context.Context, login string) (UserRecord, error) {
	rec, err := e.users.FindActive(ctx, login)
	if err != nil {
		return UserRecord{}, err
	}
	if !rec.Active {
		return UserRecord{}, ErrUserNotFound
	}
	return rec, nil
}

func (e *Engine) loadSession(ctx context.Context, sessionID string) (*session.State, error) {
	st, err := e.sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrStateNotFound) {
		return nil, nil
	}
	return st, err
}
