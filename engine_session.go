package caseAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalflows "github.com/MrEthical07/caseAuth/internal/flows"
	"github.com/MrEthical07/caseAuth/session"
)

// EstablishSession binds user to the session identified by sessionID and
// returns where the browser should go next.
//
// State already stored under sessionID is kept only when it belongs to the
// same user; anything left by another login, including MFA verification, is
// discarded. The MFA gate runs next: when server settings enforce MFA, the
// identity is not external, and the session has not passed MFA, only the
// username is stored and the redirect points at the MFA path. Otherwise the session gets
// the principal, its effective permissions, and the current case. A user with
// no current case is given the lowest-id case, which is persisted and also
// reflected on user.
func (e *Engine) EstablishSession(ctx context.Context, sessionID string, user *UserView, opts EstablishOptions) (Redirect, error) {
	if user == nil {
		return Redirect{}, ErrEngineNotReady
	}

	res, err := internalflows.RunEstablishSession(ctx, sessionID, internalflows.SessionUser{
		ID:              user.ID,
		Login:           user.Login,
		CurrentCaseID:   user.CurrentCaseID,
		CurrentCaseName: user.CurrentCaseName,
		Profile:         *user,
	}, opts.ExternalIdentity, opts.Next, e.establishFlowDeps())
	if err != nil {
		if !errors.Is(err, ErrEngineNotReady) {
			e.logError(ctx, "session establishment failed", "username", user.Login, "error", err)
		}
		return Redirect{}, err
	}

	user.CurrentCaseID = res.User.CurrentCaseID
	user.CurrentCaseName = res.User.CurrentCaseName

	return Redirect{Location: res.Location, MFARequired: res.MFARequired}, nil
}

// Session returns the state stored for sessionID, or nil when the session
// has never been established.
func (e *Engine) Session(ctx context.Context, sessionID string) (*session.State, error) {
	st, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	return st, nil
}

// PickRedirect returns next when it resolves to the origin attached to ctx,
// otherwise the index URL for caseID.
func (e *Engine) PickRedirect(ctx context.Context, next string, caseID int64) string {
	target := e.redirects.Pick(next, originFromContext(ctx), caseID)
	if next != "" && target != next && target == e.redirects.Index(caseID) {
		e.metricInc(MetricRedirectRejected)
	}
	return target
}

func (e *Engine) establishFlowDeps() internalflows.EstablishDeps {
	deps := internalflows.EstablishDeps{
		SessionTTL:    e.config.Session.TTL,
		MFAVerifyPath: e.config.Redirect.MFAVerifyPath,
		Now:           e.now,
		PickRedirect:  e.PickRedirect,
		MetricInc:     func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:     e.emitAudit,
		Metrics: internalflows.EstablishMetrics{
			MFARequired:         int(MetricMFARequired),
			SessionEstablished:  int(MetricSessionEstablished),
			DefaultCaseAssigned: int(MetricDefaultCaseAssigned),
		},
		Events: internalflows.EstablishEvents{
			LoginSuccess: auditEventLoginSuccess,
		},
		Errors: internalflows.EstablishErrors{
			EngineNotReady:     ErrEngineNotReady,
			SessionUnavailable: ErrSessionUnavailable,
		},
	}

	if e.sessions != nil {
		deps.LoadSession = e.loadSession
		deps.SaveSession = func(ctx context.Context, st *session.State, ttl time.Duration) error {
			return e.sessions.Save(ctx, st, ttl)
		}
	}
	if e.settings != nil {
		deps.EnforceMFA = func(ctx context.Context) (bool, error) {
			s, err := e.settings.Get(ctx)
			if err != nil {
				return false, err
			}
			return s.EnforceMFA, nil
		}
	}
	if e.permissions != nil {
		deps.Permissions = func(ctx context.Context, u internalflows.SessionUser) (uint64, []string, error) {
			view, _ := u.Profile.(UserView)
			set, err := e.permissions.EffectivePermissions(ctx, view)
			if err != nil {
				return 0, nil, err
			}
			var names []string
			if e.registry != nil {
				names = e.registry.Names(set)
			}
			return set.Raw(), names, nil
		}
	}
	if e.cases != nil {
		deps.FirstCase = func(ctx context.Context) (internalflows.CaseRecord, error) {
			c, err := e.cases.First(ctx)
			if err != nil {
				return internalflows.CaseRecord{}, err
			}
			return internalflows.CaseRecord{ID: c.ID, Name: c.Name}, nil
		}
	}
	if e.users != nil {
		deps.SetCurrentCase = func(ctx context.Context, userID int64, c internalflows.CaseRecord) error {
			if err := e.users.SetCurrentCase(ctx, userID, Case{ID: c.ID, Name: c.Name}); err != nil {
				return fmt.Errorf("persist current case: %w", err)
			}
			return nil
		}
	}

	return deps
}
