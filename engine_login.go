package caseAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalflows "github.com/MrEthical07/caseAuth/internal/flows"
)

// ValidateLocal checks username and password against the locally stored hash.
// Unknown users and wrong passwords both return [ErrInvalidCredentials] after
// one audit event. Validation never touches the session.
func (e *Engine) ValidateLocal(ctx context.Context, username, password string) (*UserView, error) {
	acct, err := internalflows.RunValidateLocal(ctx, username, password, e.loginFlowDeps())
	if err != nil {
		return nil, err
	}
	return accountView(acct)
}

// ValidateDirectory checks username and password against the directory and
// returns the local user on success. A directory rejection is retried with
// [Engine.ValidateLocal] when allowLocalFallback is set. When the directory
// gives no answer the result wraps [ErrDirectoryUnavailable]; that case is
// logged, not audited, and never falls back.
func (e *Engine) ValidateDirectory(ctx context.Context, username, password string, allowLocalFallback bool) (*UserView, error) {
	if e.directory == nil {
		return nil, ErrEngineNotReady
	}
	acct, err := internalflows.RunValidateDirectory(ctx, username, password, allowLocalFallback, e.loginFlowDeps())
	if err != nil {
		return nil, err
	}
	return accountView(acct)
}

// Login validates creds in the configured mode and, on success, establishes
// the session identified by sessionID. next is the post-login hint; it is
// honored only when it stays on the origin attached with [WithOrigin].
func (e *Engine) Login(ctx context.Context, sessionID string, creds Credentials, next string) (*LoginResult, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricLoginLatency, time.Since(start))
		}
	}()

	var (
		user *UserView
		err  error
	)
	if e.config.Directory.Enabled {
		user, err = e.ValidateDirectory(ctx, creds.Username, creds.Password, creds.AllowLocalFallback)
	} else {
		user, err = e.ValidateLocal(ctx, creds.Username, creds.Password)
	}
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	redirectTo, err := e.EstablishSession(ctx, sessionID, user, EstablishOptions{Next: next})
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	return &LoginResult{User: *user, Redirect: redirectTo}, nil
}

// AuthenticateExternal establishes a session for the holder of an identity
// token issued by a trusted external provider. The MFA gate does not apply.
func (e *Engine) AuthenticateExternal(ctx context.Context, sessionID, token, next string) (*LoginResult, error) {
	if e.external == nil {
		return nil, ErrEngineNotReady
	}

	login, err := e.external.Verify(token)
	if err != nil {
		e.metricInc(MetricExternalLoginFailure)
		e.logger.WarnContext(ctx, "external identity token rejected", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExternalTokenInvalid, err)
	}

	acct, err := internalflows.RunLookup(ctx, login, e.loginFlowDeps())
	if err != nil {
		e.metricInc(MetricExternalLoginFailure)
		return nil, err
	}
	user, err := accountView(acct)
	if err != nil {
		return nil, err
	}

	redirectTo, err := e.EstablishSession(ctx, sessionID, user, EstablishOptions{ExternalIdentity: true, Next: next})
	if err != nil {
		e.metricInc(MetricExternalLoginFailure)
		return nil, err
	}

	e.metricInc(MetricExternalLoginSuccess)
	return &LoginResult{User: *user, Redirect: redirectTo}, nil
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		LogError:  e.logError,
		Metrics: internalflows.LoginMetrics{
			UnknownUser:          int(MetricUnknownUser),
			LocalRejected:        int(MetricLocalRejected),
			DirectoryRejected:    int(MetricDirectoryRejected),
			DirectoryUnavailable: int(MetricDirectoryUnavailable),
			DirectoryFallback:    int(MetricDirectoryFallback),
		},
		Events: internalflows.LoginEvents{
			UnknownUser:       auditEventUnknownUser,
			LocalRejected:     auditEventLocalRejected,
			DirectoryRejected: auditEventDirectoryRejected,
			DirectoryFallback: auditEventDirectoryFallback,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:       ErrEngineNotReady,
			InvalidCredentials:   ErrInvalidCredentials,
			DirectoryUnavailable: ErrDirectoryUnavailable,
			UserNotFound:         ErrUserNotFound,
		},
	}

	if e.users != nil {
		deps.FindActive = func(ctx context.Context, login string) (internalflows.Account, error) {
			rec, err := e.findActive(ctx, login)
			if err != nil {
				return internalflows.Account{}, err
			}
			return internalflows.Account{
				ID:           rec.ID,
				Login:        rec.Login,
				PasswordHash: rec.PasswordHash,
				Profile:      rec.View(),
			}, nil
		}
	}
	if e.passwords != nil {
		deps.VerifyPassword = e.passwords.Matches
	}
	if e.directory != nil {
		deps.VerifyDirectory = e.directory.Verify
	}

	return deps
}

func accountView(acct *internalflows.Account) (*UserView, error) {
	if acct == nil {
		return nil, ErrEngineNotReady
	}
	view, ok := acct.Profile.(UserView)
	if !ok {
		return nil, errors.New("caseAuth: account profile missing")
	}
	return &view, nil
}
