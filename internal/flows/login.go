package flows

import (
	"context"
	"errors"
	"fmt"
)

// Account is the flow-local user model used by the validation flows.
// Profile carries the caller's sanitized representation through untouched.
type Account struct {
	ID           int64
	Login        string
	PasswordHash string
	Profile      any
}

// LoginMetrics carries metric IDs needed by the validation flows.
type LoginMetrics struct {
	UnknownUser          int
	LocalRejected        int
	DirectoryRejected    int
	DirectoryUnavailable int
	DirectoryFallback    int
}

// LoginEvents carries audit event names used by the validation flows.
type LoginEvents struct {
	UnknownUser       string
	LocalRejected     string
	DirectoryRejected string
	DirectoryFallback string
}

// LoginErrors carries host-level sentinel errors used by the validation flows.
type LoginErrors struct {
	EngineNotReady       error
	InvalidCredentials   error
	DirectoryUnavailable error
	UserNotFound         error
}

// LoginDeps captures validation dependencies.
type LoginDeps struct {
	FindActive      func(context.Context, string) (Account, error)
	VerifyPassword  func(hash, candidate string) (bool, error)
	VerifyDirectory func(context.Context, string, string) (bool, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event, username string)
	LogError  func(ctx context.Context, msg string, args ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func (d *LoginDeps) defaults() {
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, string) {}
	}
	if d.LogError == nil {
		d.LogError = func(context.Context, string, ...any) {}
	}
}

// RunLookup resolves an active account by login. An unknown login is audited
// and reported as invalid credentials.
func RunLookup(ctx context.Context, username string, deps LoginDeps) (*Account, error) {
	deps.defaults()
	if deps.FindActive == nil {
		return nil, deps.Errors.EngineNotReady
	}

	acct, err := deps.FindActive(ctx, username)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			deps.MetricInc(deps.Metrics.UnknownUser)
			deps.EmitAudit(ctx, deps.Events.UnknownUser, username)
			return nil, deps.Errors.InvalidCredentials
		}
		deps.LogError(ctx, "user lookup failed", "username", username, "error", err)
		return nil, fmt.Errorf("find user: %w", err)
	}

	return &acct, nil
}

// RunValidateLocal checks password against the account's stored hash. The
// returned account never carries the hash.
func RunValidateLocal(ctx context.Context, username, password string, deps LoginDeps) (*Account, error) {
	deps.defaults()
	if deps.VerifyPassword == nil {
		return nil, deps.Errors.EngineNotReady
	}

	acct, err := RunLookup(ctx, username, deps)
	if err != nil {
		return nil, err
	}

	ok, err := deps.VerifyPassword(acct.PasswordHash, password)
	if err != nil {
		deps.LogError(ctx, "stored password hash unusable", "username", username, "error", err)
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.LocalRejected)
		deps.EmitAudit(ctx, deps.Events.LocalRejected, username)
		return nil, deps.Errors.InvalidCredentials
	}

	acct.PasswordHash = ""
	return acct, nil
}

// RunValidateDirectory binds against the directory and, on success, resolves
// the local account. A rejection is retried locally only when allowFallback
// is set. A directory that gives no answer, or panics, denies the login with
// DirectoryUnavailable and is never retried locally.
func RunValidateDirectory(ctx context.Context, username, password string, allowFallback bool, deps LoginDeps) (acct *Account, err error) {
	deps.defaults()
	if deps.VerifyDirectory == nil {
		return nil, deps.Errors.EngineNotReady
	}

	defer func() {
		if r := recover(); r != nil {
			deps.MetricInc(deps.Metrics.DirectoryUnavailable)
			deps.LogError(ctx, "directory authentication panicked", "username", username, "panic", r)
			acct, err = nil, deps.Errors.DirectoryUnavailable
		}
	}()

	ok, verr := deps.VerifyDirectory(ctx, username, password)
	if verr != nil {
		deps.MetricInc(deps.Metrics.DirectoryUnavailable)
		deps.LogError(ctx, "directory authentication failed", "username", username, "error", verr)
		return nil, fmt.Errorf("%w: %w", deps.Errors.DirectoryUnavailable, verr)
	}

	if ok {
		found, err := RunLookup(ctx, username, deps)
		if err != nil {
			return nil, err
		}
		found.PasswordHash = ""
		return found, nil
	}

	if allowFallback {
		deps.MetricInc(deps.Metrics.DirectoryFallback)
		deps.EmitAudit(ctx, deps.Events.DirectoryFallback, username)
		return RunValidateLocal(ctx, username, password, deps)
	}

	deps.MetricInc(deps.Metrics.DirectoryRejected)
	deps.EmitAudit(ctx, deps.Events.DirectoryRejected, username)
	return nil, deps.Errors.InvalidCredentials
}
