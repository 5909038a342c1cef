package caseAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/caseAuth/permission"
	"github.com/MrEthical07/caseAuth/session"
)

// UserRecord is the full account row owned by the [UserStore]. It carries
// credential material and must never leave the engine; return [UserView].
type UserRecord struct {
	ID    int64
	Login string
	Name  string
	Email string

	PasswordHash        string
	MFASecrets          string
	WebAuthnCredentials []byte

	Groups []string
	Active bool

	CurrentCaseID   *int64
	CurrentCaseName string
}

// UserView is a [UserRecord] without the password hash, MFA secrets, and
// WebAuthn credentials. Every user value the engine returns is a UserView.
type UserView struct {
	ID     int64    `json:"id"`
	Login  string   `json:"login"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Groups []string `json:"groups,omitempty"`
	Active bool     `json:"active"`

	CurrentCaseID   *int64 `json:"current_case_id,omitempty"`
	CurrentCaseName string `json:"current_case_name,omitempty"`
}

// View returns the sanitized representation of u.
func (u UserRecord) View() UserView {
	v := UserView{
		ID:              u.ID,
		Login:           u.Login,
		Name:            u.Name,
		Email:           u.Email,
		Active:          u.Active,
		CurrentCaseName: u.CurrentCaseName,
	}
	if len(u.Groups) > 0 {
		v.Groups = append([]string(nil), u.Groups...)
	}
	if u.CurrentCaseID != nil {
		id := *u.CurrentCaseID
		v.CurrentCaseID = &id
	}
	return v
}

// Case is a work item a session can be scoped to.
type Case struct {
	ID   int64
	Name string
}

// Credentials is one login attempt. It is never persisted.
type Credentials struct {
	Username           string
	Password           string
	AllowLocalFallback bool
}

// Redirect is where the browser goes after session establishment. When
// MFARequired is set, the session is not yet bound to a principal.
type Redirect struct {
	Location    string
	MFARequired bool
}

// EstablishOptions tune [Engine.EstablishSession].
type EstablishOptions struct {
	// ExternalIdentity marks identities already verified by an external
	// provider; the MFA gate is skipped for them.
	ExternalIdentity bool
	// Next is the caller-supplied post-login hint, typically the "next" query parameter.
	Next string
}

// LoginResult is returned by [Engine.Login] and [Engine.AuthenticateExternal].
type LoginResult struct {
	User     UserView
	Redirect Redirect
}

// DirectoryVerifier checks credentials against an external directory.
// (false, nil) is an explicit rejection; a non-nil error means no answer.
type DirectoryVerifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// PasswordVerifier compares a candidate password with a stored hash.
type PasswordVerifier interface {
	Matches(storedHash, candidate string) (bool, error)
}

// UserStore reads active users and persists their current case.
// FindActive returns [ErrUserNotFound] when no active user has the login.
type UserStore interface {
	FindActive(ctx context.Context, login string) (UserRecord, error)
	SetCurrentCase(ctx context.Context, userID int64, c Case) error
}

// CaseStore returns the lowest-identifier case, or [ErrNoCase].
type CaseStore interface {
	First(ctx context.Context) (Case, error)
}

// PermissionEngine computes the effective permissions of a user.
type PermissionEngine interface {
	EffectivePermissions(ctx context.Context, user UserView) (permission.Set, error)
}

// PermissionEngineFunc adapts a function to [PermissionEngine].
type PermissionEngineFunc func(ctx context.Context, user UserView) (permission.Set, error)

// EffectivePermissions calls f.
func (f PermissionEngineFunc) EffectivePermissions(ctx context.Context, user UserView) (permission.Set, error) {
	return f(ctx, user)
}

// SessionStore persists session state. [*session.Store] implements it.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*session.State, error)
	Save(ctx context.Context, st *session.State, ttl time.Duration) error
}
