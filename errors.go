package caseAuth

import "errors"

var (
	// ErrInvalidCredentials is returned for every rejected login: unknown user,
	// wrong password, or a directory that refused the bind. Audit events record
	// which one it was; callers must not.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDirectoryUnavailable is returned when the directory could not give an
	// answer. The login is denied exactly as for a rejection.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	// ErrUserNotFound is returned by a UserStore when no active user has the login.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoCase is returned by a CaseStore when no case exists to assign as default.
	ErrNoCase = errors.New("no case available")
	// ErrExternalTokenInvalid is returned when an external identity token fails verification.
	ErrExternalTokenInvalid = errors.New("external identity token invalid")
	// ErrSessionUnavailable wraps failures reading or writing session state.
	ErrSessionUnavailable = errors.New("session state unavailable")
	// ErrEngineNotReady is returned when a required collaborator is missing.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsRejected reports whether err means the credential was refused, as opposed
// to a collaborator failure. Both deny the login.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrExternalTokenInvalid)
}
