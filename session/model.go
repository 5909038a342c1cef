package session

import "time"

// CaseDescriptor is the current case shown to the user after login.
type CaseDescriptor struct {
	ID   int64
	Name string
	Info string
}

// State is the key-value session content written during session establishment.
type State struct {
	SessionID string

	Username        string
	Principal       string
	AuthenticatedAt time.Time

	Permissions     uint64
	PermissionNames []string

	MFAVerified bool

	CurrentCase *CaseDescriptor
}

// Authenticated reports whether a principal has been bound to the session.
func (s *State) Authenticated() bool {
	return s != nil && s.Principal != ""
}
