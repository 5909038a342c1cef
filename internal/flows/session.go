package flows

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/caseAuth/session"
)

// SessionUser is the flow-local user model used by session establishment.
type SessionUser struct {
	ID              int64
	Login           string
	CurrentCaseID   *int64
	CurrentCaseName string
	Profile         any
}

// CaseRecord is a flow-local case.
type CaseRecord struct {
	ID   int64
	Name string
}

// EstablishResult is the flow-local establishment response. User reflects any
// default case assigned during the flow.
type EstablishResult struct {
	Location    string
	MFARequired bool
	User        SessionUser
}

// EstablishMetrics carries metric IDs needed by session establishment.
type EstablishMetrics struct {
	MFARequired         int
	SessionEstablished  int
	DefaultCaseAssigned int
}

// EstablishEvents carries audit event names used by session establishment.
type EstablishEvents struct {
	LoginSuccess string
}

// EstablishErrors carries host-level sentinel errors used by session establishment.
type EstablishErrors struct {
	EngineNotReady     error
	SessionUnavailable error
}

// EstablishDeps captures session establishment dependencies.
type EstablishDeps struct {
	SessionTTL    time.Duration
	MFAVerifyPath string

	Now            func() time.Time
	LoadSession    func(context.Context, string) (*session.State, error)
	SaveSession    func(context.Context, *session.State, time.Duration) error
	EnforceMFA     func(context.Context) (bool, error)
	Permissions    func(context.Context, SessionUser) (uint64, []string, error)
	FirstCase      func(context.Context) (CaseRecord, error)
	SetCurrentCase func(context.Context, int64, CaseRecord) error
	PickRedirect   func(ctx context.Context, next string, caseID int64) string

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event, username string)

	Metrics EstablishMetrics
	Events  EstablishEvents
	Errors  EstablishErrors
}

// RunEstablishSession binds a validated user to the session identified by
// sessionID. When the MFA gate applies, only the username is stored and the
// caller is sent to the MFA path; nothing else is touched.
func RunEstablishSession(ctx context.Context, sessionID string, user SessionUser, external bool, next string, deps EstablishDeps) (*EstablishResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, string) {}
	}
	if deps.LoadSession == nil ||
		deps.SaveSession == nil ||
		deps.EnforceMFA == nil ||
		deps.Permissions == nil ||
		deps.FirstCase == nil ||
		deps.SetCurrentCase == nil ||
		deps.PickRedirect == nil {
		return nil, deps.Errors.EngineNotReady
	}

	st, err := deps.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", deps.Errors.SessionUnavailable, err)
	}
	principal := strconv.FormatInt(user.ID, 10)
	if !ownedBy(st, user.Login, principal) {
		st = &session.State{SessionID: sessionID}
	}
	st.Username = user.Login

	enforce, err := deps.EnforceMFA(ctx)
	if err != nil {
		return nil, fmt.Errorf("load server settings: %w", err)
	}
	if enforce && !external && !st.MFAVerified {
		// a gated session carries the username and nothing else
		st = &session.State{SessionID: sessionID, Username: user.Login}
		if err := deps.SaveSession(ctx, st, deps.SessionTTL); err != nil {
			return nil, fmt.Errorf("%w: %w", deps.Errors.SessionUnavailable, err)
		}
		deps.MetricInc(deps.Metrics.MFARequired)
		return &EstablishResult{
			Location:    deps.MFAVerifyPath,
			MFARequired: true,
			User:        user,
		}, nil
	}

	st.Principal = principal
	st.AuthenticatedAt = deps.Now().UTC()

	mask, names, err := deps.Permissions(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("compute permissions: %w", err)
	}
	st.Permissions = mask
	st.PermissionNames = names

	if user.CurrentCaseID == nil {
		c, err := deps.FirstCase(ctx)
		if err != nil {
			return nil, fmt.Errorf("assign default case: %w", err)
		}
		if err := deps.SetCurrentCase(ctx, user.ID, c); err != nil {
			return nil, fmt.Errorf("assign default case: %w", err)
		}
		id := c.ID
		user.CurrentCaseID = &id
		user.CurrentCaseName = c.Name
		deps.MetricInc(deps.Metrics.DefaultCaseAssigned)
	}

	st.CurrentCase = &session.CaseDescriptor{
		ID:   *user.CurrentCaseID,
		Name: user.CurrentCaseName,
		Info: "",
	}

	if err := deps.SaveSession(ctx, st, deps.SessionTTL); err != nil {
		return nil, fmt.Errorf("%w: %w", deps.Errors.SessionUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.SessionEstablished)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, user.Login)

	return &EstablishResult{
		Location: deps.PickRedirect(ctx, next, *user.CurrentCaseID),
		User:     user,
	}, nil
}

// ownedBy reports whether st may be carried into a login of login/principal.
// State left by another user, including its MFA verification, never is.
func ownedBy(st *session.State, login, principal string) bool {
	if st == nil || st.Username != login {
		return false
	}
	return st.Principal == "" || st.Principal == principal
}
