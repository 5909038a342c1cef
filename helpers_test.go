package caseAuth

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/caseAuth/password"
	"github.com/MrEthical07/caseAuth/session"
	"github.com/MrEthical07/caseAuth/settings"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPassword  = "correct-horse-battery"
	testSessionID = "sess-1"
)

type memUserStore struct {
	mu       sync.Mutex
	users    map[string]UserRecord
	findErr  error
	setErr   error
	setCalls int
	lookups  []string
}

func (s *memUserStore) FindActive(_ context.Context, login string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookups = append(s.lookups, login)
	if s.findErr != nil {
		return UserRecord{}, s.findErr
	}
	u, ok := s.users[login]
	if !ok || !u.Active {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) SetCurrentCase(_ context.Context, userID int64, c Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	for login, u := range s.users {
		if u.ID == userID {
			id := c.ID
			u.CurrentCaseID = &id
			u.CurrentCaseName = c.Name
			s.users[login] = u
		}
	}
	return nil
}

func (s *memUserStore) Lookups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lookups...)
}

func (s *memUserStore) SetCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalls
}

func (s *memUserStore) User(login string) UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[login]
}

type memCaseStore struct {
	cases []Case
	err   error
}

func (s *memCaseStore) First(context.Context) (Case, error) {
	if s.err != nil {
		return Case{}, s.err
	}
	if len(s.cases) == 0 {
		return Case{}, ErrNoCase
	}
	sorted := append([]Case(nil), s.cases...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted[0], nil
}

type fakeDirectory struct {
	ok        bool
	err       error
	panicWith any
	calls     atomic.Int64
}

func (d *fakeDirectory) Verify(context.Context, string, string) (bool, error) {
	d.calls.Add(1)
	if d.panicWith != nil {
		panic(d.panicWith)
	}
	return d.ok, d.err
}

type countingPasswords struct {
	inner PasswordVerifier
	calls atomic.Int64

	mu         sync.Mutex
	candidates []string
}

func (p *countingPasswords) Matches(hash, candidate string) (bool, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.candidates = append(p.candidates, candidate)
	p.mu.Unlock()
	return p.inner.Matches(hash, candidate)
}

func (p *countingPasswords) Candidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.candidates...)
}

type settingsStub struct {
	mu      sync.Mutex
	enforce bool
	err     error
	calls   int
}

func (s *settingsStub) ServerSettings(context.Context) (settings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return settings.Settings{}, s.err
	}
	return settings.Settings{EnforceMFA: s.enforce}, nil
}

func (s *settingsStub) setEnforce(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enforce = v
}

func (s *settingsStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) Events() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

type testEnv struct {
	engine    *Engine
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	sessions  *session.Store
	users     *memUserStore
	cases     *memCaseStore
	directory *fakeDirectory
	passwords *countingPasswords
	settings  *settingsStub
	sink      *recordingSink
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testHash(t *testing.T, plain string) string {
	t.Helper()

	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	return string(h)
}

func int64Ptr(v int64) *int64 { return &v }

// newTestEnv builds an engine over in-memory stores: alice has no current
// case, bob is on case 7, carol is inactive. Case 1 is the lowest id.
func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	hash := testHash(t, testPassword)

	env := &testEnv{
		mr:  mr,
		rdb: rdb,
		users: &memUserStore{users: map[string]UserRecord{
			"alice": {ID: 1, Login: "alice", Name: "Alice", PasswordHash: hash, MFASecrets: "JBSWY3DPEHPK3PXP", Groups: []string{"analyst"}, Active: true},
			"bob":   {ID: 2, Login: "bob", Name: "Bob", PasswordHash: hash, Groups: []string{"admin"}, Active: true, CurrentCaseID: int64Ptr(7), CurrentCaseName: "Ransomware"},
			"carol": {ID: 3, Login: "carol", PasswordHash: hash, Active: false},
		}},
		cases:     &memCaseStore{cases: []Case{{ID: 3, Name: "Phishing"}, {ID: 1, Name: "Initial triage"}, {ID: 7, Name: "Ransomware"}}},
		directory: &fakeDirectory{},
		passwords: &countingPasswords{inner: password.Verifier{}},
		settings:  &settingsStub{},
		sink:      &recordingSink{},
	}
	env.sessions = session.NewStore(rdb, "cs")

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New().
		WithConfig(cfg).
		WithSessionStore(env.sessions).
		WithUserStore(env.users).
		WithCaseStore(env.cases).
		WithDirectory(env.directory).
		WithPasswordVerifier(env.passwords).
		WithSettingsSource(env.settings).
		WithPermissions([]string{"case_read", "case_write"}).
		WithGroups(map[string][]string{
			"analyst": {"case_read"},
			"admin":   {"server_administrator"},
		}).
		WithAuditSink(env.sink).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	env.engine = engine

	t.Cleanup(func() {
		engine.Close()
		mr.Close()
	})
	return env
}

func (env *testEnv) state(t *testing.T, sessionID string) *session.State {
	t.Helper()

	st, err := env.sessions.Load(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session %q: %v", sessionID, err)
	}
	return st
}

func originCtx() context.Context {
	return WithOrigin(WithClientIP(context.Background(), "198.51.100.7"), "https", "iris.example:8443")
}
