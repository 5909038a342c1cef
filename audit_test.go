package caseAuth

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Audit.Enabled = false
	})

	_, _ = env.engine.ValidateLocal(context.Background(), "alice", "wrong-password")
	_, _ = env.engine.ValidateLocal(context.Background(), "ghost", "wrong-password")

	if n := len(env.sink.Events()); n != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", n)
	}
}

func TestAuditSyncDeliveryBeforeReturn(t *testing.T) {
	env := newTestEnv(t, nil)

	_, _ = env.engine.ValidateLocal(context.Background(), "alice", "wrong-password")

	// no sleep: the default dispatcher emits inline
	if n := len(env.sink.Events()); n != 1 {
		t.Fatalf("expected event delivered before return, got %d", n)
	}
}

func TestAuditAsyncDeliversEventWithFields(t *testing.T) {
	sink := NewChannelSink(8)
	env := newTestEnv(t, func(c *Config) {
		c.Audit.Async = true
		c.Audit.BufferSize = 16
	})
	env.engine.audit.Close()
	env.engine.audit = newAuditDispatcher(AuditConfig{Enabled: true, Async: true, BufferSize: 16}, sink)

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	_, _ = env.engine.ValidateLocal(ctx, "alice", "super-secret-password")

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditEventLocalRejected {
			t.Fatalf("unexpected event type %q", ev.EventType)
		}
		if ev.IP != "198.51.100.33" {
			t.Fatalf("expected IP 198.51.100.33, got %q", ev.IP)
		}
		if ev.Username != "alice" {
			t.Fatalf("expected username alice, got %q", ev.Username)
		}
		if strings.Contains(ev.Message, "super-secret-password") {
			t.Fatal("password leaked in audit message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected audit event to be received")
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		Async:      true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		Async:      true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   auditEventLoginSuccess,
		Username:    "alice",
		Message:     "user 'alice' successfully logged-in",
		Success:     true,
		Contextless: true,
	})

	if !buf.Contains(`"event_type":"login_success"`) {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains(`"contextless":true`) || !buf.Contains(`"visible_in_ui":false`) {
		t.Fatal("expected JSON log line to carry display flags")
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	sink := &countingSink{}
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		Async:      true,
		BufferSize: 4,
		DropIfFull: true,
	}, sink)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	if sink.Count() != 1 {
		t.Fatalf("expected only the pre-close event, got %d", sink.Count())
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	env := newTestEnv(t, nil)

	_, _ = env.engine.ValidateLocal(context.Background(), "alice", "not-the-password")
	if _, err := env.engine.Login(originCtx(), testSessionID, Credentials{Username: "alice", Password: testPassword}, ""); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	needles := []string{testPassword, "not-the-password", env.users.User("alice").PasswordHash, "JBSWY3DPEHPK3PXP"}
	events := env.sink.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		for _, needle := range needles {
			if strings.Contains(ev.Message, needle) || strings.Contains(ev.Username, needle) {
				t.Fatalf("sensitive value leaked in audit event: %+v", ev)
			}
		}
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	MultiSink{a, nil, b}.Emit(context.Background(), AuditEvent{EventType: "e"})

	if a.Count() != 1 || b.Count() != 1 {
		t.Fatalf("expected both sinks called once, got %d and %d", a.Count(), b.Count())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}

func TestAuditDispatcherCloseDeliversQueuedEvents(t *testing.T) {
	sink := &countingSink{}
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		Async:      true,
		BufferSize: 8,
	}, sink)

	for i := 0; i < 5; i++ {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: auditEventLocalRejected})
	}
	dispatcher.Close()

	if sink.Count() != 5 {
		t.Fatalf("expected all queued events delivered by Close, got %d", sink.Count())
	}
	if dispatcher.Dropped() != 0 {
		t.Fatalf("expected nothing dropped, got %d", dispatcher.Dropped())
	}
}

func TestAuditBlockedEmitGivesUpOnContext(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		Async:      true,
		BufferSize: 1,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(ctx, AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected emit to return once the request context ended")
	}
}
