package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr, New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cfg)
}

func TestLimiterBlocksAfterBudget(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.RecordFailure(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i+1, err)
		}
	}
	if err := l.Check(ctx, "alice", ""); err != nil {
		t.Fatalf("expected budget left, got %v", err)
	}
	if err := l.RecordFailure(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on third failure, got %v", err)
	}
	if err := l.Check(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected Check to block, got %v", err)
	}
	if err := l.Check(ctx, "bob", ""); err != nil {
		t.Fatalf("other users must not be affected, got %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "alice", "")
	if err := l.Check(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected block, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.Check(ctx, "alice", ""); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestLimiterResetClearsUserOnly(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxAttempts: 2, Window: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "alice", "203.0.113.1")
	_ = l.RecordFailure(ctx, "alice", "203.0.113.1")
	if err := l.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if n, _ := l.Attempts(ctx, "alice"); n != 0 {
		t.Fatalf("expected user counter cleared, got %d", n)
	}
	if err := l.Check(ctx, "mallory", "203.0.113.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget to stay exhausted, got %v", err)
	}
}

func TestLimiterDisabled(t *testing.T) {
	_, l := newTestLimiter(t, Config{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := l.RecordFailure(ctx, "alice", ""); err != nil {
			t.Fatalf("disabled limiter returned %v", err)
		}
	}
	if err := l.Check(ctx, "alice", ""); err != nil {
		t.Fatalf("disabled limiter returned %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxAttempts: 3})
	mr.Close()

	if err := l.Check(context.Background(), "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
