package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewStore(client, "test")
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	in := &State{
		SessionID:       "s1",
		Username:        "alice",
		Principal:       "42",
		AuthenticatedAt: time.Unix(1_700_000_000, 0).UTC(),
		Permissions:     0b101,
		PermissionNames: []string{"case_read", "case_write"},
		MFAVerified:     true,
		CurrentCase:     &CaseDescriptor{ID: 7, Name: "#7 - phishing"},
	}
	if err := store.Save(ctx, in, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
	if ttl := mr.TTL("test:s1"); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", ttl)
	}
}

func TestStoreSaveDropsStaleFields(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	first := &State{SessionID: "s1", Username: "alice", CurrentCase: &CaseDescriptor{ID: 1, Name: "c"}}
	if err := store.Save(ctx, first, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, &State{SessionID: "s1", Username: "alice"}, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.CurrentCase != nil {
		t.Fatalf("expected case descriptor to be cleared, got %+v", out.CurrentCase)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	_, store := newTestStore(t)

	_, err := store.Load(context.Background(), "nope")
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	mr, store := newTestStore(t)
	mr.HSet("test:bad", fieldUsername, "alice", fieldPermissions, "not-a-number")

	_, err := store.Load(context.Background(), "bad")
	if !errors.Is(err, ErrStateCorrupt) {
		t.Fatalf("expected ErrStateCorrupt, got %v", err)
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, &State{SessionID: "s1", Username: "alice"}, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Delete(ctx, "s1"); err != nil {
			t.Fatalf("Delete #%d failed: %v", i, err)
		}
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected state to be gone, got %v", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	mr, store := newTestStore(t)
	mr.Close()

	_, err := store.Load(context.Background(), "s1")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
