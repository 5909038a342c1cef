package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrStateNotFound is returned by [Store.Load] when no state exists for the id.
var ErrStateNotFound = errors.New("session state not found")

// Store reads and writes [State] hashes in Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a store. An empty prefix defaults to "cs".
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "cs"
	}
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Load returns the state for sessionID, or [ErrStateNotFound].
func (s *Store) Load(ctx context.Context, sessionID string) (*State, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrStateNotFound
	}

	return decode(sessionID, fields)
}

// Save replaces the stored state with st and sets its TTL. Fields missing
// from st are removed.
//
//	Performance: 1 round-trip (MULTI: DEL + HSET + EXPIRE).
func (s *Store) Save(ctx context.Context, st *State, ttl time.Duration) error {
	if st == nil || st.SessionID == "" {
		return errors.New("session id required")
	}
	key := s.key(st.SessionID)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encode(st))
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Delete removes the state for sessionID. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
