// Package semaphore implements a distributed counting semaphore on a Redis
// list of interchangeable tokens. Acquire blocks on BRPOP, Release pushes
// the token back with LPUSH, so at any instant
// in_flight + tokens_in_list = capacity (modulo the brief window inside an
// acquire or release).
package semaphore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const token = "1"

// Semaphore is one named distributed gate. Callers must pair every Acquire
// with exactly one Release on all exit paths; over-release corrupts the
// capacity invariant.
type Semaphore struct {
	rdb      *redis.Client
	key      string
	capacity int
}

// New constructs a semaphore over the given backing list.
func New(rdb *redis.Client, key string, capacity int) *Semaphore {
	return &Semaphore{rdb: rdb, key: key, capacity: capacity}
}

// Key returns the backing list key.
func (s *Semaphore) Key() string { return s.key }

// Capacity returns the configured token count.
func (s *Semaphore) Capacity() int { return s.capacity }

// Init atomically replaces the backing list with exactly capacity tokens.
// It must run once per deployment, at worker bootstrap; concurrent boots
// racing through it may briefly over-supply tokens, which the deployment
// tolerates.
func (s *Semaphore) Init(ctx context.Context) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		for i := 0; i < s.capacity; i++ {
			pipe.RPush(ctx, s.key, token)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("op=semaphore.Init key=%s: %w", s.key, err)
	}
	slog.Info("semaphore initialized", slog.String("key", s.key), slog.Int("capacity", s.capacity))
	return nil
}

// Acquire blocks until a token is available or the context is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := s.rdb.BRPop(ctx, 0, s.key).Err(); err != nil {
		return fmt.Errorf("op=semaphore.Acquire key=%s: %w", s.key, err)
	}
	return nil
}

// Release returns one token to the gate.
func (s *Semaphore) Release(ctx context.Context) error {
	if err := s.rdb.LPush(ctx, s.key, token).Err(); err != nil {
		return fmt.Errorf("op=semaphore.Release key=%s: %w", s.key, err)
	}
	return nil
}

// Available reports the number of tokens currently in the list.
func (s *Semaphore) Available(ctx context.Context) (int, error) {
	n, err := s.rdb.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("op=semaphore.Available key=%s: %w", s.key, err)
	}
	return int(n), nil
}

// TryAcquire pops a token if one is immediately available, waiting at most
// the given grace period. It reports false when the gate is saturated.
func (s *Semaphore) TryAcquire(ctx context.Context, wait time.Duration) (bool, error) {
	err := s.rdb.BRPop(ctx, wait, s.key).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("op=semaphore.TryAcquire key=%s: %w", s.key, err)
	}
	return true, nil
}
