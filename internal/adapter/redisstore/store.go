// Package redisstore is the typed facade over the shared coordination store.
//
// It wraps go-redis with the handful of operations the pipeline needs:
// hash field updates for job records, list pushes and blocking pops for the
// queues and semaphores, set membership for the processing set, and one
// pipelined multi-read for the dashboard snapshot.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrPopTimeout is returned by ListBlockingPopRight when the wait elapses
// with every list empty.
var ErrPopTimeout = errors.New("blocking pop timed out")

// Store exposes typed operations on the coordination store. Transient errors
// surface to the caller; the worker loop absorbs them with its own backoff.
type Store struct {
	rdb *redis.Client
}

// New wraps an existing Redis client.
func New(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Connect parses a redis:// URL and pings the instance.
func Connect(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("op=redisstore.Connect: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("op=redisstore.Connect: ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// Client exposes the underlying go-redis client for readiness checks.
func (s *Store) Client() *redis.Client { return s.rdb }

// Ping checks liveness of the coordination store.
func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.rdb.Close() }

// HashSetFields writes the given field/value pairs onto a hash.
func (s *Store) HashSetFields(ctx context.Context, key string, fields map[string]string) error {
	values := make(map[string]interface{}, len(fields))
	for f, v := range fields {
		values[f] = v
	}
	return s.rdb.HSet(ctx, key, values).Err()
}

// HashGetField reads a single hash field. A missing field reads as "".
func (s *Store) HashGetField(ctx context.Context, key, field string) (string, error) {
	v, err := s.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// HashGetAll reads the whole hash. A missing key reads as an empty map.
func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

// HashIncrBy atomically increments an integer hash field and returns the new
// value.
func (s *Store) HashIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	return s.rdb.HIncrBy(ctx, key, field, delta).Result()
}

// ListPushLeft prepends values to a list.
func (s *Store) ListPushLeft(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.rdb.LPush(ctx, key, args...).Err()
}

// ListPushRight appends values to a list.
func (s *Store) ListPushRight(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.rdb.RPush(ctx, key, args...).Err()
}

// ListBlockingPopRight pops from the right end of the first non-empty list,
// checking keys in the given priority order. A zero timeout waits forever.
func (s *Store) ListBlockingPopRight(ctx context.Context, timeout time.Duration, keys ...string) (list, value string, err error) {
	res, err := s.rdb.BRPop(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", ErrPopTimeout
	}
	if err != nil {
		return "", "", err
	}
	return res[0], res[1], nil
}

// ListRange reads list entries between start and stop inclusive.
func (s *Store) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.rdb.LRange(ctx, key, start, stop).Result()
}

// ListLen returns the length of a list.
func (s *Store) ListLen(ctx context.Context, key string) (int64, error) {
	return s.rdb.LLen(ctx, key).Result()
}

// ListDelete removes a list wholesale.
func (s *Store) ListDelete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// SetAdd inserts a member into a set.
func (s *Store) SetAdd(ctx context.Context, key, member string) error {
	return s.rdb.SAdd(ctx, key, member).Err()
}

// SetRemove deletes a member from a set.
func (s *Store) SetRemove(ctx context.Context, key, member string) error {
	return s.rdb.SRem(ctx, key, member).Err()
}

// SetLen returns the cardinality of a set.
func (s *Store) SetLen(ctx context.Context, key string) (int64, error) {
	return s.rdb.SCard(ctx, key).Result()
}

// Snapshot is the dashboard view of the fleet: queue depths and the number
// of jobs currently owned by workers.
type Snapshot struct {
	QueueHigh  int64 `json:"queue_high"`
	QueueLow   int64 `json:"queue_low"`
	QueueDLQ   int64 `json:"queue_dlq"`
	Processing int64 `json:"processing"`
}

// TakeSnapshot reads all four gauges in a single pipelined round trip so the
// dashboard sees a consistent instant.
func (s *Store) TakeSnapshot(ctx context.Context) (Snapshot, error) {
	var high, low, dlq *redis.IntCmd
	var processing *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		high = pipe.LLen(ctx, QueueHigh)
		low = pipe.LLen(ctx, QueueLow)
		dlq = pipe.LLen(ctx, QueueDLQ)
		processing = pipe.SCard(ctx, ProcessingSet)
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("op=redisstore.TakeSnapshot: %w", err)
	}
	return Snapshot{
		QueueHigh:  high.Val(),
		QueueLow:   low.Val(),
		QueueDLQ:   dlq.Val(),
		Processing: processing.Val(),
	}, nil
}
