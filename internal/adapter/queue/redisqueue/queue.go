// Package redisqueue implements the job queues and the worker pull loop on
// the coordination store's lists: LPUSH to enqueue, BRPOP across
// [queue:high, queue:low] to dequeue, so each queue is FIFO and high drains
// strictly before low.
package redisqueue

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/redisstore"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

// Queue pushes job ids onto the priority, retry, and dead-letter lists.
type Queue struct {
	store *redisstore.Store
}

// NewQueue constructs a Queue over the shared store.
func NewQueue(store *redisstore.Store) *Queue { return &Queue{store: store} }

// Enqueue places a fresh submission on its priority queue.
func (q *Queue) Enqueue(ctx context.Context, p domain.Priority, jobID string) error {
	if !p.Valid() {
		return fmt.Errorf("%w: priority %q", domain.ErrInvalidArgument, p)
	}
	key := redisstore.QueueLow
	if p == domain.PriorityHigh {
		key = redisstore.QueueHigh
	}
	if err := q.store.ListPushLeft(ctx, key, jobID); err != nil {
		return fmt.Errorf("op=queue.Enqueue id=%s: %w", jobID, err)
	}
	observability.JobsEnqueuedTotal.WithLabelValues(string(p)).Inc()
	return nil
}

// EnqueueRetry places a retried job on queue:low; retries always yield to
// fresh submissions.
func (q *Queue) EnqueueRetry(ctx context.Context, jobID string) error {
	if err := q.store.ListPushLeft(ctx, redisstore.QueueLow, jobID); err != nil {
		return fmt.Errorf("op=queue.EnqueueRetry id=%s: %w", jobID, err)
	}
	return nil
}

// EnqueueDLQ parks a terminally failed job for operator inspection.
func (q *Queue) EnqueueDLQ(ctx context.Context, jobID string) error {
	if err := q.store.ListPushLeft(ctx, redisstore.QueueDLQ, jobID); err != nil {
		return fmt.Errorf("op=queue.EnqueueDLQ id=%s: %w", jobID, err)
	}
	return nil
}

// PopNext blocks until a job id is available, draining queue:high strictly
// before queue:low.
func (q *Queue) PopNext(ctx context.Context) (string, error) {
	_, id, err := q.store.ListBlockingPopRight(ctx, 0, redisstore.QueueHigh, redisstore.QueueLow)
	if err != nil {
		return "", fmt.Errorf("op=queue.PopNext: %w", err)
	}
	return id, nil
}

// DLQPeek returns up to n most recently dead-lettered job ids.
func (q *Queue) DLQPeek(ctx context.Context, n int64) ([]string, error) {
	ids, err := q.store.ListRange(ctx, redisstore.QueueDLQ, 0, n-1)
	if err != nil {
		return nil, fmt.Errorf("op=queue.DLQPeek: %w", err)
	}
	return ids, nil
}

var _ domain.Queue = (*Queue)(nil)
