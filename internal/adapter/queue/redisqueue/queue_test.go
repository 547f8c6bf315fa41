package redisqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/redisstore"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

func newTestQueue(t *testing.T) (*Queue, *redisstore.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	store := redisstore.New(rdb)
	return NewQueue(store), store
}

func TestEnqueueRoutesByPriority(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t)

	if err := q.Enqueue(ctx, domain.PriorityHigh, "h1"); err != nil {
		t.Fatalf("enqueue high: %v", err)
	}
	if err := q.Enqueue(ctx, domain.PriorityLow, "l1"); err != nil {
		t.Fatalf("enqueue low: %v", err)
	}

	high, err := store.ListRange(ctx, redisstore.QueueHigh, 0, -1)
	if err != nil || len(high) != 1 || high[0] != "h1" {
		t.Fatalf("queue:high: %v %v", high, err)
	}
	low, err := store.ListRange(ctx, redisstore.QueueLow, 0, -1)
	if err != nil || len(low) != 1 || low[0] != "l1" {
		t.Fatalf("queue:low: %v %v", low, err)
	}
}

func TestEnqueueRejectsUnknownPriority(t *testing.T) {
	q, _ := newTestQueue(t)
	err := q.Enqueue(context.Background(), domain.Priority("urgent"), "x")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestPopNextDrainsHighBeforeLow(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	if err := q.Enqueue(ctx, domain.PriorityLow, "l1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, domain.PriorityHigh, "h1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, domain.PriorityHigh, "h2"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	want := []string{"h1", "h2", "l1"}
	for i, expected := range want {
		id, err := q.PopNext(ctx)
		if err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
		if id != expected {
			t.Fatalf("pop %d: got %q, want %q", i, id, expected)
		}
	}
}

func TestPopNextSeesRetryRequeue(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	if err := q.EnqueueRetry(ctx, "r1"); err != nil {
		t.Fatalf("enqueue retry: %v", err)
	}
	id, err := q.PopNext(ctx)
	if err != nil || id != "r1" {
		t.Fatalf("pop: %q %v", id, err)
	}
}

func TestPopNextHonorsContext(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.PopNext(ctx)
	if err == nil {
		t.Fatal("expected error on empty queues")
	}
}

func TestDLQPeek(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	for _, id := range []string{"d1", "d2", "d3"} {
		if err := q.EnqueueDLQ(ctx, id); err != nil {
			t.Fatalf("enqueue dlq: %v", err)
		}
	}

	ids, err := q.DLQPeek(ctx, 2)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	// Most recent first.
	if len(ids) != 2 || ids[0] != "d3" || ids[1] != "d2" {
		t.Fatalf("dlq peek: %v", ids)
	}

	all, err := q.DLQPeek(ctx, 10)
	if err != nil || len(all) != 3 {
		t.Fatalf("dlq peek all: %v %v", all, err)
	}
}
