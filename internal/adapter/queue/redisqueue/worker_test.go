package redisqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/redisstore"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/service/semaphore"
)

// stubPipeline records every dispatched job id and its concurrency
// high-water mark, holding each job for the configured delay.
type stubPipeline struct {
	mu          sync.Mutex
	delay       time.Duration
	ran         []string
	inFlight    int
	maxInFlight int
	done        chan string
	panicOn     string
}

func newStubPipeline(delay time.Duration) *stubPipeline {
	return &stubPipeline{delay: delay, done: make(chan string, 64)}
}

func (p *stubPipeline) Run(ctx context.Context, jobID string) error {
	p.mu.Lock()
	p.ran = append(p.ran, jobID)
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	shouldPanic := jobID == p.panicOn
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
		p.done <- jobID
	}()

	if shouldPanic {
		panic("stage corrupted")
	}
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay):
		}
	}
	return nil
}

func (p *stubPipeline) order() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ran...)
}

func (p *stubPipeline) maxConcurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}

type workerEnv struct {
	queue  *Queue
	store  *redisstore.Store
	global *semaphore.Semaphore
}

func newWorkerEnv(t *testing.T, capacity int) *workerEnv {
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
	global := semaphore.New(rdb, redisstore.SemGlobal, capacity)
	if err := global.Init(context.Background()); err != nil {
		t.Fatalf("init semaphore: %v", err)
	}
	return &workerEnv{queue: NewQueue(store), store: store, global: global}
}

func awaitJobs(t *testing.T, done <-chan string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d of %d", i+1, n)
		}
	}
}

func TestWorkerProcessesInPriorityOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newWorkerEnv(t, 1)
	pipeline := newStubPipeline(0)

	for _, id := range []string{"l1", "l2"} {
		if err := env.queue.Enqueue(ctx, domain.PriorityLow, id); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	for _, id := range []string{"h1", "h2"} {
		if err := env.queue.Enqueue(ctx, domain.PriorityHigh, id); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	w := NewWorker(env.queue, env.global, pipeline, time.Millisecond)
	go w.Run(ctx)
	awaitJobs(t, pipeline.done, 4)
	cancel()

	got := pipeline.order()
	want := []string{"h1", "h2", "l1", "l2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order: %v, want %v", got, want)
		}
	}
}

func TestWorkerFleetBoundedByGlobalSemaphore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newWorkerEnv(t, 2)
	pipeline := newStubPipeline(50 * time.Millisecond)

	for _, id := range []string{"j1", "j2", "j3", "j4", "j5"} {
		if err := env.queue.Enqueue(ctx, domain.PriorityLow, id); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	// More loops than slots; the semaphore is the only thing keeping
	// concurrency at two.
	for i := 0; i < 4; i++ {
		w := NewWorker(env.queue, env.global, pipeline, time.Millisecond)
		go w.Run(ctx)
	}
	awaitJobs(t, pipeline.done, 5)
	cancel()

	if max := pipeline.maxConcurrent(); max > 2 {
		t.Fatalf("max concurrent pipelines: %d, want <= 2", max)
	}

	// Every slot is back once the fleet drains.
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := env.global.Available(context.Background())
		if err != nil {
			t.Fatalf("available: %v", err)
		}
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("semaphore tokens not returned: %d of 2", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorkerReleasesSlotAfterPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newWorkerEnv(t, 1)
	pipeline := newStubPipeline(0)
	pipeline.panicOn = "bad"

	if err := env.queue.Enqueue(ctx, domain.PriorityHigh, "bad"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := env.queue.Enqueue(ctx, domain.PriorityHigh, "good"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w := NewWorker(env.queue, env.global, pipeline, time.Millisecond)
	go w.Run(ctx)

	// The second job only runs if the panicked dispatch released its slot.
	awaitJobs(t, pipeline.done, 2)
	cancel()

	got := pipeline.order()
	if len(got) != 2 || got[0] != "bad" || got[1] != "good" {
		t.Fatalf("dispatch order: %v", got)
	}
}

func TestWorkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	env := newWorkerEnv(t, 1)
	pipeline := newStubPipeline(0)

	stopped := make(chan struct{})
	w := NewWorker(env.queue, env.global, pipeline, time.Millisecond)
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
