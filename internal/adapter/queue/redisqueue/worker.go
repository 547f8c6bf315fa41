package redisqueue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

// PipelineRunner executes one job attempt to completion.
type PipelineRunner interface {
	Run(ctx context.Context, jobID string) error
}

// Worker is one pull-dispatch loop: acquire a global slot, pop the next job,
// run it to completion, release the slot. A worker never claims a job it
// cannot immediately run, which is why the slot is taken before the pop.
type Worker struct {
	queue      *Queue
	global     domain.Semaphore
	pipeline   PipelineRunner
	errorDelay time.Duration
}

// NewWorker constructs a Worker. errorDelay is the pause after a store-level
// failure before the next iteration.
func NewWorker(queue *Queue, global domain.Semaphore, pipeline PipelineRunner, errorDelay time.Duration) *Worker {
	if errorDelay <= 0 {
		errorDelay = 5 * time.Second
	}
	return &Worker{queue: queue, global: global, pipeline: pipeline, errorDelay: errorDelay}
}

// Run loops until the context is canceled. One job is processed at a time on
// this loop; fleet parallelism comes from running more workers against the
// same semaphore.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("worker loop started")
	for {
		if ctx.Err() != nil {
			slog.Info("worker loop stopping", slog.Any("reason", ctx.Err()))
			return
		}
		if err := w.global.Acquire(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			slog.Error("worker: acquire global slot failed", slog.Any("error", err))
			w.pause(ctx)
			continue
		}

		jobID, err := w.queue.PopNext(ctx)
		if err != nil {
			// The slot was claimed but no job arrived; hand the token back
			// before backing off.
			w.release(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			slog.Error("worker: pop next job failed", slog.Any("error", err))
			w.pause(ctx)
			continue
		}

		w.runOne(ctx, jobID)
	}
}

// runOne awaits the pipeline and releases the global slot on every exit
// path, including panics out of the pipeline.
func (w *Worker) runOne(ctx context.Context, jobID string) {
	defer w.release(ctx)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker: pipeline panicked",
				slog.String("job_id", jobID),
				slog.Any("panic", r))
		}
	}()
	slog.Info("worker: job dispatched", slog.String("job_id", jobID))
	if err := w.pipeline.Run(ctx, jobID); err != nil {
		slog.Warn("worker: job attempt failed",
			slog.String("job_id", jobID),
			slog.Any("error", err))
	}
}

func (w *Worker) release(ctx context.Context) {
	if err := w.global.Release(context.WithoutCancel(ctx)); err != nil {
		slog.Error("worker: release global slot failed", slog.Any("error", err))
	}
}

func (w *Worker) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.errorDelay):
	}
}
