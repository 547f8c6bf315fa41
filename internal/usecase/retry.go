// Package usecase contains the worker-side business logic: the pipeline
// executor that drives one job through its stages and the retry controller
// that classifies failures into requeue or dead-letter.
package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

// RetryController moves failed jobs to queued:retry with exponential backoff
// or, once the policy is exhausted, to the dead-letter queue. The requeue
// delay runs on an in-process timer: if the worker dies during the wait the
// job stays in queued:retry until operator intervention.
type RetryController struct {
	jobs   domain.JobRepository
	queue  domain.Queue
	policy domain.RetryPolicy

	// timers tracks pending requeues so Wait can drain them in tests and on
	// shutdown.
	timers sync.WaitGroup
}

// NewRetryController constructs the controller.
func NewRetryController(jobs domain.JobRepository, queue domain.Queue, policy domain.RetryPolicy) *RetryController {
	return &RetryController{jobs: jobs, queue: queue, policy: policy}
}

// HandleFailure increments the retry counter and routes the job. The status
// leaves processing:* here on every path; errors from the store itself are
// logged and the job is left for the stuck-job sweep.
func (rc *RetryController) HandleFailure(ctx context.Context, jobID string, cause error) {
	n, err := rc.jobs.IncrRetryCount(ctx, jobID)
	if err != nil {
		slog.Error("failed to increment retry count",
			slog.String("job_id", jobID),
			slog.Any("error", err))
		return
	}

	if rc.policy.Exhausted(n) {
		if err := rc.jobs.SetStatusError(ctx, jobID, domain.JobFailedDLQ, cause.Error()); err != nil {
			slog.Error("failed to mark job dead-lettered",
				slog.String("job_id", jobID),
				slog.Any("error", err))
		}
		if err := rc.queue.EnqueueDLQ(ctx, jobID); err != nil {
			slog.Error("failed to push job to DLQ",
				slog.String("job_id", jobID),
				slog.Any("error", err))
			return
		}
		observability.JobsDeadLetteredTotal.Inc()
		slog.Warn("job dead-lettered",
			slog.String("job_id", jobID),
			slog.Int("retry_count", n),
			slog.String("last_error", cause.Error()))
		return
	}

	if err := rc.jobs.SetStatusError(ctx, jobID, domain.JobQueuedRetry, cause.Error()); err != nil {
		slog.Error("failed to mark job for retry",
			slog.String("job_id", jobID),
			slog.Any("error", err))
	}
	delay := rc.policy.BackoffDelay(n)
	observability.JobsRetriedTotal.Inc()
	slog.Info("job scheduled for retry",
		slog.String("job_id", jobID),
		slog.Int("attempt", n),
		slog.Duration("delay", delay),
		slog.String("last_error", cause.Error()))

	// The requeue must outlive the current pipeline attempt but not the
	// worker process.
	rc.timers.Add(1)
	go rc.requeueAfter(context.WithoutCancel(ctx), jobID, delay)
}

// requeueAfter pushes the job onto queue:low once the backoff elapses.
// Retries always yield to fresh submissions, whatever the original priority.
func (rc *RetryController) requeueAfter(ctx context.Context, jobID string, delay time.Duration) {
	defer rc.timers.Done()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	<-timer.C
	if err := rc.queue.EnqueueRetry(ctx, jobID); err != nil {
		slog.Error("failed to requeue job after backoff",
			slog.String("job_id", jobID),
			slog.Any("error", err))
	}
}

// Wait blocks until all pending requeue timers have fired. Tests and
// graceful shutdown use it; production callers normally let timers run free.
func (rc *RetryController) Wait() { rc.timers.Wait() }

var _ domain.FailureHandler = (*RetryController)(nil)
