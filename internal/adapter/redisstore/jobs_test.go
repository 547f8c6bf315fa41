package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

func newTestJobRepo(t *testing.T) *JobRepo {
	t.Helper()
	return NewJobRepo(newTestStore(t))
}

func TestJobCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestJobRepo(t)

	created := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	j := domain.Job{
		ID:        "j1",
		VideoURL:  "j1-v.mp4",
		Status:    domain.JobQueued,
		CreatedAt: created,
		Priority:  domain.PriorityHigh,
	}
	if err := r.Create(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := r.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "j1" || got.VideoURL != "j1-v.mp4" || got.Status != domain.JobQueued {
		t.Fatalf("unexpected job: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("createdAt: got %v want %v", got.CreatedAt, created)
	}
	if got.RetryCount != 0 || got.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestJobCreateRequiresID(t *testing.T) {
	r := newTestJobRepo(t)
	err := r.Create(context.Background(), domain.Job{})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestJobGetMissing(t *testing.T) {
	r := newTestJobRepo(t)
	_, err := r.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobStatusTransitions(t *testing.T) {
	ctx := context.Background()
	r := newTestJobRepo(t)
	seed(t, r, "j1")

	if err := r.SetStatus(ctx, "j1", domain.JobDownloading); err != nil {
		t.Fatalf("set status: %v", err)
	}
	j, _ := r.Get(ctx, "j1")
	if j.Status != domain.JobDownloading {
		t.Fatalf("status: %s", j.Status)
	}

	if err := r.SetStatusError(ctx, "j1", domain.JobQueuedRetry, "boom"); err != nil {
		t.Fatalf("set status error: %v", err)
	}
	j, _ = r.Get(ctx, "j1")
	if j.Status != domain.JobQueuedRetry || j.Error != "boom" {
		t.Fatalf("unexpected job: %+v", j)
	}
}

func TestJobArtifactKeys(t *testing.T) {
	ctx := context.Background()
	r := newTestJobRepo(t)
	seed(t, r, "j1")

	if err := r.SetAudioURL(ctx, "j1", "j1-v.mp3"); err != nil {
		t.Fatalf("audio: %v", err)
	}
	if err := r.SetSubtitleURL(ctx, "j1", "j1-v.srt"); err != nil {
		t.Fatalf("subtitle: %v", err)
	}
	j, _ := r.Get(ctx, "j1")
	if j.AudioURL != "j1-v.mp3" || j.SubtitleURL != "j1-v.srt" {
		t.Fatalf("unexpected artifacts: %+v", j)
	}
}

func TestIncrRetryCountMonotonic(t *testing.T) {
	ctx := context.Background()
	r := newTestJobRepo(t)
	seed(t, r, "j1")

	prev := 0
	for i := 1; i <= 4; i++ {
		n, err := r.IncrRetryCount(ctx, "j1")
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != i || n <= prev {
			t.Fatalf("retryCount not monotonic: got %d after %d", n, prev)
		}
		prev = n
	}
	j, _ := r.Get(ctx, "j1")
	if j.RetryCount != 4 {
		t.Fatalf("retryCount: %d", j.RetryCount)
	}
}

func TestProcessingSetLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	r := NewJobRepo(store)

	if err := r.MarkProcessing(ctx, "j1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	n, _ := store.SetLen(ctx, ProcessingSet)
	if n != 1 {
		t.Fatalf("processing size: %d", n)
	}
	if err := r.UnmarkProcessing(ctx, "j1"); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	n, _ = store.SetLen(ctx, ProcessingSet)
	if n != 0 {
		t.Fatalf("processing size after unmark: %d", n)
	}
}

func seed(t *testing.T, r *JobRepo, id string) {
	t.Helper()
	j := domain.Job{
		ID:        id,
		VideoURL:  id + "-v.mp4",
		Status:    domain.JobQueued,
		CreatedAt: time.Now().UTC(),
		Priority:  domain.PriorityLow,
	}
	if err := r.Create(context.Background(), j); err != nil {
		t.Fatalf("seed: %v", err)
	}
}
