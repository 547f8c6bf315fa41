package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

// Job hash field names.
const (
	fieldID          = "id"
	fieldVideoURL    = "videoUrl"
	fieldStatus      = "status"
	fieldCreatedAt   = "createdAt"
	fieldPriority    = "priority"
	fieldAudioURL    = "audioUrl"
	fieldSubtitleURL = "subtitleUrl"
	fieldRetryCount  = "retryCount"
	fieldError       = "error"
)

// JobRepo implements domain.JobRepository on job:{id} hashes and the
// jobs:processing set. Updates are per-field and non-transactional; readers
// tolerate intermediate states.
type JobRepo struct {
	store *Store
}

// NewJobRepo constructs a JobRepo over the shared store.
func NewJobRepo(store *Store) *JobRepo { return &JobRepo{store: store} }

// Create writes a fresh job record. Status starts at queued and the retry
// counter at zero.
func (r *JobRepo) Create(ctx context.Context, j domain.Job) error {
	if j.ID == "" {
		return fmt.Errorf("%w: job id required", domain.ErrInvalidArgument)
	}
	fields := map[string]string{
		fieldID:         j.ID,
		fieldVideoURL:   j.VideoURL,
		fieldStatus:     string(j.Status),
		fieldCreatedAt:  j.CreatedAt.UTC().Format(time.RFC3339),
		fieldPriority:   string(j.Priority),
		fieldRetryCount: strconv.Itoa(j.RetryCount),
	}
	if err := r.store.HashSetFields(ctx, JobKey(j.ID), fields); err != nil {
		return fmt.Errorf("op=jobs.Create id=%s: %w", j.ID, err)
	}
	return nil
}

// Get reads the whole job record. A missing hash maps to domain.ErrNotFound.
func (r *JobRepo) Get(ctx context.Context, id string) (domain.Job, error) {
	fields, err := r.store.HashGetAll(ctx, JobKey(id))
	if err != nil {
		return domain.Job{}, fmt.Errorf("op=jobs.Get id=%s: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	j := domain.Job{
		ID:          fields[fieldID],
		VideoURL:    fields[fieldVideoURL],
		Status:      domain.JobStatus(fields[fieldStatus]),
		Priority:    domain.Priority(fields[fieldPriority]),
		AudioURL:    fields[fieldAudioURL],
		SubtitleURL: fields[fieldSubtitleURL],
		Error:       fields[fieldError],
	}
	if v := fields[fieldCreatedAt]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			j.CreatedAt = t
		}
	}
	if v := fields[fieldRetryCount]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			j.RetryCount = n
		}
	}
	return j, nil
}

// SetStatus writes the status field.
func (r *JobRepo) SetStatus(ctx context.Context, id string, status domain.JobStatus) error {
	if err := r.store.HashSetFields(ctx, JobKey(id), map[string]string{fieldStatus: string(status)}); err != nil {
		return fmt.Errorf("op=jobs.SetStatus id=%s status=%s: %w", id, status, err)
	}
	return nil
}

// SetStatusError writes status and the last failure message in one update.
func (r *JobRepo) SetStatusError(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	fields := map[string]string{fieldStatus: string(status), fieldError: errMsg}
	if err := r.store.HashSetFields(ctx, JobKey(id), fields); err != nil {
		return fmt.Errorf("op=jobs.SetStatusError id=%s status=%s: %w", id, status, err)
	}
	return nil
}

// SetAudioURL records the extracted-audio blob key.
func (r *JobRepo) SetAudioURL(ctx context.Context, id, key string) error {
	if err := r.store.HashSetFields(ctx, JobKey(id), map[string]string{fieldAudioURL: key}); err != nil {
		return fmt.Errorf("op=jobs.SetAudioURL id=%s: %w", id, err)
	}
	return nil
}

// SetSubtitleURL records the subtitle blob key.
func (r *JobRepo) SetSubtitleURL(ctx context.Context, id, key string) error {
	if err := r.store.HashSetFields(ctx, JobKey(id), map[string]string{fieldSubtitleURL: key}); err != nil {
		return fmt.Errorf("op=jobs.SetSubtitleURL id=%s: %w", id, err)
	}
	return nil
}

// IncrRetryCount atomically bumps the retry counter and returns the new
// value. The counter never decreases.
func (r *JobRepo) IncrRetryCount(ctx context.Context, id string) (int, error) {
	n, err := r.store.HashIncrBy(ctx, JobKey(id), fieldRetryCount, 1)
	if err != nil {
		return 0, fmt.Errorf("op=jobs.IncrRetryCount id=%s: %w", id, err)
	}
	return int(n), nil
}

// MarkProcessing inserts the id into jobs:processing.
func (r *JobRepo) MarkProcessing(ctx context.Context, id string) error {
	if err := r.store.SetAdd(ctx, ProcessingSet, id); err != nil {
		return fmt.Errorf("op=jobs.MarkProcessing id=%s: %w", id, err)
	}
	return nil
}

// UnmarkProcessing removes the id from jobs:processing. Called on every exit
// path, success or failure.
func (r *JobRepo) UnmarkProcessing(ctx context.Context, id string) error {
	if err := r.store.SetRemove(ctx, ProcessingSet, id); err != nil {
		return fmt.Errorf("op=jobs.UnmarkProcessing id=%s: %w", id, err)
	}
	return nil
}

var _ domain.JobRepository = (*JobRepo)(nil)
