// Package domain defines the core entities and ports of the subtitle
// pipeline: jobs, transcript segments, and the interfaces the worker
// composes (blob store, audio extractor, transcriber, semaphore, queue).
package domain

import (
	"context"
	"errors"
	"io"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	// ErrMissingVideoURL marks a job record without a video blob key. The
	// attempt still walks the retry counter so operators find it in the DLQ.
	ErrMissingVideoURL = errors.New("job record missing videoUrl")
	// ErrNoSegments is the exact failure message recorded when the provider
	// returns an empty transcript.
	ErrNoSegments          = errors.New("Transcription service returned no segments.")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrInternal            = errors.New("internal error")
)

// JobStatus is the value of the status field on a job record.
type JobStatus string

const (
	JobQueued       JobStatus = "queued"
	JobDownloading  JobStatus = "processing:downloading_video"
	JobExtracting   JobStatus = "processing:extracting_audio"
	JobTranscribing JobStatus = "processing:transcribing_audio"
	JobCompleted    JobStatus = "completed"
	JobQueuedRetry  JobStatus = "queued:retry"
	JobFailedDLQ    JobStatus = "failed:dlq"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailedDLQ
}

// Priority selects the submission queue.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

// Valid reports whether the priority is one of the two known values.
func (p Priority) Valid() bool { return p == PriorityHigh || p == PriorityLow }

// Job is one video-to-subtitle processing unit, stored as a string hash in
// the coordination store.
// Invariants: RetryCount never decreases; a completed job has a non-empty
// SubtitleURL; a failed:dlq job sits in queue:dlq with RetryCount > MaxRetries.
type Job struct {
	ID          string
	VideoURL    string
	Status      JobStatus
	CreatedAt   time.Time
	Priority    Priority
	AudioURL    string
	SubtitleURL string
	RetryCount  int
	Error       string
}

// Segment is one timed utterance of a transcript.
type Segment struct {
	Text    string
	StartMS int64
	EndMS   int64
}

// JobRepository owns the job hash and the jobs:processing membership set.
// All state transitions go through it so tests can observe them. Updates are
// per-field; readers must tolerate intermediate states.
type JobRepository interface {
	Create(ctx context.Context, j Job) error
	Get(ctx context.Context, id string) (Job, error)
	SetStatus(ctx context.Context, id string, status JobStatus) error
	SetStatusError(ctx context.Context, id string, status JobStatus, errMsg string) error
	SetAudioURL(ctx context.Context, id, key string) error
	SetSubtitleURL(ctx context.Context, id, key string) error
	IncrRetryCount(ctx context.Context, id string) (int, error)
	MarkProcessing(ctx context.Context, id string) error
	UnmarkProcessing(ctx context.Context, id string) error
}

// Queue pushes job ids onto the priority, retry, and dead-letter lists.
type Queue interface {
	Enqueue(ctx context.Context, p Priority, jobID string) error
	EnqueueRetry(ctx context.Context, jobID string) error
	EnqueueDLQ(ctx context.Context, jobID string) error
}

// BlobStore reads and writes opaque byte streams keyed by string. Download
// must stream into the destination file without buffering the whole object.
type BlobStore interface {
	Download(ctx context.Context, key, destPath string) error
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// AudioExtractor produces an audio file from a video file on local disk.
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath, audioPath string) error
}

// Transcriber turns an audio blob key into an ordered list of timed segments.
// An empty result is permitted here and rejected by the pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, audioKey string) ([]Segment, error)
}

// Semaphore is a distributed counting gate. Acquire blocks until a token is
// available or the context is done; every Acquire pairs with exactly one
// Release on all exit paths.
type Semaphore interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// FailureHandler classifies a pipeline failure and moves the job to either
// queued:retry or failed:dlq. The pipeline never leaves a job in a
// processing state.
type FailureHandler interface {
	HandleFailure(ctx context.Context, jobID string, cause error)
}
