package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/redisstore"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/config"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

// JobQueue is the submission queue plus DLQ inspection.
type JobQueue interface {
	domain.Queue
	DLQPeek(ctx context.Context, n int64) ([]string, error)
}

// UploadSigner mints presigned PUT URLs for direct-to-blob uploads.
type UploadSigner interface {
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// StatsSource produces one atomic snapshot of the queue depths.
type StatsSource interface {
	TakeSnapshot(ctx context.Context) (redisstore.Snapshot, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Jobs       domain.JobRepository
	Queue      JobQueue
	Uploads    UploadSigner
	Signer     domain.BlobStore
	Stats      StatsSource
	RedisCheck func(ctx context.Context) error
	BlobCheck  func(ctx context.Context) error
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// UploadURLHandler mints a presigned PUT URL for one video file. The blob key
// is {uuid}-{filename} so concurrent uploads of the same filename never
// collide.
func (s *Server) UploadURLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req struct {
			Filename string `json:"filename" validate:"required,max=200"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}
		name := sanitizeFilename(req.Filename)
		if name == "" {
			writeError(w, r, fmt.Errorf("%w: filename required", domain.ErrInvalidArgument), nil)
			return
		}
		key := uuid.NewString() + "-" + name
		url, err := s.Uploads.PresignPut(r.Context(), key, s.Cfg.UploadURLExpiry)
		if err != nil {
			writeError(w, r, fmt.Errorf("presign upload: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key, "url": url})
	}
}

// CreateJobHandler registers a job record and pushes it onto its priority
// queue. The record must exist before the push or a fast worker reads an
// empty hash.
func (s *Server) CreateJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req struct {
			VideoKey string `json:"video_key" validate:"required,max=300"`
			Priority string `json:"priority" validate:"omitempty,oneof=high low"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}
		priority := domain.Priority(req.Priority)
		if req.Priority == "" {
			priority = domain.PriorityLow
		}

		job := domain.Job{
			ID:        uuid.NewString(),
			VideoURL:  req.VideoKey,
			Status:    domain.JobQueued,
			CreatedAt: time.Now().UTC(),
			Priority:  priority,
		}
		ctx := r.Context()
		if err := s.Jobs.Create(ctx, job); err != nil {
			writeError(w, r, fmt.Errorf("create job: %w", err), nil)
			return
		}
		if err := s.Queue.Enqueue(ctx, priority, job.ID); err != nil {
			writeError(w, r, fmt.Errorf("enqueue job: %w", err), nil)
			return
		}
		LoggerFrom(r).Info("job submitted",
			"job_id", job.ID,
			"priority", string(priority),
			"video_key", req.VideoKey)
		writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID, "status": string(domain.JobQueued)})
	}
}

type jobResponse struct {
	ID          string `json:"id"`
	VideoURL    string `json:"video_url"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at,omitempty"`
	Priority    string `json:"priority"`
	AudioURL    string `json:"audio_url,omitempty"`
	SubtitleURL string `json:"subtitle_url,omitempty"`
	RetryCount  int    `json:"retry_count"`
	Error       string `json:"error,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// JobStatusHandler returns the full job record. Completed jobs additionally
// carry a short-lived presigned download URL for the subtitle blob.
func (s *Server) JobStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := validateJobID(id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		ctx := r.Context()
		job, err := s.Jobs.Get(ctx, id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		resp := jobResponse{
			ID:          job.ID,
			VideoURL:    job.VideoURL,
			Status:      string(job.Status),
			Priority:    string(job.Priority),
			AudioURL:    job.AudioURL,
			SubtitleURL: job.SubtitleURL,
			RetryCount:  job.RetryCount,
			Error:       job.Error,
		}
		if !job.CreatedAt.IsZero() {
			resp.CreatedAt = job.CreatedAt.UTC().Format(time.RFC3339)
		}
		if job.Status == domain.JobCompleted && job.SubtitleURL != "" && s.Signer != nil {
			if url, err := s.Signer.PresignGet(ctx, job.SubtitleURL, s.Cfg.PresignExpiry); err == nil {
				resp.DownloadURL = url
			} else {
				LoggerFrom(r).Warn("presign subtitle download failed",
					"job_id", job.ID,
					"error", err)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// StatsHandler returns one snapshot of the queue depths and in-flight count.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.Stats.TakeSnapshot(r.Context())
		if err != nil {
			writeError(w, r, fmt.Errorf("stats snapshot: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, statsPayload(snap))
	}
}

// StatsStreamHandler streams snapshots as server-sent events, one every
// STATS_INTERVAL, until the client goes away.
func (s *Server) StatsStreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, r, fmt.Errorf("%w: streaming unsupported", domain.ErrInternal), nil)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		// The stream must outlive the server's WriteTimeout. Writers without
		// deadline support (test recorders) keep their default behavior.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		interval := s.Cfg.StatsInterval
		if interval <= 0 {
			interval = 2 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		ctx := r.Context()
		for {
			snap, err := s.Stats.TakeSnapshot(ctx)
			if err != nil {
				LoggerFrom(r).Warn("stats stream snapshot failed", "error", err)
				return
			}
			data, err := json.Marshal(statsPayload(snap))
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

func statsPayload(snap redisstore.Snapshot) map[string]int64 {
	return map[string]int64{
		"queue_high": snap.QueueHigh,
		"queue_low":  snap.QueueLow,
		"queue_dlq":  snap.QueueDLQ,
		"processing": snap.Processing,
	}
}

// DLQHandler lists the most recently dead-lettered jobs with their final
// error, newest first.
func (s *Server) DLQHandler() http.HandlerFunc {
	type entry struct {
		ID         string `json:"id"`
		Error      string `json:"error,omitempty"`
		RetryCount int    `json:"retry_count"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ids, err := s.Queue.DLQPeek(ctx, 100)
		if err != nil {
			writeError(w, r, fmt.Errorf("dlq peek: %w", err), nil)
			return
		}
		entries := make([]entry, 0, len(ids))
		for _, id := range ids {
			e := entry{ID: id}
			if job, err := s.Jobs.Get(ctx, id); err == nil {
				e.Error = job.Error
				e.RetryCount = job.RetryCount
			}
			entries = append(entries, e)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": entries, "count": len(entries)})
	}
}

// ReadyzHandler probes the coordination store and the blob store.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		if s.RedisCheck != nil {
			c := check{Name: "redis", OK: true}
			if err := s.RedisCheck(ctx); err != nil {
				c.OK = false
				c.Details = err.Error()
			}
			checks = append(checks, c)
		}
		if s.BlobCheck != nil {
			c := check{Name: "blob", OK: true}
			if err := s.BlobCheck(ctx); err != nil {
				c.OK = false
				c.Details = err.Error()
			}
			checks = append(checks, c)
		}
		st := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				st = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, st, map[string]interface{}{"checks": checks})
	}
}

// HealthzHandler is the liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func validationDetails(err error) map[string]string {
	verrs := map[string]string{}
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			verrs[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return verrs
}
