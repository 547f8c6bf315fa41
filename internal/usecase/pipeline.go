package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
	"github.com/fairyhunter13/video-subtitle-pipeline/pkg/srt"
)

// Pipeline drives one job through download, audio extraction, transcription,
// and subtitle upload. It owns the per-job scratch directory and the AI
// semaphore token; the caller owns the global worker slot.
type Pipeline struct {
	jobs        domain.JobRepository
	blob        domain.BlobStore
	extractor   domain.AudioExtractor
	transcriber domain.Transcriber
	aiSlots     domain.Semaphore
	onFailure   domain.FailureHandler
	tmpRoot     string
}

// NewPipeline constructs a Pipeline. An empty tmpRoot falls back to the OS
// temp directory.
func NewPipeline(
	jobs domain.JobRepository,
	blob domain.BlobStore,
	extractor domain.AudioExtractor,
	transcriber domain.Transcriber,
	aiSlots domain.Semaphore,
	onFailure domain.FailureHandler,
	tmpRoot string,
) *Pipeline {
	if tmpRoot == "" {
		tmpRoot = os.TempDir()
	}
	return &Pipeline{
		jobs:        jobs,
		blob:        blob,
		extractor:   extractor,
		transcriber: transcriber,
		aiSlots:     aiSlots,
		onFailure:   onFailure,
		tmpRoot:     tmpRoot,
	}
}

// Run executes one attempt for the job. Failures in the staged work are
// routed through the failure handler before cleanup, so the job never stays
// in a processing:* state; the returned error is informational for the
// worker's log. Artifact keys are pure functions of videoUrl, so a retried
// attempt overwrites the same blobs.
func (p *Pipeline) Run(ctx context.Context, jobID string) error {
	// A store failure here means the attempt never started; the retry budget
	// stays untouched and the worker loop absorbs the error.
	if err := p.jobs.MarkProcessing(ctx, jobID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	scratch := filepath.Join(p.tmpRoot, jobID)
	defer p.cleanup(ctx, jobID, scratch)

	if err := os.MkdirAll(scratch, 0o750); err != nil {
		err = fmt.Errorf("create scratch dir: %w", err)
		p.onFailure.HandleFailure(ctx, jobID, err)
		return err
	}

	if err := p.execute(ctx, jobID, scratch); err != nil {
		p.onFailure.HandleFailure(ctx, jobID, err)
		return err
	}
	observability.JobsCompletedTotal.Inc()
	return nil
}

// execute walks the stages in order. Any returned error is a failed attempt.
func (p *Pipeline) execute(ctx context.Context, jobID, scratch string) error {
	if err := p.jobs.SetStatus(ctx, jobID, domain.JobDownloading); err != nil {
		return err
	}
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.VideoURL == "" {
		return domain.ErrMissingVideoURL
	}

	base := filepath.Base(job.VideoURL)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	localVideo := filepath.Join(scratch, base)
	localAudio := filepath.Join(scratch, stem+".mp3")
	audioKey := stem + ".mp3"
	subtitleKey := stem + ".srt"

	start := time.Now()
	if err := p.blob.Download(ctx, job.VideoURL, localVideo); err != nil {
		return fmt.Errorf("download video: %w", err)
	}
	observability.ObserveStage("download", start)

	if err := p.jobs.SetStatus(ctx, jobID, domain.JobExtracting); err != nil {
		return err
	}
	start = time.Now()
	if err := p.extractor.Extract(ctx, localVideo, localAudio); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	observability.ObserveStage("extract", start)

	if err := p.uploadFile(ctx, audioKey, localAudio, "audio/mpeg"); err != nil {
		return fmt.Errorf("upload audio: %w", err)
	}
	if err := p.jobs.SetAudioURL(ctx, jobID, audioKey); err != nil {
		return err
	}

	segments, err := p.transcribe(ctx, jobID, audioKey)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return domain.ErrNoSegments
	}

	cues := make([]srt.Cue, len(segments))
	for i, s := range segments {
		cues[i] = srt.Cue{Text: s.Text, StartMS: s.StartMS, EndMS: s.EndMS}
	}
	doc := srt.Format(cues)
	if err := p.blob.Upload(ctx, subtitleKey, strings.NewReader(doc), "application/x-subrip"); err != nil {
		return fmt.Errorf("upload subtitles: %w", err)
	}
	if err := p.jobs.SetSubtitleURL(ctx, jobID, subtitleKey); err != nil {
		return err
	}
	if err := p.jobs.SetStatus(ctx, jobID, domain.JobCompleted); err != nil {
		return err
	}
	slog.Info("job completed",
		slog.String("job_id", jobID),
		slog.String("subtitle_key", subtitleKey),
		slog.Int("segments", len(segments)))
	return nil
}

// transcribe holds the AI slot only for the duration of the provider call.
// The token is released on every exit path.
func (p *Pipeline) transcribe(ctx context.Context, jobID, audioKey string) ([]domain.Segment, error) {
	if err := p.aiSlots.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire ai slot: %w", err)
	}
	defer func() {
		if err := p.aiSlots.Release(context.WithoutCancel(ctx)); err != nil {
			slog.Error("failed to release ai slot",
				slog.String("job_id", jobID),
				slog.Any("error", err))
		}
		observability.TranscriptionsInFlight.Dec()
	}()
	observability.TranscriptionsInFlight.Inc()

	if err := p.jobs.SetStatus(ctx, jobID, domain.JobTranscribing); err != nil {
		return nil, err
	}
	start := time.Now()
	segments, err := p.transcriber.Transcribe(ctx, audioKey)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	observability.ObserveStage("transcribe", start)
	return segments, nil
}

func (p *Pipeline) uploadFile(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path) // #nosec G304 -- path is inside the job's scratch dir
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return p.blob.Upload(ctx, key, f, contentType)
}

// cleanup always removes the job from jobs:processing and deletes the
// scratch directory. Failures here are logged and do not change the job's
// outcome.
func (p *Pipeline) cleanup(ctx context.Context, jobID, scratch string) {
	if err := p.jobs.UnmarkProcessing(context.WithoutCancel(ctx), jobID); err != nil {
		slog.Error("cleanup: failed to remove job from processing set",
			slog.String("job_id", jobID),
			slog.Any("error", err))
	}
	if err := os.RemoveAll(scratch); err != nil {
		slog.Error("cleanup: failed to delete scratch dir",
			slog.String("job_id", jobID),
			slog.String("dir", scratch),
			slog.Any("error", err))
	}
}
