package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/redisstore"
)

// SnapshotSource produces one atomic reading of the queue depths.
type SnapshotSource interface {
	TakeSnapshot(ctx context.Context) (redisstore.Snapshot, error)
}

// StatsReporter refreshes the queue-depth gauges on a fixed cadence so the
// dashboard and Prometheus see the same numbers.
type StatsReporter struct {
	source   SnapshotSource
	interval time.Duration
}

// NewStatsReporter constructs a reporter. A non-positive interval falls back
// to two seconds.
func NewStatsReporter(source SnapshotSource, interval time.Duration) *StatsReporter {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &StatsReporter{source: source, interval: interval}
}

// Run loops until the context is canceled, publishing one reading per tick.
func (s *StatsReporter) Run(ctx context.Context) {
	if s == nil || s.source == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.reportOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stats reporter stopping")
			return
		case <-ticker.C:
			s.reportOnce(ctx)
		}
	}
}

func (s *StatsReporter) reportOnce(ctx context.Context) {
	tracer := otel.Tracer("pipeline.stats")
	ctx, span := tracer.Start(ctx, "StatsReporter.reportOnce")
	defer span.End()

	snap, err := s.source.TakeSnapshot(ctx)
	if err != nil {
		span.RecordError(err)
		slog.Warn("stats snapshot failed", slog.Any("error", err))
		return
	}
	observability.QueueDepth.WithLabelValues("high").Set(float64(snap.QueueHigh))
	observability.QueueDepth.WithLabelValues("low").Set(float64(snap.QueueLow))
	observability.QueueDepth.WithLabelValues("dlq").Set(float64(snap.QueueDLQ))
	observability.JobsProcessing.Set(float64(snap.Processing))
	span.SetAttributes(
		attribute.Int64("queue.high", snap.QueueHigh),
		attribute.Int64("queue.low", snap.QueueLow),
		attribute.Int64("queue.dlq", snap.QueueDLQ),
		attribute.Int64("jobs.processing", snap.Processing),
	)
}
