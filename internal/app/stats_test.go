package app

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/redisstore"
)

func TestStatsReporterPublishesGauges(t *testing.T) {
	ctx := context.Background()
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

	if err := store.ListPushLeft(ctx, redisstore.QueueHigh, "a", "b"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := store.ListPushLeft(ctx, redisstore.QueueDLQ, "dead"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := store.SetAdd(ctx, redisstore.ProcessingSet, "p1"); err != nil {
		t.Fatalf("sadd: %v", err)
	}

	reporter := NewStatsReporter(store, time.Hour)
	reporter.reportOnce(ctx)

	if got := testutil.ToFloat64(observability.QueueDepth.WithLabelValues("high")); got != 2 {
		t.Fatalf("queue_depth{high}: %v", got)
	}
	if got := testutil.ToFloat64(observability.QueueDepth.WithLabelValues("dlq")); got != 1 {
		t.Fatalf("queue_depth{dlq}: %v", got)
	}
	if got := testutil.ToFloat64(observability.JobsProcessing); got != 1 {
		t.Fatalf("jobs_processing: %v", got)
	}
}

func TestStatsReporterStopsOnCancel(t *testing.T) {
	reporter := NewStatsReporter(nil, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		reporter.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
}
