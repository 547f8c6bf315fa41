// Command worker runs the pull-dispatch fleet: it initializes the
// distributed semaphores, then loops acquire slot, pop job, run pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	s3blob "github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/blob/s3"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/extractor/ffmpeg"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/queue/redisqueue"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/redisstore"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/transcriber"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/app"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/config"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/service/semaphore"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil { // #nosec G114 -- internal metrics endpoint
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := redisstore.Connect(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("redis connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	blob, err := s3blob.New(ctx, cfg)
	if err != nil {
		slog.Error("blob store init failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Semaphore bootstrap resets both gates to full capacity; run this once
	// per deployment, before any loop starts.
	globalSem := semaphore.New(store.Client(), redisstore.SemGlobal, cfg.MaxGlobalConcurrency)
	aiSem := semaphore.New(store.Client(), redisstore.SemAI, cfg.MaxAIConcurrency)
	if err := globalSem.Init(ctx); err != nil {
		slog.Error("global semaphore init failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := aiSem.Init(ctx); err != nil {
		slog.Error("ai semaphore init failed", slog.Any("error", err))
		os.Exit(1)
	}

	provider, err := transcriber.New(cfg, blob)
	if err != nil {
		slog.Error("transcriber init failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("transcription provider ready", slog.String("provider", cfg.TranscriptionProvider))

	jobs := redisstore.NewJobRepo(store)
	queue := redisqueue.NewQueue(store)
	policy := domain.RetryPolicy{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff}
	retry := usecase.NewRetryController(jobs, queue, policy)
	pipeline := usecase.NewPipeline(jobs, blob, ffmpeg.New(cfg.FFmpegPath), provider, aiSem, retry, cfg.TmpRoot)

	go app.NewStatsReporter(store, cfg.StatsInterval).Run(ctx)

	// One loop per global slot; the semaphore still rules when several worker
	// processes share the deployment.
	var wg sync.WaitGroup
	for i := 0; i < cfg.MaxGlobalConcurrency; i++ {
		w := redisqueue.NewWorker(queue, globalSem, pipeline, cfg.WorkerErrorDelay)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	slog.Info("worker fleet started",
		slog.Int("loops", cfg.MaxGlobalConcurrency),
		slog.Int("global_slots", cfg.MaxGlobalConcurrency),
		slog.Int("ai_slots", cfg.MaxAIConcurrency))

	<-ctx.Done()
	slog.Info("shutdown signal received")

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		retry.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		slog.Info("worker stopped cleanly")
	case <-time.After(cfg.ServerShutdownTimeout):
		slog.Warn("shutdown timeout elapsed, exiting with work in flight")
	}
}
