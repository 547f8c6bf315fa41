// Command server starts the subtitle pipeline HTTP API: upload URL minting,
// job submission, job status, dashboard stats, and DLQ inspection.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	s3blob "github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/blob/s3"
	httpserver "github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/httpserver"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/observability"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/queue/redisqueue"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/redisstore"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/app"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/config"
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

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
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

	jobs := redisstore.NewJobRepo(store)
	queue := redisqueue.NewQueue(store)
	redisCheck, blobCheck := app.BuildReadinessChecks(store, blob)

	srv := &httpserver.Server{
		Cfg:        cfg,
		Jobs:       jobs,
		Queue:      queue,
		Uploads:    blob,
		Signer:     blob,
		Stats:      store,
		RedisCheck: redisCheck,
		BlobCheck:  blobCheck,
	}
	handler := app.BuildRouter(cfg, srv)

	// Keep the Prometheus gauges warm even when nobody is watching the SSE
	// stream.
	reporterCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go app.NewStatsReporter(store, cfg.StatsInterval).Run(reporterCtx)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
