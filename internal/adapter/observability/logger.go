package observability

import (
	"log/slog"
	"os"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/config"
)

// SetupLogger builds the process-wide JSON logger. Dev runs at debug with
// source locations; everything else logs info and above.
func SetupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsDev() {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}
