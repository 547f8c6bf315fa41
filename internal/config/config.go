// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Transcription provider selectors.
const (
	ProviderAssemblyAI = "assemblyai"
	ProviderMock       = "mock"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`
	// MetricsPort is the worker-side Prometheus endpoint; the server exposes
	// /metrics on its main port.
	MetricsPort int `env:"METRICS_PORT" envDefault:"9090"`

	RedisURL string `env:"REDIS_URL"`

	AWSRegion          string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3BucketName       string `env:"S3_BUCKET_NAME"`
	// S3EndpointURL points the blob client at a non-AWS endpoint (MinIO,
	// localstack). Empty means the real AWS endpoint.
	S3EndpointURL string `env:"S3_ENDPOINT_URL"`

	TranscriptionProvider string `env:"TRANSCRIPTION_PROVIDER" envDefault:"mock"`
	AssemblyAIAPIKey      string `env:"ASSEMBLYAI_API_KEY"`
	AssemblyAIBaseURL     string `env:"ASSEMBLYAI_BASE_URL" envDefault:"https://api.assemblyai.com"`

	// Pipeline tuning
	MaxRetries             int           `env:"MAX_RETRIES" envDefault:"3"`
	InitialBackoff         time.Duration `env:"INITIAL_BACKOFF" envDefault:"2s"`
	MaxGlobalConcurrency   int           `env:"MAX_GLOBAL_CONCURRENCY" envDefault:"5"`
	MaxAIConcurrency       int           `env:"MAX_AI_CONCURRENCY" envDefault:"2"`
	TranscribePollInterval time.Duration `env:"TRANSCRIBE_POLL_INTERVAL" envDefault:"3s"`
	PresignExpiry          time.Duration `env:"PRESIGN_EXPIRY" envDefault:"60s"`
	UploadURLExpiry        time.Duration `env:"UPLOAD_URL_EXPIRY" envDefault:"15m"`
	TmpRoot                string        `env:"TMP_ROOT"`
	FFmpegPath             string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	// WorkerErrorDelay is the pause after a store-level failure in the worker
	// loop before the next iteration.
	WorkerErrorDelay time.Duration `env:"WORKER_ERROR_DELAY" envDefault:"5s"`

	// Dashboard snapshot cadence
	StatsInterval time.Duration `env:"STATS_INTERVAL" envDefault:"2s"`

	// HTTP server
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"video-subtitle-pipeline"`
}

// Load parses environment variables into a Config and fails fast on missing
// required values.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// Validate checks required variables and cross-field constraints.
func (c Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.S3BucketName == "" {
		return fmt.Errorf("S3_BUCKET_NAME is required")
	}
	switch c.TranscriptionProvider {
	case ProviderMock:
	case ProviderAssemblyAI:
		if c.AssemblyAIAPIKey == "" {
			return fmt.Errorf("ASSEMBLYAI_API_KEY is required when TRANSCRIPTION_PROVIDER=assemblyai")
		}
	default:
		return fmt.Errorf("unknown TRANSCRIPTION_PROVIDER %q", c.TranscriptionProvider)
	}
	if c.MaxGlobalConcurrency < 1 || c.MaxAIConcurrency < 1 {
		return fmt.Errorf("semaphore capacities must be at least 1")
	}
	return nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }
