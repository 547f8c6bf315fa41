package config

import (
	"testing"
	"time"
)

func base() Config {
	return Config{
		RedisURL:              "redis://localhost:6379/0",
		S3BucketName:          "subtitles",
		TranscriptionProvider: ProviderMock,
		MaxGlobalConcurrency:  5,
		MaxAIConcurrency:      2,
	}
}

func TestValidateOK(t *testing.T) {
	if err := base().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMissingRedis(t *testing.T) {
	c := base()
	c.RedisURL = ""
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing REDIS_URL")
	}
}

func TestValidateMissingBucket(t *testing.T) {
	c := base()
	c.S3BucketName = ""
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing S3_BUCKET_NAME")
	}
}

func TestValidateAssemblyAIRequiresKey(t *testing.T) {
	c := base()
	c.TranscriptionProvider = ProviderAssemblyAI
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing ASSEMBLYAI_API_KEY")
	}
	c.AssemblyAIAPIKey = "key"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUnknownProvider(t *testing.T) {
	c := base()
	c.TranscriptionProvider = "whisper"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestValidateSemaphoreCapacity(t *testing.T) {
	c := base()
	c.MaxAIConcurrency = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("S3_BUCKET_NAME", "subtitles")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRetries != 3 || cfg.InitialBackoff != 2*time.Second {
		t.Fatalf("unexpected retry defaults: %d %v", cfg.MaxRetries, cfg.InitialBackoff)
	}
	if cfg.MaxGlobalConcurrency != 5 || cfg.MaxAIConcurrency != 2 {
		t.Fatalf("unexpected concurrency defaults: %d %d", cfg.MaxGlobalConcurrency, cfg.MaxAIConcurrency)
	}
	if cfg.TranscribePollInterval != 3*time.Second {
		t.Fatalf("unexpected poll interval: %v", cfg.TranscribePollInterval)
	}
	if cfg.TranscriptionProvider != ProviderMock {
		t.Fatalf("unexpected default provider: %q", cfg.TranscriptionProvider)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("S3_BUCKET_NAME", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing required variables")
	}
}
