// Package transcriber selects the transcription provider implementation
// from configuration: the real AssemblyAI client or the deterministic mock.
package transcriber

import (
	"fmt"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/transcriber/assemblyai"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/adapter/transcriber/mock"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/config"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

// New returns the transcriber named by TRANSCRIPTION_PROVIDER.
func New(cfg config.Config, signer assemblyai.URLSigner) (domain.Transcriber, error) {
	switch cfg.TranscriptionProvider {
	case config.ProviderAssemblyAI:
		return assemblyai.New(cfg, signer), nil
	case config.ProviderMock:
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown transcription provider %q", domain.ErrInvalidArgument, cfg.TranscriptionProvider)
	}
}
