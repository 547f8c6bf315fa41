// Package ffmpeg shells out to ffmpeg to pull the audio track from a video
// file: MP3, variable bitrate at quality level 2, no video stream.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

// Extractor owns no state between calls; each Extract is one synchronous
// tool invocation.
type Extractor struct {
	path string
}

// New constructs an Extractor. An empty path falls back to "ffmpeg" on PATH.
func New(path string) *Extractor {
	if path == "" {
		path = "ffmpeg"
	}
	return &Extractor{path: path}
}

// Extract transcodes videoPath into an MP3 at audioPath. On failure the
// error carries the tail of ffmpeg's stderr diagnostics.
func (e *Extractor) Extract(ctx context.Context, videoPath, audioPath string) error {
	cmd := exec.CommandContext(ctx, e.path, buildArgs(videoPath, audioPath)...) // #nosec G204 -- fixed binary, paths are worker-owned scratch files
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("op=ffmpeg.Extract: %w: %s", err, stderrTail(stderr.String()))
	}
	return nil
}

// buildArgs assembles the fixed transcode invocation:
// -vn drops the video stream, -q:a 2 selects VBR quality level 2.
func buildArgs(videoPath, audioPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-q:a", "2",
		audioPath,
	}
}

// stderrTail keeps the last few lines of diagnostics; ffmpeg front-loads
// banner noise and puts the actual error at the end.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	const keep = 5
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.Join(lines, "\n")
}

var _ domain.AudioExtractor = (*Extractor)(nil)
