package ffmpeg

import (
	"context"
	"strings"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	args := buildArgs("/scratch/j1/v.mp4", "/scratch/j1/v.mp3")
	want := []string{"-y", "-i", "/scratch/j1/v.mp4", "-vn", "-codec:a", "libmp3lame", "-q:a", "2", "/scratch/j1/v.mp3"}
	if len(args) != len(want) {
		t.Fatalf("got %d args want %d: %v", len(args), len(want), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: got %q want %q", i, args[i], want[i])
		}
	}
}

func TestNewDefaultsToPathLookup(t *testing.T) {
	e := New("")
	if e.path != "ffmpeg" {
		t.Fatalf("path: %q", e.path)
	}
}

func TestExtractMissingBinary(t *testing.T) {
	e := New("/nonexistent/ffmpeg-binary")
	err := e.Extract(context.Background(), "in.mp4", "out.mp3")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "op=ffmpeg.Extract") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStderrTail(t *testing.T) {
	long := strings.Repeat("banner line\n", 20) + "actual error: no audio stream"
	tail := stderrTail(long)
	if !strings.Contains(tail, "actual error: no audio stream") {
		t.Fatalf("tail lost the diagnostic: %q", tail)
	}
	if strings.Count(tail, "\n") > 4 {
		t.Fatalf("tail too long: %q", tail)
	}
}
