// Package mock is the deterministic transcription provider used in tests
// and local development. Calls can be scripted per attempt, delayed, and the
// client tracks its in-flight high-water mark so tests can assert the AI
// semaphore bound.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

// Result is one scripted Transcribe outcome.
type Result struct {
	Segments []domain.Segment
	Err      error
}

// Client implements domain.Transcriber without any network dependency.
type Client struct {
	mu     sync.Mutex
	script []Result
	delay  time.Duration
	calls  int

	inFlight    int
	maxInFlight int
}

// New returns a mock that yields a single one-second segment per call.
func New() *Client { return &Client{} }

// Script queues outcomes consumed one per call; once drained, calls fall
// back to the default segment.
func (c *Client) Script(results ...Result) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, results...)
	return c
}

// SetDelay makes each call hold its slot for d, so concurrency tests get an
// observable window.
func (c *Client) SetDelay(d time.Duration) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
	return c
}

// Transcribe pops the next scripted result, honoring the configured delay.
func (c *Client) Transcribe(ctx context.Context, _ string) ([]domain.Segment, error) {
	c.mu.Lock()
	c.calls++
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	var res Result
	if len(c.script) > 0 {
		res = c.script[0]
		c.script = c.script[1:]
	} else {
		res = Result{Segments: []domain.Segment{{Text: "mock transcript", StartMS: 0, EndMS: 1000}}}
	}
	delay := c.delay
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return res.Segments, res.Err
}

// Calls reports how many times Transcribe ran.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// MaxInFlight reports the highest number of concurrent Transcribe calls
// observed.
func (c *Client) MaxInFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxInFlight
}

var _ domain.Transcriber = (*Client)(nil)
