// Package assemblyai implements the transcriber against the AssemblyAI v2
// REST API: submit a presigned audio URL, poll the transcript resource until
// it reaches a terminal status, and map utterances to segments.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/config"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

// URLSigner mints short-lived read URLs for audio blobs so the provider can
// fetch them without bucket credentials.
type URLSigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Client is the real transcription provider.
type Client struct {
	httpc         *http.Client
	baseURL       string
	apiKey        string
	signer        URLSigner
	pollInterval  time.Duration
	presignExpiry time.Duration
}

// New constructs an AssemblyAI client. Outbound calls carry OTel spans via
// the instrumented transport.
func New(cfg config.Config, signer URLSigner) *Client {
	return &Client{
		httpc: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:       cfg.AssemblyAIBaseURL,
		apiKey:        cfg.AssemblyAIAPIKey,
		signer:        signer,
		pollInterval:  cfg.TranscribePollInterval,
		presignExpiry: cfg.PresignExpiry,
	}
}

type submitRequest struct {
	AudioURL string `json:"audio_url"`
}

type utterance struct {
	Text    string `json:"text"`
	StartMS int64  `json:"start"`
	EndMS   int64  `json:"end"`
}

type transcriptResource struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
	// AudioDuration is reported in seconds.
	AudioDuration float64     `json:"audio_duration"`
	Utterances    []utterance `json:"utterances"`
}

// Transcribe submits the audio blob and polls until the provider reaches a
// terminal status. Transient transport and 5xx errors on individual calls
// are retried inside doJSON; only a terminal "error" status fails the job.
func (c *Client) Transcribe(ctx context.Context, audioKey string) ([]domain.Segment, error) {
	audioURL, err := c.signer.PresignGet(ctx, audioKey, c.presignExpiry)
	if err != nil {
		return nil, fmt.Errorf("op=assemblyai.Transcribe key=%s: presign: %w", audioKey, err)
	}

	var created transcriptResource
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v2/transcript", submitRequest{AudioURL: audioURL}, &created); err != nil {
		return nil, fmt.Errorf("op=assemblyai.Transcribe key=%s: submit: %w", audioKey, err)
	}
	slog.Debug("transcript submitted", slog.String("audio_key", audioKey), slog.String("transcript_id", created.ID))

	for {
		var tr transcriptResource
		if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+created.ID, nil, &tr); err != nil {
			return nil, fmt.Errorf("op=assemblyai.Transcribe key=%s: poll: %w", audioKey, err)
		}
		switch tr.Status {
		case "completed":
			return segmentsFrom(tr), nil
		case "error":
			return nil, fmt.Errorf("%w: %s", domain.ErrTranscriptionFailed, tr.Error)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// segmentsFrom maps provider utterances 1:1 to segments; without utterances
// the whole text becomes a single segment spanning the audio duration.
func segmentsFrom(tr transcriptResource) []domain.Segment {
	if len(tr.Utterances) > 0 {
		segs := make([]domain.Segment, len(tr.Utterances))
		for i, u := range tr.Utterances {
			segs[i] = domain.Segment{Text: u.Text, StartMS: u.StartMS, EndMS: u.EndMS}
		}
		return segs
	}
	if tr.Text == "" {
		return nil
	}
	return []domain.Segment{{Text: tr.Text, StartMS: 0, EndMS: int64(tr.AudioDuration * 1000)}}
}

// doJSON performs one API call with exponential backoff on transport errors
// and 5xx responses. 4xx responses are permanent.
func (c *Client) doJSON(ctx context.Context, method, url string, reqBody, respBody interface{}) error {
	op := func() error {
		var body io.Reader
		if reqBody != nil {
			buf, err := json.Marshal(reqBody)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("marshal request: %w", err))
			}
			body = bytes.NewReader(buf)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", c.apiKey)
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("assemblyai status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("assemblyai status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 200 * time.Millisecond
	expo.MaxInterval = 2 * time.Second
	expo.MaxElapsedTime = 15 * time.Second
	return backoff.Retry(op, backoff.WithContext(expo, ctx))
}

var _ domain.Transcriber = (*Client)(nil)
