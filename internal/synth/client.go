package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	speakPath  = "/api/tts/speak"
	voicesPath = "/api/tts/voices"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL of the synthesis service, e.g. http://localhost:8787.
	BaseURL string
	// APIKey is sent as xi-api-key when set.
	APIKey string
	// Timeout per request; zero means 30s.
	Timeout time.Duration
	// RequestsPerMinute limits request rate; zero disables the limit.
	RequestsPerMinute int
}

// Client calls the synthesis service.
type Client struct {
	base    string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

var (
	_ Synthesizer = (*Client)(nil)
	_ Catalog     = (*Client)(nil)
)

// NewClient creates a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("synthesis base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Client{
		base:    base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 3),
	}, nil
}

// Synthesize posts one chunk and returns the encoded audio.
func (c *Client) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, speakPath, body, maxAudioBody)
}

// Voices fetches the catalog in server order.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	body, err := c.do(ctx, http.MethodGet, voicesPath, nil, maxJSONBody)
	if err != nil {
		return nil, err
	}
	var parsed VoicesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("invalid voices response: %w", err)
	}
	voices := parsed.Voices[:0]
	for _, v := range parsed.Voices {
		if strings.TrimSpace(v.ID) == "" {
			continue
		}
		voices = append(voices, v)
	}
	return voices, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, limit int64) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("xi-api-key", c.apiKey)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(res.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	log.Debug("synth: response", "method", method, "path", path, "status", res.StatusCode,
		"bytes", len(data), "took", time.Since(start), "request_id", requestID)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
