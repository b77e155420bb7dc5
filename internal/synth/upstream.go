package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Upstream defaults.
const (
	DefaultUpstreamURL  = "https://api.elevenlabs.io"
	DefaultModelID      = "eleven_multilingual_v2"
	DefaultOutputFormat = "mp3_44100_128"
)

// UpstreamConfig configures the ElevenLabs client.
type UpstreamConfig struct {
	APIKey       string
	BaseURL      string
	ModelID      string
	OutputFormat string
	Timeout      time.Duration
}

// Upstream calls the ElevenLabs text-to-speech API.
type Upstream struct {
	cfg  UpstreamConfig
	http *http.Client
}

var (
	_ Synthesizer = (*Upstream)(nil)
	_ Catalog     = (*Upstream)(nil)
)

// NewUpstream creates an ElevenLabs client, filling in defaults.
func NewUpstream(cfg UpstreamConfig) *Upstream {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultUpstreamURL
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = DefaultModelID
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Upstream{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Configured reports whether an API key is set.
func (u *Upstream) Configured() bool {
	return strings.TrimSpace(u.cfg.APIKey) != ""
}

type upstreamSpeakRequest struct {
	Text          string                `json:"text"`
	ModelID       string                `json:"model_id"`
	VoiceSettings upstreamVoiceSettings `json:"voice_settings"`
}

type upstreamVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize returns MP3 audio for req.
func (u *Upstream) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(upstreamSpeakRequest{
		Text:    req.Text,
		ModelID: u.cfg.ModelID,
		VoiceSettings: upstreamVoiceSettings{
			Stability:       req.Stability,
			SimilarityBoost: req.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		u.cfg.BaseURL, url.PathEscape(req.VoiceID), url.QueryEscape(u.cfg.OutputFormat))
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "audio/mpeg")
	return u.do(hreq, maxAudioBody)
}

// Voices lists the account's voices.
func (u *Upstream) Voices(ctx context.Context) ([]Voice, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.cfg.BaseURL+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	body, err := u.do(hreq, maxJSONBody)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Voices []struct {
			VoiceID     string            `json:"voice_id"`
			Name        string            `json:"name"`
			Category    string            `json:"category"`
			Description string            `json:"description"`
			PreviewURL  string            `json:"preview_url"`
			Labels      map[string]string `json:"labels"`
		} `json:"voices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("invalid voices response: %w", err)
	}

	voices := make([]Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		item := Voice{
			ID:          strings.TrimSpace(v.VoiceID),
			Name:        strings.TrimSpace(v.Name),
			Category:    strings.TrimSpace(v.Category),
			Description: strings.TrimSpace(v.Description),
			PreviewURL:  strings.TrimSpace(v.PreviewURL),
			Language:    strings.TrimSpace(v.Labels["language"]),
		}
		if item.Language == "" {
			item.Language = strings.TrimSpace(v.Labels["accent"])
		}
		if item.ID == "" || item.Name == "" {
			continue
		}
		voices = append(voices, item)
	}
	return voices, nil
}

func (u *Upstream) do(req *http.Request, limit int64) ([]byte, error) {
	req.Header.Set("xi-api-key", u.cfg.APIKey)

	res, err := u.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer res.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(res.Body, limit))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: res.StatusCode,
			Body:       fmt.Sprintf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	return body, nil
}
