package synth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Response size caps.
const (
	maxAudioBody = 16 << 20
	maxJSONBody  = 2 << 20
)

// ErrEmptyText is returned for a request without text.
var ErrEmptyText = errors.New("text is required")

// ErrNoVoice is returned for a request without a voice.
var ErrNoVoice = errors.New("voiceId is required")

// Request is one synthesis call.
type Request struct {
	Text            string  `json:"text"`
	VoiceID         string  `json:"voiceId"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarityBoost"`
}

// Validate checks the required fields and clamps the voice settings.
func (r *Request) Validate() error {
	r.Text = strings.TrimSpace(r.Text)
	r.VoiceID = strings.TrimSpace(r.VoiceID)
	if r.Text == "" {
		return ErrEmptyText
	}
	if r.VoiceID == "" {
		return ErrNoVoice
	}
	r.Stability = Clamp01(r.Stability)
	r.SimilarityBoost = Clamp01(r.SimilarityBoost)
	return nil
}

// Voice is a catalog entry.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Language    string `json:"language,omitempty"`
	Description string `json:"description,omitempty"`
	PreviewURL  string `json:"previewUrl,omitempty"`
}

// VoicesResponse is the catalog body.
type VoicesResponse struct {
	Voices []Voice `json:"voices"`
}

// Synthesizer turns text into an encoded audio payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// Catalog lists voices.
type Catalog interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// StatusError is a non-2xx response. Body holds the service's
// human-readable message.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	return min(1, max(0, v))
}
