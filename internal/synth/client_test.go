package synth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSynthesize(t *testing.T) {
	var got Request
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != speakPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotHeader = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/", APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	data, err := c.Synthesize(context.Background(), Request{
		Text:            "  Hello world.  ",
		VoiceID:         "v1",
		Stability:       1.4,
		SimilarityBoost: 0.75,
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(data) != "ID3audio" {
		t.Errorf("payload = %q", data)
	}

	want := Request{Text: "Hello world.", VoiceID: "v1", Stability: 1, SimilarityBoost: 0.75}
	if got != want {
		t.Errorf("request body = %+v, want %+v", got, want)
	}
	if gotHeader.Get("xi-api-key") != "secret" {
		t.Errorf("xi-api-key = %q", gotHeader.Get("xi-api-key"))
	}
	if gotHeader.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestClientSynthesizeValidation(t *testing.T) {
	c, err := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"empty text", Request{Text: "   ", VoiceID: "v"}, ErrEmptyText},
		{"no voice", Request{Text: "hi"}, ErrNoVoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Synthesize(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.Synthesize(context.Background(), Request{Text: "hi", VoiceID: "v"})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", se.StatusCode)
	}
	if se.Error() != "quota exceeded" {
		t.Errorf("message = %q", se.Error())
	}
}

func TestStatusErrorWithoutBody(t *testing.T) {
	err := &StatusError{StatusCode: http.StatusBadGateway}
	if got, want := err.Error(), "request failed: 502 Bad Gateway"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestClientVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != voicesPath {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"voices":[
			{"id":"b","name":"Bella","category":"premade","previewUrl":"https://x/b.mp3"},
			{"id":"","name":"Broken"},
			{"id":"a","name":"Adam","language":"en"}
		]}`)
	}))
	defer srv.Close()

	c, _ := NewClient(ClientConfig{BaseURL: srv.URL})
	voices, err := c.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices() error = %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	// server order is kept
	if voices[0].ID != "b" || voices[1].ID != "a" {
		t.Errorf("order = %s, %s", voices[0].ID, voices[1].ID)
	}
	if voices[0].PreviewURL != "https://x/b.mp3" || voices[1].Language != "en" {
		t.Errorf("fields not decoded: %+v", voices)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("expected error for empty base URL")
	}
}
