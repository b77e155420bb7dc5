package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dgnsrekt/readaloud/internal/observability"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

type fakeBackend struct {
	audio      []byte
	err        error
	voices     []synth.Voice
	voicesErr  error
	configured bool
	got        synth.Request
}

func (f *fakeBackend) Synthesize(_ context.Context, req synth.Request) ([]byte, error) {
	f.got = req
	return f.audio, f.err
}

func (f *fakeBackend) Voices(context.Context) ([]synth.Voice, error) {
	return f.voices, f.voicesErr
}

func (f *fakeBackend) Configured() bool { return f.configured }

func newTestServer(t *testing.T, b *fakeBackend) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	srv := httptest.NewServer(New(b, metrics, observability.HandlerFor(reg)).Router())
	t.Cleanup(srv.Close)
	return srv
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestSpeak(t *testing.T) {
	tests := []struct {
		name       string
		backend    *fakeBackend
		body       string
		wantStatus int
		wantBody   string
		wantType   string
	}{
		{
			name:       "ok",
			backend:    &fakeBackend{audio: []byte("ID3audio"), configured: true},
			body:       `{"text":"Hello.","voiceId":"v1","stability":0.5,"similarityBoost":0.75}`,
			wantStatus: http.StatusOK,
			wantBody:   "ID3audio",
			wantType:   "audio/mpeg",
		},
		{
			name:       "invalid json",
			backend:    &fakeBackend{configured: true},
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid request body.",
		},
		{
			name:       "empty body",
			backend:    &fakeBackend{configured: true},
			body:       ``,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid request body.",
		},
		{
			name:       "missing text",
			backend:    &fakeBackend{configured: true},
			body:       `{"text":"  ","voiceId":"v1"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Text is required.",
		},
		{
			name:       "missing voice",
			backend:    &fakeBackend{configured: true},
			body:       `{"text":"Hi."}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Please select a voice.",
		},
		{
			name:       "not configured",
			backend:    &fakeBackend{},
			body:       `{"text":"Hi.","voiceId":"v1"}`,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "Speech synthesis is not configured.",
		},
		{
			name:       "upstream message",
			backend:    &fakeBackend{configured: true, err: &synth.StatusError{StatusCode: 401, Body: "status 401: invalid api key"}},
			body:       `{"text":"Hi.","voiceId":"v1"}`,
			wantStatus: http.StatusBadGateway,
			wantBody:   "status 401: invalid api key",
		},
		{
			name:       "transport failure",
			backend:    &fakeBackend{configured: true, err: errors.New("dial tcp: refused")},
			body:       `{"text":"Hi.","voiceId":"v1"}`,
			wantStatus: http.StatusBadGateway,
			wantBody:   "Speech synthesis failed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.backend)
			res, err := http.Post(srv.URL+"/api/tts/speak", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if res.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if tt.wantType != "" && res.Header.Get("Content-Type") != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", res.Header.Get("Content-Type"), tt.wantType)
			}
			if got := readBody(t, res); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestSpeakClampsSettings(t *testing.T) {
	b := &fakeBackend{audio: []byte("x"), configured: true}
	srv := newTestServer(t, b)

	res, err := http.Post(srv.URL+"/api/tts/speak", "application/json",
		strings.NewReader(`{"text":" Hi. ","voiceId":"v1","stability":3,"similarityBoost":-1}`))
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, res)

	want := synth.Request{Text: "Hi.", VoiceID: "v1", Stability: 1, SimilarityBoost: 0}
	if b.got != want {
		t.Errorf("backend got %+v, want %+v", b.got, want)
	}
}

func TestVoices(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		b := &fakeBackend{configured: true, voices: []synth.Voice{{ID: "v1", Name: "Rachel"}, {ID: "v2", Name: "Adam"}}}
		srv := newTestServer(t, b)

		res, err := http.Get(srv.URL + "/api/tts/voices")
		if err != nil {
			t.Fatal(err)
		}
		var body synth.VoicesResponse
		if err := json.Unmarshal([]byte(readBody(t, res)), &body); err != nil {
			t.Fatal(err)
		}
		if len(body.Voices) != 2 || body.Voices[0].ID != "v1" || body.Voices[1].Name != "Adam" {
			t.Errorf("voices = %+v", body.Voices)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, &fakeBackend{})
		res, err := http.Get(srv.URL + "/api/tts/voices")
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.TrimSpace(readBody(t, res)); got != `{"voices":[]}` {
			t.Errorf("body = %s", got)
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		srv := newTestServer(t, &fakeBackend{configured: true, voicesErr: errors.New("timeout")})
		res, err := http.Get(srv.URL + "/api/tts/voices")
		if err != nil {
			t.Fatal(err)
		}
		if res.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d", res.StatusCode)
		}
		if got := readBody(t, res); got != "Unable to load voices." {
			t.Errorf("body = %q", got)
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{configured: true})

	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	if got := readBody(t, res); !strings.Contains(got, `"status":"ok"`) {
		t.Errorf("health body = %s", got)
	}

	// the counter is bumped after the response is written
	want := `test_proxy_requests_total{route="/healthz",status="OK"} 1`
	var body string
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		res, err = http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		if body = readBody(t, res); strings.Contains(body, want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("metrics missing health request count:\n%s", body)
}

func TestRequestIDHeaderIsAccepted(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{configured: true})
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
	readBody(t, res)
}
