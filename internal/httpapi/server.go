// Package httpapi serves the synthesis endpoint contract in front of an
// ElevenLabs-compatible upstream, plus health and metrics.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/readaloud/internal/observability"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

const maxRequestBody = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// Backend synthesizes speech and lists voices.
type Backend interface {
	synth.Synthesizer
	synth.Catalog
}

// Server routes proxy requests to a Backend.
type Server struct {
	backend Backend
	metrics *observability.Metrics
	promh   http.Handler
}

// New creates a server. A nil metrics handler serves the default registry.
func New(backend Backend, metrics *observability.Metrics, metricsHandler http.Handler) *Server {
	if metricsHandler == nil {
		metricsHandler = observability.MetricsHandler()
	}
	return &Server{backend: backend, metrics: metrics, promh: metricsHandler}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.promh.ServeHTTP(w, r)
	})

	r.Route("/api/tts", func(r chi.Router) {
		r.Post("/speak", s.handleSpeak)
		r.Get("/voices", s.handleVoices)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"configured": s.configured(),
	})
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req synth.Request
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if !s.configured() {
		respondError(w, http.StatusServiceUnavailable, "Speech synthesis is not configured.")
		return
	}

	start := time.Now()
	audio, err := s.backend.Synthesize(r.Context(), req)
	s.metrics.ObserveSynthLatency(time.Since(start))
	if err != nil {
		log.Warn("httpapi: synthesis failed", "voice", req.VoiceID, "request_id", middleware.GetReqID(r.Context()), "err", err)
		respondError(w, http.StatusBadGateway, upstreamMessage(err, "Speech synthesis failed."))
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if !s.configured() {
		respondJSON(w, http.StatusOK, synth.VoicesResponse{Voices: []synth.Voice{}})
		return
	}
	voices, err := s.backend.Voices(r.Context())
	if err != nil {
		log.Warn("httpapi: voice listing failed", "request_id", middleware.GetReqID(r.Context()), "err", err)
		respondError(w, http.StatusBadGateway, upstreamMessage(err, "Unable to load voices."))
		return
	}
	if voices == nil {
		voices = []synth.Voice{}
	}
	respondJSON(w, http.StatusOK, synth.VoicesResponse{Voices: voices})
}

// instrument counts requests per route pattern and status.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ProxyRequest(route, status)
	})
}

func (s *Server) configured() bool {
	c, ok := s.backend.(interface{ Configured() bool })
	return !ok || c.Configured()
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, synth.ErrEmptyText):
		return "Text is required."
	case errors.Is(err, synth.ErrNoVoice):
		return "Please select a voice."
	default:
		return err.Error()
	}
}

// upstreamMessage returns the upstream's own message when it sent one.
func upstreamMessage(err error, fallback string) string {
	var se *synth.StatusError
	if errors.As(err, &se) && strings.TrimSpace(se.Body) != "" {
		return se.Body
	}
	return fallback
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes message as plain text; clients show the body as is.
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
