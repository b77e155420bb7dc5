// Package observability holds the Prometheus instruments of the playback
// pipeline and the synthesis proxy.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chunk events.
const (
	ChunkDispatched = "dispatched"
	ChunkPlayed     = "played"
	ChunkFailed     = "failed"
	ChunkStale      = "stale"
)

// Session outcomes.
const (
	SessionCompleted = "completed"
	SessionStopped   = "stopped"
	SessionErrored   = "errored"
)

// Metrics groups the instruments. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	InflightRequests prometheus.Gauge
	BufferedAhead    prometheus.Gauge
	Chunks           *prometheus.CounterVec
	Sessions         *prometheus.CounterVec
	SynthLatency     prometheus.Histogram
	ProxyRequests    *prometheus.CounterVec
}

// NewMetrics registers the instruments with reg. A nil reg uses the
// default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		InflightRequests: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_requests",
			Help:      "Synthesis requests currently outstanding.",
		}),
		BufferedAhead: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffered_ahead_seconds",
			Help:      "Decoded audio waiting to be played.",
		}),
		Chunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunk lifecycle events by type.",
		}, []string{"event"}),
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished playback sessions by outcome.",
		}, []string{"outcome"}),
		SynthLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synth_latency_ms",
			Help:      "Synthesis request latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 750, 1000, 1500, 2500, 4000, 8000},
		}),
		ProxyRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Proxy requests by route and status code.",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) ChunkEvent(event string) {
	if m == nil {
		return
	}
	m.Chunks.WithLabelValues(event).Inc()
}

func (m *Metrics) SessionEnded(outcome string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetInflight(n int) {
	if m == nil {
		return
	}
	m.InflightRequests.Set(float64(n))
}

func (m *Metrics) SetBufferedAhead(sec float64) {
	if m == nil {
		return
	}
	m.BufferedAhead.Set(sec)
}

func (m *Metrics) ObserveSynthLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.SynthLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ProxyRequest(route string, status int) {
	if m == nil {
		return
	}
	m.ProxyRequests.WithLabelValues(route, http.StatusText(status)).Inc()
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves a specific registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
