package queue

import (
	"math"
	"time"
	"unicode/utf8"
)

const (
	// DefaultMaxConcurrent is the ceiling of in-flight synthesis requests.
	DefaultMaxConcurrent = 3
	// DefaultHeadroomSeconds is how much audio may be buffered or in flight
	// before dispatch is deferred.
	DefaultHeadroomSeconds = 12.0

	minEstimateSeconds = 1.5
	maxEstimateSeconds = 8.0
	charsPerSecond     = 28.0
)

// EstimateSeconds guesses the spoken duration of text.
func EstimateSeconds(text string) float64 {
	est := float64(utf8.RuneCountInString(text)) / charsPerSecond
	return math.Min(maxEstimateSeconds, math.Max(minEstimateSeconds, est))
}

// PendingChunk is a chunk waiting for a free request slot.
type PendingChunk struct {
	Index            int
	Text             string
	EstimatedSeconds float64
}

// Budget is the audio the pipeline holds or has asked for.
type Budget struct {
	BufferedAheadSeconds     float64
	InflightEstimatedSeconds float64
}

// Total returns buffered plus in-flight seconds.
func (b Budget) Total() float64 {
	return b.BufferedAheadSeconds + b.InflightEstimatedSeconds
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	MaxConcurrent   int
	HeadroomSeconds float64
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrent:   DefaultMaxConcurrent,
		HeadroomSeconds: DefaultHeadroomSeconds,
	}
}

// Stats tracks scheduler activity for one session.
type Stats struct {
	TotalPushed     int64
	TotalDispatched int64
	TotalSettled    int64
	Deferred        int64 // pump stops caused by the headroom rule
	PeakInflight    int
	LastDispatch    time.Time
}

// Scheduler decides when the next pending chunk may be requested. It holds
// a FIFO of pending chunks, the number of in-flight requests and the
// buffer budget.
type Scheduler struct {
	cfg      SchedulerConfig
	pending  []PendingChunk
	inflight int
	budget   Budget
	stats    Stats
}

// NewScheduler creates a scheduler. Non-positive values select defaults.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.HeadroomSeconds <= 0 {
		cfg.HeadroomSeconds = DefaultHeadroomSeconds
	}
	return &Scheduler{cfg: cfg}
}

// Config returns the scheduler configuration.
func (s *Scheduler) Config() SchedulerConfig {
	return s.cfg
}

// Push appends a chunk to the pending FIFO and returns it with its
// duration estimate.
func (s *Scheduler) Push(index int, text string) PendingChunk {
	c := PendingChunk{Index: index, Text: text, EstimatedSeconds: EstimateSeconds(text)}
	s.pending = append(s.pending, c)
	s.stats.TotalPushed++
	return c
}

// Next is one step of the pump. It returns the next chunk to dispatch and
// accounts for it as in flight, or false when no slot is free, nothing is
// pending, or dispatching would exceed the headroom while another request
// is still in flight.
func (s *Scheduler) Next() (PendingChunk, bool) {
	if s.inflight >= s.cfg.MaxConcurrent || len(s.pending) == 0 {
		return PendingChunk{}, false
	}

	next := s.pending[0]
	projected := s.budget.Total() + next.EstimatedSeconds
	if projected > s.cfg.HeadroomSeconds && s.inflight > 0 {
		s.stats.Deferred++
		return PendingChunk{}, false
	}

	s.pending[0] = PendingChunk{}
	s.pending = s.pending[1:]
	s.inflight++
	s.budget.InflightEstimatedSeconds += next.EstimatedSeconds

	s.stats.TotalDispatched++
	s.stats.LastDispatch = time.Now()
	if s.inflight > s.stats.PeakInflight {
		s.stats.PeakInflight = s.inflight
	}
	return next, true
}

// Settle releases the slot and estimate of a finished request, whether it
// succeeded or failed.
func (s *Scheduler) Settle(c PendingChunk) {
	if s.inflight > 0 {
		s.inflight--
	}
	s.budget.InflightEstimatedSeconds = math.Max(0, s.budget.InflightEstimatedSeconds-c.EstimatedSeconds)
	s.stats.TotalSettled++
}

// AddBuffered records decoded audio that has not been played yet.
func (s *Scheduler) AddBuffered(seconds float64) {
	s.budget.BufferedAheadSeconds += seconds
}

// ConsumeBuffered records that buffered audio has been played.
func (s *Scheduler) ConsumeBuffered(seconds float64) {
	s.budget.BufferedAheadSeconds = math.Max(0, s.budget.BufferedAheadSeconds-seconds)
}

// Budget returns the current buffer budget.
func (s *Scheduler) Budget() Budget {
	return s.budget
}

// Inflight returns the number of dispatched requests without a result.
func (s *Scheduler) Inflight() int {
	return s.inflight
}

// PendingLen returns the number of chunks waiting for dispatch.
func (s *Scheduler) PendingLen() int {
	return len(s.pending)
}

// Idle reports whether nothing is pending or in flight.
func (s *Scheduler) Idle() bool {
	return len(s.pending) == 0 && s.inflight == 0
}

// Stats returns a copy of the scheduler statistics.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// Reset drops all pending chunks and zeroes every counter.
func (s *Scheduler) Reset() {
	s.pending = nil
	s.inflight = 0
	s.budget = Budget{}
	s.stats = Stats{}
}
