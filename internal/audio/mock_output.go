package audio

import (
	"sync"
	"sync/atomic"
)

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnEnqueue func(token Token)
	OnStart   func(token Token)
	OnFlush   func()
}

// MockOutput implements Output without producing sound. Buffers start
// playing as soon as they are queued; tests end them with Finish.
type MockOutput struct {
	callbacks MockCallbacks
	events    *eventQueue

	mu     sync.Mutex
	cur    *queued
	queue  []*queued
	played []Token
	paused bool
	closed bool
	volume float64

	// Metrics for testing
	enqueueCount atomic.Int64
	pauseCount   atomic.Int64
	resumeCount  atomic.Int64
	flushCount   atomic.Int64
}

var _ Output = (*MockOutput)(nil)

// NewMockOutput creates a mock output with optional callbacks.
func NewMockOutput(callbacks MockCallbacks) *MockOutput {
	return &MockOutput{
		callbacks: callbacks,
		events:    newEventQueue(),
		volume:    1,
	}
}

// Enqueue appends buf to the queue and starts it if nothing is playing.
func (m *MockOutput) Enqueue(buf *Buffer, token Token) {
	m.enqueueCount.Add(1)
	if m.callbacks.OnEnqueue != nil {
		m.callbacks.OnEnqueue(token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.queue = append(m.queue, &queued{buf: buf, token: token})
	if m.cur == nil {
		m.startNextLocked()
	}
}

// Finish ends the current buffer as if it had played to the end and starts
// the next one. It reports false when nothing was playing.
func (m *MockOutput) Finish() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return false
	}
	m.events.post(Event{Kind: EventEnded, Token: m.cur.token})
	m.cur = nil
	m.startNextLocked()
	return true
}

func (m *MockOutput) startNextLocked() {
	if len(m.queue) == 0 {
		return
	}
	m.cur = m.queue[0]
	m.queue = m.queue[1:]
	m.played = append(m.played, m.cur.token)
	m.events.post(Event{Kind: EventStarted, Token: m.cur.token})
	if m.callbacks.OnStart != nil {
		m.callbacks.OnStart(m.cur.token)
	}
}

// Flush drops the current and queued buffers.
func (m *MockOutput) Flush() {
	m.flushCount.Add(1)
	m.mu.Lock()
	m.cur = nil
	m.queue = nil
	m.paused = false
	m.mu.Unlock()

	if m.callbacks.OnFlush != nil {
		m.callbacks.OnFlush()
	}
}

// Truncate drops the queued buffers behind the current one.
func (m *MockOutput) Truncate() []Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := make([]Token, 0, len(m.queue))
	for _, q := range m.queue {
		dropped = append(dropped, q.token)
	}
	m.queue = nil
	return dropped
}

// Pause suspends playback.
func (m *MockOutput) Pause() {
	m.pauseCount.Add(1)
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

// Resume continues playback.
func (m *MockOutput) Resume() {
	m.resumeCount.Add(1)
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

// SetVolume records the gain.
func (m *MockOutput) SetVolume(v float64) {
	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()
}

// Events returns the event stream.
func (m *MockOutput) Events() <-chan Event {
	return m.events.out
}

// Close stops event delivery.
func (m *MockOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.events.close()
	}
	return nil
}

// Current returns the token of the playing buffer.
func (m *MockOutput) Current() (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return Token{}, false
	}
	return m.cur.token, true
}

// Played returns every token that started playing, in order.
func (m *MockOutput) Played() []Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Token(nil), m.played...)
}

// Queued returns the number of buffers waiting behind the current one.
func (m *MockOutput) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Paused reports whether the output is paused.
func (m *MockOutput) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Volume returns the last gain set.
func (m *MockOutput) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// EnqueueCount returns the number of Enqueue calls.
func (m *MockOutput) EnqueueCount() int64 { return m.enqueueCount.Load() }

// PauseCount returns the number of Pause calls.
func (m *MockOutput) PauseCount() int64 { return m.pauseCount.Load() }

// ResumeCount returns the number of Resume calls.
func (m *MockOutput) ResumeCount() int64 { return m.resumeCount.Load() }

// FlushCount returns the number of Flush calls.
func (m *MockOutput) FlushCount() int64 { return m.flushCount.Load() }
