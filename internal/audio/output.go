package audio

import (
	"fmt"
	"sync"
)

// Token identifies a queued buffer: the session that produced it and its
// chunk index.
type Token struct {
	Session uint64
	Index   int
}

// String returns the string representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%d/%d", t.Session, t.Index)
}

// EventKind is the type of an output event.
type EventKind int

const (
	// EventStarted is sent when a buffer begins playing.
	EventStarted EventKind = iota
	// EventEnded is sent when a buffer has been played to the end.
	EventEnded
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event reports playback progress of a queued buffer.
type Event struct {
	Kind  EventKind
	Token Token
}

// Output is a single output graph that plays queued buffers in order.
//
// Enqueue appends a buffer; playback starts or continues without a gap.
// Flush drops the playing buffer and everything queued, and clears a pause.
// Truncate drops only the buffers that have not started and returns their
// tokens; the playing buffer runs to its end.
// Pause and Resume suspend the graph as a whole, keeping the position.
// SetVolume changes the gain of current and future audio immediately.
type Output interface {
	Enqueue(buf *Buffer, token Token)
	Flush()
	Truncate() []Token
	Pause()
	Resume()
	SetVolume(v float64)
	Events() <-chan Event
	Close() error
}

// eventQueue delivers events in order without ever blocking the producer.
// The audio callback must not stall on a slow consumer.
type eventQueue struct {
	mu      sync.Mutex
	pending []Event
	wake    chan struct{}
	out     chan Event
	done    chan struct{}
	once    sync.Once
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		wake: make(chan struct{}, 1),
		out:  make(chan Event, 16),
		done: make(chan struct{}),
	}
	go q.forward()
	return q
}

func (q *eventQueue) post(e Event) {
	q.mu.Lock()
	q.pending = append(q.pending, e)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) forward() {
	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
		}

		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, e := range batch {
			select {
			case q.out <- e:
			case <-q.done:
				return
			}
		}
	}
}

func (q *eventQueue) close() {
	q.once.Do(func() { close(q.done) })
}
