package segment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// MessageType tags a worker message.
type MessageType int

const (
	// MessageChunk carries one chunk of text.
	MessageChunk MessageType = iota
	// MessageDone follows the last chunk of a request.
	MessageDone
	// MessageError reports that a request could not be segmented.
	MessageError
)

// String returns the string representation of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageChunk:
		return "chunk"
	case MessageDone:
		return "done"
	case MessageError:
		return "error"
	default:
		return "unknown"
	}
}

// Request asks the worker to segment Text. ID is the session the chunks
// belong to; zero limits select the worker defaults.
type Request struct {
	ID          uint64
	Text        string
	TargetChars int
	MaxChars    int
}

// Message is one item of the stream produced for a Request.
type Message struct {
	Type  MessageType
	ID    uint64
	Index int
	Text  string
	Err   error
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithSplitter replaces the sentence splitter.
func WithSplitter(s Splitter) WorkerOption {
	return func(w *Worker) {
		w.split = s
	}
}

// WithBuffer sets the capacity of the message channel.
func WithBuffer(n int) WorkerOption {
	return func(w *Worker) {
		w.out = make(chan Message, n)
	}
}

// Worker segments text on its own goroutine. Only the most recently
// submitted request is active; a newer submission stops the emission of
// an older one.
type Worker struct {
	split Splitter
	out   chan Message

	mu      sync.Mutex
	pending *Request
	wake    chan struct{}
	active  atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker creates a worker and starts its goroutine. The worker runs
// until Close is called or ctx is done.
func NewWorker(ctx context.Context, opts ...WorkerOption) *Worker {
	w := &Worker{
		split: Sentences,
		out:   make(chan Message, 64),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	return w
}

// Messages returns the stream of chunk, done and error messages.
func (w *Worker) Messages() <-chan Message {
	return w.out
}

// Submit makes req the active request. It never blocks; a request that has
// not started yet is replaced.
func (w *Worker) Submit(req Request) {
	w.active.Store(req.ID)

	w.mu.Lock()
	w.pending = &req
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Cancel stops emission for id if it is still the active request.
func (w *Worker) Cancel(id uint64) {
	w.active.CompareAndSwap(id, 0)
}

// Close stops the worker and waits for its goroutine to exit.
func (w *Worker) Close() {
	w.cancel()
	<-w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}

		w.mu.Lock()
		req := w.pending
		w.pending = nil
		w.mu.Unlock()

		if req != nil {
			w.process(ctx, *req)
		}
	}
}

func (w *Worker) process(ctx context.Context, req Request) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("segment: worker panic", "id", req.ID, "panic", r)
			w.emit(ctx, Message{Type: MessageError, ID: req.ID, Err: fmt.Errorf("segmentation failed: %v", r)})
		}
	}()

	normalized := CollapseWhitespace(req.Text)
	if normalized == "" {
		w.emit(ctx, Message{Type: MessageDone, ID: req.ID})
		return
	}

	sentences := w.split(normalized)
	index := 0
	finished := buildChunks(sentences, req.TargetChars, req.MaxChars, func(chunk string) bool {
		if w.active.Load() != req.ID {
			return false
		}
		if !w.emit(ctx, Message{Type: MessageChunk, ID: req.ID, Index: index, Text: chunk}) {
			return false
		}
		index++
		return true
	})
	if !finished || w.active.Load() != req.ID {
		log.Debug("segment: request superseded", "id", req.ID, "emitted", index)
		return
	}

	w.emit(ctx, Message{Type: MessageDone, ID: req.ID})
	log.Debug("segment: request done", "id", req.ID, "chunks", index)
}

func (w *Worker) emit(ctx context.Context, msg Message) bool {
	select {
	case w.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
