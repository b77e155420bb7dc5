package tts

import "sync"

// Publisher holds the latest Snapshot and fans it out to subscribers.
// Subscribers only ever see the most recent snapshot; a slow reader skips
// intermediate ones.
type Publisher struct {
	mu     sync.RWMutex
	snap   Snapshot
	subs   []chan Snapshot
	closed bool
}

// NewPublisher creates a publisher holding initial.
func NewPublisher(initial Snapshot) *Publisher {
	return &Publisher{snap: initial}
}

// State returns the latest snapshot.
func (p *Publisher) State() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Subscribe returns a channel that receives every new snapshot, starting
// with the current one. It is closed by Close.
func (p *Publisher) Subscribe() <-chan Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if p.closed {
		close(ch)
		return ch
	}
	ch <- p.snap
	p.subs = append(p.subs, ch)
	return ch
}

// Publish stores s and offers it to subscribers without blocking.
func (p *Publisher) Publish(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.snap = s
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Close closes every subscriber channel.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, ch := range p.subs {
		close(ch)
	}
	p.subs = nil
}
