package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Switcher holds one provider per kind and forwards the control surface
// to the active one. Switching stops the active provider before the other
// takes over, so two providers never play at once.
type Switcher struct {
	// op serializes control calls with Use, so a call that resolved the
	// old provider cannot land after the switch.
	op sync.Mutex

	mu        sync.Mutex
	providers map[ProviderKind]Provider
	active    ProviderKind
	pub       *Publisher
	wg        sync.WaitGroup
}

var _ Provider = (*Switcher)(nil)

// NewSwitcher creates a switcher over providers with initial active.
func NewSwitcher(providers map[ProviderKind]Provider, initial ProviderKind) (*Switcher, error) {
	p, ok := providers[initial]
	if !ok {
		return nil, fmt.Errorf("%w: %q not configured", ErrInvalidProvider, initial)
	}

	// The first value on a subscription is the snapshot at subscribe time.
	// Drop it here; forwarded late it would overwrite the active provider.
	subs := make(map[ProviderKind]<-chan Snapshot, len(providers))
	for kind, p := range providers {
		ch := p.Subscribe()
		select {
		case <-ch:
		default:
		}
		subs[kind] = ch
	}
	snap := p.State()
	snap.Provider = initial

	s := &Switcher{
		providers: providers,
		active:    initial,
		pub:       NewPublisher(snap),
	}
	for kind, ch := range subs {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for snap := range ch {
				s.forward(kind, snap)
			}
		}()
	}
	return s, nil
}

// Active returns the active provider kind.
func (s *Switcher) Active() ProviderKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Kinds reports the configured provider kinds.
func (s *Switcher) Kinds() []ProviderKind {
	kinds := make([]ProviderKind, 0, len(s.providers))
	for _, k := range []ProviderKind{ProviderStream, ProviderNative} {
		if _, ok := s.providers[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Use makes kind the active provider. The previously active one is
// stopped first, then the catalog of the new one is loaded.
func (s *Switcher) Use(ctx context.Context, kind ProviderKind) error {
	s.op.Lock()
	s.mu.Lock()
	next, ok := s.providers[kind]
	if !ok {
		s.mu.Unlock()
		s.op.Unlock()
		return fmt.Errorf("%w: %q not configured", ErrInvalidProvider, kind)
	}
	if kind == s.active {
		s.mu.Unlock()
		s.op.Unlock()
		return nil
	}
	s.providers[s.active].Stop()
	log.Debug("switcher: provider changed", "from", s.active, "to", kind)
	s.active = kind
	snap := next.State()
	snap.Provider = kind
	s.pub.Publish(snap)
	s.mu.Unlock()
	s.op.Unlock()

	return next.LoadVoices(ctx)
}

func (s *Switcher) current() Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providers[s.active]
}

// do runs fn on the active provider, serialized with Use.
func (s *Switcher) do(fn func(Provider)) {
	s.op.Lock()
	defer s.op.Unlock()
	fn(s.current())
}

func (s *Switcher) forward(kind ProviderKind, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind != s.active {
		return
	}
	snap.Provider = kind
	s.pub.Publish(snap)
}

func (s *Switcher) Speak(text string, opts SpeakOptions) error {
	var err error
	s.do(func(p Provider) { err = p.Speak(text, opts) })
	return err
}

func (s *Switcher) Pause()  { s.do(Provider.Pause) }
func (s *Switcher) Resume() { s.do(Provider.Resume) }
func (s *Switcher) Stop()   { s.do(Provider.Stop) }

func (s *Switcher) SetVoice(id string)     { s.do(func(p Provider) { p.SetVoice(id) }) }
func (s *Switcher) SetVolume(v float64)    { s.do(func(p Provider) { p.SetVolume(v) }) }
func (s *Switcher) SetStability(v float64) { s.do(func(p Provider) { p.SetStability(v) }) }
func (s *Switcher) SetSimilarityBoost(v float64) {
	s.do(func(p Provider) { p.SetSimilarityBoost(v) })
}

func (s *Switcher) LoadVoices(ctx context.Context) error {
	return s.current().LoadVoices(ctx)
}

// State returns the snapshot of the active provider.
func (s *Switcher) State() Snapshot {
	s.mu.Lock()
	kind := s.active
	p := s.providers[kind]
	s.mu.Unlock()

	snap := p.State()
	snap.Provider = kind
	return snap
}

// Subscribe returns snapshots of whichever provider is active.
func (s *Switcher) Subscribe() <-chan Snapshot {
	return s.pub.Subscribe()
}

// Close closes every provider.
func (s *Switcher) Close() error {
	var errs []error
	for kind, p := range s.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	s.wg.Wait()
	s.pub.Close()
	return errors.Join(errs...)
}
