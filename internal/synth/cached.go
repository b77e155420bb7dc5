package synth

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/cache"
)

// Cached serves repeated requests from a payload cache.
type Cached struct {
	next  Synthesizer
	cache cache.Cache
}

var _ Synthesizer = (*Cached)(nil)

// NewCached wraps next with c.
func NewCached(next Synthesizer, c cache.Cache) *Cached {
	return &Cached{next: next, cache: c}
}

// Synthesize returns a cached payload or calls the wrapped synthesizer and
// stores its result. Cache write failures are logged and ignored.
func (s *Cached) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := cache.Key(req.VoiceID, req.Stability, req.SimilarityBoost, req.Text)
	if data, ok := s.cache.Get(key); ok {
		return data, nil
	}

	data, err := s.next.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(key, data); err != nil {
		log.Debug("synth: cache put failed", "err", err)
	}
	return data, nil
}

// Stats exposes the cache statistics.
func (s *Cached) Stats() cache.Stats {
	return s.cache.Stats()
}
