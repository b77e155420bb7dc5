package cache

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// Tiered checks the memory cache first, then disk, and promotes disk hits
// into memory.
type Tiered struct {
	l1 *MemoryCache
	l2 *DiskCache // nil when disk caching is disabled
}

var _ Cache = (*Tiered)(nil)

// New creates a two-level cache from cfg. With an empty Dir only the memory
// level is used.
func New(cfg Config) (*Tiered, error) {
	t := &Tiered{l1: NewMemoryCache(cfg.MemoryCapacity)}
	if cfg.Dir == "" {
		return t, nil
	}
	l2, err := NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk cache: %w", err)
	}
	t.l2 = l2
	return t, nil
}

// Get looks a key up in memory, then on disk.
func (t *Tiered) Get(key string) ([]byte, bool) {
	if v, ok := t.l1.Get(key); ok {
		return v, true
	}
	if t.l2 == nil {
		return nil, false
	}
	v, ok := t.l2.Get(key)
	if !ok {
		return nil, false
	}
	if err := t.l1.Put(key, v); err != nil && !errors.Is(err, ErrItemTooLarge) {
		log.Debug("cache: promote failed", "err", err)
	}
	return v, true
}

// Put writes through to both levels. An item too large for memory still
// goes to disk.
func (t *Tiered) Put(key string, value []byte) error {
	memErr := t.l1.Put(key, value)
	if t.l2 == nil {
		return memErr
	}
	if err := t.l2.Put(key, value); err != nil {
		return err
	}
	if memErr != nil && !errors.Is(memErr, ErrItemTooLarge) {
		return memErr
	}
	return nil
}

// Delete removes a key from both levels.
func (t *Tiered) Delete(key string) error {
	err := t.l1.Delete(key)
	if t.l2 != nil {
		err = errors.Join(err, t.l2.Delete(key))
	}
	return err
}

// Clear empties both levels.
func (t *Tiered) Clear() error {
	err := t.l1.Clear()
	if t.l2 != nil {
		err = errors.Join(err, t.l2.Clear())
	}
	return err
}

// Stats combines the statistics of both levels. Hits count once per
// lookup; misses count lookups that reached neither level.
func (t *Tiered) Stats() Stats {
	s := t.l1.Stats()
	if t.l2 == nil {
		return s
	}
	d := t.l2.Stats()
	s.Capacity += d.Capacity
	s.Size += d.Size
	s.ItemCount = max(s.ItemCount, d.ItemCount)
	s.Hits += d.Hits
	s.Misses = d.Misses
	s.Evictions += d.Evictions
	if d.LastAccess.After(s.LastAccess) {
		s.LastAccess = d.LastAccess
	}
	s.HitRate = 0
	s.updateHitRate()
	return s
}

// LevelStats returns the statistics of one level.
func (t *Tiered) LevelStats(l Level) (Stats, bool) {
	switch l {
	case LevelMemory:
		return t.l1.Stats(), true
	case LevelDisk:
		if t.l2 != nil {
			return t.l2.Stats(), true
		}
	}
	return Stats{}, false
}

// Close flushes the disk index.
func (t *Tiered) Close() error {
	if t.l2 == nil {
		return nil
	}
	return t.l2.Close()
}
