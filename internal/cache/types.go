package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrClosed is returned by operations on a closed cache
	ErrClosed = errors.New("cache is closed")
)

// Level represents the cache tier
type Level int

const (
	// LevelMemory is the in-memory LRU
	LevelMemory Level = iota

	// LevelDisk is the persistent store
	LevelDisk
)

// String returns the string representation of the cache level
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "L1-Memory"
	case LevelDisk:
		return "L2-Disk"
	default:
		return "Unknown"
	}
}

// Stats holds cache performance metrics
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size in bytes
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)

	LastAccess time.Time
	LastEvict  time.Time
}

func (s *Stats) updateHitRate() {
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
}

// Cache stores opaque payloads by key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Stats() Stats
	Close() error
}

// Config configures a two-level cache.
type Config struct {
	Dir              string // Disk cache directory; empty disables L2
	MemoryCapacity   int64  // L1 capacity in bytes
	DiskCapacity     int64  // L2 capacity in bytes
	CompressionLevel int    // zstd level, 0 disables compression
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   32 << 20,  // 32 MB
		DiskCapacity:     512 << 20, // 512 MB
		CompressionLevel: 3,
	}
}

// Key derives a cache key for synthesized speech from everything that
// changes the audio.
func Key(voiceID string, stability, similarityBoost float64, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%.3f\x00%.3f\x00%s", voiceID, stability, similarityBoost, text)
	return hex.EncodeToString(h.Sum(nil))
}
