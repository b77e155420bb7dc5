package cache

import (
	"bytes"
	"errors"
	"os"
	"testing"
)

func TestMemoryCacheLRU(t *testing.T) {
	c := NewMemoryCache(10)

	if err := c.Put("a", []byte("aaaa")); err != nil {
		t.Fatalf("Put(a) error = %v", err)
	}
	if err := c.Put("b", []byte("bbbb")); err != nil {
		t.Fatalf("Put(b) error = %v", err)
	}
	// touch a so b becomes the eviction candidate
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) missed")
	}
	if err := c.Put("c", []byte("cccc")); err != nil {
		t.Fatalf("Put(c) error = %v", err)
	}

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}

	stats := c.Stats()
	if stats.Size != 8 || stats.ItemCount != 2 || stats.Evictions != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("hits=%d misses=%d", stats.Hits, stats.Misses)
	}
}

func TestMemoryCacheTooLarge(t *testing.T) {
	c := NewMemoryCache(4)
	if err := c.Put("x", []byte("too large")); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Put() error = %v, want ErrItemTooLarge", err)
	}
}

func TestMemoryCacheReplace(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("k", []byte("one"))
	_ = c.Put("k", []byte("three"))
	v, ok := c.Get("k")
	if !ok || string(v) != "three" {
		t.Fatalf("Get(k) = %q, %v", v, ok)
	}
	if c.Stats().Size != 5 {
		t.Errorf("Size = %d, want 5", c.Stats().Size)
	}
}

func TestDiskCachePersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte("speech "), 1000) // compressible, > 1KB

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache() error = %v", err)
	}
	if err := dc.Put("key", payload); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if s := dc.Stats(); s.Size >= int64(len(payload)) {
		t.Errorf("on-disk size %d not compressed below %d", s.Size, len(payload))
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close() //nolint:errcheck

	got, ok := reopened.Get("key")
	if !ok {
		t.Fatal("Get() missed after reopen")
	}
	if !bytes.Equal(got, payload) {
		t.Error("payload changed after reopen")
	}
}

func TestDiskCacheMissingFileIsMiss(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache() error = %v", err)
	}
	defer dc.Close() //nolint:errcheck

	_ = dc.Put("gone", []byte("data"))
	if err := os.Remove(dc.filePath("gone")); err != nil {
		t.Fatalf("remove cache file: %v", err)
	}
	if _, ok := dc.Get("gone"); ok {
		t.Fatal("Get() hit for a removed file")
	}
	if n := dc.Stats().ItemCount; n != 0 {
		t.Errorf("ItemCount = %d after dropping the entry", n)
	}
}

func TestDiskCacheEviction(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 10, 0)
	if err != nil {
		t.Fatalf("NewDiskCache() error = %v", err)
	}
	defer dc.Close() //nolint:errcheck

	_ = dc.Put("a", []byte("aaaaaa"))
	_ = dc.Put("b", []byte("bbbbbb"))
	if _, ok := dc.Get("a"); ok {
		t.Error("a should have been evicted")
	}
	if _, ok := dc.Get("b"); !ok {
		t.Error("b should be cached")
	}
}

func TestTieredPromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir, MemoryCapacity: 1 << 10, DiskCapacity: 1 << 20, CompressionLevel: 1}

	first, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := first.Put("k", []byte("audio")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	_ = first.Close()

	second, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer second.Close() //nolint:errcheck

	if v, ok := second.Get("k"); !ok || string(v) != "audio" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}
	mem, _ := second.LevelStats(LevelMemory)
	if mem.ItemCount != 1 {
		t.Errorf("disk hit was not promoted, memory items = %d", mem.ItemCount)
	}
}

func TestTieredLargeItemGoesToDisk(t *testing.T) {
	c, err := New(Config{Dir: t.TempDir(), MemoryCapacity: 4, DiskCapacity: 1 << 20})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close() //nolint:errcheck

	if err := c.Put("big", []byte("larger than memory")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := c.Get("big"); !ok {
		t.Error("Get() missed an item stored on disk")
	}
}

func TestKeyDependsOnAllInputs(t *testing.T) {
	base := Key("voice", 0.5, 0.75, "hello")
	variants := []string{
		Key("other", 0.5, 0.75, "hello"),
		Key("voice", 0.6, 0.75, "hello"),
		Key("voice", 0.5, 0.70, "hello"),
		Key("voice", 0.5, 0.75, "hello!"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with the base key", i)
		}
	}
	if Key("voice", 0.5, 0.75, "hello") != base {
		t.Error("Key is not deterministic")
	}
}
