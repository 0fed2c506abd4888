// Package embcache provides a concurrent, size-bounded cache of embedding
// vectors keyed by a content hash of the source text.
//
// The cache is an optimization layer in front of an embedder: repeated
// embedding of identical text is served from memory instead of re-running
// the model. Persistence is a best-effort JSON snapshot; losing it only
// costs recomputation, never correctness.
//
// Eviction is an access-count hybrid rather than true LRU: when the cache
// is at capacity, the least-accessed 10% of entries are dropped. Entries
// restored from a snapshot start with a zero count and are first in line
// for eviction until touched again.
package embcache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const snapshotFile = "embedding_cache.json"

// hashKey derives the content-addressed cache key for a text.
// xxhash is fast and non-cryptographic; the key is not security-sensitive.
func hashKey(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}

// Cache is a concurrent text-hash → embedding-vector store.
//
// The vector map and the access-count map are independently keyed concurrent
// maps, so gets and puts on different keys never block each other. Hit and
// miss counters are lock-free atomics. All methods are safe for concurrent
// use.
type Cache struct {
	vectors sync.Map // key string -> []float32
	access  sync.Map // key string -> *atomic.Uint64
	size    atomic.Int64

	maxSize int
	path    string

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a Cache backed by cacheDir/embedding_cache.json and loads any
// existing snapshot. The directory is created if absent; creation or load
// failures are non-fatal and leave the cache empty but usable.
func New(cacheDir string, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		log.Printf("[CACHE] create dir %s: %v (in-memory only)", cacheDir, err)
	}

	c := &Cache{
		maxSize: maxSize,
		path:    filepath.Join(cacheDir, snapshotFile),
	}
	c.loadSnapshot()
	return c
}

// Get returns a copy of the cached embedding for text, if present.
// A hit bumps the entry's access counter; counter updates are visible to
// concurrent readers immediately.
func (c *Cache) Get(text string) ([]float32, bool) {
	h := hashKey(text)
	v, ok := c.vectors.Load(h)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	counter, _ := c.access.LoadOrStore(h, &atomic.Uint64{})
	counter.(*atomic.Uint64).Add(1)
	c.hits.Add(1)

	stored := v.([]float32)
	out := make([]float32, len(stored))
	copy(out, stored)
	return out, true
}

// Put stores an embedding for text, overwriting any existing entry and
// resetting its access counter to 1.
//
// The capacity check runs before insertion: if the cache is already at or
// above capacity, eviction fires first. A put that replaces an existing key
// can therefore leave the cache holding exactly maxSize entries.
func (c *Cache) Put(text string, embedding []float32) {
	if c.size.Load() >= int64(c.maxSize) {
		c.evict()
	}

	h := hashKey(text)
	stored := make([]float32, len(embedding))
	copy(stored, embedding)

	if _, replaced := c.vectors.Swap(h, stored); !replaced {
		c.size.Add(1)
	}
	fresh := &atomic.Uint64{}
	fresh.Store(1)
	c.access.Store(h, fresh)
}

// Contains reports whether an embedding for text is cached, without touching
// any counters.
func (c *Cache) Contains(text string) bool {
	_, ok := c.vectors.Load(hashKey(text))
	return ok
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Stats returns the entry count and the global hit/miss counters.
func (c *Cache) Stats() (size int, hits, misses uint64) {
	return c.Len(), c.hits.Load(), c.misses.Load()
}

// Clear drops all entries and resets the counters. Concurrent readers may
// briefly observe an empty cache with not-yet-reset counters; Clear is meant
// for maintenance windows, not for use under load.
func (c *Cache) Clear() {
	c.vectors.Range(func(k, _ any) bool {
		c.vectors.Delete(k)
		return true
	})
	c.access.Range(func(k, _ any) bool {
		c.access.Delete(k)
		return true
	})
	c.size.Store(0)
	c.hits.Store(0)
	c.misses.Store(0)
}

// Save writes the full key → vector mapping to the snapshot file.
// Best-effort: a write failure is logged and swallowed, since persistence
// is an optimization rather than a correctness requirement.
func (c *Cache) Save() {
	snapshot := make(map[string][]float32)
	c.vectors.Range(func(k, v any) bool {
		snapshot[k.(string)] = v.([]float32)
		return true
	})

	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("[CACHE] marshal snapshot: %v", err)
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		log.Printf("[CACHE] write %s: %v", c.path, err)
	}
}

// loadSnapshot restores entries from disk with access counters reset to 0,
// so restored entries are evicted first until they are used again. A missing
// or unparseable file means a fresh start.
func (c *Cache) loadSnapshot() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var snapshot map[string][]float32
	if err := json.Unmarshal(data, &snapshot); err != nil {
		log.Printf("[CACHE] snapshot %s unreadable, starting empty: %v", c.path, err)
		return
	}

	for k, v := range snapshot {
		if _, replaced := c.vectors.Swap(k, v); !replaced {
			c.size.Add(1)
		}
		c.access.Store(k, &atomic.Uint64{})
	}
}

// evict removes the least-accessed 10% of entries (at minimum one).
//
// It ranks a point-in-time snapshot of the access counts; counts bumped by
// concurrent gets mid-eviction may be judged on slightly stale values, which
// is acceptable for a cache. The sort is stable with respect to snapshot
// order, so equal counts are dropped in a consistent but unspecified order.
func (c *Cache) evict() {
	evictCount := c.maxSize / 10
	if evictCount < 1 {
		evictCount = 1
	}

	type entry struct {
		key   string
		count uint64
	}
	snapshot := make([]entry, 0, c.size.Load())
	c.access.Range(func(k, v any) bool {
		snapshot = append(snapshot, entry{k.(string), v.(*atomic.Uint64).Load()})
		return true
	})
	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].count < snapshot[j].count
	})

	if evictCount > len(snapshot) {
		evictCount = len(snapshot)
	}
	for _, e := range snapshot[:evictCount] {
		if _, loaded := c.vectors.LoadAndDelete(e.key); loaded {
			c.size.Add(-1)
		}
		c.access.Delete(e.key)
	}
}
