// Package embedcache implements the 3-layer Embedding Cache (spec
// §4.E): a hot in-memory LRU, a persistent content-hashed on-disk
// cache that survives process restarts and branch switches, and a
// query-embedding cache for repeated interactive searches.
//
// The hot layer generalizes the teacher's embedder.Cache (content-hash
// keyed hashicorp/golang-lru/v2 wrapper) to be byte-size bounded rather
// than entry-count bounded, matching original_source/src/embed/cache.rs's
// EmbeddingCache (Moka, weighed by vector byte size) since Go's LRU
// library caps by entry count, not weight — DESIGN.md. Sizing defaults
// (DefaultCacheMaxMemoryMB=100, DefaultPersistentCacheMaxEntries=200000)
// are carried over from original_source/src/constants.rs.
package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultCacheMaxMemoryMB bounds the hot in-memory layer.
	DefaultCacheMaxMemoryMB = 100

	// DefaultPersistentCacheMaxEntries bounds the on-disk layer.
	DefaultPersistentCacheMaxEntries = 200_000

	// DefaultQueryCacheMaxMemoryMB bounds the query-embedding layer.
	DefaultQueryCacheMaxMemoryMB = 50

	bytesPerFloat32 = 4
)

// ComputeHash returns the SHA-256 content hash used as a cache key,
// matching the teacher's embedder.ComputeHash.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// HotCache is the in-memory layer keyed by content hash. It estimates
// the LRU's entry-count capacity from a memory budget and the typical
// vector width, since golang-lru/v2 bounds capacity by entry count.
// Entries are also tracked in a live byte counter (curBytes), reported
// by MemoryUsageBytes; Stats reports hit and miss counts only.
type HotCache struct {
	cache    *lru.Cache[string, []float32]
	maxBytes int64
	curBytes int64
	hits     atomic.Uint64
	misses   atomic.Uint64
	mu       sync.Mutex
}

// NewHotCache creates a hot cache bounded by maxMemoryMB, assuming
// vectors of approximately dimHint floats (used only to size the
// underlying LRU's entry-count capacity; eviction is by that entry
// count alone, curBytes does not trigger it).
func NewHotCache(maxMemoryMB, dimHint int) *HotCache {
	if maxMemoryMB <= 0 {
		maxMemoryMB = DefaultCacheMaxMemoryMB
	}
	if dimHint <= 0 {
		dimHint = 384
	}
	maxBytes := int64(maxMemoryMB) * 1024 * 1024
	capacity := int(maxBytes / int64(dimHint*bytesPerFloat32))
	if capacity < 1 {
		capacity = 1
	}

	hc := &HotCache{maxBytes: maxBytes}
	cache, err := lru.NewWithEvict(capacity, hc.onEvict)
	if err != nil {
		cache, _ = lru.New[string, []float32](capacity)
	}
	hc.cache = cache
	return hc
}

func (h *HotCache) onEvict(_ string, vec []float32) {
	atomic.AddInt64(&h.curBytes, -int64(len(vec)*bytesPerFloat32))
}

// Get returns a copy of the cached vector, preventing caller mutation
// from corrupting the cache (teacher's Cache.Get discipline).
func (h *HotCache) Get(hash string) ([]float32, bool) {
	vec, ok := h.cache.Get(hash)
	if !ok {
		h.misses.Add(1)
		return nil, false
	}
	h.hits.Add(1)
	cp := make([]float32, len(vec))
	copy(cp, vec)
	return cp, true
}

// Put stores vec under hash, evicting older entries as needed.
func (h *HotCache) Put(hash string, vec []float32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache.Add(hash, vec)
	atomic.AddInt64(&h.curBytes, int64(len(vec)*bytesPerFloat32))
}

// Len reports the number of cached vectors.
func (h *HotCache) Len() int { return h.cache.Len() }

// MemoryUsageBytes reports current estimated bytes held.
func (h *HotCache) MemoryUsageBytes() int64 { return atomic.LoadInt64(&h.curBytes) }

// Clear empties the cache.
func (h *HotCache) Clear() {
	h.cache.Purge()
	atomic.StoreInt64(&h.curBytes, 0)
}

// Stats reports cumulative hit/miss counters.
type Stats struct {
	Hits   uint64
	Misses uint64
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (h *HotCache) Stats() Stats {
	return Stats{Hits: h.hits.Load(), Misses: h.misses.Load()}
}
