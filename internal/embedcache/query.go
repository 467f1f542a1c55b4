package embedcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryCache caches query-text embeddings, reused heavily in
// interactive sessions (the same query string is re-embedded on every
// keystroke-to-search cycle). Keyed by the raw query string rather
// than content hash, grounded on the teacher's searcher result cache
// ([32]byte-keyed lru.Cache with a fixed entry count) and
// original_source/src/embed/cache.rs's QueryCache ("query reuse is
// very high in interactive sessions").
type QueryCache struct {
	cache *lru.Cache[string, []float32]
	hitsN uint64
	missN uint64
}

// NewQueryCache creates a query cache bounded by maxMemoryMB, using the
// same entry-count-from-byte-budget estimate as HotCache.
func NewQueryCache(maxMemoryMB, dimHint int) *QueryCache {
	if maxMemoryMB <= 0 {
		maxMemoryMB = DefaultQueryCacheMaxMemoryMB
	}
	if dimHint <= 0 {
		dimHint = 384
	}
	capacity := int(int64(maxMemoryMB) * 1024 * 1024 / int64(dimHint*bytesPerFloat32))
	if capacity < 1 {
		capacity = 1
	}
	cache, err := lru.New[string, []float32](capacity)
	if err != nil {
		cache, _ = lru.New[string, []float32](1000)
	}
	return &QueryCache{cache: cache}
}

func (q *QueryCache) Get(query string) ([]float32, bool) {
	vec, ok := q.cache.Get(query)
	if ok {
		q.hitsN++
	} else {
		q.missN++
	}
	return vec, ok
}

func (q *QueryCache) Put(query string, vec []float32) {
	q.cache.Add(query, vec)
}

func (q *QueryCache) Len() int { return q.cache.Len() }

func (q *QueryCache) Clear() { q.cache.Purge() }

func (q *QueryCache) Stats() Stats {
	return Stats{Hits: q.hitsN, Misses: q.missN}
}
