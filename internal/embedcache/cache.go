package embedcache

import (
	"regexp"
	"strings"
)

var modelSlugDisallowed = regexp.MustCompile(`[^a-z0-9._-]+`)

// ModelSlug turns a provider/model identifier into a filesystem-safe
// directory name, so each embedding model gets its own persistent
// cache directory and models are never mixed (spec §9's
// model-versioned cache discipline; original_source/src/embed/cache.rs
// "each model has its own cache to avoid mixing incompatible
// embeddings").
func ModelSlug(modelID string) string {
	lower := strings.ToLower(modelID)
	slug := modelSlugDisallowed.ReplaceAllString(lower, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "default"
	}
	return slug
}

// Cache composes the hot in-memory layer and the persistent on-disk
// layer into the single "embedding cache" seam internal/indexer and
// internal/embedder consume (spec §4.E). The query cache is kept
// separate (QueryCache) since it is keyed by raw query text rather
// than content hash and serves a different caller (internal/searcher).
type Cache struct {
	hot        *HotCache
	persistent *PersistentCache
}

// Config bounds the two persisted layers' sizes.
type Config struct {
	HotMaxMemoryMB       int
	PersistentMaxEntries int
	Dimension            int
}

// Open creates the hot layer and opens the persistent layer for
// modelID under persistentRoot (typically ~/.codesearch/embedding_cache).
func Open(persistentRoot, modelID string, cfg Config) (*Cache, error) {
	if cfg.PersistentMaxEntries <= 0 {
		cfg.PersistentMaxEntries = DefaultPersistentCacheMaxEntries
	}
	persistent, err := OpenPersistentCache(persistentRoot, ModelSlug(modelID))
	if err != nil {
		return nil, err
	}
	return &Cache{
		hot:        NewHotCache(cfg.HotMaxMemoryMB, cfg.Dimension),
		persistent: persistent,
	}, nil
}

// Get checks the hot layer first, falling back to the persistent
// layer and populating the hot layer on a persistent hit (spec §4.E's
// layered lookup order).
func (c *Cache) Get(hash string) ([]float32, bool) {
	if vec, ok := c.hot.Get(hash); ok {
		return vec, true
	}
	vec, err := c.persistent.Get(hash)
	if err != nil {
		return nil, false
	}
	c.hot.Put(hash, vec)
	return vec, true
}

// Put writes vec to both layers.
func (c *Cache) Put(hash string, vec []float32) error {
	c.hot.Put(hash, vec)
	return c.persistent.Put(hash, vec)
}

// MaintainPersistent evicts the persistent layer down to maxEntries,
// intended to run during the Index Manager's maintenance pass
// (spec §4.M), mirroring PersistentEmbeddingCache.evict_if_needed.
func (c *Cache) MaintainPersistent(maxEntries int) (int, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultPersistentCacheMaxEntries
	}
	return c.persistent.EvictIfNeeded(maxEntries)
}

// HotStats and PersistentLen expose cache health: the hot layer's
// hit/miss counts and the persistent layer's entry count.
func (c *Cache) HotStats() Stats { return c.hot.Stats() }

func (c *Cache) PersistentLen() (int, error) { return c.persistent.Len() }

// Clear empties both layers. A --force rebuild does not call it: the
// persistent layer survives rebuilds.
func (c *Cache) Clear() error {
	c.hot.Clear()
	return c.persistent.Clear()
}
