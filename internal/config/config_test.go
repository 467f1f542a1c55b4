package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flupkede/codesearch/internal/embedcache"
	"github.com/flupkede/codesearch/internal/embedder"
)

func TestLoadFallsBackToDefaultsWhenUnset(t *testing.T) {
	for _, key := range []string{
		"CODESEARCH_CACHE_MAX_MEMORY",
		"CODESEARCH_BATCH_SIZE",
		"CODESEARCH_LOG_RETENTION_DAYS",
		"CODESEARCH_LOG_MAX_FILES",
		"CODESEARCH_LOG_CLEANUP_INTERVAL_HOURS",
		"CODESEARCH_LMDB_MAP_SIZE_MB",
		"CODESEARCH_EMBEDDING_CACHE_MAX_ENTRIES",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, embedcache.DefaultCacheMaxMemoryMB, cfg.CacheMaxMemoryMB)
	assert.Equal(t, embedder.DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, embedcache.DefaultPersistentCacheMaxEntries, cfg.EmbeddingCacheMaxEntries)
}

func TestLoadReadsExplicitValues(t *testing.T) {
	t.Setenv("CODESEARCH_CACHE_MAX_MEMORY", "250")
	t.Setenv("CODESEARCH_BATCH_SIZE", "10")
	t.Setenv("CODESEARCH_LOG_RETENTION_DAYS", "30")

	cfg := Load()

	assert.Equal(t, 250, cfg.CacheMaxMemoryMB)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 30, cfg.LogRetentionDays)
}

func TestBatchSizeAutoFallsBackToDefault(t *testing.T) {
	t.Setenv("CODESEARCH_BATCH_SIZE", "auto")

	cfg := Load()

	assert.Equal(t, embedder.DefaultBatchSize, cfg.BatchSize)
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("CODESEARCH_CACHE_MAX_MEMORY", "not-a-number")

	cfg := Load()

	assert.Equal(t, embedcache.DefaultCacheMaxMemoryMB, cfg.CacheMaxMemoryMB)
}
