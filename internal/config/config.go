// Package config reads the environment variables spec §6 names into a
// typed struct with explicit defaults, generalizing the teacher's single
// os.Getenv("GOCONTEXT_DB_PATH") read in cmd/gocontext/main.go. No
// config/viper library appears anywhere in the example pack, so this
// stays stdlib os.Getenv (DESIGN.md).
package config

import (
	"os"
	"strconv"

	"github.com/flupkede/codesearch/internal/embedcache"
	"github.com/flupkede/codesearch/internal/embedder"
	"github.com/flupkede/codesearch/internal/kvstore"
	"github.com/flupkede/codesearch/internal/logging"
)

// Config holds every process-wide tunable sourced from the environment
// (spec §6's "Environment Variables" table). Zero values are never used
// directly — Load always fills in the documented default.
type Config struct {
	// CacheMaxMemoryMB bounds the Embedding Cache's hot in-memory layer
	// (CODESEARCH_CACHE_MAX_MEMORY, megabytes).
	CacheMaxMemoryMB int

	// BatchSize bounds chunks per embedder.GenerateBatch call
	// (CODESEARCH_BATCH_SIZE, "auto" or a positive integer).
	BatchSize int

	// LogRetentionDays is how many days of rotated logs to keep
	// (CODESEARCH_LOG_RETENTION_DAYS).
	LogRetentionDays int

	// LogMaxFiles caps the number of rotated log files kept regardless
	// of age (CODESEARCH_LOG_MAX_FILES).
	LogMaxFiles int

	// LogCleanupIntervalHours is how often the logger sweeps expired
	// rotated files (CODESEARCH_LOG_CLEANUP_INTERVAL_HOURS).
	LogCleanupIntervalHours int

	// LMDBMapSizeMB is the KV Environment's initial soft ceiling
	// (CODESEARCH_LMDB_MAP_SIZE_MB); named for the spec's original LMDB
	// terminology even though internal/kvstore is bbolt-backed.
	LMDBMapSizeMB int

	// EmbeddingCacheMaxEntries bounds the persistent on-disk embedding
	// cache layer (CODESEARCH_EMBEDDING_CACHE_MAX_ENTRIES).
	EmbeddingCacheMaxEntries int
}

// "auto" lets CODESEARCH_BATCH_SIZE defer to embedder.DefaultBatchSize
// without the caller needing to know that default's value.
const batchSizeAuto = "auto"

// Load reads every CODESEARCH_* environment variable into a Config,
// substituting spec-documented defaults for anything unset or
// unparsable. It never returns an error: a malformed value just falls
// back to its default, matching the teacher's tolerant os.Getenv style.
func Load() Config {
	return Config{
		CacheMaxMemoryMB:         intEnv("CODESEARCH_CACHE_MAX_MEMORY", embedcache.DefaultCacheMaxMemoryMB),
		BatchSize:                batchSizeEnv("CODESEARCH_BATCH_SIZE", embedder.DefaultBatchSize),
		LogRetentionDays:         intEnv("CODESEARCH_LOG_RETENTION_DAYS", logging.DefaultRetentionDays),
		LogMaxFiles:              intEnv("CODESEARCH_LOG_MAX_FILES", logging.DefaultMaxFiles),
		LogCleanupIntervalHours:  intEnv("CODESEARCH_LOG_CLEANUP_INTERVAL_HOURS", logging.DefaultCleanupIntervalHours),
		LMDBMapSizeMB:            intEnv("CODESEARCH_LMDB_MAP_SIZE_MB", kvstore.DefaultInitialMapSizeMB),
		EmbeddingCacheMaxEntries: intEnv("CODESEARCH_EMBEDDING_CACHE_MAX_ENTRIES", embedcache.DefaultPersistentCacheMaxEntries),
	}
}

func intEnv(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// batchSizeEnv additionally accepts the literal "auto" (spec §6), which
// resolves to def just like an unset variable.
func batchSizeEnv(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" || raw == batchSizeAuto {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
