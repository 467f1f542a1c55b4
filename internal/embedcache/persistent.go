package embedcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrNotFound is returned when a content hash has no cached entry.
var ErrNotFound = errors.New("embedcache: not found")

// PersistentCache stores embeddings on disk keyed by content hash, one
// file per hash, under <root>/<modelSlug>/<hash>.bin. This is the
// Go-native counterpart to original_source/src/embed/cache.rs's LMDB-
// backed PersistentEmbeddingCache ("survive across MCP restarts and be
// reused when switching between branches") — grounded on the same
// survival requirement but using the filesystem directly rather than
// an embedded KV engine, since a second LMDB/bbolt environment would
// duplicate the KV Environment's own map-growth machinery for no
// benefit (DESIGN.md).
//
// File layout (spec §6): 4-byte big-endian dimension, then dimension
// little-endian float32 values.
type PersistentCache struct {
	dir string
}

// OpenPersistentCache opens (creating if absent) the persistent cache
// directory for modelSlug under root (typically ~/.codesearch/embedding_cache).
func OpenPersistentCache(root, modelSlug string) (*PersistentCache, error) {
	dir := filepath.Join(root, modelSlug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("embedcache: create dir %s: %w", dir, err)
	}
	return &PersistentCache{dir: dir}, nil
}

func (c *PersistentCache) path(hash string) string {
	return filepath.Join(c.dir, hash+".bin")
}

// Get returns the cached vector for hash, or ErrNotFound.
func (c *PersistentCache) Get(hash string) ([]float32, error) {
	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeVector(data)
}

// Put writes vec under hash, overwriting any prior entry.
func (c *PersistentCache) Put(hash string, vec []float32) error {
	return os.WriteFile(c.path(hash), encodeVector(vec), 0o644)
}

// PutBatch writes several entries; partial failure leaves whichever
// entries were written before the error in place (each file write is
// independently atomic-by-rename-free os.WriteFile, matching the
// teacher's own no-transaction style for non-KV stores).
func (c *PersistentCache) PutBatch(entries map[string][]float32) error {
	for hash, vec := range entries {
		if err := c.Put(hash, vec); err != nil {
			return fmt.Errorf("embedcache: put %s: %w", hash, err)
		}
	}
	return nil
}

// Len returns the number of cached entries.
func (c *PersistentCache) Len() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear removes every cached entry for this model.
func (c *PersistentCache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// EvictIfNeeded deletes the oldest entries (by file modification time)
// until at most maxEntries remain, returning the number removed. The
// original Rust implementation notes LMDB Str-keyed iteration is
// lexicographic, not insertion order, making its own eviction
// effectively random; this implementation uses actual mtime ordering,
// a genuine improvement since Go's filesystem preserves it for free.
func (c *PersistentCache) EvictIfNeeded(maxEntries int) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	if len(entries) <= maxEntries {
		return 0, nil
	}

	type fileInfo struct {
		name    string
		modTime time.Time
	}
	infos := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{name: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].modTime.Before(infos[j].modTime) })

	toRemove := len(infos) - maxEntries
	removed := 0
	for i := 0; i < toRemove && i < len(infos); i++ {
		if err := os.Remove(filepath.Join(c.dir, infos[i].name)); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4+len(vec)*4)
	binary.BigEndian.PutUint32(buf[:4], uint32(len(vec)))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4+i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("embedcache: truncated cache entry")
	}
	dim := binary.BigEndian.Uint32(data[:4])
	expected := 4 + int(dim)*4
	if len(data) != expected {
		return nil, fmt.Errorf("embedcache: corrupt cache entry: want %d bytes got %d", expected, len(data))
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4+i*4:]))
	}
	return vec, nil
}
