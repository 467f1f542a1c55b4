// Package indexer implements the Index Manager (spec §4.M): the single
// coordinator that owns concurrency and event routing across the File
// Walker, Chunker, Embedding Cache, Embedder, Vector Index, Lexical
// Index, and Payload Store.
//
// Grounded on the teacher's Indexer (worker-pool batch indexing via
// golang.org/x/sync/errgroup, content-hash change detection, lock.go's
// IndexLock), retargeted from a Go-only/SQLite pipeline onto the
// multi-language walker/chunker and the vectorindex/lexical/payload/
// embedcache stack (DESIGN.md).
package indexer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flupkede/codesearch/internal/chunker"
	"github.com/flupkede/codesearch/internal/embedcache"
	"github.com/flupkede/codesearch/internal/embedder"
	"github.com/flupkede/codesearch/internal/fuser"
	"github.com/flupkede/codesearch/internal/kvstore"
	"github.com/flupkede/codesearch/internal/lexical"
	"github.com/flupkede/codesearch/internal/payload"
	"github.com/flupkede/codesearch/internal/searcher"
	"github.com/flupkede/codesearch/internal/vectorindex"
	"github.com/flupkede/codesearch/internal/walker"
	"github.com/flupkede/codesearch/pkg/types"
)

// Config tunes a build or refresh.
type Config struct {
	Workers   int // concurrent file workers (default runtime.NumCPU())
	ModelID   string
	Force     bool   // clear every sub-database and rebuild from scratch
	CacheRoot string // persistent embedding cache root (default ~/.codesearch/embedding_cache)
	BatchSize int    // chunks per embedder.GenerateBatch call (default embedder.DefaultBatchSize)
}

// Statistics summarizes one Build call.
type Statistics struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	FilesDeleted  int
	ChunksCreated int
	ChunksDeleted int
	Duration      time.Duration
	Errors        []string
}

// Indexer owns the on-disk KV Environment, Vector Index, and Embedding
// Cache for one project root, and coordinates every write against them.
type Indexer struct {
	root     string
	dbDir    string
	modelID  string
	kv       *kvstore.Store
	payload  *payload.Store
	lexical  *lexical.Index
	vectors  *vectorindex.Index
	cache    *embedcache.Cache
	embedder embedder.Embedder
	chunks   *chunker.Registry

	lock IndexLock

	mu        sync.Mutex // serializes writer-side operations end to end
	workers   int
	batchSize int
}

// Open opens (creating if needed) the KV Environment, Vector Index, and
// Embedding Cache rooted at dbDir (conventionally the path
// internal/locator.Resolve returned), and replays the vector index from
// the payload store's chunk records — internal/vectorindex never
// persists its HNSW graph, only the raw vector file, so every restart
// must rebuild the in-memory graph (internal/vectorindex/index.go).
func Open(root, dbDir string, emb embedder.Embedder, cfg Config) (*Indexer, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embedder.DefaultBatchSize
	}
	if cfg.BatchSize > embedder.MaxBatchSize {
		cfg.BatchSize = embedder.MaxBatchSize
	}
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = emb.Provider() + "/" + emb.Model()
	}

	kv, err := kvstore.Open(filepath.Join(dbDir, "kv"), kvstore.Config{})
	if err != nil {
		return nil, fmt.Errorf("indexer: open kv environment: %w", err)
	}

	vectors, err := vectorindex.Open(filepath.Join(dbDir, "vectors"), emb.Dimension())
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("indexer: open vector index: %w", err)
	}

	cacheRoot := cfg.CacheRoot
	if cacheRoot == "" {
		resolved, err := persistentCacheRoot()
		if err != nil {
			kv.Close()
			return nil, err
		}
		cacheRoot = resolved
	}
	cache, err := embedcache.Open(cacheRoot, modelID, embedcache.Config{Dimension: emb.Dimension()})
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("indexer: open embedding cache: %w", err)
	}

	idx := &Indexer{
		root:     root,
		dbDir:    dbDir,
		modelID:  modelID,
		kv:       kv,
		payload:  payload.New(kv),
		lexical:  lexical.New(kv),
		vectors:  vectors,
		cache:    cache,
		embedder: emb,
		chunks:    chunker.NewRegistry(),
		workers:   cfg.Workers,
		batchSize: cfg.BatchSize,
	}

	if err := idx.replayVectorIndex(); err != nil {
		kv.Close()
		vectors.Close()
		return nil, fmt.Errorf("indexer: replay vector index: %w", err)
	}

	return idx, nil
}

func persistentCacheRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("indexer: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".codesearch", "embedding_cache"), nil
}

// DefaultCacheRoot returns the default persistent Embedding Cache root
// (~/.codesearch/embedding_cache), for the `cache` CLI command to list
// and clear per-model subdirectories without opening a full Indexer.
func DefaultCacheRoot() (string, error) { return persistentCacheRoot() }

// replayVectorIndex reinserts every chunk whose embedding survives in
// the persistent cache. A chunk whose embedding was evicted is left out
// of the vector index until the next modify event re-embeds it; it
// remains searchable via the lexical index in the meantime (spec §4.F's
// "un-embeddable chunks remain in Payload/Lexical but not Vector").
//
// TODO: this appends each replayed vector to the mmap file as a new slot
// rather than reusing the slots the chunks occupied before restart, so
// the vector file grows monotonically across restarts until the next
// --force rebuild; a persisted graph snapshot would avoid this.
func (idx *Indexer) replayVectorIndex() error {
	return idx.payload.AllChunks(func(c types.Chunk) error {
		vec, ok := idx.cache.Get(hashHex(c.ContentHash))
		if !ok {
			return nil // miss: chunk stays out of the vector index until re-embedded
		}
		return idx.vectors.Insert(c.ID, vec)
	})
}

// ModelID returns the embedding model identifier this Indexer's vectors
// and cache entries are keyed against.
func (idx *Indexer) ModelID() string { return idx.modelID }

// Dimension returns the embedder's vector width.
func (idx *Indexer) Dimension() int { return idx.embedder.Dimension() }

// CountChunks reports the number of chunks currently committed.
func (idx *Indexer) CountChunks() (int, error) { return idx.payload.CountChunks() }

// CountFiles reports the number of files currently tracked.
func (idx *Indexer) CountFiles() (int, error) { return idx.payload.CountFiles() }

// MaxChunkID reports the chunk-id counter's current value.
func (idx *Indexer) MaxChunkID() (uint64, error) { return idx.payload.MaxChunkID() }

// Searcher builds a Query Engine sharing this Indexer's Payload, Lexical,
// and Vector stores, so results reflect writes made through this same
// Indexer without a second on-disk open. qc may be nil to disable query
// embedding reuse; reranker may be nil to disable cross-encoder reranking.
func (idx *Indexer) Searcher(qc *embedcache.QueryCache, reranker fuser.Reranker) *searcher.Searcher {
	return searcher.New(idx.payload, idx.lexical, idx.vectors, idx.embedder, qc, reranker)
}

// Close releases the KV Environment's writer lock and the vector
// index's mmap handle.
func (idx *Indexer) Close() error {
	verr := idx.vectors.Close()
	kerr := idx.kv.Close()
	if verr != nil {
		return verr
	}
	return kerr
}

// Build runs a full or incremental index of root, per spec §4.M:
// --force clears every sub-database and the vector index first; a
// plain build diffs the walker's current output against the payload
// store (branch-changed semantics), indexing new/changed files and
// removing files that disappeared.
func (idx *Indexer) Build(ctx context.Context, cfg Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, fmt.Errorf("indexer: another build is already in progress")
	}
	defer idx.lock.Release()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	start := time.Now()
	stats := &Statistics{}

	if cfg.Force {
		if err := idx.clearAll(); err != nil {
			return nil, fmt.Errorf("indexer: force clear: %w", err)
		}
	}

	files, err := walker.Walk(idx.root, walker.Options{})
	if err != nil {
		return nil, fmt.Errorf("indexer: walk: %w", err)
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.RelPath] = true
	}

	if err := idx.removeVanishedFiles(seen, stats); err != nil {
		return nil, fmt.Errorf("indexer: remove vanished files: %w", err)
	}

	if err := idx.indexFiles(ctx, files, stats); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// IndexFile runs the single-file pipeline for one modify event (spec
// §4.M): chunk, consult the embedding cache, embed misses, then write
// the Vector/Lexical/Payload stores and the File-Meta record. Prior
// chunk ids for the file are deleted from all three stores first.
func (idx *Indexer) IndexFile(ctx context.Context, relPath string) error {
	abs := filepath.Join(idx.root, relPath)
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return idx.DeleteFile(relPath)
		}
		return fmt.Errorf("indexer: read %s: %w", relPath, err)
	}

	digest := sha256.Sum256(content)
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("indexer: stat %s: %w", relPath, err)
	}

	if existing, err := idx.payload.GetFile(relPath); err == nil {
		if existing.Digest == digest {
			return nil // unchanged, per the §4.D content-hash-first rule
		}
		if err := idx.deleteChunks(existing.ChunkIDs); err != nil {
			return err
		}
	}

	language := walker.LanguageForPath(relPath)
	chunks, err := idx.chunks.ChunkFile(relPath, language, content, idx.modelID)
	if err != nil {
		return fmt.Errorf("indexer: chunk %s: %w", relPath, err)
	}

	ids, err := idx.payload.PutChunks(chunks)
	if err != nil {
		return fmt.Errorf("indexer: put chunks: %w", err)
	}

	if err := idx.embedAndIndex(ctx, chunks, ids); err != nil {
		return err
	}

	for i, c := range chunks {
		if err := idx.lexical.IndexChunk(ids[i], c.Path, c.Signature, c.Content); err != nil {
			return fmt.Errorf("indexer: index lexical: %w", err)
		}
	}

	return idx.payload.PutFile(&payload.FileRecord{
		Path:     relPath,
		Digest:   digest,
		ModTime:  info.ModTime(),
		Size:     info.Size(),
		ChunkIDs: ids,
	})
}

// DeleteFile runs a delete event (spec §4.M): removes every chunk id
// the file owned from the Vector/Lexical/Payload stores, then the file
// record itself.
func (idx *Indexer) DeleteFile(relPath string) error {
	ids, err := idx.payload.DeleteFile(relPath)
	if err != nil {
		return fmt.Errorf("indexer: delete file %s: %w", relPath, err)
	}
	return idx.deleteChunks(ids)
}

func (idx *Indexer) deleteChunks(ids []uint64) error {
	for _, id := range ids {
		idx.vectors.Delete(id)
		if err := idx.lexical.DeleteChunk(id); err != nil {
			return fmt.Errorf("indexer: delete lexical chunk: %w", err)
		}
	}
	return idx.payload.DeleteChunks(ids)
}

// embedAndIndex consults the embedding cache for each chunk's content
// hash, sends only misses to the embedder (batched), and inserts every
// resulting vector into the vector index (spec §4.E/§4.F).
func (idx *Indexer) embedAndIndex(ctx context.Context, chunks []types.Chunk, ids []uint64) error {
	var missIdx []int
	var missTexts []string

	for i, c := range chunks {
		hash := hashHex(c.ContentHash)
		if vec, ok := idx.cache.Get(hash); ok {
			if err := idx.vectors.Insert(ids[i], vec); err != nil {
				return fmt.Errorf("indexer: insert cached vector: %w", err)
			}
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, c.Content)
	}

	if len(missTexts) == 0 {
		return nil
	}

	batchSize := idx.batchSize
	if batchSize <= 0 {
		batchSize = embedder.DefaultBatchSize
	}
	for start := 0; start < len(missTexts); start += batchSize {
		end := start + batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		if err := idx.embedBatch(ctx, chunks, ids, missIdx[start:end], missTexts[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// embedBatch sends one CODESEARCH_BATCH_SIZE-bounded slice of misses to
// the embedder, falling back to embedHalved on provider failure.
func (idx *Indexer) embedBatch(ctx context.Context, chunks []types.Chunk, ids []uint64, missIdx []int, missTexts []string) error {
	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: missTexts})
	if err != nil {
		return idx.embedHalved(ctx, chunks, ids, missIdx, missTexts)
	}
	if len(resp.Embeddings) != len(missIdx) {
		return fmt.Errorf("indexer: embedder returned %d vectors for %d texts", len(resp.Embeddings), len(missIdx))
	}

	for j, chunkIdx := range missIdx {
		vec := resp.Embeddings[j].Vector
		hash := hashHex(chunks[chunkIdx].ContentHash)
		if err := idx.cache.Put(hash, vec); err != nil {
			return fmt.Errorf("indexer: persist cached vector: %w", err)
		}
		if err := idx.vectors.Insert(ids[chunkIdx], vec); err != nil {
			return fmt.Errorf("indexer: insert vector: %w", err)
		}
	}
	return nil
}

// embedHalved retries a failed batch at half size once, per spec §4.F;
// persistent failure leaves those chunks un-embeddable (searchable via
// lexical only).
func (idx *Indexer) embedHalved(ctx context.Context, chunks []types.Chunk, ids []uint64, missIdx []int, missTexts []string) error {
	if len(missTexts) <= 1 {
		return nil // smallest possible batch already failed; give up silently
	}
	mid := len(missTexts) / 2
	firstErr := idx.embedSubset(ctx, chunks, ids, missIdx[:mid], missTexts[:mid])
	secondErr := idx.embedSubset(ctx, chunks, ids, missIdx[mid:], missTexts[mid:])
	if firstErr != nil {
		return firstErr
	}
	return secondErr
}

func (idx *Indexer) embedSubset(ctx context.Context, chunks []types.Chunk, ids []uint64, missIdx []int, missTexts []string) error {
	if len(missTexts) == 0 {
		return nil
	}
	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: missTexts})
	if err != nil {
		return nil // the half-size retry failed too: these chunks stay un-embeddable, don't error the whole file
	}
	for j, chunkIdx := range missIdx {
		vec := resp.Embeddings[j].Vector
		hash := hashHex(chunks[chunkIdx].ContentHash)
		if err := idx.cache.Put(hash, vec); err != nil {
			return err
		}
		if err := idx.vectors.Insert(ids[chunkIdx], vec); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Indexer) removeVanishedFiles(seen map[string]bool, stats *Statistics) error {
	paths, err := idx.payload.AllFilePaths()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if seen[p] {
			continue
		}
		if err := idx.DeleteFile(p); err != nil {
			return err
		}
		stats.FilesDeleted++
	}
	return nil
}

func (idx *Indexer) indexFiles(ctx context.Context, files []walker.File, stats *Statistics) error {
	sem := make(chan struct{}, idx.workers)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, f := range files {
		f := f
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			if rec, err := idx.payload.GetFile(f.RelPath); err == nil {
				if content, err := os.ReadFile(f.Path); err == nil && sha256.Sum256(content) == rec.Digest {
					mu.Lock()
					stats.FilesSkipped++
					mu.Unlock()
					return nil
				}
			}

			err := idx.IndexFile(gctx, f.RelPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FilesFailed++
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", f.RelPath, err))
				return nil // one file's failure does not abort the batch
			}
			stats.FilesIndexed++
			return nil
		})
	}
	return g.Wait()
}

// clearAll implements --force: wipes the KV Environment's buckets and
// replaces the vector index with an empty one. internal/vectorindex's
// mmap file is append-only (Sweep only drops tombstoned graph nodes,
// it never reclaims disk space), so a full rebuild closes the index,
// removes its directory, and reopens a fresh one — the only way to
// actually shrink it back to zero (internal/vectorindex/index.go).
// The persistent embedding cache is left untouched: cache entries are
// keyed by content hash and remain valid regardless of how the vector
// index or payload store are rebuilt.
// Clear wipes every sub-database (KV Environment, Vector Index) for the
// `clear` CLI command, leaving the persistent embedding cache intact.
func (idx *Indexer) Clear() error { return idx.clearAll() }

func (idx *Indexer) clearAll() error {
	if err := idx.kv.Clear(); err != nil {
		return err
	}

	vectorDir := filepath.Join(idx.dbDir, "vectors")
	if err := idx.vectors.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(vectorDir); err != nil {
		return fmt.Errorf("indexer: remove vector index: %w", err)
	}
	fresh, err := vectorindex.Open(vectorDir, idx.embedder.Dimension())
	if err != nil {
		return fmt.Errorf("indexer: reopen vector index: %w", err)
	}
	idx.vectors = fresh
	return nil
}

func hashHex(h [32]byte) string {
	var b strings.Builder
	const hexdigits = "0123456789abcdef"
	for _, c := range h {
		b.WriteByte(hexdigits[c>>4])
		b.WriteByte(hexdigits[c&0xf])
	}
	return b.String()
}
