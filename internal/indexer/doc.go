// Package indexer coordinates the end-to-end indexing pipeline: walking
// a project tree, chunking each file, consulting the embedding cache,
// and writing the resulting chunks to the Vector Index, Lexical Index,
// and Payload Store as a single logical unit per file.
//
// # Basic Usage
//
//	idx, err := indexer.Open(root, dbDir, emb, indexer.Config{})
//	stats, err := idx.Build(ctx, indexer.Config{})
//
//	fmt.Printf("Indexed %d files in %v\n", stats.FilesIndexed, stats.Duration)
//
// # Incremental Indexing
//
// Build diffs the walker's current file list against the File-Meta
// Store: files whose content hash is unchanged are skipped, files that
// vanished from disk have their chunks removed from every sub-index,
// and everything else runs through IndexFile.
//
//	stats1, _ := idx.Build(ctx, indexer.Config{})          // first run: everything indexed
//	stats2, _ := idx.Build(ctx, indexer.Config{})          // second run: mostly skipped
//
// A full rebuild (indexer.Config{Force: true}) clears the KV
// Environment and replaces the vector index with an empty one before
// walking, but leaves the persistent embedding cache intact — its
// entries are keyed by content hash and remain valid across rebuilds.
//
// # Single-File Pipeline
//
// IndexFile runs the unit of work a filesystem-watcher modify event
// drives: read, chunk, look up each chunk's embedding in the cache
// (embedding misses are batched to the embedder), write the vector,
// lexical, and payload records, then the file's digest.
//
// # Concurrent Processing
//
// Build fans file-level work out across a bounded worker pool
// (golang.org/x/sync/errgroup plus a semaphore channel), defaulting to
// runtime.NumCPU() workers. One file's failure is recorded in
// Statistics.Errors and does not abort the batch.
//
// # Vector Index Replay
//
// internal/vectorindex never persists its HNSW graph to disk, only the
// raw vector bytes. Open replays every chunk recorded in the payload
// store through the vector index's Insert, recovering each vector from
// the persistent embedding cache by content hash. A chunk whose
// embedding was evicted from the cache is left out of the vector index
// until the next modify event re-embeds it, but stays searchable via
// the lexical index in the meantime.
package indexer
