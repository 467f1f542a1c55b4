package vectorindex

import (
	"fmt"
	"path/filepath"
	"sync"
)

const vectorFileName = "vectors.bin"

// Index is the Vector Index (spec §4.G): an HNSW graph over a mmap
// vector file, keyed by chunk id, with deferred (tombstoned) deletion.
// It owns its on-disk files exclusively — no bbolt environment, no
// sharing with the KV Environment (spec §3's storage ownership rule).
type Index struct {
	mu         sync.Mutex
	dir        string
	dim        int
	store      *mmapStore
	graph      *graph
	tombstones *tombstoneSet
}

// Open opens (creating if absent) the vector index rooted at dir, for
// vectors of the given dimension. dim must match the active embedding
// model's dimension (spec §9); opening with a mismatched dimension
// against an existing file returns ErrDimensionMismatch.
func Open(dir string, dim int) (*Index, error) {
	store, err := newMmapStore(filepath.Join(dir, vectorFileName), dim)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open: %w", err)
	}

	// The HNSW graph is held in memory only, matching the teacher's
	// HnswIndex (DESIGN.md); it is not persisted alongside the mmap
	// vector bytes. internal/indexer is responsible for replaying every
	// live chunk id's embedding through Insert on startup, the same way
	// it replays payload/lexical state from the KV Environment.
	idx := &Index{
		dir:        dir,
		dim:        dim,
		store:      store,
		graph:      newGraph(store),
		tombstones: newTombstoneSet(),
	}

	return idx, nil
}

// Insert adds or replaces chunkID's embedding. A prior embedding for
// chunkID, if present, is tombstoned first: HNSW graphs do not support
// in-place vector replacement of a node already wired into the graph.
func (idx *Index) Insert(chunkID uint64, vector []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.graph.slots[chunkID]; exists {
		idx.tombstones.mark(chunkID)
	}
	return idx.graph.insert(chunkID, vector)
}

// Delete tombstones chunkID so it is excluded from future searches;
// the underlying mmap slot is reclaimed only by Sweep (spec §4.G).
func (idx *Index) Delete(chunkID uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tombstones.mark(chunkID)
}

// Search returns up to k chunk ids nearest to query by cosine
// similarity, descending, skipping tombstoned ids.
func (idx *Index) Search(query []float32, k int) ([]uint64, []float32, error) {
	if len(query) != idx.dim {
		return nil, nil, fmt.Errorf("vectorindex: query dim %d != index dim %d", len(query), idx.dim)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ids, sims := idx.graph.search(query, k, idx.tombstones.isMarked)
	return ids, sims, nil
}

// TombstoneCount reports chunk ids marked deleted but not yet swept.
func (idx *Index) TombstoneCount() uint64 {
	return idx.tombstones.count()
}

// Count reports the number of vectors physically stored, including
// any not-yet-swept tombstones.
func (idx *Index) Count() uint64 {
	return idx.store.Count()
}

// Sweep performs the maintenance-pass cleanup named in spec §4.G:
// tombstoned chunk ids are dropped from the in-memory graph's node map
// and neighbor lists so search work and memory no longer account for
// them. The mmap file itself is append-only and is not compacted here;
// reclaiming its disk space requires a full rebuild (the indexer's
// --force path), matching the teacher's "Reset() does not modify the
// underlying vector store" comment in its HnswIndex (DESIGN.md).
func (idx *Index) Sweep() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	dead := idx.tombstones.drain()
	if len(dead) == 0 {
		return 0
	}
	deadSet := make(map[uint64]bool, len(dead))
	for _, id := range dead {
		deadSet[id] = true
		delete(idx.graph.nodes, id)
		delete(idx.graph.slots, id)
	}

	for _, n := range idx.graph.nodes {
		for lvl, neighbors := range n.Neighbors {
			filtered := neighbors[:0]
			for _, nb := range neighbors {
				if !deadSet[nb] {
					filtered = append(filtered, nb)
				}
			}
			n.Neighbors[lvl] = filtered
		}
	}

	if deadSet[idx.graph.entryPointID] {
		idx.graph.entryPointID = 0
		idx.graph.currentMaxLevel = -1
		for id, n := range idx.graph.nodes {
			if n.Level > idx.graph.currentMaxLevel {
				idx.graph.entryPointID = id
				idx.graph.currentMaxLevel = n.Level
			}
		}
	}

	return len(dead)
}

// Close releases the mmap vector file.
func (idx *Index) Close() error {
	return idx.store.Close()
}
