package vectorindex

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// tombstoneSet tracks chunk ids marked deleted but not yet swept from
// the graph, per spec §4.G: "mark deleted ids, sweep on next
// maintenance pass, filter tombstones in search". Chunk ids are
// uint64 (spec §3), so this uses the roaring64 variant of the library
// hupe1980-vecgo uses for 32-bit row-id bitmaps (DESIGN.md).
type tombstoneSet struct {
	mu sync.RWMutex
	bm *roaring64.Bitmap
}

func newTombstoneSet() *tombstoneSet {
	return &tombstoneSet{bm: roaring64.New()}
}

func (t *tombstoneSet) mark(chunkID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bm.Add(chunkID)
}

func (t *tombstoneSet) isMarked(chunkID uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bm.Contains(chunkID)
}

func (t *tombstoneSet) count() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bm.GetCardinality()
}

// drain returns every tombstoned chunk id and clears the set, for use
// by a maintenance-pass sweep that physically removes graph nodes.
func (t *tombstoneSet) drain() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.bm.ToArray()
	t.bm.Clear()
	return ids
}
