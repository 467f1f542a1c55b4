package vectorindex

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// HNSW layer/connection parameters, grounded on AlexC1991-VoxAI_IDE's
// internal/index/hnsw.go (see DESIGN.md). The graph topology, greedy
// top-down layer search, and geometric random-level assignment are
// unchanged; the distance function is swapped for cosine similarity
// per spec §4.G, and nodes are keyed by chunk id rather than append
// order, with a separate id<->slot mapping against the mmap store.
const (
	MaxLevel       = 16
	M              = 16
	M0             = 32
	EfConstruction = 40
	EfSearch       = 50
)

type node struct {
	ChunkID   uint64
	Level     int
	Neighbors [][]uint64 // [level][neighbor chunk ids]
}

type graph struct {
	mu              sync.RWMutex
	nodes           map[uint64]*node
	store           *mmapStore
	slots           map[uint64]uint64 // chunk id -> mmap slot
	entryPointID    uint64
	currentMaxLevel int
}

func newGraph(store *mmapStore) *graph {
	return &graph{
		nodes:           make(map[uint64]*node),
		slots:           make(map[uint64]uint64),
		store:           store,
		currentMaxLevel: -1,
	}
}

// insert adds chunkID's vector to the mmap store and wires it into the
// graph. Re-inserting an already-present chunkID is a caller error; the
// Index layer deletes (tombstones) before re-inserting.
func (g *graph) insert(chunkID uint64, vector []float32) error {
	slot, err := g.store.Append(vector)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.slots[chunkID] = slot

	level := randomLevel()
	n := &node{ChunkID: chunkID, Level: level, Neighbors: make([][]uint64, level+1)}
	g.nodes[chunkID] = n

	if g.currentMaxLevel == -1 {
		g.entryPointID = chunkID
		g.currentMaxLevel = level
		return nil
	}

	currEntry := g.entryPointID
	for l := g.currentMaxLevel; l > level; l-- {
		currEntry, _ = g.searchLayer(vector, currEntry, 1, l)
	}

	for l := minInt(level, g.currentMaxLevel); l >= 0; l-- {
		nearest, _ := g.searchLayerK(vector, currEntry, EfConstruction, l)

		limit := M
		if l == 0 {
			limit = M0
		}
		if len(nearest) > limit {
			nearest = nearest[:limit]
		}

		n.Neighbors[l] = nearest
		for _, neighborID := range nearest {
			neighbor := g.nodes[neighborID]
			if neighbor == nil || l >= len(neighbor.Neighbors) {
				continue
			}
			neighbor.Neighbors[l] = append(neighbor.Neighbors[l], chunkID)
		}

		if len(nearest) > 0 {
			currEntry = nearest[0]
		}
	}

	if level > g.currentMaxLevel {
		g.entryPointID = chunkID
		g.currentMaxLevel = level
	}
	return nil
}

// search returns up to k chunk ids nearest to query by cosine
// similarity (highest similarity first), skipping any chunk id present
// in tombstoned per spec §4.G's "filter tombstones in search" rule.
func (g *graph) search(query []float32, k int, tombstoned func(uint64) bool) ([]uint64, []float32) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.currentMaxLevel == -1 {
		return nil, nil
	}

	currEP := g.entryPointID
	for l := g.currentMaxLevel; l > 0; l-- {
		currEP, _ = g.searchLayer(query, currEP, 1, l)
	}

	// Over-fetch to absorb tombstoned hits before truncating to k.
	ef := EfSearch
	if k > ef {
		ef = k * 2
	}
	ids, sims := g.searchLayerK(query, currEP, ef, 0)

	outIDs := make([]uint64, 0, k)
	outSims := make([]float32, 0, k)
	for i, id := range ids {
		if tombstoned != nil && tombstoned(id) {
			continue
		}
		outIDs = append(outIDs, id)
		outSims = append(outSims, sims[i])
		if len(outIDs) >= k {
			break
		}
	}
	return outIDs, outSims
}

func (g *graph) vectorOf(chunkID uint64) ([]float32, bool) {
	slot, ok := g.slots[chunkID]
	if !ok {
		return nil, false
	}
	vec, err := g.store.Get(slot)
	if err != nil {
		return nil, false
	}
	return vec, true
}

// searchLayer is the greedy single-nearest-neighbor walk at one level.
func (g *graph) searchLayer(query []float32, entry uint64, _ int, level int) (uint64, float32) {
	curr := entry
	epVec, ok := g.vectorOf(entry)
	if !ok {
		return entry, -1
	}
	currSim := cosineSimilarity(query, epVec)

	changed := true
	for changed {
		changed = false
		n := g.nodes[curr]
		if n == nil || level >= len(n.Neighbors) {
			break
		}
		for _, neighborID := range n.Neighbors[level] {
			nVec, ok := g.vectorOf(neighborID)
			if !ok {
				continue
			}
			sim := cosineSimilarity(query, nVec)
			if sim > currSim {
				currSim = sim
				curr = neighborID
				changed = true
			}
		}
	}
	return curr, currSim
}

type candidate struct {
	id  uint64
	sim float32
}

// searchLayerK finds up to k nearest neighbors (by cosine similarity,
// descending) reachable from entry at level.
func (g *graph) searchLayerK(query []float32, entry uint64, k int, level int) ([]uint64, []float32) {
	epVec, ok := g.vectorOf(entry)
	if !ok {
		return nil, nil
	}
	visited := map[uint64]bool{entry: true}
	candidates := []candidate{{entry, cosineSimilarity(query, epVec)}}
	results := []candidate{candidates[0]}

	for len(candidates) > 0 {
		c := candidates[0]
		candidates = candidates[1:]

		if len(results) >= k && c.sim < results[len(results)-1].sim {
			continue
		}

		n := g.nodes[c.id]
		if n == nil || level >= len(n.Neighbors) {
			continue
		}
		for _, neighborID := range n.Neighbors[level] {
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true
			nVec, ok := g.vectorOf(neighborID)
			if !ok {
				continue
			}
			sim := cosineSimilarity(query, nVec)

			if len(results) < k || sim > results[len(results)-1].sim {
				res := candidate{neighborID, sim}
				candidates = append(candidates, res)
				results = append(results, res)

				sort.Slice(results, func(i, j int) bool { return results[i].sim > results[j].sim })
				if len(results) > k {
					results = results[:k]
				}
				sort.Slice(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })
			}
		}
	}

	ids := make([]uint64, len(results))
	sims := make([]float32, len(results))
	for i := range results {
		ids[i] = results[i].id
		sims[i] = results[i].sim
	}
	return ids, sims
}

func randomLevel() int {
	lvl := 0
	for rand.Float64() < 0.5 && lvl < MaxLevel {
		lvl++
	}
	return lvl
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}
