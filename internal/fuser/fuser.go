// Package fuser implements Reciprocal Rank Fusion (spec §4.K): combining
// a vector-search ranking and a lexical-search ranking into a single
// ranked list without needing the two score scales to be comparable.
//
// Split out of the teacher's searcher.applyRRF into its own package so
// internal/searcher can compose it with results from internal/vectorindex
// and internal/lexical independently of any particular storage layer.
package fuser

import "sort"

// DefaultK is the default RRF constant (spec §4.K): rrf_score(c) = sum
// over ranked lists containing c of 1/(k+rank), rank 1-indexed.
const DefaultK = 20.0

// RankedList is one ranking to fuse: chunk ids in descending relevance
// order, as produced by internal/vectorindex.Search or
// internal/lexical.Search.
type RankedList []uint64

// Result is one chunk's fused score.
type Result struct {
	ChunkID uint64
	Score   float64
}

// Fuse combines any number of ranked lists via RRF, using k (DefaultK
// if k<=0), breaking score ties by ascending chunk id for determinism
// (spec §4.K).
func Fuse(k float64, lists ...RankedList) []Result {
	if k <= 0 {
		k = DefaultK
	}

	scores := make(map[uint64]float64)
	for _, list := range lists {
		for rank, id := range list {
			scores[id] += 1.0 / (k + float64(rank+1))
		}
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, Result{ChunkID: id, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	return results
}
