package fuser

import "context"

// DefaultRerankTop is the number of fused candidates fed to a reranker
// before it replaces their scores (spec §4.K).
const DefaultRerankTop = 50

// Candidate is a fused result carrying enough chunk content for a
// cross-encoder to score it.
type Candidate struct {
	ChunkID uint64
	Content string
	Score   float64
}

// Reranker re-scores a slice of fused candidates using (query, content)
// pairs, typically via a cross-encoder model. It is a pure post-filter:
// it must not introduce candidates not already present (spec §4.K).
// The specific cross-encoder weights are out of scope (spec §1); this
// interface is the seam a concrete model plugs into.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error)
}

// NoopReranker returns candidates unchanged, used when no reranker is
// configured (the default; spec §4.K's rerank mode is opt-in via
// semantic_search's mode=rerank).
type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, candidates []Candidate) ([]Candidate, error) {
	return candidates, nil
}
