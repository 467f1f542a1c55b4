// Package searcher exposes the Query Engine's three public operations
// over a codesearch index: semantic_search, find_references, and
// get_file_chunks (spec §4.L).
//
// # Basic usage
//
//	s := searcher.New(payloadStore, lexicalIndex, vectorIndex, embedder, queryCache, fuser.NoopReranker{})
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query: "user authentication logic",
//	    Limit: 10,
//	    Mode:  searcher.ModeHybrid,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %.3f %s:%d-%d\n", r.Rank, r.RelevanceScore, r.File.Path, r.File.StartLine, r.File.EndLine)
//	}
//
// # Modes
//
// ModeHybrid fuses vector and lexical retrieval with Reciprocal Rank
// Fusion (internal/fuser). ModeVector skips lexical retrieval entirely.
// ModeRerank runs the hybrid pipeline and then passes the fused head
// through the configured Reranker, which may only re-score and
// re-order — it never introduces candidates (spec §4.K).
//
// # find_references and get_file_chunks
//
// FindReferences performs a case-sensitive identifier-exact lexical
// lookup; every exact match scores 1.0, so results are ordered by path
// and not ranked by BM25. GetFileChunks returns every
// chunk recorded for a path in start-line order; its compact flag omits
// chunk content, leaving path/span/kind/signature/score.
package searcher
