// Package searcher implements the Query Engine (spec §4.L): the three
// public read operations (semantic_search, find_references,
// get_file_chunks) that translate a caller's query into a retrieval
// plan over the Vector Index, Lexical Index, and Payload Store, fusing
// and optionally reranking the result.
//
// Grounded on the teacher's Searcher: the concurrent vector/text
// goroutine-and-channel fan-out, the LRU response cache with TTL
// expiry, and the RRF-then-fetch pipeline shape are kept; RRF itself,
// the vector store, the lexical store, and the embedding lookup are
// retargeted from sqlite-backed storage.Storage onto
// internal/vectorindex, internal/lexical, internal/payload, and
// internal/embedcache.
package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/flupkede/codesearch/internal/embedcache"
	"github.com/flupkede/codesearch/internal/embedder"
	"github.com/flupkede/codesearch/internal/fuser"
	"github.com/flupkede/codesearch/internal/lexical"
	"github.com/flupkede/codesearch/internal/payload"
	"github.com/flupkede/codesearch/internal/vectorindex"
	"github.com/flupkede/codesearch/pkg/types"
)

// Mode selects how semantic_search blends vector and lexical retrieval
// (spec §4.L).
type Mode string

const (
	ModeHybrid Mode = "hybrid" // vector + lexical, fused via RRF
	ModeVector Mode = "vector" // vector similarity only
	ModeRerank Mode = "rerank" // hybrid, then reranked
)

// DefaultLimit and MaxLimit bound semantic_search's result count the
// way the teacher's validateRequest did.
const (
	DefaultLimit = 10
	MaxLimit     = 100
	defaultTTL   = time.Hour
	cacheEntries = 1000
)

// SearchRequest is one semantic_search call.
type SearchRequest struct {
	Query      string
	Limit      int
	FilterPath string  // substring filter over chunk path, empty = no filter
	Mode       Mode
	UseCache   bool
	RRFK       float64 // overrides fuser.DefaultK for this call when > 0
}

// SearchResponse is semantic_search's result plus retrieval metadata.
type SearchResponse struct {
	Results     []types.SearchResult
	Duration    time.Duration
	CacheHit    bool
	VectorHits  int
	LexicalHits int
}

type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher coordinates the Query Engine's three operations across the
// Vector Index, Lexical Index, and Payload Store.
type Searcher struct {
	payload    *payload.Store
	lexical    *lexical.Index
	vectors    *vectorindex.Index
	embedder   embedder.Embedder
	queryCache *embedcache.QueryCache
	reranker   fuser.Reranker
	rrfK       float64

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// New builds a Searcher. reranker may be fuser.NoopReranker{} when no
// cross-encoder is configured.
func New(p *payload.Store, lex *lexical.Index, vec *vectorindex.Index, emb embedder.Embedder, qc *embedcache.QueryCache, reranker fuser.Reranker) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](cacheEntries)
	if err != nil {
		panic(fmt.Sprintf("searcher: failed to create response cache: %v", err))
	}
	if reranker == nil {
		reranker = fuser.NoopReranker{}
	}
	return &Searcher{
		payload:    p,
		lexical:    lex,
		vectors:    vec,
		embedder:   emb,
		queryCache: qc,
		reranker:   reranker,
		rrfK:       fuser.DefaultK,
		cache:      cache,
	}
}

// Search runs semantic_search (spec §4.L).
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if err := s.normalizeRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	vector, err := s.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("searcher: embed query: %w", err)
	}

	overfetch := req.Limit * 3
	if overfetch < req.Limit {
		overfetch = req.Limit // overflow guard for pathological limits
	}

	type vecOutcome struct {
		ids    []uint64
		scores []float32
		err    error
	}
	type lexOutcome struct {
		results []lexical.Result
		err     error
	}
	vecChan := make(chan vecOutcome, 1)
	lexChan := make(chan lexOutcome, 1)

	go func() {
		ids, scores, err := s.vectors.Search(vector, overfetch)
		vecChan <- vecOutcome{ids, scores, err}
	}()
	go func() {
		if req.Mode == ModeVector {
			lexChan <- lexOutcome{}
			return
		}
		results, err := s.lexical.Search(req.Query, overfetch)
		lexChan <- lexOutcome{results, err}
	}()

	var vo vecOutcome
	var lo lexOutcome
	var vecDone, lexDone bool
	for !vecDone || !lexDone {
		select {
		case vo = <-vecChan:
			vecDone = true
		case lo = <-lexChan:
			lexDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if vo.err != nil && lo.err != nil {
		return nil, fmt.Errorf("searcher: both vector and lexical search failed: vector=%w, lexical=%v", vo.err, lo.err)
	}

	vectorList := make(fuser.RankedList, len(vo.ids))
	copy(vectorList, vo.ids)

	var lexicalList fuser.RankedList
	if req.Mode != ModeVector {
		lexicalList = make(fuser.RankedList, len(lo.results))
		for i, r := range lo.results {
			lexicalList[i] = r.ChunkID
		}
	}

	rrfK := s.rrfK
	if req.RRFK > 0 {
		rrfK = req.RRFK
	}
	var fused []fuser.Result
	if req.Mode == ModeVector {
		fused = fuser.Fuse(rrfK, vectorList)
	} else {
		fused = fuser.Fuse(rrfK, vectorList, lexicalList)
	}

	if req.FilterPath != "" {
		fused = s.filterByPath(fused, req.FilterPath)
	}

	if req.Mode == ModeRerank {
		var err error
		fused, err = s.rerank(ctx, req.Query, fused)
		if err != nil {
			return nil, fmt.Errorf("searcher: rerank: %w", err)
		}
	}

	results := s.fetchResults(fused, req.Limit)

	response := &SearchResponse{
		Results:     results,
		VectorHits:  len(vo.ids),
		LexicalHits: len(lo.results),
	}
	response.Duration = time.Since(start)

	if req.UseCache {
		s.storeCache(req, response)
	}
	return response, nil
}

// FindReferences runs find_references: a case-sensitive identifier-exact
// lexical lookup over signature and content. Every exact match scores
// 1.0, so results come out ordered by path; they are not ranked by BM25.
func (s *Searcher) FindReferences(symbol string, limit int) ([]types.SearchResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("searcher: symbol is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	hits, err := s.lexical.FindExact(symbol)
	if err != nil {
		return nil, fmt.Errorf("searcher: find references: %w", err)
	}

	type withChunk struct {
		hit   lexical.Result
		chunk *types.Chunk
	}
	resolved := make([]withChunk, 0, len(hits))
	for _, h := range hits {
		chunk, err := s.payload.GetChunk(h.ChunkID)
		if err != nil {
			continue
		}
		resolved = append(resolved, withChunk{h, chunk})
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].hit.Score != resolved[j].hit.Score {
			return resolved[i].hit.Score > resolved[j].hit.Score
		}
		return resolved[i].chunk.Path < resolved[j].chunk.Path
	})

	if limit < len(resolved) {
		resolved = resolved[:limit]
	}

	results := make([]types.SearchResult, len(resolved))
	for i, r := range resolved {
		results[i] = types.SearchResult{
			ChunkID:        r.chunk.ID,
			Rank:           i + 1,
			RelevanceScore: r.hit.Score,
			Kind:           r.chunk.Kind,
			Signature:      r.chunk.Signature,
			Content:        r.chunk.Content,
			File: &types.FileInfo{
				Path:      r.chunk.Path,
				StartLine: r.chunk.Start,
				EndLine:   r.chunk.End,
			},
		}
	}
	return results, nil
}

// GetFileChunks runs get_file_chunks: every chunk for path, in start-line
// order; compact omits content (spec §4.L).
func (s *Searcher) GetFileChunks(path string, compact bool) ([]types.SearchResult, error) {
	rec, err := s.payload.GetFile(path)
	if err != nil {
		return nil, fmt.Errorf("searcher: get file chunks: %w", err)
	}

	chunks := make([]*types.Chunk, 0, len(rec.ChunkIDs))
	for _, id := range rec.ChunkIDs {
		chunk, err := s.payload.GetChunk(id)
		if err != nil {
			continue
		}
		chunks = append(chunks, chunk)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Start < chunks[j].Start })

	results := make([]types.SearchResult, len(chunks))
	for i, c := range chunks {
		content := c.Content
		if compact {
			content = ""
		}
		results[i] = types.SearchResult{
			ChunkID:   c.ID,
			Rank:      i + 1,
			Kind:      c.Kind,
			Signature: c.Signature,
			Content:   content,
			File: &types.FileInfo{
				Path:      c.Path,
				StartLine: c.Start,
				EndLine:   c.End,
			},
		}
	}
	return results, nil
}

func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.queryCache != nil {
		if v, ok := s.queryCache.Get(query); ok {
			return v, nil
		}
	}
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, err
	}
	if s.queryCache != nil {
		s.queryCache.Put(query, emb.Vector)
	}
	return emb.Vector, nil
}

func (s *Searcher) filterByPath(fused []fuser.Result, filterPath string) []fuser.Result {
	out := fused[:0:0]
	for _, r := range fused {
		chunk, err := s.payload.GetChunk(r.ChunkID)
		if err != nil {
			continue
		}
		if strings.Contains(chunk.Path, filterPath) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Searcher) rerank(ctx context.Context, query string, fused []fuser.Result) ([]fuser.Result, error) {
	top := fused
	if len(top) > fuser.DefaultRerankTop {
		top = top[:fuser.DefaultRerankTop]
	}

	candidates := make([]fuser.Candidate, 0, len(top))
	for _, r := range top {
		chunk, err := s.payload.GetChunk(r.ChunkID)
		if err != nil {
			continue
		}
		candidates = append(candidates, fuser.Candidate{ChunkID: r.ChunkID, Content: chunk.Content, Score: r.Score})
	}

	reranked, err := s.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	out := make([]fuser.Result, len(reranked))
	for i, c := range reranked {
		out[i] = fuser.Result{ChunkID: c.ChunkID, Score: c.Score}
	}
	// Reranker is a pure post-filter: anything fused beyond the rerank
	// window keeps its original fused order, appended after the
	// reranked head (spec §4.K).
	out = append(out, fused[len(top):]...)
	return out, nil
}

func (s *Searcher) fetchResults(fused []fuser.Result, limit int) []types.SearchResult {
	if limit > len(fused) {
		limit = len(fused)
	}
	results := make([]types.SearchResult, 0, limit)
	for i := 0; i < limit; i++ {
		chunk, err := s.payload.GetChunk(fused[i].ChunkID)
		if err != nil {
			continue
		}
		results = append(results, types.SearchResult{
			ChunkID:        chunk.ID,
			Rank:           len(results) + 1,
			RelevanceScore: fused[i].Score,
			Kind:           chunk.Kind,
			Signature:      chunk.Signature,
			Content:        chunk.Content,
			File: &types.FileInfo{
				Path:      chunk.Path,
				StartLine: chunk.Start,
				EndLine:   chunk.End,
			},
		})
	}
	return results
}

func (s *Searcher) normalizeRequest(req *SearchRequest) error {
	if req.Query == "" {
		return fmt.Errorf("searcher: query cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}
	return nil
}

func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeCache(req SearchRequest, response *SearchResponse) {
	hash := computeQueryHash(req)
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(defaultTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(hash, entry)
	s.cacheMu.Unlock()
}

// InvalidateCache purges the response cache. The Index Manager calls
// this after any write so a stale cached response never outlives the
// index contents it was computed from.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

func copyResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := &SearchResponse{
		VectorHits:  src.VectorHits,
		LexicalHits: src.LexicalHits,
		Results:     make([]types.SearchResult, len(src.Results)),
	}
	for i, r := range src.Results {
		dst.Results[i] = r
		if r.File != nil {
			fileCopy := *r.File
			dst.Results[i].File = &fileCopy
		}
	}
	return dst
}

func computeQueryHash(req SearchRequest) [32]byte {
	var b strings.Builder
	b.WriteString(req.Query)
	b.WriteString("|")
	b.WriteString(string(req.Mode))
	b.WriteString("|")
	b.WriteString(req.FilterPath)
	b.WriteString("|")
	fmt.Fprintf(&b, "%g", req.RRFK)
	return sha256.Sum256([]byte(b.String()))
}
