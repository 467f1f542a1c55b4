// Package embedder generates vector embeddings for code chunks using various providers.
//
// The embedder supports multiple embedding providers (Jina AI, OpenAI, local models)
// and provides batching, rate limiting, and error handling for production use.
// Embedding-level caching is not this package's concern — see "# Caching" below.
//
// # Basic Usage
//
//	// Create embedder (auto-detects provider from environment)
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	// Generate single embedding
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "func ParseFile(path string) error { ... }",
//	})
//	fmt.Printf("Vector dimension: %d\n", len(result.Vector))
//
// # Batch Processing
//
// For efficiency, use batch processing:
//
//	texts := []string{
//	    chunk1.Content,
//	    chunk2.Content,
//	    chunk3.Content,
//	}
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: texts,
//	})
//
//	for i, embedding := range resp.Embeddings {
//	    // Store embedding for chunk i
//	}
//
// Batching reduces API calls and improves throughput significantly
// (e.g., 20x faster than sequential single requests).
//
// # Provider Selection
//
// The embedder selects a provider based on environment variables:
//
//  1. If GOCONTEXT_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if JINA_API_KEY is set → use Jina AI
//  3. Else if OPENAI_API_KEY is set → use OpenAI
//  4. Else → fallback to local provider (offline mode)
//
// Provider configuration:
//
//	// Explicit provider selection
//	os.Setenv("GOCONTEXT_EMBEDDING_PROVIDER", "jina")
//	os.Setenv("JINA_API_KEY", "your-api-key")
//
//	// Or use factory
//	config := embedder.Config{
//	    Provider: "jina",
//	    APIKey:   "your-api-key",
//	}
//	emb, err := embedder.New(config)
//
// # Provider Comparison
//
// Jina AI (recommended for code):
//   - Dimensions: 1024
//   - Quality: Excellent (code-optimized)
//   - Speed: Fast
//   - Cost: Free tier available
//
// OpenAI:
//   - Dimensions: 1536
//   - Quality: Excellent (general purpose)
//   - Speed: Fast
//   - Cost: Pay per token
//
// Local (offline):
//   - Dimensions: 384
//   - Quality: Good
//   - Speed: Medium
//   - Cost: Free (CPU-based)
//
// # Caching
//
// This package does not cache embeddings itself. A provider is only ever
// invoked through internal/indexer, which checks internal/embedcache's
// hot in-memory LRU and persistent on-disk store by content hash before
// it ever builds a request — so a provider-local cache would sit behind a
// cache that already absorbed the hit. ComputeHash is exported so callers
// and the cache layer agree on the same content-hash key; Embedding.Hash
// carries it back so embedcache can stamp the result without recomputing.
//
// # Error Handling
//
// The embedder handles transient failures with retry logic:
//
//	resp, err := emb.GenerateBatch(ctx, req)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // API temporarily unavailable after retries, fall back or requeue
//	}
//
// For offline scenarios, fall back to the local provider explicitly:
//
//	emb, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal})
//
// # Performance
//
// Typical throughput (Jina AI, batch size 20):
//   - Single request: ~200ms (network latency)
//   - Batch of 20: ~400ms (2x slower, 20x more throughput)
//   - Concurrent batches (5 parallel): ~90 embeddings/sec
//
// For local provider:
//   - Single request: ~50ms (CPU-bound)
//   - No batching benefit (already local)
//   - Throughput: ~20 embeddings/sec
package embedder
