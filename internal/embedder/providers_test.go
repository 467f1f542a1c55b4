package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// noWaitLimiter grants tokens fast enough that limiter.Wait never blocks,
// for tests that need a JinaProvider/OpenAIProvider but aren't exercising
// rate-limit behavior themselves.
func noWaitLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newBurstLimiter builds a limiter at DefaultProviderRateLimit with a
// caller-chosen burst size, so tests can force a Wait call to either
// succeed immediately (burst > 0) or block until its deadline (burst 0).
func newBurstLimiter(burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(DefaultProviderRateLimit), burst)
}

func TestJinaProvider(t *testing.T) {
	t.Run("rejects empty text before calling the API", func(t *testing.T) {
		// Mock server
		callCount := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callCount++

			// Verify request
			if r.Method != "POST" {
				t.Errorf("Expected POST request, got %s", r.Method)
			}
			if r.Header.Get("Authorization") != "Bearer test-key" {
				t.Errorf("Missing or incorrect Authorization header")
			}

			// Return mock embedding
			resp := map[string]interface{}{
				"model": "jina-embeddings-v3",
				"data": []map[string]interface{}{
					{
						"index":     0,
						"embedding": make([]float32, JinaDimension),
					},
				},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		// Create provider with mock server
		provider := &JinaProvider{
			apiKey: "test-key",
			model:  DefaultJinaModel,
			httpClient: &http.Client{
				Timeout: 5 * time.Second,
			},
			limiter: noWaitLimiter(),
		}

		// Note: Since we can't easily override the API URL, we'll skip the actual API call test
		// and focus on validation logic
		ctx := context.Background()

		_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
		if err == nil {
			t.Error("Expected error for empty text")
		}
	})

	t.Run("provider metadata", func(t *testing.T) {
		provider, err := NewJinaProvider("test-key")
		if err != nil {
			t.Fatalf("NewJinaProvider() error = %v", err)
		}
		defer provider.Close()

		if provider.Provider() != ProviderJina {
			t.Errorf("Provider() = %s, want %s", provider.Provider(), ProviderJina)
		}
		if provider.Dimension() != JinaDimension {
			t.Errorf("Dimension() = %d, want %d", provider.Dimension(), JinaDimension)
		}
		if provider.Model() != DefaultJinaModel {
			t.Errorf("Model() = %s, want %s", provider.Model(), DefaultJinaModel)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewJinaProvider("")
		if err == nil {
			t.Error("Expected error for missing API key")
		}
	})

	t.Run("validation errors", func(t *testing.T) {
		provider, _ := NewJinaProvider("test-key")
		defer provider.Close()

		ctx := context.Background()

		// Empty text
		_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
		if err == nil {
			t.Error("Expected error for empty text")
		}

		// Empty batch
		_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{}})
		if err == nil {
			t.Error("Expected error for empty batch")
		}

		// Batch too large
		largeTexts := make([]string, MaxBatchSize+1)
		for i := range largeTexts {
			largeTexts[i] = "text"
		}
		_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: largeTexts})
		if err == nil {
			t.Error("Expected error for batch size exceeding max")
		}
	})
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("provider metadata", func(t *testing.T) {
		provider, err := NewOpenAIProvider("test-key")
		if err != nil {
			t.Fatalf("NewOpenAIProvider() error = %v", err)
		}
		defer provider.Close()

		if provider.Provider() != ProviderOpenAI {
			t.Errorf("Provider() = %s, want %s", provider.Provider(), ProviderOpenAI)
		}
		if provider.Dimension() != OpenAIDimension {
			t.Errorf("Dimension() = %d, want %d", provider.Dimension(), OpenAIDimension)
		}
		if provider.Model() != DefaultOpenAIModel {
			t.Errorf("Model() = %s, want %s", provider.Model(), DefaultOpenAIModel)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		// Save and clear env var
		orig := os.Getenv("OPENAI_API_KEY")
		os.Unsetenv("OPENAI_API_KEY")
		defer func() {
			if orig != "" {
				os.Setenv("OPENAI_API_KEY", orig)
			}
		}()

		_, err := NewOpenAIProvider("")
		if err == nil {
			t.Error("Expected error for missing API key")
		}
	})

	t.Run("validation errors", func(t *testing.T) {
		provider, _ := NewOpenAIProvider("test-key")
		defer provider.Close()

		ctx := context.Background()

		// Empty text
		_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
		if err == nil {
			t.Error("Expected error for empty text")
		}

		// Empty batch
		_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{}})
		if err == nil {
			t.Error("Expected error for empty batch")
		}

		// Batch too large
		largeTexts := make([]string, MaxBatchSize+1)
		for i := range largeTexts {
			largeTexts[i] = "text"
		}
		_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: largeTexts})
		if err == nil {
			t.Error("Expected error for batch size exceeding max")
		}
	})
}

// T084: Regression test for retry logic abstraction
// Verifies that retryWithBackoff function exists and is used by both providers
// Implementation: internal/embedder/retry.go
func TestRetryWithBackoff(t *testing.T) {
	t.Run("retryWithBackoff function exists and works", func(t *testing.T) {
		ctx := context.Background()
		config := DefaultRetryConfig()

		callCount := 0
		successFn := func() (string, error) {
			callCount++
			if callCount < 2 {
				return "", fmt.Errorf("transient error")
			}
			return "success", nil
		}

		result, err := retryWithBackoff(ctx, config, successFn)
		assert.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Equal(t, 2, callCount, "Should retry once and succeed on second attempt")
	})

	t.Run("exponential backoff timing", func(t *testing.T) {
		ctx := context.Background()
		config := RetryConfig{
			MaxRetries: 3,
			BaseDelay:  10 * time.Millisecond,
			MaxDelay:   100 * time.Millisecond,
			Multiplier: 2.0,
		}

		callCount := 0
		startTime := time.Now()
		failFn := func() (int, error) {
			callCount++
			return 0, fmt.Errorf("always fails")
		}

		_, err := retryWithBackoff(ctx, config, failFn)
		elapsed := time.Since(startTime)

		assert.Error(t, err)
		assert.Equal(t, 3, callCount, "Should retry MaxRetries times")
		// Should wait: 10ms + 20ms = 30ms minimum (exponential backoff)
		assert.GreaterOrEqual(t, elapsed.Milliseconds(), int64(30))
	})

	t.Run("max retries limit", func(t *testing.T) {
		ctx := context.Background()
		config := RetryConfig{
			MaxRetries: 5,
			BaseDelay:  1 * time.Millisecond,
			MaxDelay:   10 * time.Millisecond,
			Multiplier: 2.0,
		}

		callCount := 0
		alwaysFailFn := func() (bool, error) {
			callCount++
			return false, fmt.Errorf("error")
		}

		_, err := retryWithBackoff(ctx, config, alwaysFailFn)
		assert.Error(t, err)
		assert.Equal(t, 5, callCount, "Should stop after MaxRetries attempts")
	})

	t.Run("context cancellation during retry", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		config := RetryConfig{
			MaxRetries: 10,
			BaseDelay:  50 * time.Millisecond,
			MaxDelay:   100 * time.Millisecond,
			Multiplier: 2.0,
		}

		callCount := 0
		fnWithCancel := func() (string, error) {
			callCount++
			if callCount == 2 {
				cancel() // Cancel after first retry
			}
			return "", fmt.Errorf("error")
		}

		_, err := retryWithBackoff(ctx, config, fnWithCancel)
		assert.Error(t, err)
		assert.Equal(t, context.Canceled, err, "Should return context.Canceled")
		assert.LessOrEqual(t, callCount, 3, "Should stop retrying after context cancellation")
	})

	t.Run("immediate success no retry", func(t *testing.T) {
		ctx := context.Background()
		config := DefaultRetryConfig()

		callCount := 0
		immediateFn := func() (int, error) {
			callCount++
			return 42, nil
		}

		result, err := retryWithBackoff(ctx, config, immediateFn)
		assert.NoError(t, err)
		assert.Equal(t, 42, result)
		assert.Equal(t, 1, callCount, "Should succeed on first try without retries")
	})

	t.Run("max delay cap is enforced", func(t *testing.T) {
		ctx := context.Background()
		config := RetryConfig{
			MaxRetries: 5,
			BaseDelay:  10 * time.Millisecond,
			MaxDelay:   20 * time.Millisecond, // Cap at 20ms
			Multiplier: 4.0,                   // Would grow: 10, 40, 160, 640...
		}

		delays := []time.Duration{}
		callCount := 0
		lastTime := time.Now()

		failFn := func() (int, error) {
			callCount++
			if callCount > 1 {
				elapsed := time.Since(lastTime)
				delays = append(delays, elapsed)
			}
			lastTime = time.Now()
			return 0, fmt.Errorf("error")
		}

		_, err := retryWithBackoff(ctx, config, failFn)
		assert.Error(t, err)

		// All delays after first should be capped at MaxDelay
		for i, delay := range delays {
			// Allow some tolerance for timing
			assert.LessOrEqual(t, delay.Milliseconds(), int64(30), "Delay %d should be capped at MaxDelay", i)
		}
	})
}

// T084b: Test both JinaProvider and OpenAIProvider use shared retry logic
func TestProviders_UseSharedRetryLogic(t *testing.T) {
	t.Run("JinaProvider rejects an empty batch before retrying", func(t *testing.T) {
		provider, err := NewJinaProvider("test-key")
		require.NoError(t, err)
		defer provider.Close()

		ctx := context.Background()

		// Calling with invalid request should fail validation before retry
		_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{}})
		assert.Error(t, err, "Empty batch should fail validation")
	})

	t.Run("OpenAIProvider rejects an empty batch before retrying", func(t *testing.T) {
		provider, err := NewOpenAIProvider("test-key")
		require.NoError(t, err)
		defer provider.Close()

		ctx := context.Background()

		// Calling with invalid request should fail validation before retry
		_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{}})
		assert.Error(t, err, "Empty batch should fail validation")
	})

	t.Run("both providers use same DefaultRetryConfig", func(t *testing.T) {
		config := DefaultRetryConfig()

		assert.Equal(t, MaxRetries, config.MaxRetries)
		assert.Equal(t, time.Duration(InitialBackoffMs)*time.Millisecond, config.BaseDelay)
		assert.Equal(t, time.Duration(MaxBackoffMs)*time.Millisecond, config.MaxDelay)
		assert.Equal(t, BackoffMultiplier, config.Multiplier)
	})
}

// TestProviderRateLimit exercises the DefaultProviderRateLimit wiring added
// to JinaProvider/OpenAIProvider's callAPI: a burst of calls beyond the
// limiter's burst capacity (2 tokens here) must be delayed by limiter.Wait
// rather than firing at once, and a context that expires before its turn
// must surface the wait's context error instead of hanging forever.
func TestProviderRateLimit(t *testing.T) {
	t.Run("limiter delays calls past its burst capacity", func(t *testing.T) {
		var callTimes []time.Time
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callTimes = append(callTimes, time.Now())
			resp := map[string]interface{}{
				"model": DefaultJinaModel,
				"data": []map[string]interface{}{
					{"index": 0, "embedding": make([]float32, JinaDimension)},
				},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		provider := &JinaProvider{
			apiKey:     "test-key",
			model:      DefaultJinaModel,
			httpClient: &http.Client{Timeout: 5 * time.Second},
			limiter:    newBurstLimiter(2),
		}
		defer provider.Close()

		// Exercise the limiter directly against the same rate the
		// providers construct in NewJinaProvider/NewOpenAIProvider.
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if err := provider.limiter.Wait(ctx); err != nil {
				t.Fatalf("limiter.Wait() error = %v", err)
			}
			callTimes = append(callTimes, time.Now())
		}

		if len(callTimes) < 3 {
			t.Fatalf("expected at least 3 recorded calls, got %d", len(callTimes))
		}
		gap := callTimes[2].Sub(callTimes[1])
		if gap <= 0 {
			t.Error("expected the 3rd call past burst capacity to be delayed by the limiter")
		}
	})

	t.Run("limiter.Wait returns the context error when the wait can't complete in time", func(t *testing.T) {
		provider := &JinaProvider{
			apiKey:     "test-key",
			model:      DefaultJinaModel,
			httpClient: &http.Client{Timeout: 5 * time.Second},
			limiter:    newBurstLimiter(0), // no tokens available; any Wait must block
		}
		defer provider.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()

		_, err := provider.callAPI(ctx, []string{"text"}, DefaultJinaModel)
		if err == nil {
			t.Fatal("expected callAPI to fail when the rate limiter can't grant a token before the deadline")
		}
	})

	t.Run("OpenAI callAPI surfaces the same rate limit wait error", func(t *testing.T) {
		provider := &OpenAIProvider{
			apiKey:     "test-key",
			model:      DefaultOpenAIModel,
			httpClient: &http.Client{Timeout: 5 * time.Second},
			limiter:    newBurstLimiter(0),
		}
		defer provider.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()

		_, err := provider.callAPI(ctx, []string{"text"}, DefaultOpenAIModel)
		if err == nil {
			t.Fatal("expected callAPI to fail when the rate limiter can't grant a token before the deadline")
		}
	})

	t.Run("NewJinaProvider wires DefaultProviderRateLimit", func(t *testing.T) {
		provider, err := NewJinaProvider("test-key")
		require.NoError(t, err)
		defer provider.Close()

		if provider.limiter.Limit() != DefaultProviderRateLimit {
			t.Errorf("limiter rate = %v, want %v", provider.limiter.Limit(), DefaultProviderRateLimit)
		}
	})

	t.Run("NewOpenAIProvider wires DefaultProviderRateLimit", func(t *testing.T) {
		provider, err := NewOpenAIProvider("test-key")
		require.NoError(t, err)
		defer provider.Close()

		if provider.limiter.Limit() != DefaultProviderRateLimit {
			t.Errorf("limiter rate = %v, want %v", provider.limiter.Limit(), DefaultProviderRateLimit)
		}
	})
}

func TestDeterministicEmbeddingAcrossCalls(t *testing.T) {
	t.Run("different text gets different embedding", func(t *testing.T) {
		provider, err := NewLocalProvider()
		if err != nil {
			t.Fatalf("NewLocalProvider() error = %v", err)
		}
		defer provider.Close()

		ctx := context.Background()

		emb1, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "text one"})
		if err != nil {
			t.Fatalf("Error = %v", err)
		}

		emb2, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "text two"})
		if err != nil {
			t.Fatalf("Error = %v", err)
		}

		if emb1.Hash == emb2.Hash {
			t.Error("Expected different hashes for different texts")
		}
	})

	t.Run("batch embeddings carry per-text hashes", func(t *testing.T) {
		provider, err := NewLocalProvider()
		if err != nil {
			t.Fatalf("NewLocalProvider() error = %v", err)
		}
		defer provider.Close()

		ctx := context.Background()
		texts := []string{"code1", "code2", "code3"}

		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			t.Fatalf("GenerateBatch() error = %v", err)
		}

		if len(resp.Embeddings) != 3 {
			t.Errorf("Got %d embeddings, want 3", len(resp.Embeddings))
		}

		for i, text := range texts {
			want := ComputeHash(text)
			if resp.Embeddings[i].Hash != want {
				t.Errorf("embedding %d hash = %s, want %s", i, resp.Embeddings[i].Hash, want)
			}
		}
	})
}

func TestContextCancellation(t *testing.T) {
	t.Run("cancelled context", func(t *testing.T) {
		provider, err := NewLocalProvider()
		if err != nil {
			t.Fatalf("NewLocalProvider() error = %v", err)
		}
		defer provider.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel() // Cancel immediately

		// Local provider doesn't check context in current implementation
		// but should not panic
		_, _ = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "test"})
	})

	t.Run("timeout context", func(t *testing.T) {
		provider, err := NewLocalProvider()
		if err != nil {
			t.Fatalf("NewLocalProvider() error = %v", err)
		}
		defer provider.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
		defer cancel()

		time.Sleep(1 * time.Millisecond) // Ensure timeout

		// Should complete quickly with local provider
		_, _ = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "test"})
	})
}

func TestProviderClose(t *testing.T) {
	providers := []struct {
		name     string
		provider Embedder
	}{
		{
			name:     "local",
			provider: mustNewLocalProvider(t),
		},
	}

	for _, tc := range providers {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.provider.Close()
			if err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func mustNewLocalProvider(t *testing.T) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider()
	if err != nil {
		t.Fatalf("NewLocalProvider() error = %v", err)
	}
	return p
}
