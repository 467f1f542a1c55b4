package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flupkede/codesearch/internal/embedder"
	"github.com/flupkede/codesearch/internal/indexer"
)

// stubEmbedder returns a deterministic vector derived from text content,
// avoiding any dependency on a real model or network access in tests.
type stubEmbedder struct{ dim int }

func (e *stubEmbedder) GenerateEmbedding(_ context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return &embedder.Embedding{Vector: vectorFor(req.Text, e.dim), Dimension: e.dim}, nil
}

func (e *stubEmbedder) GenerateBatch(_ context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = &embedder.Embedding{Vector: vectorFor(text, e.dim), Dimension: e.dim}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out}, nil
}

func (e *stubEmbedder) Dimension() int   { return e.dim }
func (e *stubEmbedder) Provider() string { return "stub" }
func (e *stubEmbedder) Model() string    { return "stub-model" }
func (e *stubEmbedder) Close() error     { return nil }

func vectorFor(text string, dim int) []float32 {
	v := make([]float32, dim)
	for i, c := range text {
		v[i%dim] += float32(c%7) + 1
	}
	return v
}

func newFixtureProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(
		"package main\n\nfunc HandleAuth() error {\n\treturn nil\n}\n"), 0o644))
	return root
}

func TestOpenStartsNotIndexedForFreshProject(t *testing.T) {
	root := newFixtureProject(t)
	cacheRoot := filepath.Join(t.TempDir(), "cache")

	sess, err := Open(root, true, &stubEmbedder{dim: 8}, indexer.Config{CacheRoot: cacheRoot})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	status, _, _ := sess.SnapshotStatus()
	require.Equal(t, StatusNotIndexed, status)
}

func TestOpenAtBypassesDiscoveryPrecedence(t *testing.T) {
	root := newFixtureProject(t)
	dbPath := filepath.Join(t.TempDir(), "global-db")
	cacheRoot := filepath.Join(t.TempDir(), "cache")

	sess, err := OpenAt(root, dbPath, &stubEmbedder{dim: 8}, indexer.Config{CacheRoot: cacheRoot})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	require.Equal(t, dbPath, sess.DBPath())
	require.Equal(t, root, sess.Root())
}

func TestEnsureBuildsInBackgroundAndReportsReady(t *testing.T) {
	root := newFixtureProject(t)
	cacheRoot := filepath.Join(t.TempDir(), "cache")

	sess, err := Open(root, true, &stubEmbedder{dim: 8}, indexer.Config{CacheRoot: cacheRoot})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess.Ensure(ctx)

	require.Eventually(t, func() bool {
		status, _, _ := sess.SnapshotStatus()
		return status == StatusReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusSnapshotReportsChunkAndFileCounts(t *testing.T) {
	root := newFixtureProject(t)
	cacheRoot := filepath.Join(t.TempDir(), "cache")

	sess, err := Open(root, true, &stubEmbedder{dim: 8}, indexer.Config{CacheRoot: cacheRoot})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	_, err = sess.Indexer().Build(context.Background(), indexer.Config{})
	require.NoError(t, err)
	sess.SetStatus(StatusReady, "")

	snapshot, err := sess.StatusSnapshot()
	require.NoError(t, err)
	require.Equal(t, true, snapshot["indexed"])
	require.Equal(t, "ready", snapshot["status"])
	require.Greater(t, snapshot["total_files"], 0)
	require.Greater(t, snapshot["total_chunks"], 0)
}
