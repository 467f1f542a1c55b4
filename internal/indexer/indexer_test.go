package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flupkede/codesearch/internal/embedder"
)

// stubEmbedder returns a deterministic vector derived from text content
// so different chunk contents land at different points in the space,
// without depending on a real model or network access.
type stubEmbedder struct {
	dim       int
	failCount int // number of GenerateBatch calls to fail before succeeding
	calls     int
}

func (e *stubEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return &embedder.Embedding{Vector: vectorFor(req.Text, e.dim), Dimension: e.dim}, nil
}

func (e *stubEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	e.calls++
	if e.failCount > 0 {
		e.failCount--
		return nil, errors.New("stub embedder: induced failure")
	}
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
	if v[0] == 0 {
		v[0] = 1
	}
	return v
}

func newProjectFixture(t *testing.T) (projectRoot string, dbDir string) {
	t.Helper()
	projectRoot = t.TempDir()
	dbDir = filepath.Join(t.TempDir(), "db")

	writeFile(t, projectRoot, "main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	writeFile(t, projectRoot, "auth/login.go", "package auth\n\nfunc Login() error {\n\treturn nil\n}\n")
	writeFile(t, projectRoot, ".gitignore", "vendor/\n")
	writeFile(t, projectRoot, "vendor/dep.go", "package vendor\n")

	return projectRoot, dbDir
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func openFixtureIndexer(t *testing.T, root, dbDir string, emb embedder.Embedder) *Indexer {
	t.Helper()
	idx, err := Open(root, dbDir, emb, Config{CacheRoot: filepath.Join(t.TempDir(), "cache")})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestBuildIndexesNewFilesAndSkipsIgnored(t *testing.T) {
	root, dbDir := newProjectFixture(t)
	idx := openFixtureIndexer(t, root, dbDir, &stubEmbedder{dim: 8})

	stats, err := idx.Build(context.Background(), Config{})
	require.NoError(t, err)
	require.Equal(t, 2, stats.FilesIndexed) // main.go and auth/login.go, vendor/ is .gitignored
	require.Zero(t, stats.FilesFailed)

	paths, err := idx.payload.AllFilePaths()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"main.go", "auth/login.go"}, paths)
}

func TestBuildSecondRunSkipsUnchangedFiles(t *testing.T) {
	root, dbDir := newProjectFixture(t)
	emb := &stubEmbedder{dim: 8}
	idx := openFixtureIndexer(t, root, dbDir, emb)

	_, err := idx.Build(context.Background(), Config{})
	require.NoError(t, err)
	callsAfterFirst := emb.calls

	_, err = idx.Build(context.Background(), Config{})
	require.NoError(t, err)
	require.Equal(t, callsAfterFirst, emb.calls, "unchanged files must not be re-embedded")
}

func TestBuildRemovesChunksForDeletedFiles(t *testing.T) {
	root, dbDir := newProjectFixture(t)
	idx := openFixtureIndexer(t, root, dbDir, &stubEmbedder{dim: 8})

	_, err := idx.Build(context.Background(), Config{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "auth/login.go")))

	stats, err := idx.Build(context.Background(), Config{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.FilesDeleted)

	_, err = idx.payload.GetFile("auth/login.go")
	require.Error(t, err)
}

func TestIndexFileReindexesOnContentChange(t *testing.T) {
	root, dbDir := newProjectFixture(t)
	idx := openFixtureIndexer(t, root, dbDir, &stubEmbedder{dim: 8})

	require.NoError(t, idx.IndexFile(context.Background(), "main.go"))
	before, err := idx.payload.GetFile("main.go")
	require.NoError(t, err)

	writeFile(t, root, "main.go", "package main\n\nfunc main() {\n\tprintln(\"changed\")\n}\n\nfunc extra() {}\n")
	require.NoError(t, idx.IndexFile(context.Background(), "main.go"))

	after, err := idx.payload.GetFile("main.go")
	require.NoError(t, err)
	require.NotEqual(t, before.Digest, after.Digest)
}

func TestEmbedAndIndexUsesCacheOnSecondChunkWithSameContent(t *testing.T) {
	root, dbDir := newProjectFixture(t)
	writeFile(t, root, "dup/a.go", "package dup\n\nfunc Shared() {}\n")
	writeFile(t, root, "dup/b.go", "package dup\n\nfunc Shared() {}\n")
	emb := &stubEmbedder{dim: 8}
	idx := openFixtureIndexer(t, root, dbDir, emb)

	require.NoError(t, idx.IndexFile(context.Background(), "dup/a.go"))
	callsAfterFirst := emb.calls

	require.NoError(t, idx.IndexFile(context.Background(), "dup/b.go"))
	require.Equal(t, callsAfterFirst, emb.calls, "identical chunk content must hit the embedding cache")
}

func TestBuildForceClearsPriorState(t *testing.T) {
	root, dbDir := newProjectFixture(t)
	idx := openFixtureIndexer(t, root, dbDir, &stubEmbedder{dim: 8})

	_, err := idx.Build(context.Background(), Config{})
	require.NoError(t, err)
	countBefore, err := idx.payload.CountChunks()
	require.NoError(t, err)
	require.Positive(t, countBefore)

	stats, err := idx.Build(context.Background(), Config{Force: true})
	require.NoError(t, err)
	require.Equal(t, 2, stats.FilesIndexed)

	countAfter, err := idx.payload.CountChunks()
	require.NoError(t, err)
	require.Equal(t, countBefore, countAfter)
}

func TestOpenReplaysVectorIndexFromPersistentCache(t *testing.T) {
	root, dbDir := newProjectFixture(t)
	emb := &stubEmbedder{dim: 8}
	cacheRoot := filepath.Join(t.TempDir(), "cache")

	idx, err := Open(root, dbDir, emb, Config{CacheRoot: cacheRoot})
	require.NoError(t, err)
	_, err = idx.Build(context.Background(), Config{})
	require.NoError(t, err)
	countBeforeClose := idx.vectors.Count()
	require.Positive(t, countBeforeClose)
	require.NoError(t, idx.Close())

	reopened, err := Open(root, dbDir, emb, Config{CacheRoot: cacheRoot})
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, countBeforeClose, reopened.vectors.Count())
}
