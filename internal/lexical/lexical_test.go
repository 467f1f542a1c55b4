package lexical

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flupkede/codesearch/internal/kvstore"
)

func newTestIndex(t *testing.T) (*Index, func()) {
	t.Helper()
	dir := t.TempDir()
	kv, err := kvstore.Open(filepath.Join(dir, "kv"), kvstore.Config{})
	require.NoError(t, err)
	return New(kv), func() { kv.Close() }
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar_baz", "123"}, Tokenize("foo Bar_Baz 123!!"))
}

func TestIndexAndSearch(t *testing.T) {
	idx, cleanup := newTestIndex(t)
	defer cleanup()

	require.NoError(t, idx.IndexChunk(1, "a.go", "func foo()", "func foo() { return 1 }"))
	require.NoError(t, idx.IndexChunk(2, "b.go", "func bar()", "func bar() { return 2 }"))

	results, err := idx.Search("foo", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(1), results[0].ChunkID)
}

func TestDeleteChunkRemovesFromPostings(t *testing.T) {
	idx, cleanup := newTestIndex(t)
	defer cleanup()

	require.NoError(t, idx.IndexChunk(1, "a.go", "func foo()", "func foo() { return 1 }"))
	require.NoError(t, idx.DeleteChunk(1))

	results, err := idx.Search("foo", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindExactMatchesIdentifier(t *testing.T) {
	idx, cleanup := newTestIndex(t)
	defer cleanup()

	require.NoError(t, idx.IndexChunk(1, "a.go", "func AUTH_TEST()", "AUTH_TEST_UNIQUE_STRING_XYZ123"))

	results, err := idx.FindExact("AUTH_TEST_UNIQUE_STRING_XYZ123")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].ChunkID)
}

// TestFindExactIsCaseSensitive guards spec §4.L's find_references
// invariant: identifiers differing only by case must resolve to
// disjoint results, even though Search's BM25 ranking folds them to the
// same token.
func TestFindExactIsCaseSensitive(t *testing.T) {
	idx, cleanup := newTestIndex(t)
	defer cleanup()

	require.NoError(t, idx.IndexChunk(1, "a.go", "func Handle()", "func Handle() error { return nil }"))
	require.NoError(t, idx.IndexChunk(2, "b.go", "func handle()", "func handle() error { return nil }"))

	// Both chunks share the same BM25 term.
	searchResults, err := idx.Search("handle", 10)
	require.NoError(t, err)
	require.Len(t, searchResults, 2)

	upper, err := idx.FindExact("Handle")
	require.NoError(t, err)
	require.Len(t, upper, 1)
	assert.Equal(t, uint64(1), upper[0].ChunkID)

	lower, err := idx.FindExact("handle")
	require.NoError(t, err)
	require.Len(t, lower, 1)
	assert.Equal(t, uint64(2), lower[0].ChunkID)
}

func TestFindExactRemovedOnDelete(t *testing.T) {
	idx, cleanup := newTestIndex(t)
	defer cleanup()

	require.NoError(t, idx.IndexChunk(1, "a.go", "func Handle()", "func Handle() error { return nil }"))
	require.NoError(t, idx.DeleteChunk(1))

	results, err := idx.FindExact("Handle")
	require.NoError(t, err)
	assert.Empty(t, results)
}
