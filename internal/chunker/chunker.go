// Package chunker implements the polymorphic chunking capability described
// in SPEC_FULL.md §4.C: a small closed set of chunk-producing variants
// behind a shared interface, selected by the language the File Walker
// assigned to a path.
package chunker

import (
	"strings"

	"github.com/flupkede/codesearch/pkg/types"
)

const (
	// MinAnonymousLines is the minimum line span an anonymous/lambda body
	// must have to be emitted as its own chunk; smaller spans are folded
	// into their enclosing chunk.
	MinAnonymousLines = 3

	// LineWindowSize and LineWindowStride are the fallback chunker's
	// window width and stride (spec default W=40, S=30).
	LineWindowSize   = 40
	LineWindowStride = 30
)

// Chunker is the capability set every concrete variant implements:
// Supports reports whether this variant can parse a given language tag,
// and Parse turns file bytes into chunks. The set of variants is closed
// at build time (Go AST + line-window) — a tagged switch, not open
// inheritance, per spec §9 "Polymorphic chunkers".
type Chunker interface {
	Supports(language string) bool
	Parse(path string, content []byte, modelID string) ([]types.Chunk, error)
}

// Registry dispatches a (path, language, content) triple to the first
// variant that supports the language, falling back to the line-window
// chunker when nothing else claims it.
type Registry struct {
	variants []Chunker
	fallback Chunker
}

// NewRegistry builds the default registry: the Go AST chunker plus the
// line-window fallback for every other language the walker recognizes.
func NewRegistry() *Registry {
	return &Registry{
		variants: []Chunker{NewGoChunker()},
		fallback: NewLineWindowChunker(LineWindowSize, LineWindowStride),
	}
}

// ChunkFile parses path's content into a deduplicated slice of chunks.
// Within a single file, chunks sharing an identical content hash are
// merged and only the first is kept (spec §4.C dedup rule); cross-file
// duplicates are left untouched by this function.
func (r *Registry) ChunkFile(path, language string, content []byte, modelID string) ([]types.Chunk, error) {
	var variant Chunker
	for _, v := range r.variants {
		if v.Supports(language) {
			variant = v
			break
		}
	}
	if variant == nil {
		variant = r.fallback
	}

	chunks, err := variant.Parse(path, content, modelID)
	if err != nil {
		return nil, err
	}
	return dedup(chunks), nil
}

// dedup keeps the first chunk for each distinct content hash observed,
// preserving order.
func dedup(chunks []types.Chunk) []types.Chunk {
	seen := make(map[[32]byte]bool, len(chunks))
	out := make([]types.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.ContentHash] {
			continue
		}
		seen[c.ContentHash] = true
		out = append(out, c)
	}
	return out
}

// splitLines splits file content into lines without the trailing
// newline, matching the 1-indexed inclusive line numbering used
// throughout the chunk model.
func splitLines(content []byte) []string {
	return strings.Split(string(content), "\n")
}
