package chunker

import (
	"strings"

	"github.com/flupkede/codesearch/pkg/types"
)

// LineWindowChunker emits overlapping fixed-width line windows for any
// language the walker recognizes that has no AST-aware variant, per
// spec §4.C.
type LineWindowChunker struct {
	width  int
	stride int
}

func NewLineWindowChunker(width, stride int) *LineWindowChunker {
	if width <= 0 {
		width = LineWindowSize
	}
	if stride <= 0 || stride > width {
		stride = LineWindowStride
	}
	return &LineWindowChunker{width: width, stride: stride}
}

// Supports is always true: this is the registry's fallback of last
// resort, consulted only when no other variant claims the language.
func (l *LineWindowChunker) Supports(language string) bool {
	return true
}

func (l *LineWindowChunker) Parse(path string, content []byte, modelID string) ([]types.Chunk, error) {
	lines := splitLines(content)
	if len(lines) == 0 {
		return nil, nil
	}

	var chunks []types.Chunk
	for start := 0; start < len(lines); start += l.stride {
		end := start + l.width
		if end > len(lines) {
			end = len(lines)
		}
		c := types.Chunk{
			Path:    path,
			Start:   start + 1,
			End:     end,
			Kind:    types.KindLineWindow,
			Content: strings.Join(lines[start:end], "\n"),
		}
		c.ComputeContentHash(modelID)
		chunks = append(chunks, c)
		if end == len(lines) {
			break
		}
	}
	return chunks, nil
}
