package chunker

import (
	"fmt"
	"strings"

	"github.com/flupkede/codesearch/internal/parser"
	"github.com/flupkede/codesearch/pkg/types"
)

// GoChunker parses Go source via go/ast (internal/parser, kept from the
// teacher) and emits one chunk per top-level declaration and per nested
// function/method/class body, as spec §4.C requires for AST-aware
// languages.
type GoChunker struct {
	p *parser.Parser
}

func NewGoChunker() *GoChunker {
	return &GoChunker{p: parser.New()}
}

func (g *GoChunker) Supports(language string) bool {
	return language == "go"
}

func (g *GoChunker) Parse(path string, content []byte, modelID string) ([]types.Chunk, error) {
	result, err := g.p.ParseSource(path, content)
	if err != nil {
		return nil, fmt.Errorf("go chunker: parse %s: %w", path, err)
	}

	lines := splitLines(content)
	chunks := make([]types.Chunk, 0, len(result.Symbols))

	for i := range result.Symbols {
		sym := &result.Symbols[i]
		if sym.Kind == types.KindField {
			// fields are folded into their parent struct chunk
			continue
		}
		if sym.End.Line-sym.Start.Line+1 < MinAnonymousLines && isAnonymousLike(sym.Name) {
			continue
		}
		c := symbolToChunk(path, sym, lines)
		c.ComputeContentHash(modelID)
		if c.Validate() == nil {
			chunks = append(chunks, c)
		}
	}

	if len(chunks) == 0 && len(lines) > 0 {
		c := types.Chunk{
			Path:     path,
			Start:    1,
			End:      len(lines),
			Kind:     types.KindModule,
			Language: "go",
			Content:  strings.Join(lines, "\n"),
		}
		if result.PackageName != "" {
			c.Signature = "package " + result.PackageName
		}
		c.ComputeContentHash(modelID)
		chunks = append(chunks, c)
	}

	return chunks, nil
}

func isAnonymousLike(name string) bool {
	return name == "" || name == "_" || strings.HasPrefix(name, "func(")
}

func symbolToChunk(path string, sym *types.Symbol, lines []string) types.Chunk {
	start, end := sym.Start.Line, sym.End.Line
	if start <= 0 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if end < start {
		end = start
	}

	startIdx := start - 1
	endIdx := end
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > len(lines) {
		endIdx = len(lines)
	}
	content := strings.Join(lines[startIdx:endIdx], "\n")

	return types.Chunk{
		Path:      path,
		Start:     start,
		End:       end,
		Kind:      symbolKindToChunkKind(sym.Kind),
		Signature: normalizeSignature(sym.Signature),
		Language:  "go",
		Content:   content,
	}
}

// normalizeSignature whitespace-normalizes a header down to a single
// line, per spec §4.C's signature definition.
func normalizeSignature(sig string) string {
	fields := strings.Fields(sig)
	return strings.Join(fields, " ")
}

func symbolKindToChunkKind(kind types.SymbolKind) types.ChunkKind {
	switch kind {
	case types.KindFunction:
		return types.KindFunctionChunk
	case types.KindMethod:
		return types.KindMethodChunk
	case types.KindStruct:
		return types.KindStructChunk
	case types.KindInterface:
		return types.KindInterfaceChunk
	case types.KindType, types.KindConst, types.KindVar:
		return types.KindBlock
	default:
		return types.KindOther
	}
}
