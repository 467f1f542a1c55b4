// Package chunker turns source file bytes into retrieval chunks.
//
// It is polymorphic over a small closed set of variants selected by
// language: an AST-aware chunker per supported grammar (currently Go,
// via internal/parser) and a line-window fallback for everything else.
// Callers go through Registry.ChunkFile, which dispatches to the first
// variant whose Supports(language) returns true and falls back to the
// line-window chunker otherwise.
//
//	reg := chunker.NewRegistry()
//	chunks, err := reg.ChunkFile(path, "go", content, modelID)
package chunker
