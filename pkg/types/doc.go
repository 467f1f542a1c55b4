// Package types provides shared type definitions for the codesearch engine.
//
// This package defines domain types used across multiple components of
// codesearch, including symbols, chunks, parse results, and search results.
//
// # Core Types
//
// Symbol represents a Go language construct (function, method, type, etc.)
// extracted from source code via AST parsing:
//
//	symbol := &types.Symbol{
//	    Name:      "ParseFile",
//	    Kind:      types.KindFunction,
//	    Package:   "parser",
//	    Signature: "func ParseFile(path string) (*ParseResult, error)",
//	}
//
// Chunk represents a semantic code section for embedding and search:
//
//	chunk := &types.Chunk{
//	    Path:    "internal/parser/parser.go",
//	    Start:   10,
//	    End:     42,
//	    Kind:    types.KindFunctionChunk,
//	    Content: functionBody,
//	}
//
// # Validation
//
// All domain types implement validation methods to ensure data integrity:
//
//	if err := symbol.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := chunk.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Search Results
//
// SearchResult combines chunk location metadata with relevance scoring:
//
//	result := &types.SearchResult{
//	    ChunkID:        123,
//	    Rank:           1,
//	    RelevanceScore: 0.92,
//	    File:           &types.FileInfo{Path: "internal/parser/parser.go", StartLine: 10, EndLine: 42},
//	    Content:        chunkContent,
//	}
//
// Relevance scores are normalized to [0, 1] range, with higher values indicating
// better matches.
package types
