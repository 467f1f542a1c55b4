package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flupkede/codesearch/internal/locator"
	"github.com/flupkede/codesearch/internal/searcher"
	"github.com/flupkede/codesearch/pkg/types"
)

// MCP error codes, mirroring JSON-RPC's reserved range plus a
// taxonomic range for domain errors (spec §7's error kinds).
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
	ErrorCodeEmptyQuery    = -32004
)

// MCPError represents an MCP protocol error.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// handleSemanticSearch handles the semantic_search tool invocation.
func (s *Server) handleSemanticSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", nil)
	}

	limit := getIntDefault(args, "limit", 25)
	if limit < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be at least 1", map[string]interface{}{"param": "limit", "value": limit})
	}
	compact := getBoolDefault(args, "compact", true)
	filterPath := getStringDefault(args, "filter_path", "")

	// Best-effort results from whatever is already committed while a
	// background build is in progress (spec §7); never block the caller.
	status, _, _ := s.session.SnapshotStatus()

	resp, err := s.session.Searcher().Search(ctx, searcher.SearchRequest{
		Query:      query,
		Limit:      limit,
		FilterPath: filterPath,
		Mode:       searcher.ModeHybrid,
		UseCache:   true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{"error": err.Error()})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, searchResultJSON(r, compact))
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results":     results,
		"duration_ms": resp.Duration.Milliseconds(),
		"status":      string(status),
	})), nil
}

// handleFindReferences handles the find_references tool invocation.
func (s *Server) handleFindReferences(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	symbol, ok := args["symbol"].(string)
	if !ok || symbol == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "symbol parameter is required", map[string]interface{}{"param": "symbol"})
	}
	limit := getIntDefault(args, "limit", 50)
	if limit < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be at least 1", map[string]interface{}{"param": "limit", "value": limit})
	}

	hits, err := s.session.Searcher().FindReferences(symbol, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "find_references failed", map[string]interface{}{"error": err.Error()})
	}

	refs := make([]map[string]interface{}, 0, len(hits))
	for _, r := range hits {
		ref := map[string]interface{}{
			"path": r.File.Path,
			"line": r.File.StartLine,
		}
		if r.Signature != "" {
			ref["context"] = r.Signature
		}
		refs = append(refs, ref)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"references": refs})), nil
}

// handleGetFileChunks handles the get_file_chunks tool invocation.
func (s *Server) handleGetFileChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{"param": "path"})
	}
	compact := getBoolDefault(args, "compact", true)

	chunks, err := s.session.Searcher().GetFileChunks(path, compact)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "get_file_chunks failed", map[string]interface{}{"error": err.Error()})
	}

	results := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, searchResultJSON(c, compact))
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"chunks": results})), nil
}

// handleFindDatabases handles the find_databases tool invocation.
func (s *Server) handleFindDatabases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dbs, err := locator.FindDatabases(s.session.Root())
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "find_databases failed", map[string]interface{}{"error": err.Error()})
	}

	out := make([]map[string]interface{}, 0, len(dbs))
	for _, db := range dbs {
		entry := map[string]interface{}{
			"path":  db.Path,
			"scope": db.Scope,
		}
		if db.ProjectRoot != "" {
			entry["project_path"] = db.ProjectRoot
		}
		out = append(out, entry)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"databases": out})), nil
}

// handleIndexStatus handles the index_status tool invocation.
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot, err := s.session.StatusSnapshot()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "read index status", map[string]interface{}{"error": err.Error()})
	}
	return mcp.NewToolResultText(formatJSON(snapshot)), nil
}

// searchResultJSON renders one types.SearchResult per spec §6's
// `{path, start, end, kind, signature?, score, content?}` shape;
// compact omits content, and signature is omitted when empty.
func searchResultJSON(r types.SearchResult, compact bool) map[string]interface{} {
	out := map[string]interface{}{
		"path":  r.File.Path,
		"start": r.File.StartLine,
		"end":   r.File.EndLine,
		"kind":  string(r.Kind),
		"score": r.RelevanceScore,
	}
	if r.Signature != "" {
		out["signature"] = r.Signature
	}
	if !compact {
		out["content"] = r.Content
	}
	return out
}

// Helper functions

func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
