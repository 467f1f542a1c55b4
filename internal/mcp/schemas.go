package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// semanticSearchTool returns the tool definition for semantic_search.
func semanticSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "semantic_search",
		Description: "Hybrid vector+lexical search over an indexed codebase, fused with reciprocal rank fusion",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language or keyword query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     25,
					"minimum":     1,
					"maximum":     100,
				},
				"compact": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, omit full chunk content and return only locations and signatures",
					"default":     true,
				},
				"filter_path": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to chunks whose path contains this substring",
				},
			},
			Required: []string{"query"},
		},
	}
}

// findReferencesTool returns the tool definition for find_references.
func findReferencesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_references",
		Description: "Find chunks whose signature or content references the given symbol exactly",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"symbol": map[string]interface{}{
					"type":        "string",
					"description": "Identifier to search for",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     50,
					"minimum":     1,
					"maximum":     200,
				},
			},
			Required: []string{"symbol"},
		},
	}
}

// getFileChunksTool returns the tool definition for get_file_chunks.
func getFileChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_file_chunks",
		Description: "Return every indexed chunk of a file, in start-line order",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the project root",
				},
				"compact": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, omit full chunk content and return only locations and signatures",
					"default":     true,
				},
			},
			Required: []string{"path"},
		},
	}
}

// findDatabasesTool returns the tool definition for find_databases.
func findDatabasesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_databases",
		Description: "List every codesearch database this installation knows about, local and global",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// indexStatusTool returns the tool definition for index_status.
func indexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_status",
		Description: "Report whether the current project is indexed and summarize the index's state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
