// Package mcp implements the Model Context Protocol server for
// codesearch.
//
// The server exposes five tools to AI coding assistants over stdio:
//   - semantic_search: hybrid vector+lexical search, fused via RRF
//   - find_references: exact-identifier lookup via the lexical index
//   - get_file_chunks: every indexed chunk of one file, in source order
//   - find_databases: every database this installation knows about
//   - index_status: whether the project is indexed and its build state
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
// The MCP server is started via the mcp command:
//
//	codesearch mcp
//
// It resolves the current directory's database with internal/locator,
// opens or builds the index, and then serves stdin/stdout until the
// client disconnects.
//
// # Tool: semantic_search
//
//	Request:
//	{
//	  "name": "semantic_search",
//	  "arguments": {"query": "retry logic for flaky network calls", "limit": 10}
//	}
//
//	Response:
//	{
//	  "results": [
//	    {"path": "internal/client/retry.go", "start": 12, "end": 40,
//	     "kind": "function", "signature": "func withRetry(...) error", "score": 0.83}
//	  ],
//	  "status": "ready"
//	}
//
// # Tool: index_status
//
//	Response:
//	{
//	  "indexed": true, "status": "ready",
//	  "total_chunks": 4821, "total_files": 312,
//	  "model": "local/minilm-l6-v2", "dimensions": 384,
//	  "max_chunk_id": 5390,
//	  "db_path": "/repo/.codesearch.db", "project_path": "/repo",
//	  "status_message": "indexed 312 files, 0 failed"
//	}
//
// # Background indexing
//
// If no database exists yet, NewServer still returns within
// milliseconds: Serve reports status "building", starts the first full
// build on a goroutine, and queries in the meantime return whatever
// chunks have already committed plus the current status. Once the
// build finishes, the File Watcher and git HEAD watcher take over,
// keeping the index current for the life of the connection.
//
// # Error Handling
//
// Errors are returned as *MCPError with a JSON-RPC-shaped code:
//
//	{"code": -32602, "message": "invalid arguments"}
//
// # Logging
//
// stdout is reserved for the MCP protocol; diagnostic output goes to
// stderr via the standard log package.
package mcp
