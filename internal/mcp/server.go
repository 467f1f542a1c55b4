package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/flupkede/codesearch/internal/embedder"
	"github.com/flupkede/codesearch/internal/indexer"
	"github.com/flupkede/codesearch/internal/project"
)

// ServerName and ServerVersion identify this server to MCP clients.
const (
	ServerName    = "codesearch-mcp"
	ServerVersion = "1.0.0"
)

// Status mirrors project.Status for callers that only import this
// package; index_status renders it verbatim.
type Status = project.Status

const (
	StatusNotIndexed = project.StatusNotIndexed
	StatusBuilding   = project.StatusBuilding
	StatusReady      = project.StatusReady
	StatusError      = project.StatusError
)

// Server wraps the MCP tool surface around one project.Session.
type Server struct {
	mcp     *server.MCPServer
	session *project.Session
}

// NewServer resolves startPath's database (per internal/locator's
// discovery precedence), opens the Indexer, and registers the MCP tool
// surface. When createIndex is true and no existing database is found,
// the server reports status "building" and indexes in the background
// rather than blocking startup — per spec §6's "must start within five
// seconds even when no index exists".
func NewServer(startPath string, createIndex bool) (*Server, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("mcp: initialize embedder: %w", err)
	}
	return newServer(startPath, createIndex, emb, indexer.Config{})
}

// newServer is NewServer's embedder-injectable core, split out so tests
// can supply a stub embedder and an isolated cache root instead of
// touching the real embedding provider and $HOME/.codesearch.
func newServer(startPath string, createIndex bool, emb embedder.Embedder, idxCfg indexer.Config) (*Server, error) {
	sess, err := project.Open(startPath, createIndex, emb, idxCfg)
	if err != nil {
		return nil, fmt.Errorf("mcp: open session: %w", err)
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		session: sess,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the background build/Watcher Suite (project.Session.Ensure)
// and blocks serving MCP requests over stdio until ctx is cancelled or
// stdio closes.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.session.Close() }()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.session.Ensure(watchCtx)

	return server.ServeStdio(s.mcp)
}

// registerTools registers the MCP tool surface (spec §6).
func (s *Server) registerTools() {
	s.mcp.AddTool(semanticSearchTool(), s.handleSemanticSearch)
	s.mcp.AddTool(findReferencesTool(), s.handleFindReferences)
	s.mcp.AddTool(getFileChunksTool(), s.handleGetFileChunks)
	s.mcp.AddTool(findDatabasesTool(), s.handleFindDatabases)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
}
