// Package httpapi implements the HTTP surface (spec §6): GET /health,
// GET /status, and POST /search over a plain net/http.ServeMux, for
// callers that would rather poll a local port than speak MCP's stdio
// protocol.
//
// No HTTP framework appears anywhere in the example pack (checked
// every go.mod); this mirrors AlexC1991-VoxAI_IDE's
// internal/api/server.go instead — a bare ServeMux, one Handle* method
// per route, a shared writeJSON helper.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/flupkede/codesearch/internal/project"
	"github.com/flupkede/codesearch/internal/searcher"
)

// DefaultPort is the HTTP surface's default listen port (spec §6).
const DefaultPort = 4444

// Server wraps the HTTP tool surface around one project.Session.
type Server struct {
	session *project.Session
	mux     *http.ServeMux
}

// NewServer builds an HTTP surface over an already-open Session. The
// caller owns the Session's lifetime (Ensure/Close); Server only adds
// routes and serves them.
func NewServer(session *project.Session) *Server {
	s := &Server{session: session, mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/search", s.handleSearch)
	return s
}

// Handler returns the Server's routed http.Handler, for tests or a
// caller that wants to wrap it (middleware, TLS, etc.) itself.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve starts the Session's background build/Watcher Suite
// (project.Session.Ensure) and blocks serving HTTP on addr until ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	defer func() { _ = s.session.Close() }()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.session.Ensure(watchCtx)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	log.Printf("codesearch: http surface listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"service":  "codesearch",
		"time_utc": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snapshot, err := s.session.StatusSnapshot()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = searcher.DefaultLimit
	}

	status, _, _ := s.session.SnapshotStatus()

	resp, err := s.session.Searcher().Search(r.Context(), searcher.SearchRequest{
		Query:    req.Query,
		Limit:    limit,
		Mode:     searcher.ModeHybrid,
		UseCache: true,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("search failed: %v", err), http.StatusInternalServerError)
		return
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, res := range resp.Results {
		entry := map[string]interface{}{
			"path":  res.File.Path,
			"start": res.File.StartLine,
			"end":   res.File.EndLine,
			"kind":  string(res.Kind),
			"score": res.RelevanceScore,
		}
		if res.Signature != "" {
			entry["signature"] = res.Signature
		}
		entry["content"] = res.Content
		results = append(results, entry)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":     results,
		"duration_ms": resp.Duration.Milliseconds(),
		"status":      string(status),
	})
}
