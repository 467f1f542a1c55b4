// Package project holds the one piece of lifecycle every long-running
// codesearch surface needs in common: resolve a project's database,
// open its Indexer and Query Engine, build the index in the background
// when it doesn't exist yet, and keep it current with the Watcher
// Suite for as long as the process runs. internal/mcp's stdio server
// and internal/httpapi's HTTP server are both thin transports wrapped
// around one Session.
package project

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/flupkede/codesearch/internal/embedcache"
	"github.com/flupkede/codesearch/internal/embedder"
	"github.com/flupkede/codesearch/internal/fuser"
	"github.com/flupkede/codesearch/internal/indexer"
	"github.com/flupkede/codesearch/internal/locator"
	"github.com/flupkede/codesearch/internal/searcher"
	"github.com/flupkede/codesearch/internal/watcher"
)

// Status is index_status's (and /status's) reported build state (spec §6).
type Status string

const (
	StatusNotIndexed Status = "not_indexed"
	StatusBuilding   Status = "building"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// Session owns one project's Indexer and Query Engine, plus the
// background build and Watcher Suite that keep them current.
type Session struct {
	root        string
	dbPath      string
	idx         *indexer.Indexer
	srch        *searcher.Searcher
	createIndex bool

	mu        sync.RWMutex
	status    Status
	statusMsg string
	errMsg    string
}

// Open resolves startPath's database (per internal/locator's discovery
// precedence) and opens the Indexer and a Query Engine sharing its
// stores. When createIndex is true and no existing database is found,
// the Session starts in StatusNotIndexed rather than blocking here on
// a full build — callers start the build by calling Ensure.
func Open(startPath string, createIndex bool, emb embedder.Embedder, idxCfg indexer.Config) (*Session, error) {
	dbPath, root, found, err := locator.Resolve(startPath)
	if err != nil {
		return nil, fmt.Errorf("project: resolve database: %w", err)
	}
	return openAt(root, dbPath, found, createIndex, emb, idxCfg)
}

// OpenAt opens (creating if needed) a Session against an explicit
// (root, dbPath) pair, bypassing internal/locator.Resolve's discovery
// precedence — used by the CLI's `index --global`/`--add` flags, which
// target the global registry location directly rather than whatever
// Resolve would have picked.
func OpenAt(root, dbPath string, emb embedder.Embedder, idxCfg indexer.Config) (*Session, error) {
	_, statErr := os.Stat(filepath.Join(dbPath, "kv"))
	found := statErr == nil
	return openAt(root, dbPath, found, true, emb, idxCfg)
}

func openAt(root, dbPath string, found, createIndex bool, emb embedder.Embedder, idxCfg indexer.Config) (*Session, error) {
	idx, err := indexer.Open(root, dbPath, emb, idxCfg)
	if err != nil {
		return nil, fmt.Errorf("project: open index: %w", err)
	}

	qc := embedcache.NewQueryCache(embedcache.DefaultQueryCacheMaxMemoryMB, emb.Dimension())
	srch := idx.Searcher(qc, fuser.NoopReranker{})

	s := &Session{
		root:        root,
		dbPath:      dbPath,
		idx:         idx,
		srch:        srch,
		createIndex: createIndex,
		status:      StatusReady,
	}
	if !found {
		s.status = StatusNotIndexed
	}
	return s, nil
}

// Root returns the resolved project root.
func (s *Session) Root() string { return s.root }

// DBPath returns the resolved database directory.
func (s *Session) DBPath() string { return s.dbPath }

// Indexer returns the Session's Index Manager.
func (s *Session) Indexer() *indexer.Indexer { return s.idx }

// Searcher returns the Session's Query Engine.
func (s *Session) Searcher() *searcher.Searcher { return s.srch }

// Close releases the underlying Indexer's stores.
func (s *Session) Close() error { return s.idx.Close() }

// Ensure starts whatever background work is needed to bring the
// project's index up and keep it current for the life of ctx: a full
// build when no database was found (only if createIndex was set at
// Open time), or the Watcher Suite directly when one already exists.
// It returns immediately; the work runs on goroutines until ctx is
// cancelled.
func (s *Session) Ensure(ctx context.Context) {
	s.mu.RLock()
	needsBuild := s.status == StatusNotIndexed
	s.mu.RUnlock()

	if needsBuild {
		if s.createIndex {
			go s.buildInBackground(ctx)
		}
		return
	}
	go s.runWatchers(ctx)
}

// buildInBackground runs the initial full index, then starts the
// Watcher Suite once it completes, matching spec §6's "reports
// status:building and begins indexing in the background" contract.
// Queries issued while building return best-effort results from
// whatever chunks are already committed (spec's IndexBuilding note).
func (s *Session) buildInBackground(ctx context.Context) {
	s.setStatus(StatusBuilding, "initial index build in progress")

	stats, err := s.idx.Build(ctx, indexer.Config{})
	if err != nil {
		s.setStatus(StatusError, "")
		s.setError(err)
		log.Printf("codesearch: initial build failed: %v", err)
		return
	}

	s.setStatus(StatusReady, fmt.Sprintf("indexed %d files, %d failed", stats.FilesIndexed, stats.FilesFailed))
	s.runWatchers(ctx)
}

// runWatchers drives the File Watcher and git HEAD watcher for the
// lifetime of ctx, translating each coalesced event into a call on the
// Index Manager (spec §4.N: the Watcher Suite's only job is feeding the
// Index Manager's single-file and branch-change pipelines).
func (s *Session) runWatchers(ctx context.Context) {
	fw := watcher.NewFileWatcher(s.root, watcher.DefaultDebounce, watcher.DefaultScanInterval)
	go func() {
		if err := fw.Run(ctx); err != nil {
			log.Printf("codesearch: file watcher stopped: %v", err)
		}
	}()

	hw := watcher.NewHeadWatcher(s.root, watcher.DefaultHeadPollInterval)
	headChanges := make(chan watcher.HeadChange, 1)
	go hw.Run(ctx, headChanges)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events():
			if !ok {
				return
			}
			s.applyFileEvent(ctx, ev)
		case <-headChanges:
			// A branch switch can add, remove, or change an arbitrary
			// number of files at once; re-running Build's walk-and-diff
			// against the payload store picks up every difference in one
			// pass rather than trying to enumerate the git diff ourselves.
			if _, err := s.idx.Build(ctx, indexer.Config{}); err != nil {
				log.Printf("codesearch: rebuild after branch switch failed: %v", err)
			}
		}
	}
}

func (s *Session) applyFileEvent(ctx context.Context, ev watcher.Event) {
	var err error
	switch ev.Kind {
	case watcher.Modified:
		err = s.idx.IndexFile(ctx, ev.Path)
	case watcher.Deleted:
		err = s.idx.DeleteFile(ev.Path)
	}
	if err != nil {
		log.Printf("codesearch: refresh %s: %v", ev.Path, err)
	}
}

func (s *Session) setStatus(status Status, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.statusMsg = msg
	if status != StatusError {
		s.errMsg = ""
	}
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errMsg = err.Error()
	}
}

// SetStatus lets a caller-driven build (e.g. the CLI's synchronous
// `index` command) report its own status transitions through the same
// state index_status/status reads, instead of only Ensure's background
// path ever calling setStatus.
func (s *Session) SetStatus(status Status, msg string) { s.setStatus(status, msg) }

// SnapshotStatus reports the Session's current status, status message,
// and error message (if any), for index_status and GET /status.
func (s *Session) SnapshotStatus() (status Status, msg, errMsg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.statusMsg, s.errMsg
}

// StatusSnapshot renders the full index_status / GET-/status JSON shape
// (spec §6), shared by internal/mcp's index_status tool and
// internal/httpapi's /status handler so the two surfaces never drift.
func (s *Session) StatusSnapshot() (map[string]interface{}, error) {
	status, statusMsg, errMsg := s.SnapshotStatus()

	totalChunks, err := s.idx.CountChunks()
	if err != nil {
		return nil, fmt.Errorf("project: read chunk count: %w", err)
	}
	totalFiles, err := s.idx.CountFiles()
	if err != nil {
		return nil, fmt.Errorf("project: read file count: %w", err)
	}
	maxChunkID, err := s.idx.MaxChunkID()
	if err != nil {
		return nil, fmt.Errorf("project: read chunk counter: %w", err)
	}

	snapshot := map[string]interface{}{
		"indexed":        status == StatusReady,
		"status":         string(status),
		"total_chunks":   totalChunks,
		"total_files":    totalFiles,
		"model":          s.idx.ModelID(),
		"dimensions":     s.idx.Dimension(),
		"max_chunk_id":   maxChunkID,
		"db_path":        s.dbPath,
		"project_path":   s.root,
		"status_message": statusMsg,
	}
	if errMsg != "" {
		snapshot["error_message"] = errMsg
	}
	return snapshot, nil
}
