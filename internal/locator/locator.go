// Package locator implements the Repo Locator (spec §4.A): finding the
// repository root that owns a given path's index, and resolving where
// that index's database directory lives on disk.
//
// Grounded on original_source/src/db_discovery/mod.rs's find_git_root
// call sites and find_best_database/find_databases priority order
// (current dir -> child dir -> up to N parents -> global registry),
// reimplemented in Go with the same discovery precedence (DESIGN.md).
package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DBDirName is the local per-repo database directory name (spec §4.A).
const DBDirName = ".codesearch.db"

// GlobalDBsDirName is the global registry directory under the user's
// home, used when a path has no git root of its own.
const GlobalDBsDirName = ".codesearch.dbs"

// MaxParentWalk bounds the non-git-tree parent walk (spec §4.A: "up to
// ten parent directories").
const MaxParentWalk = 10

// ErrAmbiguousRepo is returned when a candidate repo root's immediate
// children contain more than one nested repo root, matching the
// taxonomic AmbiguousRepo error kind (spec §6).
var ErrAmbiguousRepo = errors.New("locator: ambiguous repository root")

// FindGitRoot walks upward from startPath looking for a directory
// containing a .git entry (directory, for a normal clone, or file, for
// a worktree pointer). It returns the containing directory. Before
// returning, it scans that root's immediate children for additional
// .git entries and returns ErrAmbiguousRepo if more than one exists,
// since Index Manager has no rule for choosing among nested repos. If
// no root is found walking up to the filesystem root, it returns
// startPath unchanged (non-VCS fallback).
func FindGitRoot(startPath string) (string, error) {
	abs, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("locator: resolve %s: %w", startPath, err)
	}
	info, err := os.Stat(abs)
	if err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	dir := abs
	for {
		if hasGitEntry(dir) {
			if err := checkAmbiguous(dir); err != nil {
				return "", err
			}
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return abs, nil
}

func hasGitEntry(dir string) bool {
	_, err := os.Lstat(filepath.Join(dir, ".git"))
	return err == nil
}

// checkAmbiguous scans root's immediate children for nested repo
// roots; more than one is an error since there is no principled way to
// pick between sibling repositories nested under a monorepo-style root.
func checkAmbiguous(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil // unreadable root is not an ambiguity concern here
	}
	nested := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if hasGitEntry(filepath.Join(root, e.Name())) {
			nested++
		}
	}
	if nested > 1 {
		return fmt.Errorf("%w: %s has %d nested repository roots", ErrAmbiguousRepo, root, nested)
	}
	return nil
}

// projectSlugNamespace scopes the deterministic project-slug UUIDs
// below so they never collide with UUIDs generated for an unrelated
// purpose from the same name.
var projectSlugNamespace = uuid.MustParse("2c1c4b9e-6b2e-4f7e-9f0a-6a1f8f6a9b10")

// ProjectSlug derives a stable, filesystem-safe identifier for a
// project root, used to namespace the global database registry
// (spec §4.A: "~/.codesearch.dbs/<project-slug>/"). The UUID half is
// a version-5 (SHA-1, namespaced) UUID of the absolute path, so the
// same project root always resolves to the same slug without storing
// a registry file.
func ProjectSlug(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	base := filepath.Base(abs)
	id := uuid.NewSHA1(projectSlugNamespace, []byte(abs))
	return sanitizeSlug(base) + "-" + id.String()
}

func sanitizeSlug(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := b.String()
	if out == "" {
		return "project"
	}
	return out
}

// LocalDBPath returns the local per-repo database directory for root.
func LocalDBPath(root string) string {
	return filepath.Join(root, DBDirName)
}

// GlobalDBPath returns the global database directory for root under
// the user's home directory.
func GlobalDBPath(root string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locator: home dir: %w", err)
	}
	return filepath.Join(home, GlobalDBsDirName, ProjectSlug(root)), nil
}

// Resolve finds the database directory that should back startPath,
// per spec §4.A's discovery precedence: the local path at the git
// root (or startPath itself, if no git root exists) first, then a walk
// of up to MaxParentWalk parent directories looking for an existing
// local database (for non-git trees), then the global location.
// Resolve never creates anything; it only decides a path. The bool
// result reports whether an existing database directory was found
// (false means the caller should create one at the returned path).
func Resolve(startPath string) (dbPath string, projectRoot string, found bool, err error) {
	root, err := FindGitRoot(startPath)
	if err != nil {
		return "", "", false, err
	}

	local := LocalDBPath(root)
	if isValidDB(local) {
		return local, root, true, nil
	}

	dir := root
	for i := 0; i < MaxParentWalk; i++ {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
		candidate := LocalDBPath(dir)
		if isValidDB(candidate) {
			return candidate, dir, true, nil
		}
	}

	global, err := GlobalDBPath(root)
	if err != nil {
		return local, root, false, nil
	}
	if isValidDB(global) {
		return global, root, true, nil
	}

	return local, root, false, nil
}

// DatabaseInfo is one discovered database directory and its scope, for
// the find_databases MCP/CLI surface (spec §6).
type DatabaseInfo struct {
	Path        string
	ProjectRoot string
	Scope       string // "local" or "global"
}

// FindDatabases enumerates every database directory this installation
// knows about: the local database at startPath's git root (if it
// exists), and every project registered under the global registry
// directory (~/.codesearch.dbs/<project-slug>/), mirroring
// original_source/src/db_discovery/mod.rs's find_databases.
func FindDatabases(startPath string) ([]DatabaseInfo, error) {
	var dbs []DatabaseInfo

	if root, err := FindGitRoot(startPath); err == nil {
		local := LocalDBPath(root)
		if isValidDB(local) {
			dbs = append(dbs, DatabaseInfo{Path: local, ProjectRoot: root, Scope: "local"})
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return dbs, nil
	}
	globalRoot := filepath.Join(home, GlobalDBsDirName)
	entries, err := os.ReadDir(globalRoot)
	if err != nil {
		return dbs, nil // no global registry yet is not an error
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(globalRoot, e.Name())
		if isValidDB(candidate) {
			dbs = append(dbs, DatabaseInfo{Path: candidate, Scope: "global"})
		}
	}
	return dbs, nil
}

// isValidDB reports whether dir looks like a complete codesearch
// database, per spec §6's on-disk layout: `kv/` (transactional
// environment) and `vectors/` (ANN index files) must both exist.
func isValidDB(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	if info, err := os.Stat(filepath.Join(dir, "kv")); err != nil || !info.IsDir() {
		return false
	}
	if info, err := os.Stat(filepath.Join(dir, "vectors")); err != nil || !info.IsDir() {
		return false
	}
	return true
}
