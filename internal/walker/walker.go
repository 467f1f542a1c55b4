// Package walker implements the File Walker (spec §4.B): it enumerates a
// project tree and produces a sequence of (path, language) pairs, honoring
// layered ignore rules (.gitignore, .codesearchignore, and a built-in deny
// list) and a binary-content sniff so generated and non-text files never
// reach the chunker.
//
// Grounded on internal/indexer.Indexer.discoverFiles's filepath.Walk /
// filepath.SkipDir pattern, generalized from a Go-only, vendor-skipping
// walk to the full layered-ignore, multi-language walk spec §4.B
// describes. The three built-in deny lists are ported from
// original_source/src/constants.rs (ALWAYS_SKIP_EXTENSIONS,
// ALWAYS_SKIP_FILENAME_SUFFIXES, ALWAYS_EXCLUDED); no .gitignore-parsing
// library appears anywhere in the example pack, so ignore-file matching is
// implemented directly on path/filepath (DESIGN.md).
package walker

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File is one enumerated source file: its absolute path, its path
// relative to the walked root, and the language tag selected for it.
type File struct {
	Path     string
	RelPath  string
	Language string
}

// Options tunes a Walk beyond the built-in deny lists.
type Options struct {
	// IncludeHidden indexes dotfiles and dot-directories not otherwise
	// excluded by the built-in deny list. Off by default, matching
	// discoverFiles's "skip hidden directories" behavior.
	IncludeHidden bool
}

// Walk enumerates root, returning every file that survives the layered
// ignore rules and the binary sniff, each tagged with its selected
// language (spec §4.B).
func Walk(root string, opts Options) ([]File, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	ignoreStacks := map[string][]*ignoreSet{root: loadDirIgnores(root, nil)}
	var files []File

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if alwaysExcludedDirs[name] {
				return filepath.SkipDir
			}
			if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			parentDir := filepath.Dir(path)
			parentStack := ignoreStacks[parentDir]
			if ignoreMatches(parentStack, path, true) {
				return filepath.SkipDir
			}
			ignoreStacks[path] = loadDirIgnores(path, parentStack)
			return nil
		}

		if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
			return nil
		}
		parentDir := filepath.Dir(path)
		stack := ignoreStacks[parentDir]
		if ignoreMatches(stack, path, false) {
			return nil
		}
		if ext := extOf(name); ext != "" && alwaysSkipExtensions[ext] {
			return nil
		}
		if hasSkippedSuffix(name) {
			return nil
		}

		isBinary, readErr := sniffBinary(path)
		if readErr != nil {
			return nil // unreadable file, skip rather than fail the whole walk
		}
		if isBinary {
			return nil
		}

		files = append(files, File{
			Path:     path,
			RelPath:  rel,
			Language: LanguageForPath(rel),
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return files, nil
}

// loadDirIgnores appends dir's own .gitignore/.codesearchignore (if any)
// onto the ignore sets inherited from its parent, so deeper directories
// see the union of every ancestor's rules.
func loadDirIgnores(dir string, parent []*ignoreSet) []*ignoreSet {
	stack := append([]*ignoreSet(nil), parent...)
	if s := loadIgnoreFile(dir, ".gitignore"); s != nil {
		stack = append(stack, s)
	}
	if s := loadIgnoreFile(dir, CodesearchIgnoreFileName); s != nil {
		stack = append(stack, s)
	}
	return stack
}

// ignoreMatches checks absPath against every ignore set in stack, each
// evaluated relative to the directory that owns it (git semantics: a
// pattern in a nested .gitignore only applies from that directory down).
func ignoreMatches(stack []*ignoreSet, absPath string, isDir bool) bool {
	for _, s := range stack {
		rel, err := filepath.Rel(s.dir, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if s.matches(filepath.ToSlash(rel), isDir) {
			return true
		}
	}
	return false
}

func sniffBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, binarySniffSize)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return looksBinary(buf[:n]), nil
}
