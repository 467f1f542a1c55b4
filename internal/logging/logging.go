// Package logging adds a rotating file sink alongside the teacher's
// stdlib log.SetOutput(os.Stderr) (stdout stays reserved for MCP stdio
// framing, exactly as cmd/gocontext/main.go does it). No logging
// library appears anywhere in the example pack, so this stays a small
// stdlib log.Logger wrapper (DESIGN.md) — one rotated file per calendar
// day under <db>/logs/, with a fixed retention window and file cap,
// matching original_source/src/constants.rs's LOG_DIR_NAME/
// LOG_FILE_NAME/DEFAULT_LOG_MAX_FILES/DEFAULT_LOG_RETENTION_DAYS. The
// rotate-on-boundary bookkeeping is grounded on hupe1980-vecgo's WAL
// rotation (engine/wal_rotation_test.go): the Logger keeps the day its
// open file belongs to in memory and names each file by that day, so a
// restart opens the current day's file; no on-disk marker is written.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DirName is the log subdirectory created under a project's database
	// directory (spec §6's on-disk layout), matching LOG_DIR_NAME.
	DirName = "logs"

	// FileBaseName is the base log file name; rotated files append
	// ".YYYY-MM-DD" (matching LOG_FILE_NAME).
	FileBaseName = "codesearch.log"

	// DefaultMaxFiles caps how many rotated files are kept regardless of
	// age (DEFAULT_LOG_MAX_FILES).
	DefaultMaxFiles = 5

	// DefaultRetentionDays is how many days of rotated logs survive a
	// cleanup sweep (DEFAULT_LOG_RETENTION_DAYS).
	DefaultRetentionDays = 5

	// DefaultCleanupIntervalHours is the default Config.CleanupIntervalHours,
	// a cadence for callers that invoke Rotate periodically. Logger runs
	// no background sweep: expired rotated files are removed when Open or
	// Rotate switches to a new day's file.
	DefaultCleanupIntervalHours = 24

	dateLayout = "2006-01-02"
)

// Config tunes Logger's rotation and retention policy.
type Config struct {
	MaxFiles              int
	RetentionDays         int
	CleanupIntervalHours  int
}

func (c Config) withDefaults() Config {
	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultMaxFiles
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = DefaultRetentionDays
	}
	if c.CleanupIntervalHours <= 0 {
		c.CleanupIntervalHours = DefaultCleanupIntervalHours
	}
	return c
}

// Logger writes to both os.Stderr (via the embedded *log.Logger, same
// as the teacher) and a daily-rotated file under dir/logs.
type Logger struct {
	*log.Logger

	mu      sync.Mutex
	dir     string
	cfg     Config
	file    *os.File
	current string // dateLayout-formatted day the open file belongs to
}

// Open creates (if needed) dbDir/logs and starts writing to today's
// rotated file, in addition to stderr. Call Close when done. Open starts
// no goroutine or ticker; day changes are picked up by calling Rotate.
func Open(dbDir string, cfg Config) (*Logger, error) {
	cfg = cfg.withDefaults()
	dir := filepath.Join(dbDir, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}

	l := &Logger{dir: dir, cfg: cfg}
	if err := l.rotateIfNeeded(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) pathFor(day string) string {
	return filepath.Join(l.dir, FileBaseName+"."+day)
}

// rotateIfNeeded opens (or reopens) today's log file when the day has
// changed since the last write, and writes to both it and stderr.
func (l *Logger) rotateIfNeeded() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().UTC().Format(dateLayout)
	if today == l.current && l.file != nil {
		return nil
	}

	f, err := os.OpenFile(l.pathFor(today), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open log file: %w", err)
	}

	prev := l.file
	l.file = f
	l.current = today
	l.Logger = log.New(io.MultiWriter(os.Stderr, f), "", log.LstdFlags)

	if prev != nil {
		_ = prev.Close()
	}
	return l.cleanupLocked()
}

// Rotate checks whether the calendar day has advanced and, if so,
// switches to a new file and sweeps expired ones. Callers running a
// long-lived process (MCP/HTTP surfaces) should call this periodically
// (e.g. from the same ticker cadence as CleanupIntervalHours).
func (l *Logger) Rotate() error { return l.rotateIfNeeded() }

// cleanupLocked removes rotated files older than RetentionDays, and
// additionally trims down to MaxFiles (oldest first) if more survive
// the age cut. Caller must hold l.mu.
func (l *Logger) cleanupLocked() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("logging: list log dir: %w", err)
	}

	type rotatedFile struct {
		name string
		day  time.Time
	}
	var files []rotatedFile
	prefix := FileBaseName + "."
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		day, err := time.Parse(dateLayout, strings.TrimPrefix(e.Name(), prefix))
		if err != nil {
			continue
		}
		files = append(files, rotatedFile{name: e.Name(), day: day})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].day.Before(files[j].day) })

	cutoff := time.Now().UTC().AddDate(0, 0, -l.cfg.RetentionDays)
	var kept []rotatedFile
	for _, f := range files {
		if f.day.Before(cutoff) && f.name != filepath.Base(l.pathFor(l.current)) {
			_ = os.Remove(filepath.Join(l.dir, f.name))
			continue
		}
		kept = append(kept, f)
	}

	if excess := len(kept) - l.cfg.MaxFiles; excess > 0 {
		for _, f := range kept[:excess] {
			if f.name == filepath.Base(l.pathFor(l.current)) {
				continue
			}
			_ = os.Remove(filepath.Join(l.dir, f.name))
		}
	}
	return nil
}

// Close releases the current log file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
