// Package kvstore implements the KV Environment (spec §4.J): a single
// transactional key/value environment, backed by go.etcd.io/bbolt,
// holding four sub-databases as named buckets — file-meta, chunks,
// postings, and meta — so that file deletion, posting updates, and
// payload writes commit atomically in one write transaction.
//
// Grounded on AlexC1991-VoxAI_IDE's BoltMetadataStore
// (bucket-per-concern bbolt pattern, see DESIGN.md), generalized here to
// the spec's four buckets plus automatic soft-ceiling growth tracking
// and a writer lock file.
package kvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for the KV Environment's four sub-databases.
var (
	BucketFileMeta = []byte("file-meta")
	BucketChunks   = []byte("chunks")
	BucketPostings = []byte("postings")
	BucketMeta     = []byte("meta")

	allBuckets = [][]byte{BucketFileMeta, BucketChunks, BucketPostings, BucketMeta}
)

const (
	// DefaultInitialMapSizeMB is the initial soft ceiling tracked for
	// reporting/resize purposes (spec §4.J: "Initial map size 1 GiB").
	DefaultInitialMapSizeMB = 1024
	// DefaultMaxMapSizeMB caps automatic growth (spec default 8 GiB).
	DefaultMaxMapSizeMB = 8192
	// MaxResizeRetries bounds the resize-and-retry loop per logical
	// write operation (spec §4.J: "up to 3 retries").
	MaxResizeRetries = 3

	writerLockFileName = ".writer.lock"
)

// ErrMapFull is returned when a write exhausts MaxResizeRetries.
var ErrMapFull = errors.New("kvstore: map full after maximum resize retries")

// ErrWriterLocked is returned when another process already holds the
// writer lock file (original_source/src/constants.rs WRITER_LOCK_FILE).
var ErrWriterLocked = errors.New("kvstore: another writer process holds the lock")

// Store is the KV Environment. One Store instance owns the single
// writer; readers may open concurrent read-only transactions freely.
type Store struct {
	db            *bolt.DB
	dir           string
	currentMapMB  int
	maxMapMB      int
	lockFile      *os.File
}

// Config configures soft ceilings for the automatic-growth contract.
type Config struct {
	InitialMapSizeMB int
	MaxMapSizeMB     int
}

// Open creates (if needed) and opens the KV environment rooted at dir
// (conventionally `<root>/.codesearch.db/kv/`), acquiring the writer
// lock file for the duration of the process.
func Open(dir string, cfg Config) (*Store, error) {
	if cfg.InitialMapSizeMB <= 0 {
		cfg.InitialMapSizeMB = DefaultInitialMapSizeMB
	}
	if cfg.MaxMapSizeMB <= 0 {
		cfg.MaxMapSizeMB = DefaultMaxMapSizeMB
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: create dir: %w", err)
	}

	lockFile, err := acquireWriterLock(dir)
	if err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dir, "env.db"), 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("kvstore: open: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		lockFile.Close()
		return nil, fmt.Errorf("kvstore: init buckets: %w", err)
	}

	s := &Store{
		db:           db,
		dir:          dir,
		currentMapMB: cfg.InitialMapSizeMB,
		maxMapMB:     cfg.MaxMapSizeMB,
		lockFile:     lockFile,
	}

	if err := s.applyMigrations(); err != nil {
		db.Close()
		lockFile.Close()
		return nil, err
	}

	return s, nil
}

func acquireWriterLock(dir string) (*os.File, error) {
	path := filepath.Join(dir, writerLockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrWriterLocked
		}
		return nil, fmt.Errorf("kvstore: acquire writer lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return f, nil
}

// Close releases the underlying bbolt database and the writer lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if s.lockFile != nil {
		s.lockFile.Close()
		os.Remove(filepath.Join(s.dir, writerLockFileName))
	}
	return err
}

// Update runs fn inside a single read-write transaction, implementing
// the spec's resize-and-retry loop. bbolt grows its own mmap
// automatically on demand and has no MDB_MAP_FULL-equivalent signal, so
// here only failures that look like resource exhaustion (disk space,
// bbolt's own resize error) are treated as the map-full condition: the
// tracked soft ceiling is doubled (capped at maxMapMB) and the write is
// retried up to MaxResizeRetries times before ErrMapFull is surfaced.
// Any other error from fn (ordinary application errors) is returned
// immediately without retry.
func (s *Store) Update(fn func(*bolt.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= MaxResizeRetries; attempt++ {
		lastErr = s.db.Update(fn)
		if lastErr == nil {
			return nil
		}
		if !isResourceExhausted(lastErr) {
			return lastErr
		}
		if attempt == MaxResizeRetries {
			break
		}
		if s.currentMapMB < s.maxMapMB {
			s.currentMapMB *= 2
			if s.currentMapMB > s.maxMapMB {
				s.currentMapMB = s.maxMapMB
			}
		}
	}
	return fmt.Errorf("%w: %v", ErrMapFull, lastErr)
}

func isResourceExhausted(err error) bool {
	return errors.Is(err, syscall.ENOSPC) || errors.Is(err, bolt.ErrDatabaseNotOpen)
}

// View runs fn inside a read-only snapshot transaction.
func (s *Store) View(fn func(*bolt.Tx) error) error {
	return s.db.View(fn)
}

// BloatRatio reports allocated page bytes over in-use bytes summed across
// every bucket, exposed for monitoring per spec §4.J's "bloat ratio" metric.
func (s *Store) BloatRatio() float64 {
	var inuse, alloc int
	_ = s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(_ []byte, b *bolt.Bucket) error {
			bs := b.Stats()
			inuse += bs.LeafInuse + bs.BranchInuse
			alloc += bs.LeafAlloc + bs.BranchAlloc
			return nil
		})
	})
	if inuse == 0 {
		return 0
	}
	return float64(alloc) / float64(inuse)
}

// CurrentMapSizeMB reports the tracked soft ceiling.
func (s *Store) CurrentMapSizeMB() int { return s.currentMapMB }

// Clear truncates every bucket — used by a full (`--force`) rebuild per
// spec §4.M.
func (s *Store) Clear() error {
	return s.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if err := tx.DeleteBucket(b); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
}
