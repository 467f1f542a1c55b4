// Package payload implements the File-Meta Store (§4.D) and Payload
// Store (§4.I) as two sub-databases of the shared KV Environment
// (internal/kvstore). Chunk records are the authoritative source of
// truth; file records track per-file digests and the set of chunk ids
// currently produced from that file, used for change detection and
// cascading deletion.
//
// Grounded on the teacher's checkFileChanged (content-hash-first,
// mtime+size fallback) and chunk row mapping, generalized from SQL rows
// to gob-encoded bbolt values (AlexC1991-VoxAI_IDE's BoltMetadataStore
// JSON-per-key pattern, here using gob for a more compact binary form
// per spec §4.I).
package payload

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/flupkede/codesearch/internal/kvstore"
	"github.com/flupkede/codesearch/pkg/types"
)

// ErrNotFound is returned when a file or chunk record does not exist.
var ErrNotFound = errors.New("payload: not found")

// FileRecord is the File-Meta Store entry for one repository-relative
// path (spec §3 "File record").
type FileRecord struct {
	Path       string
	Digest     [32]byte
	ModTime    time.Time
	Size       int64
	ChunkIDs   []uint64
}

// Store wraps the KV Environment's file-meta and chunks buckets.
type Store struct {
	kv *kvstore.Store
}

func New(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

// GetFile returns the file record for path, or ErrNotFound.
func (s *Store) GetFile(path string) (*FileRecord, error) {
	var rec FileRecord
	err := s.kv.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(kvstore.BucketFileMeta).Get([]byte(path))
		if data == nil {
			return ErrNotFound
		}
		return gobDecode(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutFile writes a file record atomically in its own write transaction;
// it does not join a transaction of the caller's.
func (s *Store) PutFile(rec *FileRecord) error {
	data, err := gobEncode(rec)
	if err != nil {
		return err
	}
	return s.kv.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvstore.BucketFileMeta).Put([]byte(rec.Path), data)
	})
}

// DeleteFile removes a file record, returning the chunk ids it owned so
// the caller can cascade the deletion into the vector and lexical
// indexes (spec §4.D).
func (s *Store) DeleteFile(path string) ([]uint64, error) {
	var ids []uint64
	err := s.kv.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvstore.BucketFileMeta)
		data := b.Get([]byte(path))
		if data == nil {
			return nil // idempotent no-op per spec §4.N failure semantics
		}
		var rec FileRecord
		if err := gobDecode(data, &rec); err != nil {
			return err
		}
		ids = rec.ChunkIDs
		return b.Delete([]byte(path))
	})
	return ids, err
}

// AllFilePaths returns every path currently tracked by the file-meta
// store, used by branch-changed diffing (spec §4.M).
func (s *Store) AllFilePaths() ([]string, error) {
	var paths []string
	err := s.kv.View(func(tx *bolt.Tx) error {
		return tx.Bucket(kvstore.BucketFileMeta).ForEach(func(k, v []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})
	return paths, err
}

// PutChunks writes a batch of chunks and assigns them monotonic ids
// from the schema metadata's chunk-id counter, all within one write
// transaction (spec §4.J).
func (s *Store) PutChunks(chunks []types.Chunk) ([]uint64, error) {
	ids := make([]uint64, len(chunks))
	err := s.kv.Update(func(tx *bolt.Tx) error {
		metaB := tx.Bucket(kvstore.BucketMeta)
		chunksB := tx.Bucket(kvstore.BucketChunks)

		counter := readCounter(metaB)
		for i := range chunks {
			counter++
			chunks[i].ID = counter
			ids[i] = counter
			data, err := gobEncode(&chunks[i])
			if err != nil {
				return err
			}
			if err := chunksB.Put(chunkKey(counter), data); err != nil {
				return err
			}
		}
		return writeCounter(metaB, counter)
	})
	return ids, err
}

// GetChunk returns a chunk by id, or ErrNotFound.
func (s *Store) GetChunk(id uint64) (*types.Chunk, error) {
	var c types.Chunk
	err := s.kv.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(kvstore.BucketChunks).Get(chunkKey(id))
		if data == nil {
			return ErrNotFound
		}
		return gobDecode(data, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteChunks removes a batch of chunk ids from the payload store.
func (s *Store) DeleteChunks(ids []uint64) error {
	return s.kv.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvstore.BucketChunks)
		for _, id := range ids {
			if err := b.Delete(chunkKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// AllChunks iterates every chunk currently committed to the payload
// store, used by the Index Manager to replay vector-index inserts on
// startup (internal/vectorindex.Index never persists its HNSW graph).
func (s *Store) AllChunks(fn func(types.Chunk) error) error {
	return s.kv.View(func(tx *bolt.Tx) error {
		return tx.Bucket(kvstore.BucketChunks).ForEach(func(k, v []byte) error {
			var c types.Chunk
			if err := gobDecode(v, &c); err != nil {
				return err
			}
			return fn(c)
		})
	})
}

// CountChunks reports the number of chunks currently committed —
// the "visible chunks only" interpretation of index_status's chunk
// count during a placeholder/building state (see DESIGN.md Open
// Question decisions).
func (s *Store) CountChunks() (int, error) {
	n := 0
	err := s.kv.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(kvstore.BucketChunks).Stats().KeyN
		return nil
	})
	return n, err
}

// CountFiles reports the number of files currently tracked by the
// file-meta store, for index_status's total_files field.
func (s *Store) CountFiles() (int, error) {
	n := 0
	err := s.kv.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(kvstore.BucketFileMeta).Stats().KeyN
		return nil
	})
	return n, err
}

// MaxChunkID reports the chunk-id counter's current value, for
// index_status's max_chunk_id field (not the same as CountChunks once
// chunks have been deleted, since the counter never reuses ids).
func (s *Store) MaxChunkID() (uint64, error) {
	var max uint64
	err := s.kv.View(func(tx *bolt.Tx) error {
		max = readCounter(tx.Bucket(kvstore.BucketMeta))
		return nil
	})
	return max, err
}

func chunkKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func readCounter(b *bolt.Bucket) uint64 {
	data := b.Get([]byte("chunk-id-counter"))
	if data == nil {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func writeCounter(b *bolt.Bucket, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return b.Put([]byte("chunk-id-counter"), buf)
}

func gobEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("payload: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("payload: decode: %w", err)
	}
	return nil
}
