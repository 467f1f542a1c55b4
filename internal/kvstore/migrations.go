package kvstore

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	bolt "go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the KV Environment's own on-disk layout
// version (bucket set and key encodings), distinct from the Schema
// metadata record's ModelID/Dimension fields that internal/payload
// owns. Bumped whenever a migration below is added.
const CurrentSchemaVersion = "1.0.0"

var schemaVersionKey = []byte("kv-schema-version")

// migration is one step in the KV Environment's upgrade path, applied
// when the on-disk version is older than Version. Up must be
// idempotent: Open already creates every bucket via
// CreateBucketIfNotExists before migrations run, so a migration only
// needs to handle changes beyond bucket creation (renames, re-keying,
// new counters).
type migration struct {
	Version *semver.Version
	Up      func(*Store) error
}

// migrations lists every KV Environment upgrade in order, mirroring
// the teacher's AllMigrations/ApplyMigrations shape adapted from SQL
// schema migrations to bbolt bucket migrations.
var migrations = []migration{
	{
		Version: semver.MustParse("1.0.0"),
		Up:      func(*Store) error { return nil }, // bucket creation alone covers 1.0.0
	},
}

// applyMigrations reads the stored schema version (defaulting to
// 0.0.0 for a freshly created environment) and runs every migration
// whose version is newer, recording CurrentSchemaVersion once done.
func (s *Store) applyMigrations() error {
	current, err := s.readSchemaVersion()
	if err != nil {
		return fmt.Errorf("kvstore: read schema version: %w", err)
	}

	for _, m := range migrations {
		if !current.LessThan(m.Version) {
			continue
		}
		if err := m.Up(s); err != nil {
			return fmt.Errorf("kvstore: apply migration %s: %w", m.Version, err)
		}
		current = m.Version
	}

	return s.writeSchemaVersion(current)
}

func (s *Store) readSchemaVersion() (*semver.Version, error) {
	var raw string
	err := s.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketMeta)
		if v := b.Get(schemaVersionKey); v != nil {
			raw = string(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return semver.MustParse("0.0.0"), nil
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("stored version %q: %w", raw, err)
	}
	return v, nil
}

func (s *Store) writeSchemaVersion(v *semver.Version) error {
	return s.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketMeta).Put(schemaVersionKey, []byte(v.String()))
	})
}
