// Package store provides the persistence adapters for timedeck's tracked
// city list.
//
// The default adapter is a thin bbolt wrapper: one database file per
// installation, holding small string blobs keyed by name. A Valkey adapter
// lets several installations share one server, and Memory serves tests and
// --storage memory.
//
// Buckets:
//
//	dashboard: the tracked-city blob and the availability probe key
//	_meta:     internal: schema version, created_at, installation_id
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketDashboard = []byte("dashboard")
	bucketInternal  = []byte("_meta")
)

// AllBuckets lists every user-facing bucket for stats and clear operations.
var AllBuckets = []string{"dashboard"}

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Meta describes the database itself.
type Meta struct {
	SchemaVersion  int       `json:"schema_version"`
	CreatedAt      time.Time `json:"created_at"`
	InstallationID string    `json:"installation_id"`
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and the _meta keys are set.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketDashboard, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(strconv.Itoa(schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		// Databases created before installation ids existed get one now.
		if meta.Get([]byte("installation_id")) == nil {
			if err := meta.Put([]byte("installation_id"), []byte(uuid.NewString())); err != nil {
				return err
			}
		}
		return nil
	})
}

// Meta returns the schema version, creation time and installation id.
func (s *Store) Meta() (Meta, error) {
	var m Meta
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInternal)
		m.SchemaVersion, _ = strconv.Atoi(string(b.Get([]byte("schema_version"))))
		m.CreatedAt, _ = time.Parse(time.RFC3339, string(b.Get([]byte("created_at"))))
		m.InstallationID = string(b.Get([]byte("installation_id")))
		return nil
	})
	return m, err
}

// InstallationID returns the id minted when the database was created.
func (s *Store) InstallationID() (string, error) {
	m, err := s.Meta()
	return m.InstallationID, err
}

// ─── Values ───────────────────────────────────────────────────────────────────

// Get returns the value stored under key in the dashboard bucket.
// Returns (value, true, nil) if found, ("", false, nil) if not found.
func (s *Store) Get(key string) (string, bool, error) {
	var (
		val   string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDashboard).Get([]byte(key))
		if v == nil {
			return nil
		}
		val, found = string(v), true
		return nil
	})
	return val, found, err
}

// Put stores value under key in the dashboard bucket.
func (s *Store) Put(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDashboard).Put([]byte(key), []byte(value))
	})
}

// Delete removes key from the dashboard bucket. Deleting a missing key is
// not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDashboard).Delete([]byte(key))
	})
}

// Keys returns every key in the dashboard bucket in byte order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDashboard).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all user-facing buckets.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}
