// Package kvstore provides a packed key-value export for converted
// point clouds: one SQLite file holding one serialized record per key
// plus a reserved metadata record. SQLite permits a single writer
// transaction at a time, so every put runs under one writer lock and is
// independently durable on commit.
package kvstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/pcdset/internal/geom"
)

// MetaKey is the reserved key holding the store metadata record.
const MetaKey = "__meta__"

// ErrCapacity is returned by Put when a record would push the store
// past the capacity declared at open time.
var ErrCapacity = errors.New("kvstore: capacity exceeded")

// Writer is a write-only packed store. Safe for concurrent use; puts
// are serialized by an internal writer lock.
type Writer struct {
	mu       sync.Mutex
	db       *sql.DB
	path     string
	capacity int64
	used     int64
	closed   bool
}

// Open creates a packed store at path with a fixed capacity budget in
// bytes. An existing store is refused unless overwrite is set, in which
// case it is removed first. Parent directories are created.
func Open(path string, capacity int64, overwrite bool) (*Writer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("kvstore: capacity must be positive, got %d", capacity)
	}
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return nil, fmt.Errorf("kvstore: %s already exists (use overwrite)", path)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("kvstore: remove %s: %w", path+suffix, err)
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: create parent dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		CREATE TABLE IF NOT EXISTS records (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: init schema: %w", err)
	}
	return &Writer{db: db, path: path, capacity: capacity}, nil
}

// Put serializes the cloud and stores it under key in a single write
// transaction. Returns ErrCapacity when the budget would be exceeded.
func (w *Writer) Put(key string, cloud geom.Cloud) error {
	record := EncodeCloud(cloud)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("kvstore: put %q on closed store", key)
	}
	if w.used+int64(len(record)) > w.capacity {
		return fmt.Errorf("%w: %d used + %d record > %d budget", ErrCapacity, w.used, len(record), w.capacity)
	}
	if _, err := w.db.Exec(`INSERT OR REPLACE INTO records (key, value) VALUES (?, ?)`, key, record); err != nil {
		return fmt.Errorf("kvstore: put %q: %w", key, err)
	}
	w.used += int64(len(record))
	return nil
}

// Close writes meta under the reserved metadata key, checkpoints the
// WAL to durable storage, and releases the store. Close failures mean
// the export may be incomplete and must be treated as fatal.
func (w *Writer) Close(meta map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	data, err := json.Marshal(meta)
	if err != nil {
		w.db.Close()
		return fmt.Errorf("kvstore: encode metadata: %w", err)
	}
	if _, err := w.db.Exec(`INSERT OR REPLACE INTO records (key, value) VALUES (?, ?)`, MetaKey, data); err != nil {
		w.db.Close()
		return fmt.Errorf("kvstore: write metadata: %w", err)
	}
	if _, err := w.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		w.db.Close()
		return fmt.Errorf("kvstore: checkpoint: %w", err)
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("kvstore: close: %w", err)
	}
	return nil
}

// Reader is a read-only view over a packed store, used by the
// structural validator.
type Reader struct {
	db *sql.DB
}

// OpenRead opens an existing packed store for reading.
func OpenRead(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("kvstore: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

// Get returns the cloud stored under key.
func (r *Reader) Get(key string) (geom.Cloud, error) {
	var record []byte
	err := r.db.QueryRow(`SELECT value FROM records WHERE key = ?`, key).Scan(&record)
	if err == sql.ErrNoRows {
		return geom.Cloud{}, fmt.Errorf("kvstore: key %q not found", key)
	}
	if err != nil {
		return geom.Cloud{}, fmt.Errorf("kvstore: get %q: %w", key, err)
	}
	return DecodeCloud(record)
}

// Has reports whether key exists in the store.
func (r *Reader) Has(key string) (bool, error) {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM records WHERE key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kvstore: has %q: %w", key, err)
	}
	return true, nil
}

// Meta returns the metadata record written at close time.
func (r *Reader) Meta() (map[string]any, error) {
	var record []byte
	err := r.db.QueryRow(`SELECT value FROM records WHERE key = ?`, MetaKey).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("kvstore: store has no metadata record")
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: read metadata: %w", err)
	}
	meta := make(map[string]any)
	if err := json.Unmarshal(record, &meta); err != nil {
		return nil, fmt.Errorf("kvstore: decode metadata: %w", err)
	}
	return meta, nil
}

// Close releases the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
