// Package store keeps encoded bytecode units in a content-addressed SQLite
// database. A unit's key is the SHA-256 of its canonical wire encoding, so
// storing the same unit twice is a no-op.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/wire"
)

var (
	// ErrNotFound indicates no stored unit matches the hash or prefix.
	ErrNotFound = errors.New("unit not found")
	// ErrAmbiguous indicates a hash prefix matches more than one unit.
	ErrAmbiguous = errors.New("ambiguous unit hash prefix")
)

// Entry describes one stored unit.
type Entry struct {
	Hash      string
	Name      string
	Size      int
	CreatedAt time.Time
}

// Store is a unit database. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	log  commonlog.Logger
}

// Open opens or creates the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS units (
		hash TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path, log: commonlog.GetLogger("garnet.store")}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Hash returns the content hash of encoded unit data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put encodes and stores u, returning its hash.
func (s *Store) Put(u *vm.Unit) (string, error) {
	data, err := wire.MarshalUnit(u)
	if err != nil {
		return "", fmt.Errorf("encoding unit: %w", err)
	}
	hash := Hash(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO units (hash, name, size, data, created_at) VALUES (?, ?, ?, ?, ?)",
		hash, u.Name, len(data), data, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("saving unit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.log.Debugf("unit %s already stored as %s", u.Name, hash[:12])
	} else {
		s.log.Infof("stored unit %s as %s (%d bytes)", u.Name, hash[:12], len(data))
	}
	return hash, nil
}

// Get loads the unit with the exact hash.
func (s *Store) Get(hash string) (*vm.Unit, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM units WHERE hash = ?", hash).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying unit: %w", err)
	}
	if Hash(data) != hash {
		return nil, fmt.Errorf("unit %s is corrupt: content hash mismatch", hash)
	}
	return wire.UnmarshalUnit(data)
}

// Resolve expands a hash prefix to the single full hash it names.
func (s *Store) Resolve(prefix string) (string, error) {
	prefix = strings.ToLower(prefix)
	if prefix == "" || strings.Trim(prefix, "0123456789abcdef") != "" {
		return "", ErrNotFound
	}
	rows, err := s.db.Query("SELECT hash FROM units WHERE hash LIKE ? ORDER BY hash LIMIT 2", prefix+"%")
	if err != nil {
		return "", fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return "", fmt.Errorf("scanning unit: %w", err)
		}
		matches = append(matches, h)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("querying units: %w", err)
	}
	switch len(matches) {
	case 0:
		return "", ErrNotFound
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
}

// List returns every stored unit, oldest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT hash, name, size, created_at FROM units ORDER BY created_at, hash")
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.Hash, &e.Name, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
