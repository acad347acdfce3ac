package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a persistent Store backed by a single-table SQLite database.
// Writes are idempotent overwrites keyed by cache key, so concurrent scans
// for the same domain may race on Set without corruption.
type SQLite struct {
	conn *sql.DB
}

// NewSQLite opens (creating if needed) the cache database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		stored_at INTEGER NOT NULL
	);`
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &SQLite{conn: conn}, nil
}

func (s *SQLite) Get(key string) ([]byte, time.Time, bool) {
	var (
		value    []byte
		storedAt int64
	)
	err := s.conn.QueryRow("SELECT value, stored_at FROM cache WHERE key = ?", key).Scan(&value, &storedAt)
	if err != nil {
		// Misses and read errors look the same to the caller: fetch fresh.
		return nil, time.Time{}, false
	}
	return value, time.Unix(storedAt, 0), true
}

func (s *SQLite) Set(key string, value []byte) error {
	_, err := s.conn.Exec(`
		INSERT INTO cache (key, value, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, stored_at = excluded.stored_at`,
		key, value, time.Now().Unix())
	return err
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
