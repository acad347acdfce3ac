// Package history persists completed scan summaries for the dashboard
// API.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ScanRecord represents one completed scan stored in the database
type ScanRecord struct {
	ID           string    `json:"id"`
	Domain       string    `json:"domain"`
	Resolver     string    `json:"resolver"`
	TotalRecords int       `json:"totalRecords"`
	Wildcard     bool      `json:"wildcard"`
	ElapsedMs    int64     `json:"elapsedMs"`
	StartedAt    time.Time `json:"startedAt"`
}

// Store wraps the SQLite scan-history table
type Store struct {
	conn *sql.DB
}

// New opens the history database at dbPath, creating it if needed.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		resolver TEXT NOT NULL,
		total_records INTEGER NOT NULL,
		wildcard INTEGER DEFAULT 0,
		elapsed_ms INTEGER NOT NULL,
		started_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_domain ON scans(domain);
	CREATE INDEX IF NOT EXISTS idx_scans_started_at ON scans(started_at DESC);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Insert stores one completed scan and returns its generated ID.
func (s *Store) Insert(rec ScanRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	wildcard := 0
	if rec.Wildcard {
		wildcard = 1
	}
	_, err := s.conn.Exec(`
		INSERT INTO scans (id, domain, resolver, total_records, wildcard, elapsed_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Domain, rec.Resolver, rec.TotalRecords, wildcard, rec.ElapsedMs, rec.StartedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert scan record: %w", err)
	}
	return rec.ID, nil
}

// Recent returns the most recent scans, newest first.
func (s *Store) Recent(limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(`
		SELECT id, domain, resolver, total_records, wildcard, elapsed_ms, started_at
		FROM scans ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []ScanRecord
	for rows.Next() {
		var (
			rec      ScanRecord
			wildcard int
		)
		if err := rows.Scan(&rec.ID, &rec.Domain, &rec.Resolver, &rec.TotalRecords, &wildcard, &rec.ElapsedMs, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.Wildcard = wildcard != 0
		scans = append(scans, rec)
	}
	return scans, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
