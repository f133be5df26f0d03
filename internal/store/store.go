// Package store is the SQLite-backed repository for sessions, messages,
// daily aggregates, insights, and full-text search.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrNotFound is returned when a referenced session, message, or insight
// does not exist. It is distinct from a failure: zero-result reads return
// empty collections, not ErrNotFound.
var ErrNotFound = errors.New("store: not found")

const (
	timeFormat = time.RFC3339
	dateFormat = "2006-01-02"
)

// Store owns the embedded database. Single process, single writer.
type Store struct {
	db *sql.DB

	// now is the injected clock; daily aggregates are keyed to its local date.
	now func() time.Time
}

// Open opens or creates the database at the given path and brings the
// schema up to date.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// today returns the current local calendar date.
func (s *Store) today() string {
	return s.now().Format(dateFormat)
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(timeFormat, v)
	return t
}

func parseDate(v string) time.Time {
	t, _ := time.Parse(dateFormat, v)
	return t
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
