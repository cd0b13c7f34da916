// Package storage provides read access to account snapshots and
// transactions and the single-writer persistence path for maturity labels,
// all backed by SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"santander/internal/core"

	_ "modernc.org/sqlite"
)

// refDateFormat is how timestamps are stored. RFC 3339 in UTC keeps
// lexicographic order equal to chronological order, so ORDER BY and
// STRFTIME work directly on the column.
const refDateFormat = time.RFC3339

type Store struct {
	db *sql.DB

	// labelMu serializes label persistence; the classification pipeline is
	// a single-writer batch job and two concurrent runs would race on the
	// label table.
	labelMu sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w: %w", core.ErrStoreUnavailable, err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// storeErr tags driver failures as StoreUnavailable while keeping the
// original error in the chain.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(refDateFormat)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(refDateFormat, raw)
	if err != nil {
		// Legacy rows from the original loader use a space-separated form.
		t, err = time.Parse("2006-01-02 15:04:05", raw)
	}
	return t, err
}
