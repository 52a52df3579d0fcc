// Package storage persists the reconciliation ledger in SQLite: bank
// entries, loan and investor transactions, interest entries, expenses,
// reconciliation links, and learned patterns. It backs both the commit layer
// and the pattern store.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"lender-reconciliation-engine/pkg/logger"
)

// Store provides SQLite access to the reconciliation ledger.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// Open opens (or creates) the database at path and applies pending
// migrations. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{
		db:  db,
		log: logger.GetGlobalLogger().WithComponent("storage"),
	}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
