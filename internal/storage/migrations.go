package storage

import (
	"database/sql"
	"fmt"
)

// migration is one schema change, applied exactly once in version order.
type migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

var allMigrations = []migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_patterns_table",
		Up:      migration002AddPatternsTable,
	},
}

func (s *Store) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.appliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, m := range allMigrations {
		if applied[m.Version] {
			continue
		}

		s.log.WithField("migration", m.Name).Debug("Applying migration")

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (s *Store) appliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE bank_entries (
			id TEXT PRIMARY KEY,
			amount TEXT NOT NULL,
			date TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			reference TEXT NOT NULL DEFAULT '',
			source_bank TEXT NOT NULL DEFAULT '',
			reconciled INTEGER NOT NULL DEFAULT 0,
			group_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX idx_bank_entries_reconciled ON bank_entries(reconciled)`,
		`CREATE INDEX idx_bank_entries_reference ON bank_entries(reference)`,

		`CREATE TABLE loans (
			id TEXT PRIMARY KEY,
			borrower_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open'
		)`,
		`CREATE TABLE borrowers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			business_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE investors (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			business_name TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE loan_transactions (
			id TEXT PRIMARY KEY,
			loan_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount TEXT NOT NULL,
			date TEXT NOT NULL,
			reconciled INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX idx_loan_transactions_loan ON loan_transactions(loan_id)`,

		`CREATE TABLE investor_transactions (
			id TEXT PRIMARY KEY,
			investor_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount TEXT NOT NULL,
			date TEXT NOT NULL,
			reconciled INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX idx_investor_transactions_investor ON investor_transactions(investor_id)`,

		`CREATE TABLE interest_entries (
			id TEXT PRIMARY KEY,
			investor_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount TEXT NOT NULL,
			date TEXT NOT NULL,
			reconciled INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE expenses (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL,
			date TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			reconciled INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE reconciliation_links (
			id TEXT PRIMARY KEY,
			bank_entry_id TEXT NOT NULL,
			target_kind TEXT NOT NULL,
			target_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			classification TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			was_created INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_links_bank_entry ON reconciliation_links(bank_entry_id)`,
		`CREATE INDEX idx_links_target ON reconciliation_links(target_kind, target_id)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration002AddPatternsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE patterns (
			id TEXT PRIMARY KEY,
			keywords TEXT NOT NULL,
			amount_min TEXT NOT NULL,
			amount_max TEXT NOT NULL,
			direction TEXT NOT NULL,
			classification TEXT NOT NULL,
			target_entity_id TEXT NOT NULL DEFAULT '',
			expense_type TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL,
			match_count INTEGER NOT NULL DEFAULT 0,
			split_principal REAL NOT NULL DEFAULT 0,
			split_interest REAL NOT NULL DEFAULT 0,
			split_fees REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	return err
}
