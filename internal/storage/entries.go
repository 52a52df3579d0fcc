package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"lender-reconciliation-engine/internal/models"

	apperrors "lender-reconciliation-engine/pkg/errors"
)

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func decodeDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// InsertBankEntries inserts the given entries, silently skipping those
// already present. An entry is a duplicate when another row carries the same
// bank reference, or, for entries without a reference, the same date, amount
// and description. Returns the number actually inserted.
func (s *Store) InsertBankEntries(ctx context.Context, entries []*models.BankEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.StorageError(apperrors.CodeWriteFailed, "insert bank entries", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, e := range entries {
		if e == nil {
			continue
		}

		dup, err := isDuplicateEntry(ctx, tx, e)
		if err != nil {
			return 0, apperrors.StorageError(apperrors.CodeQueryFailed, "check duplicate entry", err)
		}
		if dup {
			continue
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO bank_entries (id, amount, date, description, reference, source_bank, reconciled, group_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.Amount.String(), encodeTime(e.Date), e.Description, e.Reference, e.SourceBank, e.Reconciled, e.GroupID)
		if err != nil {
			return 0, apperrors.StorageError(apperrors.CodeWriteFailed, "insert bank entry", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.StorageError(apperrors.CodeWriteFailed, "commit bank entries", err)
	}
	return inserted, nil
}

func isDuplicateEntry(ctx context.Context, tx *sql.Tx, e *models.BankEntry) (bool, error) {
	var count int
	if e.Reference != "" {
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bank_entries WHERE reference = ? OR id = ?`,
			e.Reference, e.ID,
		).Scan(&count)
		return count > 0, err
	}

	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bank_entries WHERE id = ? OR (date = ? AND amount = ? AND description = ?)`,
		e.ID, encodeTime(e.Date), e.Amount.String(), e.Description,
	).Scan(&count)
	return count > 0, err
}

const bankEntryColumns = `id, amount, date, description, reference, source_bank, reconciled, group_id`

func scanBankEntry(row interface{ Scan(...interface{}) error }) (*models.BankEntry, error) {
	var e models.BankEntry
	var amount, date string
	if err := row.Scan(&e.ID, &amount, &date, &e.Description, &e.Reference, &e.SourceBank, &e.Reconciled, &e.GroupID); err != nil {
		return nil, err
	}

	var err error
	if e.Amount, err = decodeDecimal(amount); err != nil {
		return nil, err
	}
	if e.Date, err = decodeTime(date); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetBankEntry loads one bank entry. A missing id yields a stale-reference
// error.
func (s *Store) GetBankEntry(ctx context.Context, id string) (*models.BankEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bankEntryColumns+` FROM bank_entries WHERE id = ?`, id)
	e, err := scanBankEntry(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.StaleReference("bank_entry", id)
	}
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "get bank entry", err)
	}
	return e, nil
}

// SetEntryReconciled flips an entry's reconciled flag and group id.
func (s *Store) SetEntryReconciled(ctx context.Context, id string, reconciled bool, groupID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_entries SET reconciled = ?, group_id = ? WHERE id = ?`,
		reconciled, groupID, id,
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "set entry reconciled", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.StaleReference("bank_entry", id)
	}
	return nil
}

// CreateLink writes one reconciliation link.
func (s *Store) CreateLink(ctx context.Context, link *models.ReconciliationLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_links
		(id, bank_entry_id, target_kind, target_id, amount, classification, notes, was_created, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, link.ID, link.BankEntryID, string(link.Target.Kind), link.Target.ID,
		link.Amount.String(), link.Classification, link.Notes, link.WasCreated, encodeTime(link.CreatedAt))
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "create link", err)
	}
	return nil
}

// DeleteLink removes one link by id.
func (s *Store) DeleteLink(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reconciliation_links WHERE id = ?`, id)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "delete link", err)
	}
	return nil
}

// LinksForEntry returns every link attached to a bank entry, oldest first.
func (s *Store) LinksForEntry(ctx context.Context, entryID string) ([]*models.ReconciliationLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bank_entry_id, target_kind, target_id, amount, classification, notes, was_created, created_at
		FROM reconciliation_links WHERE bank_entry_id = ? ORDER BY created_at, id
	`, entryID)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "links for entry", err)
	}
	defer func() { _ = rows.Close() }()

	var links []*models.ReconciliationLink
	for rows.Next() {
		var l models.ReconciliationLink
		var kind, amount, createdAt string
		if err := rows.Scan(&l.ID, &l.BankEntryID, &kind, &l.Target.ID, &amount, &l.Classification, &l.Notes, &l.WasCreated, &createdAt); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "scan link", err)
		}
		l.Target.Kind = models.TargetKind(kind)
		if l.Amount, err = decodeDecimal(amount); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "decode link amount", err)
		}
		if l.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "decode link time", err)
		}
		links = append(links, &l)
	}
	return links, rows.Err()
}
