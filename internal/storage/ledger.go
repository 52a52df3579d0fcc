package storage

import (
	"context"
	"database/sql"
	"fmt"

	"lender-reconciliation-engine/internal/models"

	apperrors "lender-reconciliation-engine/pkg/errors"
)

// UpsertLoan inserts or replaces a loan.
func (s *Store) UpsertLoan(ctx context.Context, l *models.Loan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO loans (id, borrower_id, status) VALUES (?, ?, ?)`,
		l.ID, l.BorrowerID, l.Status,
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "upsert loan", err)
	}
	return nil
}

// UpsertBorrower inserts or replaces a borrower.
func (s *Store) UpsertBorrower(ctx context.Context, b *models.Borrower) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO borrowers (id, name, business_name, email) VALUES (?, ?, ?, ?)`,
		b.ID, b.Name, b.BusinessName, b.Email,
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "upsert borrower", err)
	}
	return nil
}

// UpsertInvestor inserts or replaces an investor.
func (s *Store) UpsertInvestor(ctx context.Context, i *models.Investor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO investors (id, name, business_name, active) VALUES (?, ?, ?, ?)`,
		i.ID, i.Name, i.BusinessName, i.Active,
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "upsert investor", err)
	}
	return nil
}

// CreateLoanTransaction writes one loan transaction.
func (s *Store) CreateLoanTransaction(ctx context.Context, t *models.LoanTransaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loan_transactions (id, loan_id, type, amount, date, reconciled) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.LoanID, string(t.Type), t.Amount.String(), encodeTime(t.Date), t.Reconciled,
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "create loan transaction", err)
	}
	return nil
}

// CreateInvestorTransaction writes one investor capital transaction.
func (s *Store) CreateInvestorTransaction(ctx context.Context, t *models.InvestorTransaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO investor_transactions (id, investor_id, type, amount, date, reconciled) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.InvestorID, string(t.Type), t.Amount.String(), encodeTime(t.Date), t.Reconciled,
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "create investor transaction", err)
	}
	return nil
}

// CreateInterestEntry writes one investor interest entry.
func (s *Store) CreateInterestEntry(ctx context.Context, t *models.InvestorInterestEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interest_entries (id, investor_id, type, amount, date, reconciled) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.InvestorID, string(t.Type), t.Amount.String(), encodeTime(t.Date), t.Reconciled,
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "create interest entry", err)
	}
	return nil
}

// CreateExpense writes one expense.
func (s *Store) CreateExpense(ctx context.Context, x *models.Expense) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, category, amount, date, description, reconciled) VALUES (?, ?, ?, ?, ?, ?)`,
		x.ID, x.Category, x.Amount.String(), encodeTime(x.Date), x.Description, x.Reconciled,
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "create expense", err)
	}
	return nil
}

func tableForKind(kind models.TargetKind) (string, error) {
	switch kind {
	case models.KindLoanTransaction:
		return "loan_transactions", nil
	case models.KindInvestorTransaction:
		return "investor_transactions", nil
	case models.KindInterestEntry:
		return "interest_entries", nil
	case models.KindExpense:
		return "expenses", nil
	default:
		return "", fmt.Errorf("unknown target kind %q", kind)
	}
}

// DeleteTarget removes a ledger record. Used only to undo records the engine
// itself created.
func (s *Store) DeleteTarget(ctx context.Context, ref models.TargetRef) error {
	table, err := tableForKind(ref.Kind)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "delete target", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, ref.ID); err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "delete target", err)
	}
	return nil
}

// SetTargetReconciled flips a ledger record's reconciled flag.
func (s *Store) SetTargetReconciled(ctx context.Context, ref models.TargetRef, reconciled bool) error {
	table, err := tableForKind(ref.Kind)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "set target reconciled", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE `+table+` SET reconciled = ? WHERE id = ?`, reconciled, ref.ID)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeWriteFailed, "set target reconciled", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.StaleReference(string(ref.Kind), ref.ID)
	}
	return nil
}

// GetTargetState loads the amount and reconciled flag of any ledger record.
// A missing record yields a stale-reference error.
func (s *Store) GetTargetState(ctx context.Context, ref models.TargetRef) (*models.TargetState, error) {
	table, err := tableForKind(ref.Kind)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "get target state", err)
	}

	st := &models.TargetState{Ref: ref}
	var amount string
	err = s.db.QueryRowContext(ctx, `SELECT amount, reconciled FROM `+table+` WHERE id = ?`, ref.ID).
		Scan(&amount, &st.Reconciled)
	if err == sql.ErrNoRows {
		return nil, apperrors.StaleReference(string(ref.Kind), ref.ID)
	}
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "get target state", err)
	}
	if st.Amount, err = decodeDecimal(amount); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "decode target amount", err)
	}
	return st, nil
}
