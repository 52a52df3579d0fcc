package storage

import (
	"context"

	"lender-reconciliation-engine/internal/models"

	apperrors "lender-reconciliation-engine/pkg/errors"
)

// LoadSnapshot reads the complete matching input: every unreconciled bank
// entry and ledger record plus all owning entities. Reconciled records are
// excluded at the query level so the engine never sees them.
func (s *Store) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{
		Loans:     make(map[string]*models.Loan),
		Borrowers: make(map[string]*models.Borrower),
		Investors: make(map[string]*models.Investor),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+bankEntryColumns+` FROM bank_entries WHERE reconciled = 0 ORDER BY date, id`)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "load bank entries", err)
	}
	for rows.Next() {
		e, err := scanBankEntry(rows)
		if err != nil {
			_ = rows.Close()
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "scan bank entry", err)
		}
		snap.Entries = append(snap.Entries, e)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	if err := s.loadLoanTransactions(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadInvestorTransactions(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadInterestEntries(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadExpenses(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadEntities(ctx, snap); err != nil {
		return nil, err
	}

	return snap, nil
}

type rowCloser interface {
	Close() error
	Err() error
}

func closeRows(rows rowCloser) error {
	errScan := rows.Err()
	if err := rows.Close(); err != nil && errScan == nil {
		errScan = err
	}
	if errScan != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "read rows", errScan)
	}
	return nil
}

func (s *Store) loadLoanTransactions(ctx context.Context, snap *models.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, loan_id, type, amount, date, reconciled FROM loan_transactions WHERE reconciled = 0 ORDER BY id`)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "load loan transactions", err)
	}
	for rows.Next() {
		var t models.LoanTransaction
		var typ, amount, date string
		if err := rows.Scan(&t.ID, &t.LoanID, &typ, &amount, &date, &t.Reconciled); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "scan loan transaction", err)
		}
		t.Type = models.LoanTransactionType(typ)
		if t.Amount, err = decodeDecimal(amount); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "decode amount", err)
		}
		if t.Date, err = decodeTime(date); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "decode date", err)
		}
		snap.LoanTransactions = append(snap.LoanTransactions, &t)
	}
	return closeRows(rows)
}

func (s *Store) loadInvestorTransactions(ctx context.Context, snap *models.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, investor_id, type, amount, date, reconciled FROM investor_transactions WHERE reconciled = 0 ORDER BY id`)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "load investor transactions", err)
	}
	for rows.Next() {
		var t models.InvestorTransaction
		var typ, amount, date string
		if err := rows.Scan(&t.ID, &t.InvestorID, &typ, &amount, &date, &t.Reconciled); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "scan investor transaction", err)
		}
		t.Type = models.InvestorTransactionType(typ)
		if t.Amount, err = decodeDecimal(amount); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "decode amount", err)
		}
		if t.Date, err = decodeTime(date); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "decode date", err)
		}
		snap.InvestorTransactions = append(snap.InvestorTransactions, &t)
	}
	return closeRows(rows)
}

func (s *Store) loadInterestEntries(ctx context.Context, snap *models.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, investor_id, type, amount, date, reconciled FROM interest_entries WHERE reconciled = 0 ORDER BY id`)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "load interest entries", err)
	}
	for rows.Next() {
		var t models.InvestorInterestEntry
		var typ, amount, date string
		if err := rows.Scan(&t.ID, &t.InvestorID, &typ, &amount, &date, &t.Reconciled); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "scan interest entry", err)
		}
		t.Type = models.InterestEntryType(typ)
		if t.Amount, err = decodeDecimal(amount); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "decode amount", err)
		}
		if t.Date, err = decodeTime(date); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "decode date", err)
		}
		snap.InterestEntries = append(snap.InterestEntries, &t)
	}
	return closeRows(rows)
}

func (s *Store) loadExpenses(ctx context.Context, snap *models.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, amount, date, description, reconciled FROM expenses WHERE reconciled = 0 ORDER BY id`)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "load expenses", err)
	}
	for rows.Next() {
		var x models.Expense
		var amount, date string
		if err := rows.Scan(&x.ID, &x.Category, &amount, &date, &x.Description, &x.Reconciled); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "scan expense", err)
		}
		if x.Amount, err = decodeDecimal(amount); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "decode amount", err)
		}
		if x.Date, err = decodeTime(date); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "decode date", err)
		}
		snap.Expenses = append(snap.Expenses, &x)
	}
	return closeRows(rows)
}

func (s *Store) loadEntities(ctx context.Context, snap *models.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, borrower_id, status FROM loans`)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "load loans", err)
	}
	for rows.Next() {
		var l models.Loan
		if err := rows.Scan(&l.ID, &l.BorrowerID, &l.Status); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "scan loan", err)
		}
		snap.Loans[l.ID] = &l
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, name, business_name, email FROM borrowers`)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "load borrowers", err)
	}
	for rows.Next() {
		var b models.Borrower
		if err := rows.Scan(&b.ID, &b.Name, &b.BusinessName, &b.Email); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "scan borrower", err)
		}
		snap.Borrowers[b.ID] = &b
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, name, business_name, active FROM investors`)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "load investors", err)
	}
	for rows.Next() {
		var i models.Investor
		if err := rows.Scan(&i.ID, &i.Name, &i.BusinessName, &i.Active); err != nil {
			_ = rows.Close()
			return apperrors.StorageError(apperrors.CodeQueryFailed, "scan investor", err)
		}
		snap.Investors[i.ID] = &i
	}
	return closeRows(rows)
}
