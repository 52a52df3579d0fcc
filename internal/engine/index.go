package engine

import (
	"sort"
	"time"

	"lender-reconciliation-engine/internal/models"
)

// ledgerIndex pre-partitions a snapshot's ledger records by kind and type so
// strategies iterate only plausible candidates. Every slice is sorted by
// record id, which fixes the within-strategy enumeration order and makes
// tie-breaks reproducible across platforms.
type ledgerIndex struct {
	disbursements []*models.LoanTransaction
	repayments    []*models.LoanTransaction

	capitalIn  []*models.InvestorTransaction
	capitalOut []*models.InvestorTransaction

	interestDebits []*models.InvestorInterestEntry

	expenses []*models.Expense
}

// newLedgerIndex builds the index over unreconciled records only.
func newLedgerIndex(snap *models.Snapshot) *ledgerIndex {
	idx := &ledgerIndex{}

	for _, tx := range snap.LoanTransactions {
		if tx == nil || tx.Reconciled || tx.Date.IsZero() {
			continue
		}
		switch tx.Type {
		case models.LoanDisbursement:
			idx.disbursements = append(idx.disbursements, tx)
		case models.LoanRepayment:
			idx.repayments = append(idx.repayments, tx)
		}
	}

	for _, tx := range snap.InvestorTransactions {
		if tx == nil || tx.Reconciled || tx.Date.IsZero() {
			continue
		}
		switch tx.Type {
		case models.CapitalIn:
			idx.capitalIn = append(idx.capitalIn, tx)
		case models.CapitalOut:
			idx.capitalOut = append(idx.capitalOut, tx)
		}
	}

	for _, ie := range snap.InterestEntries {
		if ie == nil || ie.Reconciled || ie.Date.IsZero() {
			continue
		}
		// Accruals are book entries; only withdrawals reach the bank.
		if ie.Type != models.InterestDebit {
			continue
		}
		idx.interestDebits = append(idx.interestDebits, ie)
	}

	for _, x := range snap.Expenses {
		if x == nil || x.Reconciled || x.Date.IsZero() {
			continue
		}
		idx.expenses = append(idx.expenses, x)
	}

	sort.Slice(idx.disbursements, func(i, j int) bool { return idx.disbursements[i].ID < idx.disbursements[j].ID })
	sort.Slice(idx.repayments, func(i, j int) bool { return idx.repayments[i].ID < idx.repayments[j].ID })
	sort.Slice(idx.capitalIn, func(i, j int) bool { return idx.capitalIn[i].ID < idx.capitalIn[j].ID })
	sort.Slice(idx.capitalOut, func(i, j int) bool { return idx.capitalOut[i].ID < idx.capitalOut[j].ID })
	sort.Slice(idx.interestDebits, func(i, j int) bool { return idx.interestDebits[i].ID < idx.interestDebits[j].ID })
	sort.Slice(idx.expenses, func(i, j int) bool { return idx.expenses[i].ID < idx.expenses[j].ID })

	return idx
}

// entriesWithinWindow returns the unreconciled bank entries of the given
// direction whose dates fall within windowDays of anchor, sorted by id.
func entriesWithinWindow(entries []*models.BankEntry, direction models.Direction, anchor time.Time, windowDays int) []*models.BankEntry {
	var out []*models.BankEntry
	for _, e := range entries {
		if e == nil || e.Reconciled || e.Date.IsZero() {
			continue
		}
		if e.Direction() != direction {
			continue
		}
		if dayGap(e.Date, anchor) > windowDays {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
