// Package models defines the entities the reconciliation engine works over:
// imported bank statement lines, the internal ledger records they are matched
// against (loan transactions, investor capital movements, investor interest
// entries, expenses), the links created when a match is confirmed, and the
// learned description patterns used as a fallback matching strategy.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the sign of a bank statement line.
type Direction string

const (
	// DirectionCredit is money coming into the lender's account.
	DirectionCredit Direction = "CREDIT"
	// DirectionDebit is money leaving the lender's account.
	DirectionDebit Direction = "DEBIT"
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is valid.
func (d Direction) IsValid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// BankEntry is one imported statement line. It is immutable apart from the
// reconciled flag and group membership, which the commit layer toggles.
type BankEntry struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"` // signed; positive = credit/inflow
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	SourceBank  string          `json:"source_bank"`
	Reconciled  bool            `json:"reconciled"`
	GroupID     string          `json:"group_id,omitempty"`
}

// Direction derives the entry direction from the amount sign.
func (e *BankEntry) Direction() Direction {
	if e.Amount.IsNegative() {
		return DirectionDebit
	}
	return DirectionCredit
}

// IsCredit returns true if the entry is an inflow.
func (e *BankEntry) IsCredit() bool {
	return e.Amount.IsPositive()
}

// IsDebit returns true if the entry is an outflow.
func (e *BankEntry) IsDebit() bool {
	return e.Amount.IsNegative()
}

// AbsAmount returns the unsigned amount of the entry.
func (e *BankEntry) AbsAmount() decimal.Decimal {
	return e.Amount.Abs()
}

// Validate performs basic validation on the BankEntry.
func (e *BankEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("bank entry id cannot be empty")
	}

	if e.Amount.IsZero() {
		return fmt.Errorf("bank entry amount cannot be zero")
	}

	if e.Date.IsZero() {
		return fmt.Errorf("bank entry date cannot be zero")
	}

	return nil
}

// String returns a string representation of the BankEntry.
func (e *BankEntry) String() string {
	return fmt.Sprintf("BankEntry{ID: %s, Amount: %s, Date: %s, Desc: %q}",
		e.ID, e.Amount.String(), e.Date.Format("2006-01-02"), e.Description)
}

// TargetKind identifies which ledger table a record (or a reconciliation
// link target) belongs to.
type TargetKind string

const (
	KindLoanTransaction     TargetKind = "loan_transaction"
	KindInvestorTransaction TargetKind = "investor_transaction"
	KindInterestEntry       TargetKind = "interest_entry"
	KindExpense             TargetKind = "expense"
)

// IsValid checks if the target kind is valid.
func (k TargetKind) IsValid() bool {
	switch k {
	case KindLoanTransaction, KindInvestorTransaction, KindInterestEntry, KindExpense:
		return true
	}
	return false
}

// TargetRef is a typed reference to one ledger record.
type TargetRef struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// Key returns a stable map key for the reference.
func (r TargetRef) Key() string {
	return string(r.Kind) + ":" + r.ID
}

// LoanTransactionType distinguishes loan disbursements from repayments.
type LoanTransactionType string

const (
	LoanDisbursement LoanTransactionType = "disbursement"
	LoanRepayment    LoanTransactionType = "repayment"
)

// LoanTransaction is a disbursement of a loan principal to a borrower or a
// repayment received from one.
type LoanTransaction struct {
	ID         string              `json:"id"`
	LoanID     string              `json:"loan_id"`
	Type       LoanTransactionType `json:"type"`
	Amount     decimal.Decimal     `json:"amount"`
	Date       time.Time           `json:"date"`
	Reconciled bool                `json:"reconciled"`
}

// Ref returns the typed reference for the transaction.
func (t *LoanTransaction) Ref() TargetRef {
	return TargetRef{Kind: KindLoanTransaction, ID: t.ID}
}

// InvestorTransactionType distinguishes capital deposits from withdrawals.
type InvestorTransactionType string

const (
	CapitalIn  InvestorTransactionType = "capital_in"
	CapitalOut InvestorTransactionType = "capital_out"
)

// InvestorTransaction is a capital movement for one investor.
type InvestorTransaction struct {
	ID         string                  `json:"id"`
	InvestorID string                  `json:"investor_id"`
	Type       InvestorTransactionType `json:"type"`
	Amount     decimal.Decimal         `json:"amount"`
	Date       time.Time               `json:"date"`
	Reconciled bool                    `json:"reconciled"`
}

// Ref returns the typed reference for the transaction.
func (t *InvestorTransaction) Ref() TargetRef {
	return TargetRef{Kind: KindInvestorTransaction, ID: t.ID}
}

// InterestEntryType distinguishes interest accruals from withdrawals.
type InterestEntryType string

const (
	InterestCredit InterestEntryType = "credit"
	InterestDebit  InterestEntryType = "debit"
)

// InvestorInterestEntry is an interest accrual or withdrawal on an
// investor's account.
type InvestorInterestEntry struct {
	ID         string            `json:"id"`
	InvestorID string            `json:"investor_id"`
	Type       InterestEntryType `json:"type"`
	Amount     decimal.Decimal   `json:"amount"`
	Date       time.Time         `json:"date"`
	Reconciled bool              `json:"reconciled"`
}

// Ref returns the typed reference for the entry.
func (t *InvestorInterestEntry) Ref() TargetRef {
	return TargetRef{Kind: KindInterestEntry, ID: t.ID}
}

// Expense is an operating cost of the lender itself.
type Expense struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Reconciled  bool            `json:"reconciled"`
}

// Ref returns the typed reference for the expense.
func (x *Expense) Ref() TargetRef {
	return TargetRef{Kind: KindExpense, ID: x.ID}
}

// Loan is the owning entity for loan transactions.
type Loan struct {
	ID         string `json:"id"`
	BorrowerID string `json:"borrower_id"`
	Status     string `json:"status"` // open, closed, defaulted
}

// IsOpen reports whether the loan is still active.
func (l *Loan) IsOpen() bool {
	return l.Status == "open"
}

// Borrower is the counterparty behind a loan.
type Borrower struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BusinessName string `json:"business_name,omitempty"`
	Email        string `json:"email,omitempty"`
}

// Investor is a capital provider.
type Investor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BusinessName string `json:"business_name,omitempty"`
	Active       bool   `json:"active"`
}

// ReconciliationLink joins one bank entry to one ledger record. WasCreated
// marks records the engine generated to satisfy a "create new" match, so an
// un-reconciliation knows whether to delete the record or only the link.
type ReconciliationLink struct {
	ID             string          `json:"id"`
	BankEntryID    string          `json:"bank_entry_id"`
	Target         TargetRef       `json:"target"`
	Amount         decimal.Decimal `json:"amount"`
	Classification string          `json:"classification"`
	Notes          string          `json:"notes,omitempty"`
	WasCreated     bool            `json:"was_created"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Pattern is a learned description → classification rule. Confidence is only
// ever reinforced upward; there is no decay or negative feedback when a
// suggestion derived from a pattern is dismissed.
type Pattern struct {
	ID             string          `json:"id"`
	Keywords       []string        `json:"keywords"`
	AmountMin      decimal.Decimal `json:"amount_min"`
	AmountMax      decimal.Decimal `json:"amount_max"`
	Direction      Direction       `json:"direction"`
	Classification string          `json:"classification"` // expense, other_income, loan_repayment, ...
	TargetEntityID string          `json:"target_entity_id,omitempty"`
	ExpenseType    string          `json:"expense_type,omitempty"`
	Confidence     float64         `json:"confidence"`
	MatchCount     int             `json:"match_count"`
	SplitPrincipal float64         `json:"split_principal"`
	SplitInterest  float64         `json:"split_interest"`
	SplitFees      float64         `json:"split_fees"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Signature joins the pattern keywords into the stored signature form.
func (p *Pattern) Signature() string {
	return strings.Join(p.Keywords, " ")
}

// ContainsAmount reports whether amount falls inside the pattern's window.
func (p *Pattern) ContainsAmount(amount decimal.Decimal) bool {
	abs := amount.Abs()
	return abs.GreaterThanOrEqual(p.AmountMin) && abs.LessThanOrEqual(p.AmountMax)
}

// Snapshot is the immutable input to one matching pass: every unreconciled
// bank entry and ledger record, plus the owning entities needed for name
// matching. The engine never mutates a snapshot.
type Snapshot struct {
	Entries              []*BankEntry
	LoanTransactions     []*LoanTransaction
	InvestorTransactions []*InvestorTransaction
	InterestEntries      []*InvestorInterestEntry
	Expenses             []*Expense
	Loans                map[string]*Loan
	Borrowers            map[string]*Borrower
	Investors            map[string]*Investor
}

// BorrowerForLoan resolves the borrower behind a loan id, or nil.
func (s *Snapshot) BorrowerForLoan(loanID string) *Borrower {
	loan, ok := s.Loans[loanID]
	if !ok {
		return nil
	}
	return s.Borrowers[loan.BorrowerID]
}

// InvestorByID resolves an investor, or nil.
func (s *Snapshot) InvestorByID(id string) *Investor {
	return s.Investors[id]
}

// TargetState is the slice of a ledger record the commit layer validates
// before writing: its amount and whether it is already reconciled.
type TargetState struct {
	Ref        TargetRef       `json:"ref"`
	Amount     decimal.Decimal `json:"amount"`
	Reconciled bool            `json:"reconciled"`
}

// ParseDecimalFromString parses a decimal value from string, tolerating
// currency symbols and thousand separators.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "£", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseTimeWithFormats attempts to parse time from string using common
// bank export formats.
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02/01/2006",
		"01/02/2006",
		"02-01-2006",
		"2006/01/02",
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}
