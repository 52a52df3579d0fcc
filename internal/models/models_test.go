package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBankEntry_Direction(t *testing.T) {
	credit := &BankEntry{ID: "BE-1", Amount: decimal.NewFromFloat(500.00), Date: time.Now()}
	if credit.Direction() != DirectionCredit || !credit.IsCredit() {
		t.Error("positive amount should be a credit")
	}

	debit := &BankEntry{ID: "BE-2", Amount: decimal.NewFromFloat(-120.00), Date: time.Now()}
	if debit.Direction() != DirectionDebit || !debit.IsDebit() {
		t.Error("negative amount should be a debit")
	}

	if !debit.AbsAmount().Equal(decimal.NewFromFloat(120.00)) {
		t.Errorf("AbsAmount = %s, want 120", debit.AbsAmount())
	}
}

func TestBankEntry_Validate(t *testing.T) {
	valid := &BankEntry{
		ID:     "BE-1",
		Amount: decimal.NewFromFloat(10),
		Date:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid entry rejected: %v", err)
	}

	tests := []struct {
		name  string
		entry *BankEntry
	}{
		{"empty id", &BankEntry{Amount: decimal.NewFromFloat(10), Date: time.Now()}},
		{"zero amount", &BankEntry{ID: "BE-1", Date: time.Now()}},
		{"zero date", &BankEntry{ID: "BE-1", Amount: decimal.NewFromFloat(10)}},
	}

	for _, tt := range tests {
		if err := tt.entry.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestTargetRef_Key(t *testing.T) {
	tx := &LoanTransaction{ID: "LT-1", Type: LoanRepayment}
	if tx.Ref().Key() != "loan_transaction:LT-1" {
		t.Errorf("unexpected key: %s", tx.Ref().Key())
	}

	exp := &Expense{ID: "E-1"}
	if exp.Ref().Key() != "expense:E-1" {
		t.Errorf("unexpected key: %s", exp.Ref().Key())
	}

	if tx.Ref().Key() == exp.Ref().Key() {
		t.Error("keys of different kinds must not collide")
	}
}

func TestTargetKind_IsValid(t *testing.T) {
	for _, k := range []TargetKind{KindLoanTransaction, KindInvestorTransaction, KindInterestEntry, KindExpense} {
		if !k.IsValid() {
			t.Errorf("%s should be valid", k)
		}
	}

	if TargetKind("invoice").IsValid() {
		t.Error("unknown kind should be invalid")
	}
}

func TestPattern_ContainsAmount(t *testing.T) {
	p := &Pattern{
		AmountMin: decimal.NewFromFloat(40),
		AmountMax: decimal.NewFromFloat(50),
	}

	tests := []struct {
		amount float64
		want   bool
	}{
		{45, true},
		{40, true},
		{50, true},
		{-45, true}, // window applies to the unsigned amount
		{39.99, false},
		{50.01, false},
	}

	for _, tt := range tests {
		if got := p.ContainsAmount(decimal.NewFromFloat(tt.amount)); got != tt.want {
			t.Errorf("ContainsAmount(%v) = %v, want %v", tt.amount, got, tt.want)
		}
	}
}

func TestSnapshot_BorrowerForLoan(t *testing.T) {
	snap := &Snapshot{
		Loans: map[string]*Loan{
			"L-1": {ID: "L-1", BorrowerID: "B-1", Status: "open"},
		},
		Borrowers: map[string]*Borrower{
			"B-1": {ID: "B-1", Name: "John Smith"},
		},
	}

	if b := snap.BorrowerForLoan("L-1"); b == nil || b.Name != "John Smith" {
		t.Errorf("expected John Smith, got %+v", b)
	}

	if b := snap.BorrowerForLoan("L-404"); b != nil {
		t.Errorf("expected nil for unknown loan, got %+v", b)
	}
}

func TestParseDecimalFromString(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"150.00", "150", false},
		{"£1,250.50", "1250.5", false},
		{"$99.99", "99.99", false},
		{"-42.10", "-42.1", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDecimalFromString(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDecimalFromString(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDecimalFromString(%q): %v", tt.input, err)
			continue
		}
		want, _ := decimal.NewFromString(tt.want)
		if !got.Equal(want) {
			t.Errorf("ParseDecimalFromString(%q) = %s, want %s", tt.input, got, want)
		}
	}
}

func TestParseTimeWithFormats(t *testing.T) {
	tests := []string{
		"2024-03-10",
		"2024-03-10 14:30:00",
		"10/03/2024",
	}

	for _, input := range tests {
		if _, err := ParseTimeWithFormats(input); err != nil {
			t.Errorf("ParseTimeWithFormats(%q): %v", input, err)
		}
	}

	if _, err := ParseTimeWithFormats("not a date"); err == nil {
		t.Error("expected error for garbage input")
	}

	if _, err := ParseTimeWithFormats(""); err == nil {
		t.Error("expected error for empty input")
	}
}
