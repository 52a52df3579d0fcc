package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lender-reconciliation-engine/internal/models"

	apperrors "lender-reconciliation-engine/pkg/errors"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statement.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	return path
}

func TestReadEntries_StandardFormat(t *testing.T) {
	path := writeCSV(t, `id,date,amount,description,reference
e1,2026-07-10,500.00,FASTER PAYMENT J SMITH,FP-1001
e2,2026-07-11,-45.50,EDF ENERGY MONTHLY,
`)

	imp, err := New(StandardBankConfig)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entries, stats, err := imp.ReadEntries(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if stats.RecordsValid != 2 || stats.HasErrors() {
		t.Fatalf("unexpected stats: %s", stats)
	}

	e := entries[0]
	if e.ID != "e1" || e.Reference != "FP-1001" || e.SourceBank != "Standard" {
		t.Errorf("unexpected entry %+v", e)
	}
	if !e.Amount.Equal(decimal.RequireFromString("500.00")) {
		t.Errorf("amount = %s", e.Amount)
	}
	if !e.Date.Equal(time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %s", e.Date)
	}
	if entries[1].Direction() != models.DirectionDebit {
		t.Errorf("negative amount must be a debit")
	}
}

func TestReadEntries_GeneratesMissingIDs(t *testing.T) {
	path := writeCSV(t, `Date,Amount,Memo,Subcategory
10/07/2026,-120.00,CARD PAYMENT STAPLES,OFFICE
`)

	imp, err := New(HighStreetConfig)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entries, _, err := imp.ReadEntries(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("id must be generated when the format has no id column")
	}
	// day-first date format
	if !entries[0].Date.Equal(time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %s", entries[0].Date)
	}
}

func TestReadEntries_CurrencySymbolsAndBadRows(t *testing.T) {
	path := writeCSV(t, `id,date,amount,description,reference
e1,2026-07-10,"£1,250.00",TRANSFER IN,
e2,not-a-date,40.00,BAD DATE,
e3,2026-07-12,not-a-number,BAD AMOUNT,
e4,2026-07-13,0.00,ZERO AMOUNT,

e5,2026-07-14,10.00,GOOD,
`)

	imp, err := New(StandardBankConfig)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entries, stats, err := imp.ReadEntries(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 valid entries, got %d", len(entries))
	}
	if !entries[0].Amount.Equal(decimal.RequireFromString("1250.00")) {
		t.Errorf("amount with symbols = %s", entries[0].Amount)
	}
	if stats.ErrorCount != 3 {
		t.Errorf("expected 3 row errors, got %d: %v", stats.ErrorCount, stats.SampleErrors(5))
	}
	if stats.RecordsValid != 2 {
		t.Errorf("RecordsValid = %d", stats.RecordsValid)
	}
}

func TestReadEntries_MissingColumns(t *testing.T) {
	path := writeCSV(t, `id,when,value
e1,2026-07-10,500.00
`)

	imp, err := New(StandardBankConfig)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, _, err = imp.ReadEntries(context.Background(), path)
	if err == nil {
		t.Fatal("expected missing column error")
	}
	ee, ok := apperrors.AsEngineError(err)
	if !ok || ee.Code != apperrors.CodeMissingColumn {
		t.Fatalf("expected missing_column, got %v", err)
	}
}

func TestReadEntries_EmptyFile(t *testing.T) {
	path := writeCSV(t, "")

	imp, err := New(StandardBankConfig)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, _, err = imp.ReadEntries(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestAutoDetectBankConfig(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    string
	}{
		{"standard", []string{"id", "date", "amount", "description", "reference"}, "Standard"},
		{"high street", []string{"Date", "Amount", "Memo", "Subcategory"}, "HighStreet"},
		{"business feed", []string{"entry_ref", "signed_amount", "value_date", "narrative"}, "BusinessFeed"},
		{"unknown falls back", []string{"col1", "col2"}, "Standard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AutoDetectBankConfig(tt.headers)
			if got.Name != tt.want {
				t.Errorf("AutoDetectBankConfig(%v) = %s, want %s", tt.headers, got.Name, tt.want)
			}
		})
	}
}

func TestNewWithAutoDetect(t *testing.T) {
	path := writeCSV(t, `entry_ref;signed_amount;value_date;narrative
B-1;-300.00;2026-07-10;SUPPLIER PAYMENT
`)

	imp, err := NewWithAutoDetect(path)
	if err != nil {
		t.Fatalf("NewWithAutoDetect: %v", err)
	}
	if imp.Config().Name != "BusinessFeed" {
		t.Fatalf("detected %s, want BusinessFeed", imp.Config().Name)
	}

	entries, _, err := imp.ReadEntries(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "B-1" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

type fakeEntryStore struct {
	entries []*models.BankEntry
	seen    map[string]bool
}

func (f *fakeEntryStore) InsertBankEntries(_ context.Context, entries []*models.BankEntry) (int, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	inserted := 0
	for _, e := range entries {
		key := e.Reference
		if key == "" {
			key = e.Date.Format("2006-01-02") + "|" + e.Amount.String() + "|" + e.Description
		}
		if f.seen[key] {
			continue
		}
		f.seen[key] = true
		f.entries = append(f.entries, e)
		inserted++
	}
	return inserted, nil
}

func TestImport_ReportsDuplicates(t *testing.T) {
	content := `id,date,amount,description,reference
e1,2026-07-10,500.00,FASTER PAYMENT J SMITH,FP-1001
e2,2026-07-11,-45.50,EDF ENERGY MONTHLY,
`
	path := writeCSV(t, content)

	imp, err := New(StandardBankConfig)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	store := &fakeEntryStore{}
	first, err := imp.Import(context.Background(), store, path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if first.Inserted != 2 || first.Duplicates != 0 {
		t.Fatalf("first import: %+v", first)
	}

	// importing the same file again inserts nothing
	second, err := imp.Import(context.Background(), store, path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if second.Inserted != 0 || second.Duplicates != 2 {
		t.Fatalf("second import: %+v", second)
	}
}
