// Package importer reads bank statement CSV exports into bank entries.
// Different banks export different column layouts, delimiters and date
// formats; a BankConfig maps one format onto the engine's entry model, and
// malformed rows are collected rather than aborting the file.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"lender-reconciliation-engine/internal/models"

	apperrors "lender-reconciliation-engine/pkg/errors"
	"lender-reconciliation-engine/pkg/logger"
)

// ParseError describes one row that could not be turned into a bank entry.
type ParseError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at line %d (%s=%q): %s: %v",
			e.Line, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("parse error at line %d (%s=%q): %s",
		e.Line, e.Field, e.Value, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseStats summarizes one file's parsing outcome.
type ParseStats struct {
	TotalLines    int
	RecordsParsed int
	RecordsValid  int
	ErrorCount    int
	Errors        []*ParseError
}

// AddError records a row failure.
func (ps *ParseStats) AddError(err *ParseError) {
	ps.Errors = append(ps.Errors, err)
	ps.ErrorCount++
}

// HasErrors reports whether any row failed to parse.
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// String returns a human-readable summary.
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d valid), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, ps.ErrorCount)
}

// SampleErrors returns up to maxSamples error strings for reporting.
func (ps *ParseStats) SampleErrors(maxSamples int) []string {
	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}

	var samples []string
	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}
	return samples
}

// EntryStore is the slice of storage the importer writes through.
type EntryStore interface {
	InsertBankEntries(ctx context.Context, entries []*models.BankEntry) (int, error)
}

// ImportResult is the outcome of importing one file into storage.
type ImportResult struct {
	Stats      *ParseStats
	Inserted   int
	Duplicates int
}

// Importer parses one bank's CSV export format.
type Importer struct {
	config *BankConfig
	log    logger.Logger
	newID  func() string
}

// New creates an importer for the given bank format. A nil config uses the
// standard format.
func New(config *BankConfig) (*Importer, error) {
	if config == nil {
		config = StandardBankConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Importer{
		config: config,
		log:    logger.GetGlobalLogger().WithComponent("importer"),
		newID:  func() string { return uuid.New().String() },
	}, nil
}

// NewWithAutoDetect creates an importer by matching the file's header row
// against the known bank formats, trying each format's delimiter.
func NewWithAutoDetect(filePath string) (*Importer, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryImport, apperrors.CodeInvalidData,
			fmt.Sprintf("cannot open %s", filePath))
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return nil, apperrors.New(apperrors.CategoryImport, apperrors.CodeInvalidFormat,
			fmt.Sprintf("cannot read headers from %s", filePath))
	}
	headerLine := scanner.Text()

	for _, config := range ListAvailableBankConfigs() {
		headers := strings.Split(headerLine, string(config.Delimiter))
		if headersMatch(config, headers) {
			return New(config)
		}
	}

	return New(StandardBankConfig)
}

// Config returns the bank format this importer parses.
func (imp *Importer) Config() *BankConfig {
	return imp.config
}

// ReadEntries parses a statement file into bank entries. Rows that fail to
// parse or validate are collected in the stats and skipped; the error return
// is reserved for file-level failures.
func (imp *Importer) ReadEntries(ctx context.Context, filePath string) ([]*models.BankEntry, *ParseStats, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CategoryImport, apperrors.CodeInvalidData,
			fmt.Sprintf("cannot open %s", filePath))
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = imp.config.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	stats := &ParseStats{}
	columns, err := imp.readHeader(reader, stats)
	if err != nil {
		return nil, stats, err
	}

	var entries []*models.BankEntry
	for {
		if err := ctx.Err(); err != nil {
			return entries, stats, apperrors.Wrap(err, apperrors.CategoryImport,
				apperrors.CodeUnexpectedError, "import cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		stats.TotalLines++
		if err != nil {
			stats.AddError(&ParseError{Line: stats.TotalLines, Message: "failed to read record", Err: err})
			continue
		}
		if isEmptyRecord(record) {
			continue
		}

		stats.RecordsParsed++
		entry, parseErr := imp.parseEntry(record, columns, stats.TotalLines)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		if err := entry.Validate(); err != nil {
			stats.AddError(&ParseError{Line: stats.TotalLines, Message: "entry validation failed", Err: err})
			continue
		}

		entries = append(entries, entry)
		stats.RecordsValid++
	}

	imp.log.WithFields(logger.Fields{
		"file":   filePath,
		"bank":   imp.config.Name,
		"parsed": stats.RecordsParsed,
		"valid":  stats.RecordsValid,
		"errors": stats.ErrorCount,
	}).Info("Statement file parsed")

	return entries, stats, nil
}

// Import parses a statement file and inserts the entries into storage,
// relying on the store to drop rows imported before.
func (imp *Importer) Import(ctx context.Context, store EntryStore, filePath string) (*ImportResult, error) {
	entries, stats, err := imp.ReadEntries(ctx, filePath)
	if err != nil {
		return nil, err
	}

	inserted, err := store.InsertBankEntries(ctx, entries)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		Stats:      stats,
		Inserted:   inserted,
		Duplicates: len(entries) - inserted,
	}

	imp.log.WithFields(logger.Fields{
		"file":       filePath,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
	}).Info("Statement file imported")

	return result, nil
}

// columnIndexes maps each standard field onto the record index it occupies,
// or -1 when the format does not carry it.
type columnIndexes struct {
	id, amount, date, description, reference int
}

func (imp *Importer) readHeader(reader *csv.Reader, stats *ParseStats) (*columnIndexes, error) {
	if !imp.config.HasHeader {
		// Positional layout: config column names are ignored.
		return &columnIndexes{id: -1, amount: 0, date: 1, description: 2, reference: -1}, nil
	}

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.New(apperrors.CategoryImport, apperrors.CodeInvalidFormat,
			"file is empty").WithSuggestion("ensure the file contains header and data rows")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryImport, apperrors.CodeInvalidFormat, "failed to read header row")
	}
	stats.TotalLines++

	lookup := make(map[string]int, len(headers))
	for i, h := range headers {
		lookup[strings.ToLower(strings.TrimSpace(h))] = i
	}
	find := func(standardName string) int {
		name := imp.config.GetColumnName(standardName)
		if name == "" {
			return -1
		}
		if i, ok := lookup[strings.ToLower(name)]; ok {
			return i
		}
		return -1
	}

	cols := &columnIndexes{
		id:          find("id"),
		amount:      find("amount"),
		date:        find("date"),
		description: find("description"),
		reference:   find("reference"),
	}

	var missing []string
	for _, required := range []struct {
		name  string
		index int
	}{
		{imp.config.GetColumnName("amount"), cols.amount},
		{imp.config.GetColumnName("date"), cols.date},
		{imp.config.GetColumnName("description"), cols.description},
	} {
		if required.index == -1 {
			missing = append(missing, required.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.New(apperrors.CategoryImport, apperrors.CodeMissingColumn,
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))).
			WithSuggestion(fmt.Sprintf("available headers: %v", headers))
	}

	return cols, nil
}

func (imp *Importer) parseEntry(record []string, cols *columnIndexes, line int) (*models.BankEntry, *ParseError) {
	amountStr := fieldAt(record, cols.amount)
	amount, err := models.ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, &ParseError{
			Line: line, Field: imp.config.GetColumnName("amount"), Value: amountStr,
			Message: "invalid amount", Err: err,
		}
	}

	dateStr := fieldAt(record, cols.date)
	date, err := imp.parseDate(dateStr)
	if err != nil {
		return nil, &ParseError{
			Line: line, Field: imp.config.GetColumnName("date"), Value: dateStr,
			Message: "invalid date", Err: err,
		}
	}

	id := fieldAt(record, cols.id)
	if id == "" {
		id = imp.newID()
	}

	return &models.BankEntry{
		ID:          id,
		Amount:      amount,
		Date:        date,
		Description: fieldAt(record, cols.description),
		Reference:   fieldAt(record, cols.reference),
		SourceBank:  imp.config.Name,
	}, nil
}

// parseDate tries the bank's declared format first, then the common export
// formats.
func (imp *Importer) parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if format := strings.TrimSpace(imp.config.DateFormat); format != "" {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return models.ParseTimeWithFormats(s)
}

func fieldAt(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
