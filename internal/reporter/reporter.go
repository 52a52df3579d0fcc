// Package reporter renders matching runs for human review.
//
// A suggestion run is summarized into a SuggestionReport: per-entry rows with
// the proposed link and its confidence, the entries nothing matched, and any
// records contended by several entries. Reports render to three formats:
//
//   - Console: tabular output for terminal review
//   - JSON: structured output for programmatic consumption
//   - CSV: rows for spreadsheet review
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lender-reconciliation-engine/internal/engine"
	"lender-reconciliation-engine/internal/models"

	apperrors "lender-reconciliation-engine/pkg/errors"
)

// OutputFormat selects how a report is rendered.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds options for report generation.
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeSuggestions bool `json:"include_suggestions"`
	IncludeUnmatched   bool `json:"include_unmatched"`
	IncludeConflicts   bool `json:"include_conflicts"`

	// MaxItems caps each console list; zero means no cap.
	MaxItems int `json:"max_items"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`

	SortByConfidence bool `json:"sort_by_confidence"`
}

// DefaultReportConfig returns the configuration used by the CLI.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeSuggestions: true,
		IncludeUnmatched:   true,
		IncludeConflicts:   true,
		MaxItems:           0,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
		SortByConfidence:   false,
	}
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return apperrors.New(apperrors.CategoryConfig, apperrors.CodeInvalidConfig,
			fmt.Sprintf("invalid output format: %s", c.Format))
	}
	if c.MaxItems < 0 {
		return apperrors.New(apperrors.CategoryConfig, apperrors.CodeInvalidConfig,
			fmt.Sprintf("max items cannot be negative, got %d", c.MaxItems))
	}
	return nil
}

// SuggestionRow is one proposed reconciliation, flattened for rendering.
type SuggestionRow struct {
	EntryID     string          `json:"entry_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Mode        string          `json:"mode"`
	Confidence  float64         `json:"confidence"`
	Targets     []string        `json:"targets,omitempty"`
	GroupedWith []string        `json:"grouped_with,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// UnmatchedRow is a bank entry no strategy could place.
type UnmatchedRow struct {
	EntryID     string          `json:"entry_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// SuggestionReport is one matching run summarized for review.
type SuggestionReport struct {
	GeneratedAt   time.Time         `json:"generated_at"`
	TotalEntries  int               `json:"total_entries"`
	Suggested     int               `json:"suggested"`
	Grouped       int               `json:"grouped"`
	Unmatched     int               `json:"unmatched"`
	ModeBreakdown map[string]int    `json:"mode_breakdown"`
	Suggestions   []SuggestionRow   `json:"suggestions,omitempty"`
	UnmatchedRows []UnmatchedRow    `json:"unmatched_entries,omitempty"`
	Conflicts     []engine.Conflict `json:"conflicts,omitempty"`
}

// BuildSuggestionReport flattens a matching run over a snapshot into a
// report. Entries folded into another entry's grouped suggestion count as
// grouped, not unmatched.
func BuildSuggestionReport(snap *models.Snapshot, result *engine.Result) *SuggestionReport {
	report := &SuggestionReport{
		GeneratedAt:   time.Now().UTC(),
		ModeBreakdown: make(map[string]int),
	}
	if snap == nil || result == nil {
		return report
	}

	grouped := make(map[string]bool)
	for entryID, s := range result.Suggestions {
		for _, sibling := range groupedEntryList(s) {
			if sibling != entryID {
				grouped[sibling] = true
			}
		}
	}

	for _, entry := range snap.Entries {
		if entry == nil || entry.Reconciled {
			continue
		}
		report.TotalEntries++

		s, ok := result.Suggestions[entry.ID]
		if !ok {
			if grouped[entry.ID] {
				report.Grouped++
				continue
			}
			report.Unmatched++
			report.UnmatchedRows = append(report.UnmatchedRows, UnmatchedRow{
				EntryID:     entry.ID,
				Date:        entry.Date,
				Amount:      entry.Amount,
				Description: entry.Description,
			})
			continue
		}

		report.Suggested++
		report.ModeBreakdown[string(s.Mode())]++
		report.Suggestions = append(report.Suggestions, SuggestionRow{
			EntryID:     entry.ID,
			Date:        entry.Date,
			Amount:      entry.Amount,
			Description: entry.Description,
			Mode:        string(s.Mode()),
			Confidence:  s.Confidence(),
			Targets:     targetKeys(s),
			GroupedWith: groupedEntryList(s),
			Reason:      s.Reason(),
		})
	}

	report.Conflicts = engine.ComputeConflicts(result.Suggestions)
	return report
}

func targetKeys(s engine.Suggestion) []string {
	refs := s.Targets()
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		keys = append(keys, ref.Key())
	}
	return keys
}

func groupedEntryList(s engine.Suggestion) []string {
	switch v := s.(type) {
	case engine.GroupedDisbursement:
		return v.EntryIDs
	case engine.GroupedInvestor:
		return v.EntryIDs
	default:
		return nil
	}
}

// ReportGenerator renders suggestion reports in the configured format.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a generator; a nil config uses the defaults.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ReportGenerator{config: config}, nil
}

// Config returns the current configuration.
func (rg *ReportGenerator) Config() *ReportConfig {
	return rg.config
}

// GenerateReport renders the report to the writer in the configured format.
func (rg *ReportGenerator) GenerateReport(report *SuggestionReport, writer io.Writer) error {
	if report == nil {
		return apperrors.New(apperrors.CategoryInternal, apperrors.CodeInvalidData, "report cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(report, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	default:
		return apperrors.New(apperrors.CategoryConfig, apperrors.CodeInvalidConfig,
			fmt.Sprintf("unsupported output format: %s", rg.config.Format))
	}
}

func (rg *ReportGenerator) generateConsoleReport(report *SuggestionReport, writer io.Writer) error {
	fmt.Fprintf(writer, "RECONCILIATION SUGGESTIONS\n")
	fmt.Fprintf(writer, "Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Bank Entries: %d\n", report.TotalEntries)
	fmt.Fprintf(writer, "  Suggested: %d (%.1f%%)\n",
		report.Suggested, percentage(report.Suggested, report.TotalEntries))
	fmt.Fprintf(writer, "  Grouped:   %d (%.1f%%)\n",
		report.Grouped, percentage(report.Grouped, report.TotalEntries))
	fmt.Fprintf(writer, "  Unmatched: %d (%.1f%%)\n",
		report.Unmatched, percentage(report.Unmatched, report.TotalEntries))
	fmt.Fprintf(writer, "\n")

	if len(report.ModeBreakdown) > 0 {
		fmt.Fprintf(writer, "=== MATCH MODE BREAKDOWN ===\n")
		for _, mode := range sortedModes(report.ModeBreakdown) {
			fmt.Fprintf(writer, "%-22s %d (%.1f%%)\n",
				mode+":", report.ModeBreakdown[mode],
				percentage(report.ModeBreakdown[mode], report.Suggested))
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeSuggestions && len(report.Suggestions) > 0 {
		fmt.Fprintf(writer, "=== SUGGESTIONS ===\n")
		rg.printSuggestionList(report.Suggestions, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeUnmatched && len(report.UnmatchedRows) > 0 {
		fmt.Fprintf(writer, "=== UNMATCHED ENTRIES ===\n")
		rg.printUnmatchedList(report.UnmatchedRows, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeConflicts && len(report.Conflicts) > 0 {
		fmt.Fprintf(writer, "=== CONTENDED RECORDS ===\n")
		for _, conflict := range report.Conflicts {
			fmt.Fprintf(writer, "  %s wanted by entries: %s\n",
				conflict.TargetKey, strings.Join(conflict.EntryIDs, ", "))
		}
	}

	return nil
}

func (rg *ReportGenerator) printSuggestionList(rows []SuggestionRow, writer io.Writer) {
	rows = rg.orderRows(rows)

	for i, row := range rows {
		if rg.config.MaxItems > 0 && i >= rg.config.MaxItems {
			fmt.Fprintf(writer, "  ... and %d more\n", len(rows)-rg.config.MaxItems)
			break
		}

		fmt.Fprintf(writer, "  %d. %s  %s  %s  [%s %.2f]\n",
			i+1,
			row.Date.Format("2006-01-02"),
			row.Amount.StringFixed(2),
			truncate(row.Description, 40),
			row.Mode,
			row.Confidence)
		if len(row.Targets) > 0 {
			fmt.Fprintf(writer, "     -> %s\n", strings.Join(row.Targets, ", "))
		}
		if len(row.GroupedWith) > 1 {
			fmt.Fprintf(writer, "     with entries: %s\n", strings.Join(row.GroupedWith, ", "))
		}
		if row.Reason != "" {
			fmt.Fprintf(writer, "     %s\n", row.Reason)
		}
	}
}

func (rg *ReportGenerator) printUnmatchedList(rows []UnmatchedRow, writer io.Writer) {
	for i, row := range rows {
		if rg.config.MaxItems > 0 && i >= rg.config.MaxItems {
			fmt.Fprintf(writer, "  ... and %d more\n", len(rows)-rg.config.MaxItems)
			break
		}
		fmt.Fprintf(writer, "  %d. %s  %s  %s\n",
			i+1,
			row.Date.Format("2006-01-02"),
			row.Amount.StringFixed(2),
			truncate(row.Description, 50))
	}
}

func (rg *ReportGenerator) generateJSONReport(report *SuggestionReport, writer io.Writer) error {
	filtered := *report
	if !rg.config.IncludeSuggestions {
		filtered.Suggestions = nil
	}
	if !rg.config.IncludeUnmatched {
		filtered.UnmatchedRows = nil
	}
	if !rg.config.IncludeConflicts {
		filtered.Conflicts = nil
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(&filtered)
}

func (rg *ReportGenerator) generateCSVReport(report *SuggestionReport, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Status",
			"Entry_ID",
			"Date",
			"Amount",
			"Description",
			"Mode",
			"Confidence",
			"Targets",
			"Grouped_With",
			"Reason",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	if rg.config.IncludeSuggestions {
		for _, row := range rg.orderRows(report.Suggestions) {
			record := []string{
				"Suggested",
				row.EntryID,
				row.Date.Format("2006-01-02"),
				row.Amount.StringFixed(2),
				row.Description,
				row.Mode,
				fmt.Sprintf("%.2f", row.Confidence),
				strings.Join(row.Targets, "; "),
				strings.Join(row.GroupedWith, "; "),
				row.Reason,
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write suggestion record: %w", err)
			}
		}
	}

	if rg.config.IncludeUnmatched {
		for _, row := range report.UnmatchedRows {
			record := []string{
				"Unmatched",
				row.EntryID,
				row.Date.Format("2006-01-02"),
				row.Amount.StringFixed(2),
				row.Description,
				"", "", "", "",
				"No match found",
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write unmatched record: %w", err)
			}
		}
	}

	return nil
}

// orderRows returns rows in display order without mutating the report.
func (rg *ReportGenerator) orderRows(rows []SuggestionRow) []SuggestionRow {
	ordered := make([]SuggestionRow, len(rows))
	copy(ordered, rows)

	if rg.config.SortByConfidence {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Confidence > ordered[j].Confidence
		})
	} else {
		sort.SliceStable(ordered, func(i, j int) bool {
			if !ordered[i].Date.Equal(ordered[j].Date) {
				return ordered[i].Date.Before(ordered[j].Date)
			}
			return ordered[i].EntryID < ordered[j].EntryID
		})
	}
	return ordered
}

func sortedModes(breakdown map[string]int) []string {
	modes := make([]string, 0, len(breakdown))
	for mode := range breakdown {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	return modes
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
