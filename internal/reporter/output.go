package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lender-reconciliation-engine/internal/commit"

	apperrors "lender-reconciliation-engine/pkg/errors"
	"lender-reconciliation-engine/pkg/logger"
)

// WriteToFile renders the report to a file, creating parent directories as
// needed.
func (rg *ReportGenerator) WriteToFile(report *SuggestionReport, path string) error {
	log := logger.GetGlobalLogger().WithComponent("reporter")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Wrap(err, apperrors.CategoryInternal, apperrors.CodeUnexpectedError,
				fmt.Sprintf("cannot create report directory %s", dir))
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryInternal, apperrors.CodeUnexpectedError,
			fmt.Sprintf("cannot create report file %s", path))
	}
	defer file.Close()

	if err := rg.GenerateReport(report, file); err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"path":   path,
		"format": rg.config.Format,
	}).Info("Report written")

	return nil
}

// RenderBatchSummary writes the outcome of a bulk apply in the configured
// format. Failed entries are listed with their error codes so they can be
// retried or reviewed.
func (rg *ReportGenerator) RenderBatchSummary(summary *commit.BatchSummary, writer io.Writer) error {
	if summary == nil {
		return apperrors.New(apperrors.CategoryInternal, apperrors.CodeInvalidData, "batch summary cannot be nil")
	}

	if rg.config.Format == FormatJSON {
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	}

	fmt.Fprintf(writer, "BATCH RESULT\n")
	fmt.Fprintf(writer, "Items:   %d\n", summary.Total)
	fmt.Fprintf(writer, "Applied: %d\n", summary.Applied)
	fmt.Fprintf(writer, "Skipped: %d\n", summary.Skipped)
	fmt.Fprintf(writer, "Failed:  %d\n", summary.Failed)

	if len(summary.SkippedEntries) > 0 {
		fmt.Fprintf(writer, "\nSkipped entries (claimed earlier in the batch):\n")
		fmt.Fprintf(writer, "  %s\n", strings.Join(summary.SkippedEntries, ", "))
	}

	if len(summary.Errors) > 0 {
		fmt.Fprintf(writer, "\nFailures:\n")
		for _, entryID := range sortedErrorKeys(summary.Errors) {
			ee := summary.Errors[entryID]
			fmt.Fprintf(writer, "  %s: [%s] %s\n", entryID, ee.Code, ee.Message)
		}
	}

	return nil
}

func sortedErrorKeys(errs map[string]*apperrors.EngineError) []string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
