// Package config builds the runtime configurations of the reconciler CLI
// from command-line flags, applying overrides on top of package defaults.
package config

import (
	"strings"

	"lender-reconciliation-engine/internal/engine"
	"lender-reconciliation-engine/internal/importer"
	"lender-reconciliation-engine/internal/reporter"
	apperrors "lender-reconciliation-engine/pkg/errors"
)

// CreateEngineConfig creates a matching engine configuration with the
// specified CLI overrides applied to the production defaults.
func CreateEngineConfig(acceptThreshold float64, maxGroupSize, groupDayWindow int) (*engine.Config, error) {
	cfg := engine.DefaultConfig()

	cfg.AcceptThreshold = acceptThreshold
	cfg.MaxGroupSize = maxGroupSize
	cfg.GroupDayWindow = groupDayWindow

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryConfig, apperrors.CodeInvalidConfig,
			"invalid matching configuration")
	}

	return cfg, nil
}

// CreateReportConfig creates a report configuration for the requested output
// format.
func CreateReportConfig(format string, maxItems int, sortByConfidence bool) (*reporter.ReportConfig, error) {
	cfg := reporter.DefaultReportConfig()

	switch strings.ToLower(format) {
	case "console", "":
		cfg.Format = reporter.FormatConsole
	case "json":
		cfg.Format = reporter.FormatJSON
	case "csv":
		cfg.Format = reporter.FormatCSV
	default:
		return nil, apperrors.New(apperrors.CategoryConfig, apperrors.CodeInvalidConfig,
			"unknown output format: "+format).
			WithSuggestion("valid formats: console, json, csv")
	}

	cfg.MaxItems = maxItems
	cfg.SortByConfidence = sortByConfidence

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CreateImporter builds an importer for the named bank profile, or detects
// the profile from the file's header when profile is empty or "auto".
func CreateImporter(profile, filePath string) (*importer.Importer, error) {
	if profile == "" || strings.EqualFold(profile, "auto") {
		return importer.NewWithAutoDetect(filePath)
	}

	bankConfig := importer.GetBankConfig(profile)
	if bankConfig == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, apperrors.CodeInvalidConfig,
			"unknown bank profile: "+profile).
			WithSuggestion("valid profiles: " + strings.Join(availableProfileNames(), ", ") + ", auto")
	}

	return importer.New(bankConfig)
}

func availableProfileNames() []string {
	configs := importer.ListAvailableBankConfigs()
	names := make([]string, 0, len(configs))
	for _, c := range configs {
		names = append(names, c.Name)
	}
	return names
}
