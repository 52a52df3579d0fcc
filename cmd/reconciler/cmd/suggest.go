package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"lender-reconciliation-engine/cmd/reconciler/config"
	"lender-reconciliation-engine/internal/engine"
	"lender-reconciliation-engine/internal/reporter"
	"lender-reconciliation-engine/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the suggest command
var (
	suggestOutputFormat string
	suggestOutputFile   string
	suggestMaxItems     int
	suggestSortByConf   bool
	acceptThreshold     float64
	maxGroupSize        int
	groupDayWindow      int
)

// suggestCmd computes match suggestions for all unreconciled bank entries.
var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Compute match suggestions for unreconciled bank entries",
	Long: `Suggest runs the matching engine over every unreconciled bank entry
and the open ledger records, and reports a scored suggestion per entry:
a direct match, a group of records covering one entry, several entries
covering one record, or a proposal to create a new ledger record. No
database state is changed; use 'reconciler auto' to apply suggestions.

Examples:
  # Print suggestions to the console
  reconciler suggest

  # Machine-readable report for review tooling
  reconciler suggest --output-format json --output-file suggestions.json

  # Looser acceptance, strongest suggestions first
  reconciler suggest --accept-threshold 0.2 --sort-by-confidence`,

	PreRunE: validateSuggestFlags,
	RunE:    runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	defaults := engine.DefaultConfig()

	// Output flags
	suggestCmd.Flags().StringVarP(&suggestOutputFormat, "output-format", "f", "console", "output format: console, json, csv")
	suggestCmd.Flags().StringVarP(&suggestOutputFile, "output-file", "o", "", "output file path (default: stdout)")
	suggestCmd.Flags().IntVar(&suggestMaxItems, "max-items", 0, "limit the number of reported suggestions (0 = no limit)")
	suggestCmd.Flags().BoolVar(&suggestSortByConf, "sort-by-confidence", false, "order suggestions by confidence instead of date")

	// Matching configuration flags
	suggestCmd.Flags().Float64VarP(&acceptThreshold, "accept-threshold", "t", defaults.AcceptThreshold, "minimum confidence for a suggestion to be reported (0.0-1.0)")
	suggestCmd.Flags().IntVar(&maxGroupSize, "max-group-size", defaults.MaxGroupSize, "maximum number of records combined into one group")
	suggestCmd.Flags().IntVar(&groupDayWindow, "group-day-window", defaults.GroupDayWindow, "maximum day gap inside a group match")

	// Bind flags to viper
	viper.BindPFlag("output-format", suggestCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", suggestCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("max-items", suggestCmd.Flags().Lookup("max-items"))
	viper.BindPFlag("sort-by-confidence", suggestCmd.Flags().Lookup("sort-by-confidence"))
	viper.BindPFlag("accept-threshold", suggestCmd.Flags().Lookup("accept-threshold"))
	viper.BindPFlag("max-group-size", suggestCmd.Flags().Lookup("max-group-size"))
	viper.BindPFlag("group-day-window", suggestCmd.Flags().Lookup("group-day-window"))
}

func validateSuggestFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	suggestOutputFormat = viper.GetString("output-format")
	suggestOutputFile = viper.GetString("output-file")
	suggestMaxItems = viper.GetInt("max-items")
	suggestSortByConf = viper.GetBool("sort-by-confidence")
	acceptThreshold = viper.GetFloat64("accept-threshold")
	maxGroupSize = viper.GetInt("max-group-size")
	groupDayWindow = viper.GetInt("group-day-window")

	if suggestOutputFile != "" {
		dir := filepath.Dir(suggestOutputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	engineConfig, err := config.CreateEngineConfig(acceptThreshold, maxGroupSize, groupDayWindow)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(suggestOutputFormat, suggestMaxItems, suggestSortByConf)
	if err != nil {
		return err
	}

	store, err := storage.Open(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	snapshot, err := store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}

	learned, err := store.All()
	if err != nil {
		return err
	}

	eng := engine.New(engineConfig, learned)
	result := eng.ComputeSuggestions(snapshot)
	report := reporter.BuildSuggestionReport(snapshot, result)

	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	if suggestOutputFile != "" {
		return generator.WriteToFile(report, suggestOutputFile)
	}
	return generator.GenerateReport(report, os.Stdout)
}
