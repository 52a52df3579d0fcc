package cmd

import (
	"context"
	"fmt"
	"os"

	"lender-reconciliation-engine/cmd/reconciler/config"
	"lender-reconciliation-engine/internal/commit"
	"lender-reconciliation-engine/internal/engine"
	"lender-reconciliation-engine/internal/patterns"
	"lender-reconciliation-engine/internal/reporter"
	"lender-reconciliation-engine/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the auto command
var (
	autoMinConfidence float64
	autoOutputFormat  string
	autoDryRun        bool
)

// autoCmd applies every suggestion at or above a confidence floor.
var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Apply all suggestions at or above a confidence threshold",
	Long: `Auto computes suggestions like 'reconciler suggest' and then applies
every suggestion whose confidence meets the --min-confidence floor.
Each application is atomic: either the bank entry, the ledger records
and their links are all updated, or the entry is left untouched and
reported as failed. Entries contending for a record already claimed
earlier in the run are skipped, not failed.

Confirmed record creations feed the pattern learner, so future runs
classify similar entries with higher confidence.

Examples:
  # Conservative pass, strong matches only
  reconciler auto

  # Preview what would be applied without changing the database
  reconciler auto --dry-run

  # Accept weaker matches
  reconciler auto --min-confidence 0.7`,

	PreRunE: validateAutoFlags,
	RunE:    runAuto,
}

func init() {
	rootCmd.AddCommand(autoCmd)

	autoCmd.Flags().Float64VarP(&autoMinConfidence, "min-confidence", "m", 0.9, "minimum confidence for a suggestion to be applied (0.0-1.0)")
	autoCmd.Flags().StringVarP(&autoOutputFormat, "output-format", "f", "console", "output format: console, json")
	autoCmd.Flags().BoolVar(&autoDryRun, "dry-run", false, "report what would be applied without writing")

	viper.BindPFlag("min-confidence", autoCmd.Flags().Lookup("min-confidence"))
	viper.BindPFlag("auto-output-format", autoCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("dry-run", autoCmd.Flags().Lookup("dry-run"))
}

func validateAutoFlags(cmd *cobra.Command, args []string) error {
	autoMinConfidence = viper.GetFloat64("min-confidence")
	autoOutputFormat = viper.GetString("auto-output-format")
	autoDryRun = viper.GetBool("dry-run")

	if autoMinConfidence < 0.0 || autoMinConfidence > 1.0 {
		return fmt.Errorf("min confidence must be between 0.0 and 1.0")
	}

	switch autoOutputFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json", autoOutputFormat)
	}

	return nil
}

func runAuto(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	defaults := engine.DefaultConfig()
	engineConfig, err := config.CreateEngineConfig(
		defaults.AcceptThreshold, defaults.MaxGroupSize, defaults.GroupDayWindow)
	if err != nil {
		return err
	}

	store, err := storage.Open(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	learned, err := store.All()
	if err != nil {
		return err
	}

	eng := engine.New(engineConfig, learned)

	if autoDryRun {
		return previewAuto(ctx, store, eng)
	}

	committer := commit.NewCommitter(store, patterns.NewLearner(store), engineConfig)
	summary, err := committer.AutoReconcile(ctx, eng, autoMinConfidence)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(autoOutputFormat, 0, false)
	if err != nil {
		return err
	}
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	return generator.RenderBatchSummary(summary, os.Stdout)
}

// previewAuto lists the entries the run would apply, without writing.
func previewAuto(ctx context.Context, store *storage.Store, eng *engine.Engine) error {
	snapshot, err := store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}

	result := eng.ComputeSuggestions(snapshot)

	applicable := 0
	for _, s := range result.Suggestions {
		if s.Confidence() >= autoMinConfidence {
			applicable++
		}
	}

	fmt.Printf("Dry run: %d of %d suggested entries meet the %.2f confidence floor\n",
		applicable, len(result.Suggestions), autoMinConfidence)

	report := reporter.BuildSuggestionReport(snapshot, result)
	reportConfig, err := config.CreateReportConfig(autoOutputFormat, 0, true)
	if err != nil {
		return err
	}
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}
	return generator.GenerateReport(report, os.Stdout)
}
