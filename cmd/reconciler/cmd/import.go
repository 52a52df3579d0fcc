package cmd

import (
	"context"
	"fmt"
	"os"

	"lender-reconciliation-engine/cmd/reconciler/config"
	"lender-reconciliation-engine/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var importBank string

// importCmd loads a bank statement export into the reconciliation database.
var importCmd = &cobra.Command{
	Use:   "import <statement.csv>",
	Short: "Import a bank statement CSV into the database",
	Long: `Import parses a bank statement CSV export and stores its entries as
unreconciled bank entries. Rows already present in the database (matched
by reference, or by date, amount and description) are skipped as
duplicates, so re-importing an overlapping export is safe.

Examples:
  # Detect the bank format from the file's header
  reconciler import statement.csv

  # Force a specific bank profile
  reconciler import statement.csv --bank highstreet`,

	Args:    cobra.ExactArgs(1),
	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importBank, "bank", "b", "auto", "bank profile: standard, highstreet, businessfeed, auto")

	viper.BindPFlag("bank", importCmd.Flags().Lookup("bank"))
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	importBank = viper.GetString("bank")

	return validateFileExists(args[0], "bank statement file")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	filePath := args[0]

	imp, err := config.CreateImporter(importBank, filePath)
	if err != nil {
		return err
	}

	store, err := storage.Open(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := imp.Import(ctx, store, filePath)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d entries from %s (profile %s)\n", result.Inserted, filePath, imp.Config().Name)
	if result.Duplicates > 0 {
		fmt.Printf("Skipped %d duplicate entries\n", result.Duplicates)
	}
	if result.Stats.HasErrors() {
		fmt.Fprintf(os.Stderr, "%d rows could not be parsed:\n", result.Stats.ErrorCount)
		for _, parseErr := range result.Stats.SampleErrors(5) {
			fmt.Fprintf(os.Stderr, "  %s\n", parseErr)
		}
		if result.Stats.ErrorCount > 5 {
			fmt.Fprintf(os.Stderr, "  ... and %d more\n", result.Stats.ErrorCount-5)
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}
