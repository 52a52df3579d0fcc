package cmd

import (
	"context"
	"fmt"

	"lender-reconciliation-engine/internal/commit"
	"lender-reconciliation-engine/internal/engine"
	"lender-reconciliation-engine/internal/patterns"
	"lender-reconciliation-engine/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// unreconcileCmd reverses a previously applied suggestion.
var unreconcileCmd = &cobra.Command{
	Use:   "unreconcile <entry-id>",
	Short: "Undo the reconciliation of a bank entry",
	Long: `Unreconcile reverses an applied suggestion: the bank entry returns to
the unreconciled pool, matched ledger records are released for future
matching, and records that were created by the reconciliation are
deleted. Learned patterns are kept.

Example:
  reconciler unreconcile 7f3a1c`,

	Args: cobra.ExactArgs(1),
	RunE: runUnreconcile,
}

func init() {
	rootCmd.AddCommand(unreconcileCmd)
}

func runUnreconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	entryID := args[0]

	store, err := storage.Open(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	committer := commit.NewCommitter(store, patterns.NewLearner(store), engine.DefaultConfig())
	if err := committer.Unreconcile(ctx, entryID); err != nil {
		return err
	}

	fmt.Printf("Entry %s returned to the unreconciled pool\n", entryID)
	return nil
}
