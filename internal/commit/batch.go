package commit

import (
	"context"
	"sort"

	"lender-reconciliation-engine/internal/engine"

	apperrors "lender-reconciliation-engine/pkg/errors"
	"lender-reconciliation-engine/pkg/logger"
)

// BatchItem pairs one bank entry with the suggestion to apply for it.
type BatchItem struct {
	EntryID    string
	Suggestion engine.Suggestion
}

// BatchSummary is the outcome of a bulk apply.
type BatchSummary struct {
	Total   int `json:"total"`
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`

	// Errors maps entry id to the failure that stopped its item. Entries
	// skipped by the in-batch claim guard are not errors.
	Errors map[string]*apperrors.EngineError `json:"errors,omitempty"`

	// SkippedEntries lists entries dropped because an earlier batch item
	// claimed one of their records or grouped siblings.
	SkippedEntries []string `json:"skipped_entries,omitempty"`
}

// SetRefreshHook registers a callback invoked once at the end of a batch
// that applied at least one item. Downstream views refresh per batch, not
// per entry; hook errors are logged, never surfaced into the summary.
func (c *Committer) SetRefreshHook(hook func(context.Context) error) {
	c.refresh = hook
}

// ApplyBatch applies items serially in the given order. Each item commits or
// rolls back independently; one failure never aborts the batch. Items whose
// records were claimed by an earlier item in the same batch are skipped
// up front rather than failed.
func (c *Committer) ApplyBatch(ctx context.Context, items []BatchItem) *BatchSummary {
	summary := &BatchSummary{
		Total:  len(items),
		Errors: make(map[string]*apperrors.EngineError),
	}

	progress := logger.NewBatchProgress("apply_suggestions", len(items), c.log)
	defer progress.Finish()

	claimedTargets := make(map[string]bool)
	claimedEntries := make(map[string]bool)

	for _, item := range items {
		if ctx.Err() != nil {
			summary.Failed++
			summary.Errors[item.EntryID] = apperrors.Wrap(ctx.Err(), apperrors.CategoryCommit,
				apperrors.CodeUnexpectedError, "batch cancelled")
			progress.Step("failed")
			continue
		}

		if batchConflict(item, claimedTargets, claimedEntries) {
			summary.Skipped++
			summary.SkippedEntries = append(summary.SkippedEntries, item.EntryID)
			progress.Step("skipped")
			continue
		}

		if _, err := c.ApplySuggestion(ctx, item.EntryID, item.Suggestion); err != nil {
			summary.Failed++
			summary.Errors[item.EntryID] = apperrors.WrapIfNeeded(err, apperrors.CategoryCommit,
				apperrors.CodeUnexpectedError, "apply suggestion")
			progress.Step("failed")
			continue
		}

		recordClaims(item, claimedTargets, claimedEntries)
		summary.Applied++
		progress.Step("applied")
	}

	if summary.Applied > 0 && c.refresh != nil {
		if err := c.refresh(ctx); err != nil {
			c.log.WithError(err).Warn("Post-batch refresh failed")
		}
	}

	return summary
}

// batchConflict reports whether an earlier item in this batch already took
// one of this item's records or entries.
func batchConflict(item BatchItem, targets, entries map[string]bool) bool {
	if entries[item.EntryID] {
		return true
	}
	if item.Suggestion == nil {
		return false
	}
	for _, ref := range item.Suggestion.Targets() {
		if targets[ref.Key()] {
			return true
		}
	}
	for _, id := range groupedSiblings(item.Suggestion) {
		if entries[id] {
			return true
		}
	}
	return false
}

func recordClaims(item BatchItem, targets, entries map[string]bool) {
	entries[item.EntryID] = true
	for _, ref := range item.Suggestion.Targets() {
		targets[ref.Key()] = true
	}
	for _, id := range groupedSiblings(item.Suggestion) {
		entries[id] = true
	}
}

func groupedSiblings(s engine.Suggestion) []string {
	switch v := s.(type) {
	case engine.GroupedDisbursement:
		return v.EntryIDs
	case engine.GroupedInvestor:
		return v.EntryIDs
	default:
		return nil
	}
}

// AutoReconcile runs one matching pass over current storage and applies
// every suggestion at or above minConfidence, in entry-id order. Suggestions
// below the bar are left for manual review.
func (c *Committer) AutoReconcile(ctx context.Context, eng *engine.Engine, minConfidence float64) (*BatchSummary, error) {
	snap, err := c.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	result := eng.ComputeSuggestions(snap)

	var items []BatchItem
	for entryID, s := range result.Suggestions {
		if s.Confidence() < minConfidence {
			continue
		}
		items = append(items, BatchItem{EntryID: entryID, Suggestion: s})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EntryID < items[j].EntryID })

	c.log.WithFields(logger.Fields{
		"suggestions":    len(result.Suggestions),
		"auto_appliable": len(items),
		"min_confidence": minConfidence,
	}).Info("Auto-reconcile pass computed")

	return c.ApplyBatch(ctx, items), nil
}
