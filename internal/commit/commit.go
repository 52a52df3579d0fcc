// Package commit turns accepted suggestions into durable reconciliation
// state. Every apply re-validates its suggestion against current storage
// before the first write, performs its writes sequentially, and undoes
// completed steps in reverse order if a later one fails, so a suggestion is
// either fully applied or leaves no trace.
package commit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lender-reconciliation-engine/internal/engine"
	"lender-reconciliation-engine/internal/models"
	"lender-reconciliation-engine/internal/patterns"

	apperrors "lender-reconciliation-engine/pkg/errors"
	"lender-reconciliation-engine/pkg/logger"
)

// Store is the persistence surface the committer writes through.
type Store interface {
	GetBankEntry(ctx context.Context, id string) (*models.BankEntry, error)
	SetEntryReconciled(ctx context.Context, id string, reconciled bool, groupID string) error

	GetTargetState(ctx context.Context, ref models.TargetRef) (*models.TargetState, error)
	SetTargetReconciled(ctx context.Context, ref models.TargetRef, reconciled bool) error
	DeleteTarget(ctx context.Context, ref models.TargetRef) error

	CreateLink(ctx context.Context, link *models.ReconciliationLink) error
	DeleteLink(ctx context.Context, id string) error
	LinksForEntry(ctx context.Context, entryID string) ([]*models.ReconciliationLink, error)

	CreateLoanTransaction(ctx context.Context, t *models.LoanTransaction) error
	CreateInvestorTransaction(ctx context.Context, t *models.InvestorTransaction) error
	CreateInterestEntry(ctx context.Context, t *models.InvestorInterestEntry) error
	CreateExpense(ctx context.Context, x *models.Expense) error

	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// Committer applies and reverts suggestions.
type Committer struct {
	store   Store
	learner *patterns.Learner
	cfg     *engine.Config
	log     logger.Logger
	newID   func() string
	now     func() time.Time
	refresh func(context.Context) error
}

// NewCommitter creates a committer. learner may be nil, in which case
// applied create-suggestions are not learned from.
func NewCommitter(store Store, learner *patterns.Learner, cfg *engine.Config) *Committer {
	if cfg == nil {
		cfg = engine.DefaultConfig()
	}
	return &Committer{
		store:   store,
		learner: learner,
		cfg:     cfg,
		log:     logger.GetGlobalLogger().WithComponent("committer"),
		newID:   func() string { return uuid.New().String() },
		now:     time.Now,
	}
}

// undoStack collects compensating actions for completed write steps, run in
// reverse order when a later step fails.
type undoStack struct {
	steps []func() error
	names []string
}

func (u *undoStack) push(name string, undo func() error) {
	u.steps = append(u.steps, undo)
	u.names = append(u.names, name)
}

// unwind runs the compensations newest-first. A compensation failure leaves
// storage partially committed and is reported as such.
func (u *undoStack) unwind(entryID string) error {
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i](); err != nil {
			return apperrors.PartialCommit(entryID, u.names[i], err)
		}
	}
	return nil
}

// ApplySuggestion validates and commits one suggestion for one bank entry,
// returning the links it created. The entry and every referenced record must
// still be unreconciled; amounts must still balance. Validation failures
// leave storage untouched.
func (c *Committer) ApplySuggestion(ctx context.Context, entryID string, s engine.Suggestion) ([]*models.ReconciliationLink, error) {
	if s == nil {
		return nil, apperrors.New(apperrors.CategoryCommit, apperrors.CodeInvalidData, "nil suggestion")
	}

	entry, err := c.store.GetBankEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Reconciled {
		return nil, apperrors.New(apperrors.CategoryCommit, apperrors.CodeAlreadyClaimed,
			fmt.Sprintf("bank entry %s is already reconciled", entryID))
	}

	var links []*models.ReconciliationLink
	switch v := s.(type) {
	case engine.DirectMatch:
		links, err = c.applyDirect(ctx, entry, v)
	case engine.GroupMatch:
		links, err = c.applyGroup(ctx, entry, v)
	case engine.GroupedDisbursement:
		links, err = c.applyGroupedEntries(ctx, entry, v.Target, v.EntryIDs)
	case engine.GroupedInvestor:
		links, err = c.applyGroupedEntries(ctx, entry, v.Target, v.EntryIDs)
	case engine.CreateNew:
		links, err = c.applyCreate(ctx, entry, v)
	default:
		return nil, apperrors.New(apperrors.CategoryCommit, apperrors.CodeInvalidData,
			fmt.Sprintf("unknown suggestion type %T", s))
	}
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logger.Fields{
		"entry_id": entryID,
		"mode":     string(s.Mode()),
		"links":    len(links),
	}).Info("Suggestion applied")

	return links, nil
}

// checkTarget loads a target's current state and rejects reconciled records.
func (c *Committer) checkTarget(ctx context.Context, ref models.TargetRef) (*models.TargetState, error) {
	st, err := c.store.GetTargetState(ctx, ref)
	if err != nil {
		return nil, err
	}
	if st.Reconciled {
		return nil, apperrors.New(apperrors.CategoryCommit, apperrors.CodeAlreadyClaimed,
			fmt.Sprintf("%s %s is already reconciled", ref.Kind, ref.ID))
	}
	return st, nil
}

func (c *Committer) applyDirect(ctx context.Context, entry *models.BankEntry, s engine.DirectMatch) ([]*models.ReconciliationLink, error) {
	st, err := c.checkTarget(ctx, s.Target)
	if err != nil {
		return nil, err
	}

	if !engine.AmountsMatch(entry.AbsAmount(), st.Amount, c.cfg.CloseTolerancePercent) {
		return nil, apperrors.Imbalance(entry.ID, entry.AbsAmount().String(), st.Amount.String())
	}

	link := &models.ReconciliationLink{
		ID:             c.newID(),
		BankEntryID:    entry.ID,
		Target:         s.Target,
		Amount:         st.Amount,
		Classification: string(s.Target.Kind),
		Notes:          s.Why,
		CreatedAt:      c.now().UTC(),
	}

	var undo undoStack
	if err := c.store.CreateLink(ctx, link); err != nil {
		return nil, err
	}
	undo.push("delete link", func() error { return c.store.DeleteLink(ctx, link.ID) })

	if err := c.store.SetTargetReconciled(ctx, s.Target, true); err != nil {
		return nil, firstError(err, undo.unwind(entry.ID))
	}
	undo.push("unmark target", func() error { return c.store.SetTargetReconciled(ctx, s.Target, false) })

	if err := c.store.SetEntryReconciled(ctx, entry.ID, true, ""); err != nil {
		return nil, firstError(err, undo.unwind(entry.ID))
	}

	return []*models.ReconciliationLink{link}, nil
}

func (c *Committer) applyGroup(ctx context.Context, entry *models.BankEntry, s engine.GroupMatch) ([]*models.ReconciliationLink, error) {
	if len(s.TargetRefs) == 0 {
		return nil, apperrors.New(apperrors.CategoryCommit, apperrors.CodeInvalidData, "group match with no targets")
	}

	states := make([]*models.TargetState, 0, len(s.TargetRefs))
	sum := decimal.Zero
	for _, ref := range s.TargetRefs {
		st, err := c.checkTarget(ctx, ref)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
		sum = sum.Add(st.Amount.Abs())
	}

	if !engine.AmountsMatch(entry.AbsAmount(), sum, c.cfg.GroupTolerancePercent) {
		return nil, apperrors.Imbalance(entry.ID, entry.AbsAmount().String(), sum.String())
	}

	var undo undoStack
	var links []*models.ReconciliationLink
	for _, st := range states {
		st := st
		link := &models.ReconciliationLink{
			ID:             c.newID(),
			BankEntryID:    entry.ID,
			Target:         st.Ref,
			Amount:         st.Amount,
			Classification: string(st.Ref.Kind),
			Notes:          s.Why,
			CreatedAt:      c.now().UTC(),
		}
		if err := c.store.CreateLink(ctx, link); err != nil {
			return nil, firstError(err, undo.unwind(entry.ID))
		}
		undo.push("delete link", func() error { return c.store.DeleteLink(ctx, link.ID) })

		if err := c.store.SetTargetReconciled(ctx, st.Ref, true); err != nil {
			return nil, firstError(err, undo.unwind(entry.ID))
		}
		undo.push("unmark target", func() error { return c.store.SetTargetReconciled(ctx, st.Ref, false) })

		links = append(links, link)
	}

	if err := c.store.SetEntryReconciled(ctx, entry.ID, true, ""); err != nil {
		return nil, firstError(err, undo.unwind(entry.ID))
	}

	return links, nil
}

// applyGroupedEntries commits an N-entries-to-one-record suggestion. Every
// grouped entry gets its own link and the shared group id.
func (c *Committer) applyGroupedEntries(ctx context.Context, anchor *models.BankEntry, targetRef models.TargetRef, entryIDs []string) ([]*models.ReconciliationLink, error) {
	if len(entryIDs) < 2 {
		return nil, apperrors.New(apperrors.CategoryCommit, apperrors.CodeInvalidData, "grouped suggestion needs at least two entries")
	}

	st, err := c.checkTarget(ctx, targetRef)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.BankEntry, 0, len(entryIDs))
	sum := decimal.Zero
	for _, id := range entryIDs {
		e := anchor
		if id != anchor.ID {
			if e, err = c.store.GetBankEntry(ctx, id); err != nil {
				return nil, err
			}
			if e.Reconciled {
				return nil, apperrors.New(apperrors.CategoryCommit, apperrors.CodeAlreadyClaimed,
					fmt.Sprintf("bank entry %s is already reconciled", id))
			}
		}
		entries = append(entries, e)
		sum = sum.Add(e.AbsAmount())
	}

	if !engine.AmountsMatch(sum, st.Amount, c.cfg.GroupTolerancePercent) {
		return nil, apperrors.Imbalance(anchor.ID, sum.String(), st.Amount.String())
	}

	groupID := c.newID()

	var undo undoStack
	var links []*models.ReconciliationLink
	for _, e := range entries {
		e := e
		link := &models.ReconciliationLink{
			ID:             c.newID(),
			BankEntryID:    e.ID,
			Target:         targetRef,
			Amount:         e.AbsAmount(),
			Classification: string(targetRef.Kind),
			CreatedAt:      c.now().UTC(),
		}
		if err := c.store.CreateLink(ctx, link); err != nil {
			return nil, firstError(err, undo.unwind(anchor.ID))
		}
		undo.push("delete link", func() error { return c.store.DeleteLink(ctx, link.ID) })

		if err := c.store.SetEntryReconciled(ctx, e.ID, true, groupID); err != nil {
			return nil, firstError(err, undo.unwind(anchor.ID))
		}
		undo.push("unmark entry", func() error { return c.store.SetEntryReconciled(ctx, e.ID, false, "") })

		links = append(links, link)
	}

	if err := c.store.SetTargetReconciled(ctx, targetRef, true); err != nil {
		return nil, firstError(err, undo.unwind(anchor.ID))
	}

	return links, nil
}

func (c *Committer) applyCreate(ctx context.Context, entry *models.BankEntry, s engine.CreateNew) ([]*models.ReconciliationLink, error) {
	ref, err := c.createTargetRecord(ctx, entry, s)
	if err != nil {
		return nil, err
	}

	var undo undoStack
	undo.push("delete created record", func() error { return c.store.DeleteTarget(ctx, ref) })

	link := &models.ReconciliationLink{
		ID:             c.newID(),
		BankEntryID:    entry.ID,
		Target:         ref,
		Amount:         entry.AbsAmount(),
		Classification: s.Classification,
		Notes:          s.Why,
		WasCreated:     true,
		CreatedAt:      c.now().UTC(),
	}
	if err := c.store.CreateLink(ctx, link); err != nil {
		return nil, firstError(err, undo.unwind(entry.ID))
	}
	undo.push("delete link", func() error { return c.store.DeleteLink(ctx, link.ID) })

	if err := c.store.SetEntryReconciled(ctx, entry.ID, true, ""); err != nil {
		return nil, firstError(err, undo.unwind(entry.ID))
	}

	c.learn(entry, s)
	return []*models.ReconciliationLink{link}, nil
}

// createTargetRecord writes the ledger record a create-suggestion proposes,
// already marked reconciled, and returns its reference.
func (c *Committer) createTargetRecord(ctx context.Context, entry *models.BankEntry, s engine.CreateNew) (models.TargetRef, error) {
	id := c.newID()

	switch s.Classification {
	case "expense", "other_income":
		x := &models.Expense{
			ID:          id,
			Category:    expenseCategory(s),
			Amount:      entry.AbsAmount(),
			Date:        entry.Date,
			Description: entry.Description,
			Reconciled:  true,
		}
		return x.Ref(), c.store.CreateExpense(ctx, x)

	case "loan_repayment", "loan_disbursement":
		typ := models.LoanRepayment
		if s.Classification == "loan_disbursement" {
			typ = models.LoanDisbursement
		}
		t := &models.LoanTransaction{
			ID:         id,
			LoanID:     s.TargetEntityID,
			Type:       typ,
			Amount:     entry.AbsAmount(),
			Date:       entry.Date,
			Reconciled: true,
		}
		return t.Ref(), c.store.CreateLoanTransaction(ctx, t)

	case "capital_in", "capital_out":
		t := &models.InvestorTransaction{
			ID:         id,
			InvestorID: s.TargetEntityID,
			Type:       models.InvestorTransactionType(s.Classification),
			Amount:     entry.AbsAmount(),
			Date:       entry.Date,
			Reconciled: true,
		}
		return t.Ref(), c.store.CreateInvestorTransaction(ctx, t)

	case "interest_withdrawal":
		t := &models.InvestorInterestEntry{
			ID:         id,
			InvestorID: s.TargetEntityID,
			Type:       models.InterestDebit,
			Amount:     entry.AbsAmount(),
			Date:       entry.Date,
			Reconciled: true,
		}
		return t.Ref(), c.store.CreateInterestEntry(ctx, t)

	default:
		return models.TargetRef{}, apperrors.New(apperrors.CategoryCommit, apperrors.CodeInvalidData,
			fmt.Sprintf("cannot create record for classification %q", s.Classification))
	}
}

func expenseCategory(s engine.CreateNew) string {
	if s.Classification == "other_income" {
		return "other_income"
	}
	if s.ExpenseType != "" {
		return s.ExpenseType
	}
	return "uncategorized"
}

// learn feeds a committed create-suggestion back into the pattern store.
// Learning failures are logged, never surfaced: the commit itself succeeded.
func (c *Committer) learn(entry *models.BankEntry, s engine.CreateNew) {
	if c.learner == nil {
		return
	}

	conf := patterns.Confirmation{
		Description:    entry.Description,
		Amount:         entry.Amount,
		Direction:      entry.Direction(),
		Classification: s.Classification,
		TargetEntityID: s.TargetEntityID,
		ExpenseType:    s.ExpenseType,
	}
	if s.SplitPrincipal != 0 || s.SplitInterest != 0 || s.SplitFees != 0 {
		conf.HasSplit = true
		conf.SplitPrincipal = s.SplitPrincipal
		conf.SplitInterest = s.SplitInterest
		conf.SplitFees = s.SplitFees
	}

	if _, err := c.learner.Observe(conf); err != nil {
		c.log.WithError(err).WithField("entry_id", entry.ID).Warn("Pattern learning failed")
	}
}

// Unreconcile reverts a reconciled bank entry: links are removed, matched
// records are released, and records the engine created for the entry are
// deleted outright.
func (c *Committer) Unreconcile(ctx context.Context, entryID string) error {
	entry, err := c.store.GetBankEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if !entry.Reconciled {
		return apperrors.New(apperrors.CategoryCommit, apperrors.CodeInvalidData,
			fmt.Sprintf("bank entry %s is not reconciled", entryID))
	}

	links, err := c.store.LinksForEntry(ctx, entryID)
	if err != nil {
		return err
	}

	for _, link := range links {
		if link.WasCreated {
			if err := c.store.DeleteTarget(ctx, link.Target); err != nil {
				return err
			}
		} else {
			if err := c.store.SetTargetReconciled(ctx, link.Target, false); err != nil && !apperrors.IsStaleReference(err) {
				return err
			}
		}
		if err := c.store.DeleteLink(ctx, link.ID); err != nil {
			return err
		}
	}

	if err := c.store.SetEntryReconciled(ctx, entryID, false, ""); err != nil {
		return err
	}

	c.log.WithFields(logger.Fields{
		"entry_id": entryID,
		"links":    len(links),
	}).Info("Entry unreconciled")

	return nil
}

// firstError returns the primary error unless the compensation itself
// failed, in which case the partial-commit error takes precedence.
func firstError(primary, unwind error) error {
	if unwind != nil {
		return unwind
	}
	return primary
}
