package commit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lender-reconciliation-engine/internal/engine"
	"lender-reconciliation-engine/internal/models"
	"lender-reconciliation-engine/internal/patterns"

	apperrors "lender-reconciliation-engine/pkg/errors"
)

// fakeStore is an in-memory commit.Store with per-operation failure
// injection, so tests can force a mid-commit write error and observe the
// compensating rollback.
type fakeStore struct {
	entries map[string]*models.BankEntry
	targets map[string]*models.TargetState
	links   []*models.ReconciliationLink

	snapshot *models.Snapshot

	failCreateLink  error
	failSetEntry    error
	failDeleteLink  error
	failUnmarkEntry error
	// keyed by TargetRef.Key; applies to marking reconciled only
	failMarkTarget map[string]error
	// applies to releasing a target (reconciled = false)
	failUnmarkTarget error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries:        make(map[string]*models.BankEntry),
		targets:        make(map[string]*models.TargetState),
		failMarkTarget: make(map[string]error),
	}
}

func (f *fakeStore) addEntry(e *models.BankEntry) { f.entries[e.ID] = e }

func (f *fakeStore) addTarget(ref models.TargetRef, amount string, reconciled bool) {
	f.targets[ref.Key()] = &models.TargetState{
		Ref:        ref,
		Amount:     decimal.RequireFromString(amount),
		Reconciled: reconciled,
	}
}

func (f *fakeStore) GetBankEntry(_ context.Context, id string) (*models.BankEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, apperrors.StaleReference("bank_entry", id)
	}
	clone := *e
	return &clone, nil
}

func (f *fakeStore) SetEntryReconciled(_ context.Context, id string, reconciled bool, groupID string) error {
	if reconciled && f.failSetEntry != nil {
		return f.failSetEntry
	}
	if !reconciled && f.failUnmarkEntry != nil {
		return f.failUnmarkEntry
	}
	e, ok := f.entries[id]
	if !ok {
		return apperrors.StaleReference("bank_entry", id)
	}
	e.Reconciled = reconciled
	e.GroupID = groupID
	return nil
}

func (f *fakeStore) GetTargetState(_ context.Context, ref models.TargetRef) (*models.TargetState, error) {
	st, ok := f.targets[ref.Key()]
	if !ok {
		return nil, apperrors.StaleReference(string(ref.Kind), ref.ID)
	}
	clone := *st
	return &clone, nil
}

func (f *fakeStore) SetTargetReconciled(_ context.Context, ref models.TargetRef, reconciled bool) error {
	if reconciled {
		if err := f.failMarkTarget[ref.Key()]; err != nil {
			return err
		}
	} else if f.failUnmarkTarget != nil {
		return f.failUnmarkTarget
	}
	st, ok := f.targets[ref.Key()]
	if !ok {
		return apperrors.StaleReference(string(ref.Kind), ref.ID)
	}
	st.Reconciled = reconciled
	return nil
}

func (f *fakeStore) DeleteTarget(_ context.Context, ref models.TargetRef) error {
	delete(f.targets, ref.Key())
	return nil
}

func (f *fakeStore) CreateLink(_ context.Context, link *models.ReconciliationLink) error {
	if f.failCreateLink != nil {
		return f.failCreateLink
	}
	clone := *link
	f.links = append(f.links, &clone)
	return nil
}

func (f *fakeStore) DeleteLink(_ context.Context, id string) error {
	if f.failDeleteLink != nil {
		return f.failDeleteLink
	}
	for i, l := range f.links {
		if l.ID == id {
			f.links = append(f.links[:i], f.links[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) LinksForEntry(_ context.Context, entryID string) ([]*models.ReconciliationLink, error) {
	var out []*models.ReconciliationLink
	for _, l := range f.links {
		if l.BankEntryID == entryID {
			clone := *l
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateLoanTransaction(_ context.Context, t *models.LoanTransaction) error {
	f.targets[t.Ref().Key()] = &models.TargetState{Ref: t.Ref(), Amount: t.Amount, Reconciled: t.Reconciled}
	return nil
}

func (f *fakeStore) CreateInvestorTransaction(_ context.Context, t *models.InvestorTransaction) error {
	f.targets[t.Ref().Key()] = &models.TargetState{Ref: t.Ref(), Amount: t.Amount, Reconciled: t.Reconciled}
	return nil
}

func (f *fakeStore) CreateInterestEntry(_ context.Context, t *models.InvestorInterestEntry) error {
	f.targets[t.Ref().Key()] = &models.TargetState{Ref: t.Ref(), Amount: t.Amount, Reconciled: t.Reconciled}
	return nil
}

func (f *fakeStore) CreateExpense(_ context.Context, x *models.Expense) error {
	f.targets[x.Ref().Key()] = &models.TargetState{Ref: x.Ref(), Amount: x.Amount, Reconciled: x.Reconciled}
	return nil
}

func (f *fakeStore) LoadSnapshot(_ context.Context) (*models.Snapshot, error) {
	return f.snapshot, nil
}

func testCommitter(store Store, learner *patterns.Learner) *Committer {
	c := NewCommitter(store, learner, engine.DefaultConfig())
	seq := 0
	c.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	c.now = func() time.Time { return time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC) }
	return c
}

func commitEntry(id, amount string, day int) *models.BankEntry {
	return &models.BankEntry{
		ID:          id,
		Amount:      decimal.RequireFromString(amount),
		Date:        time.Date(2026, 7, day, 0, 0, 0, 0, time.UTC),
		Description: "TEST ENTRY " + id,
	}
}

func loanRef(id string) models.TargetRef {
	return models.TargetRef{Kind: models.KindLoanTransaction, ID: id}
}

func wantCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	ee, ok := apperrors.AsEngineError(err)
	if !ok {
		t.Fatalf("expected EngineError, got %T: %v", err, err)
	}
	if ee.Code != code {
		t.Fatalf("expected code %s, got %s: %v", code, ee.Code, err)
	}
}

func TestApplyDirectMatch(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "500.00", 10))
	store.addTarget(loanRef("lt1"), "500.00", false)

	c := testCommitter(store, nil)
	links, err := c.ApplySuggestion(context.Background(), "e1",
		engine.DirectMatch{Target: loanRef("lt1"), Score: 0.95, Why: "exact amount, same day"})
	if err != nil {
		t.Fatalf("ApplySuggestion: %v", err)
	}

	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	link := links[0]
	if link.BankEntryID != "e1" || link.Target != loanRef("lt1") {
		t.Errorf("unexpected link %+v", link)
	}
	if !link.Amount.Equal(decimal.RequireFromString("500.00")) {
		t.Errorf("link amount = %s", link.Amount)
	}
	if link.Classification != "loan_transaction" {
		t.Errorf("link classification = %q", link.Classification)
	}
	if !store.entries["e1"].Reconciled {
		t.Error("entry not marked reconciled")
	}
	if !store.targets[loanRef("lt1").Key()].Reconciled {
		t.Error("target not marked reconciled")
	}
}

func TestApplyDirect_EntryAlreadyReconciled(t *testing.T) {
	store := newFakeStore()
	e := commitEntry("e1", "500.00", 10)
	e.Reconciled = true
	store.addEntry(e)
	store.addTarget(loanRef("lt1"), "500.00", false)

	c := testCommitter(store, nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", engine.DirectMatch{Target: loanRef("lt1"), Score: 0.95})
	wantCode(t, err, apperrors.CodeAlreadyClaimed)
	if len(store.links) != 0 {
		t.Error("no links should be written")
	}
}

func TestApplyDirect_TargetAlreadyClaimed(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "500.00", 10))
	store.addTarget(loanRef("lt1"), "500.00", true)

	c := testCommitter(store, nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", engine.DirectMatch{Target: loanRef("lt1"), Score: 0.95})
	wantCode(t, err, apperrors.CodeAlreadyClaimed)
	if store.entries["e1"].Reconciled || len(store.links) != 0 {
		t.Error("storage must be untouched after validation failure")
	}
}

func TestApplyDirect_StaleTarget(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "500.00", 10))

	c := testCommitter(store, nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", engine.DirectMatch{Target: loanRef("gone"), Score: 0.95})
	if !apperrors.IsStaleReference(err) {
		t.Fatalf("expected stale reference, got %v", err)
	}
}

func TestApplyDirect_Imbalance(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "500.00", 10))
	store.addTarget(loanRef("lt1"), "600.00", false)

	c := testCommitter(store, nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", engine.DirectMatch{Target: loanRef("lt1"), Score: 0.95})
	wantCode(t, err, apperrors.CodeImbalance)
	if store.entries["e1"].Reconciled || store.targets[loanRef("lt1").Key()].Reconciled || len(store.links) != 0 {
		t.Error("storage must be untouched after imbalance")
	}
}

func TestApplyDirect_RollbackOnEntryWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "500.00", 10))
	store.addTarget(loanRef("lt1"), "500.00", false)
	store.failSetEntry = fmt.Errorf("disk full")

	c := testCommitter(store, nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", engine.DirectMatch{Target: loanRef("lt1"), Score: 0.95})
	if err == nil {
		t.Fatal("expected error")
	}

	if len(store.links) != 0 {
		t.Errorf("link not rolled back, %d remain", len(store.links))
	}
	if store.targets[loanRef("lt1").Key()].Reconciled {
		t.Error("target not released on rollback")
	}
	if store.entries["e1"].Reconciled {
		t.Error("entry must stay unreconciled")
	}
}

func TestApplyDirect_PartialCommitWhenUndoFails(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "500.00", 10))
	store.addTarget(loanRef("lt1"), "500.00", false)
	store.failSetEntry = fmt.Errorf("disk full")
	store.failUnmarkTarget = fmt.Errorf("connection lost")

	c := testCommitter(store, nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", engine.DirectMatch{Target: loanRef("lt1"), Score: 0.95})
	wantCode(t, err, apperrors.CodePartialCommit)
}

func TestApplyGroupMatch(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "700.00", 10))
	store.addTarget(loanRef("r1"), "300.00", false)
	store.addTarget(loanRef("r2"), "400.00", false)

	c := testCommitter(store, nil)
	links, err := c.ApplySuggestion(context.Background(), "e1", engine.GroupMatch{
		TargetRefs: []models.TargetRef{loanRef("r1"), loanRef("r2")},
		Score:      0.85,
	})
	if err != nil {
		t.Fatalf("ApplySuggestion: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	for _, ref := range []models.TargetRef{loanRef("r1"), loanRef("r2")} {
		if !store.targets[ref.Key()].Reconciled {
			t.Errorf("target %s not reconciled", ref.Key())
		}
	}
	if !store.entries["e1"].Reconciled {
		t.Error("entry not reconciled")
	}
}

func TestApplyGroup_SumImbalance(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "700.00", 10))
	store.addTarget(loanRef("r1"), "300.00", false)
	store.addTarget(loanRef("r2"), "350.00", false)

	c := testCommitter(store, nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", engine.GroupMatch{
		TargetRefs: []models.TargetRef{loanRef("r1"), loanRef("r2")},
		Score:      0.85,
	})
	wantCode(t, err, apperrors.CodeImbalance)
	if len(store.links) != 0 {
		t.Error("no links should be written")
	}
}

func TestApplyGroup_RollbackReleasesEarlierTargets(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "700.00", 10))
	store.addTarget(loanRef("r1"), "300.00", false)
	store.addTarget(loanRef("r2"), "400.00", false)
	store.failMarkTarget[loanRef("r2").Key()] = fmt.Errorf("locked")

	c := testCommitter(store, nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", engine.GroupMatch{
		TargetRefs: []models.TargetRef{loanRef("r1"), loanRef("r2")},
		Score:      0.85,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if store.targets[loanRef("r1").Key()].Reconciled {
		t.Error("first target not released on rollback")
	}
	if len(store.links) != 0 {
		t.Errorf("links not rolled back, %d remain", len(store.links))
	}
	if store.entries["e1"].Reconciled {
		t.Error("entry must stay unreconciled")
	}
}

func TestApplyGroupedDisbursement(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "-3000.00", 10))
	store.addEntry(commitEntry("e2", "-2000.00", 10))
	store.addTarget(loanRef("lt1"), "5000.00", false)

	c := testCommitter(store, nil)
	links, err := c.ApplySuggestion(context.Background(), "e1", engine.GroupedDisbursement{
		Target:   loanRef("lt1"),
		EntryIDs: []string{"e1", "e2"},
		Score:    0.85,
	})
	if err != nil {
		t.Fatalf("ApplySuggestion: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}

	g1, g2 := store.entries["e1"].GroupID, store.entries["e2"].GroupID
	if g1 == "" || g1 != g2 {
		t.Errorf("entries must share a group id, got %q and %q", g1, g2)
	}
	if !store.entries["e1"].Reconciled || !store.entries["e2"].Reconciled {
		t.Error("both grouped entries must be reconciled")
	}
	if !store.targets[loanRef("lt1").Key()].Reconciled {
		t.Error("target not reconciled")
	}
}

func TestApplyGroupedEntries_SiblingAlreadyReconciled(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "-3000.00", 10))
	e2 := commitEntry("e2", "-2000.00", 10)
	e2.Reconciled = true
	store.addEntry(e2)
	store.addTarget(loanRef("lt1"), "5000.00", false)

	c := testCommitter(store, nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", engine.GroupedDisbursement{
		Target:   loanRef("lt1"),
		EntryIDs: []string{"e1", "e2"},
		Score:    0.85,
	})
	wantCode(t, err, apperrors.CodeAlreadyClaimed)
	if store.entries["e1"].Reconciled || len(store.links) != 0 {
		t.Error("storage must be untouched")
	}
}

func TestApplyCreate_ExpenseAndLearning(t *testing.T) {
	store := newFakeStore()
	store.addEntry(&models.BankEntry{
		ID:          "e1",
		Amount:      decimal.RequireFromString("-45.50"),
		Date:        time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		Description: "EDF ENERGY MONTHLY",
	})

	patternStore := patterns.NewMemoryStore()
	c := testCommitter(store, patterns.NewLearner(patternStore))

	links, err := c.ApplySuggestion(context.Background(), "e1", engine.CreateNew{
		Classification: "expense",
		ExpenseType:    "utilities",
		Score:          0.65,
	})
	if err != nil {
		t.Fatalf("ApplySuggestion: %v", err)
	}
	if len(links) != 1 || !links[0].WasCreated {
		t.Fatalf("expected one created-record link, got %+v", links)
	}

	st, ok := store.targets[links[0].Target.Key()]
	if !ok {
		t.Fatal("expense record not created")
	}
	if !st.Reconciled {
		t.Error("created record must be born reconciled")
	}
	if !st.Amount.Equal(decimal.RequireFromString("45.50")) {
		t.Errorf("created amount = %s", st.Amount)
	}
	if !store.entries["e1"].Reconciled {
		t.Error("entry not reconciled")
	}

	learned, err := patternStore.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(learned) != 1 {
		t.Fatalf("expected 1 learned pattern, got %d", len(learned))
	}
	if learned[0].Classification != "expense" || learned[0].ExpenseType != "utilities" {
		t.Errorf("unexpected learned pattern %+v", learned[0])
	}
}

func TestApplyCreate_UnknownClassification(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "-45.50", 10))

	c := testCommitter(store, nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", engine.CreateNew{Classification: "dividends"})
	wantCode(t, err, apperrors.CodeInvalidData)
	if len(store.targets) != 0 || len(store.links) != 0 {
		t.Error("nothing should be created")
	}
}

func TestApplySuggestion_NilSuggestion(t *testing.T) {
	c := testCommitter(newFakeStore(), nil)
	_, err := c.ApplySuggestion(context.Background(), "e1", nil)
	wantCode(t, err, apperrors.CodeInvalidData)
}

func TestUnreconcile_ReleasesMatchedTarget(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "500.00", 10))
	store.addTarget(loanRef("lt1"), "500.00", false)

	c := testCommitter(store, nil)
	if _, err := c.ApplySuggestion(context.Background(), "e1", engine.DirectMatch{Target: loanRef("lt1"), Score: 0.95}); err != nil {
		t.Fatalf("ApplySuggestion: %v", err)
	}

	if err := c.Unreconcile(context.Background(), "e1"); err != nil {
		t.Fatalf("Unreconcile: %v", err)
	}

	if store.entries["e1"].Reconciled {
		t.Error("entry still reconciled")
	}
	if store.targets[loanRef("lt1").Key()].Reconciled {
		t.Error("matched target must be released, not deleted")
	}
	if len(store.links) != 0 {
		t.Errorf("links not removed, %d remain", len(store.links))
	}
}

func TestUnreconcile_DeletesCreatedRecord(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "-45.50", 10))

	c := testCommitter(store, nil)
	links, err := c.ApplySuggestion(context.Background(), "e1", engine.CreateNew{
		Classification: "expense",
		ExpenseType:    "utilities",
		Score:          0.65,
	})
	if err != nil {
		t.Fatalf("ApplySuggestion: %v", err)
	}

	if err := c.Unreconcile(context.Background(), "e1"); err != nil {
		t.Fatalf("Unreconcile: %v", err)
	}

	if _, ok := store.targets[links[0].Target.Key()]; ok {
		t.Error("engine-created record must be deleted on unreconcile")
	}
	if store.entries["e1"].Reconciled || len(store.links) != 0 {
		t.Error("entry must be released and links removed")
	}
}

func TestUnreconcile_NotReconciled(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "500.00", 10))

	c := testCommitter(store, nil)
	err := c.Unreconcile(context.Background(), "e1")
	wantCode(t, err, apperrors.CodeInvalidData)
}

func TestApplyBatch(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "500.00", 10))
	store.addEntry(commitEntry("e2", "500.00", 11))
	store.addEntry(commitEntry("e3", "700.00", 12))
	store.addTarget(loanRef("lt1"), "500.00", false)
	store.addTarget(loanRef("lt2"), "950.00", false)

	c := testCommitter(store, nil)
	summary := c.ApplyBatch(context.Background(), []BatchItem{
		{EntryID: "e1", Suggestion: engine.DirectMatch{Target: loanRef("lt1"), Score: 0.95}},
		// same target as e1: skipped by the in-batch guard, never attempted
		{EntryID: "e2", Suggestion: engine.DirectMatch{Target: loanRef("lt1"), Score: 0.85}},
		// amounts do not balance: fails, batch continues
		{EntryID: "e3", Suggestion: engine.DirectMatch{Target: loanRef("lt2"), Score: 0.70}},
	})

	if summary.Total != 3 || summary.Applied != 1 || summary.Skipped != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.SkippedEntries) != 1 || summary.SkippedEntries[0] != "e2" {
		t.Errorf("skipped = %v", summary.SkippedEntries)
	}
	if ee := summary.Errors["e3"]; ee == nil || ee.Code != apperrors.CodeImbalance {
		t.Errorf("expected imbalance error for e3, got %v", summary.Errors["e3"])
	}

	if !store.entries["e1"].Reconciled {
		t.Error("e1 should be applied")
	}
	if store.entries["e2"].Reconciled || store.entries["e3"].Reconciled {
		t.Error("e2 and e3 must stay unreconciled")
	}
}

func TestApplyBatch_GroupedSiblingGuard(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "-3000.00", 10))
	store.addEntry(commitEntry("e2", "-2000.00", 10))
	store.addTarget(loanRef("lt1"), "5000.00", false)
	store.addTarget(loanRef("lt2"), "2000.00", false)

	c := testCommitter(store, nil)
	summary := c.ApplyBatch(context.Background(), []BatchItem{
		{EntryID: "e1", Suggestion: engine.GroupedDisbursement{Target: loanRef("lt1"), EntryIDs: []string{"e1", "e2"}, Score: 0.85}},
		// e2 was consumed by the grouped item above
		{EntryID: "e2", Suggestion: engine.DirectMatch{Target: loanRef("lt2"), Score: 0.95}},
	})

	if summary.Applied != 1 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if store.targets[loanRef("lt2").Key()].Reconciled {
		t.Error("lt2 must not be claimed")
	}
}

func TestApplyBatch_RefreshHookRunsOncePerBatch(t *testing.T) {
	store := newFakeStore()
	store.addEntry(commitEntry("e1", "500.00", 10))
	store.addEntry(commitEntry("e2", "300.00", 11))
	store.addTarget(loanRef("lt1"), "500.00", false)
	store.addTarget(loanRef("lt2"), "300.00", false)

	c := testCommitter(store, nil)
	refreshed := 0
	c.SetRefreshHook(func(ctx context.Context) error {
		refreshed++
		return nil
	})

	c.ApplyBatch(context.Background(), []BatchItem{
		{EntryID: "e1", Suggestion: engine.DirectMatch{Target: loanRef("lt1"), Score: 0.95}},
		{EntryID: "e2", Suggestion: engine.DirectMatch{Target: loanRef("lt2"), Score: 0.90}},
	})
	if refreshed != 1 {
		t.Errorf("refresh ran %d times, want 1", refreshed)
	}

	// Nothing applied, nothing to refresh.
	c.ApplyBatch(context.Background(), nil)
	if refreshed != 1 {
		t.Errorf("refresh ran %d times after empty batch, want 1", refreshed)
	}
}

func TestAutoReconcile(t *testing.T) {
	store := newFakeStore()
	// strong: exact amount, same day (0.95); weak: close amount, 5 days (0.45)
	store.addEntry(commitEntry("e1", "500.00", 10))
	store.addEntry(commitEntry("e2", "490.00", 10))
	store.addTarget(loanRef("lt1"), "500.00", false)
	store.addTarget(loanRef("lt2"), "480.00", false)

	store.snapshot = &models.Snapshot{
		Entries: []*models.BankEntry{
			store.entries["e1"],
			store.entries["e2"],
		},
		LoanTransactions: []*models.LoanTransaction{
			{ID: "lt1", LoanID: "l1", Type: models.LoanRepayment, Amount: decimal.RequireFromString("500.00"), Date: time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)},
			{ID: "lt2", LoanID: "l1", Type: models.LoanRepayment, Amount: decimal.RequireFromString("480.00"), Date: time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC)},
		},
		Loans: map[string]*models.Loan{"l1": {ID: "l1", BorrowerID: "b1", Status: "open"}},
		Borrowers: map[string]*models.Borrower{
			"b1": {ID: "b1", Name: "John Smith"},
		},
		Investors: map[string]*models.Investor{},
	}

	c := testCommitter(store, nil)
	eng := engine.New(engine.DefaultConfig(), nil)

	summary, err := c.AutoReconcile(context.Background(), eng, 0.9)
	if err != nil {
		t.Fatalf("AutoReconcile: %v", err)
	}

	if summary.Applied != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !store.entries["e1"].Reconciled {
		t.Error("high-confidence match should be applied")
	}
	if store.entries["e2"].Reconciled {
		t.Error("below-threshold match must be left for review")
	}
}
