package engine

import (
	"lender-reconciliation-engine/internal/models"
)

// MatchMode identifies the shape of a suggestion.
type MatchMode string

const (
	// ModeMatch is a 1:1 link between a bank entry and one ledger record.
	ModeMatch MatchMode = "match"
	// ModeMatchGroup links one bank entry to several ledger records that
	// together cover its amount.
	ModeMatchGroup MatchMode = "match_group"
	// ModeGroupedDisbursement links several bank debits to one loan
	// disbursement.
	ModeGroupedDisbursement MatchMode = "grouped_disbursement"
	// ModeGroupedInvestor links several bank entries to one investor
	// capital transaction.
	ModeGroupedInvestor MatchMode = "grouped_investor"
	// ModeCreate proposes creating a new ledger record (expense, other
	// income, repayment, ...) because no existing record matches.
	ModeCreate MatchMode = "create"
)

// Suggestion is the engine's output for one bank entry. It is a closed sum
// type: exactly one variant exists per match mode, each carrying only the
// fields that mode needs. Suggestions are ephemeral - recomputed whenever
// inputs change, never mutated.
type Suggestion interface {
	Mode() MatchMode
	Confidence() float64
	Reason() string
	// Targets lists every ledger record the suggestion would claim. Empty
	// for create suggestions.
	Targets() []models.TargetRef

	sealed()
}

// DirectMatch is a 1:1 match against one existing ledger record.
type DirectMatch struct {
	Target models.TargetRef
	Score  float64
	Why    string
}

func (s DirectMatch) Mode() MatchMode { return ModeMatch }
func (s DirectMatch) Confidence() float64 { return s.Score }
func (s DirectMatch) Reason() string { return s.Why }
func (s DirectMatch) Targets() []models.TargetRef { return []models.TargetRef{s.Target} }
func (DirectMatch) sealed() {}

// GroupMatch links one bank entry to several ledger records whose amounts
// sum to the entry amount (batched repayments, capital_out plus interest
// withdrawal, ...). Target kinds may be mixed.
type GroupMatch struct {
	TargetRefs []models.TargetRef
	Score      float64
	Why        string
}

func (s GroupMatch) Mode() MatchMode { return ModeMatchGroup }
func (s GroupMatch) Confidence() float64 { return s.Score }
func (s GroupMatch) Reason() string { return s.Why }
func (s GroupMatch) Targets() []models.TargetRef { return s.TargetRefs }
func (GroupMatch) sealed() {}

// GroupedDisbursement covers a loan disbursement split across several bank
// debits. EntryIDs lists every bank entry in the group, the anchor included;
// sibling entries receive no suggestion of their own.
type GroupedDisbursement struct {
	Target   models.TargetRef
	EntryIDs []string
	Score    float64
	Why      string
}

func (s GroupedDisbursement) Mode() MatchMode { return ModeGroupedDisbursement }
func (s GroupedDisbursement) Confidence() float64 { return s.Score }
func (s GroupedDisbursement) Reason() string { return s.Why }
func (s GroupedDisbursement) Targets() []models.TargetRef { return []models.TargetRef{s.Target} }
func (GroupedDisbursement) sealed() {}

// GroupedInvestor covers an investor capital transaction split across
// several bank entries.
type GroupedInvestor struct {
	Target   models.TargetRef
	EntryIDs []string
	Score    float64
	Why      string
}

func (s GroupedInvestor) Mode() MatchMode { return ModeGroupedInvestor }
func (s GroupedInvestor) Confidence() float64 { return s.Score }
func (s GroupedInvestor) Reason() string { return s.Why }
func (s GroupedInvestor) Targets() []models.TargetRef { return []models.TargetRef{s.Target} }
func (GroupedInvestor) sealed() {}

// CreateNew proposes generating a fresh ledger record to satisfy the match:
// an expense or other-income record derived from a learned pattern or the
// expense vocabulary, or a loan/investor transaction inferred from a
// counterparty name.
type CreateNew struct {
	Classification string // expense, other_income, loan_repayment, loan_disbursement, capital_in, capital_out
	TargetEntityID string // owning loan/investor id when known
	ExpenseType    string
	PatternID      string
	SplitPrincipal float64
	SplitInterest  float64
	SplitFees      float64
	Score          float64
	Why            string
}

func (s CreateNew) Mode() MatchMode { return ModeCreate }
func (s CreateNew) Confidence() float64 { return s.Score }
func (s CreateNew) Reason() string { return s.Why }
func (s CreateNew) Targets() []models.TargetRef { return nil }
func (CreateNew) sealed() {}
