// Package engine implements the reconciliation matching engine: a pure,
// deterministic claiming pass over a snapshot of unreconciled bank entries
// and ledger records. A prioritized cascade of matching strategies proposes
// 1:1 and N:1 candidates, the best-scoring candidate per bank entry is kept,
// and claimed ledger records are removed from the candidate pools of later
// entries. The pass returns the suggestion map and the final claim sets
// together; no mutable state outlives one invocation.
//
// Example usage:
//
//	eng := engine.New(engine.DefaultConfig(), patternStore.All())
//	result := eng.ComputeSuggestions(snapshot)
//	conflicts := engine.ComputeConflicts(result.Suggestions)
package engine

import "fmt"

// Config holds the policy constants of the matching engine. The defaults are
// tuned values carried over from production use; change them only with a
// calibration dataset to justify it.
type Config struct {
	// AcceptThreshold is the minimum confidence for a suggestion to be
	// emitted at all; candidates below it are routed to manual review.
	AcceptThreshold float64 `json:"accept_threshold"`

	// ExactTolerancePercent is the amount tolerance treated as an exact
	// match in the confidence table.
	ExactTolerancePercent float64 `json:"exact_tolerance_percent"`

	// CloseTolerancePercent is the amount tolerance treated as a close
	// match in the confidence table.
	CloseTolerancePercent float64 `json:"close_tolerance_percent"`

	// GroupTolerancePercent is the amount tolerance for subset sums.
	GroupTolerancePercent float64 `json:"group_tolerance_percent"`

	// MaxGroupSize bounds the subset-sum search. Groups larger than this
	// are never proposed.
	MaxGroupSize int `json:"max_group_size"`

	// GroupDayWindow is the maximum day gap between any grouped bank entry
	// and the ledger record it helps cover.
	GroupDayWindow int `json:"group_day_window"`

	// RepaymentGroupDayWindow limits how far apart repayments may be to be
	// grouped against a single bank credit.
	RepaymentGroupDayWindow int `json:"repayment_group_day_window"`

	// NameBoostMax caps the confidence added by a counterparty name match.
	NameBoostMax float64 `json:"name_boost_max"`

	// ScoreCap is the highest confidence the scorer ever emits; 1.00 is a
	// reserved sentinel.
	ScoreCap float64 `json:"score_cap"`

	// Strategy gates: a strategy only runs while the best score so far is
	// below its gate, so cheap-but-confident strategies short-circuit
	// expensive ones.
	GroupGate          float64 `json:"group_gate"`
	PatternGate        float64 `json:"pattern_gate"`
	ExpenseKeywordGate float64 `json:"expense_keyword_gate"`
	LoanNameGate       float64 `json:"loan_name_gate"`
	InvestorNameGate   float64 `json:"investor_name_gate"`

	// ExpenseKeywordConfidence is the fixed confidence of the expense
	// vocabulary heuristic.
	ExpenseKeywordConfidence float64 `json:"expense_keyword_confidence"`
}

// DefaultConfig returns the production policy constants.
func DefaultConfig() *Config {
	return &Config{
		AcceptThreshold:          0.35,
		ExactTolerancePercent:    0.1,
		CloseTolerancePercent:    5.0,
		GroupTolerancePercent:    1.0,
		MaxGroupSize:             5,
		GroupDayWindow:           14,
		RepaymentGroupDayWindow:  3,
		NameBoostMax:             0.15,
		ScoreCap:                 0.99,
		GroupGate:                0.9,
		PatternGate:              0.7,
		ExpenseKeywordGate:       0.6,
		LoanNameGate:             0.5,
		InvestorNameGate:         0.45,
		ExpenseKeywordConfidence: 0.65,
	}
}

// Validate checks that the configuration is internally coherent.
func (c *Config) Validate() error {
	if c.AcceptThreshold < 0 || c.AcceptThreshold > 1 {
		return fmt.Errorf("accept threshold must be between 0.0 and 1.0: %f", c.AcceptThreshold)
	}

	if c.ExactTolerancePercent < 0 || c.ExactTolerancePercent > 100 {
		return fmt.Errorf("exact tolerance percent must be between 0.0 and 100.0: %f", c.ExactTolerancePercent)
	}

	if c.CloseTolerancePercent < c.ExactTolerancePercent {
		return fmt.Errorf("close tolerance (%f) cannot be tighter than exact tolerance (%f)",
			c.CloseTolerancePercent, c.ExactTolerancePercent)
	}

	if c.MaxGroupSize < 1 {
		return fmt.Errorf("max group size must be positive: %d", c.MaxGroupSize)
	}

	if c.GroupDayWindow < 0 || c.RepaymentGroupDayWindow < 0 {
		return fmt.Errorf("day windows cannot be negative")
	}

	if c.ScoreCap <= 0 || c.ScoreCap >= 1 {
		return fmt.Errorf("score cap must be in (0,1): %f", c.ScoreCap)
	}

	for name, gate := range map[string]float64{
		"group_gate":           c.GroupGate,
		"pattern_gate":         c.PatternGate,
		"expense_keyword_gate": c.ExpenseKeywordGate,
		"loan_name_gate":       c.LoanNameGate,
		"investor_name_gate":   c.InvestorNameGate,
	} {
		if gate < 0 || gate > 1 {
			return fmt.Errorf("%s must be between 0.0 and 1.0: %f", name, gate)
		}
	}

	return nil
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
