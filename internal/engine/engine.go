package engine

import (
	"sort"

	"lender-reconciliation-engine/internal/models"

	"lender-reconciliation-engine/pkg/logger"
)

// ClaimSets records which ledger records have been claimed during one pass,
// split by table the way the commit layer writes them. A ledger record may be
// claimed by at most one bank entry per pass; this is the core correctness
// property of the engine.
type ClaimSets struct {
	LedgerTransactions map[string]bool `json:"ledger_transactions"`
	Expenses           map[string]bool `json:"expenses"`
	InterestEntries    map[string]bool `json:"interest_entries"`
}

// NewClaimSets creates empty claim sets.
func NewClaimSets() *ClaimSets {
	return &ClaimSets{
		LedgerTransactions: make(map[string]bool),
		Expenses:           make(map[string]bool),
		InterestEntries:    make(map[string]bool),
	}
}

// IsClaimed reports whether the referenced record is already claimed.
func (c *ClaimSets) IsClaimed(ref models.TargetRef) bool {
	switch ref.Kind {
	case models.KindExpense:
		return c.Expenses[ref.ID]
	case models.KindInterestEntry:
		return c.InterestEntries[ref.ID]
	default:
		return c.LedgerTransactions[ref.ID]
	}
}

// Claim reserves the referenced record for the remainder of the pass.
func (c *ClaimSets) Claim(ref models.TargetRef) {
	switch ref.Kind {
	case models.KindExpense:
		c.Expenses[ref.ID] = true
	case models.KindInterestEntry:
		c.InterestEntries[ref.ID] = true
	default:
		c.LedgerTransactions[ref.ID] = true
	}
}

// Result is the complete output of one claiming pass: the suggestion map and
// the final claim sets, returned together so no mutable state outlives the
// invocation.
type Result struct {
	// Suggestions maps bank entry id to its accepted suggestion. Entries
	// covered as siblings of a grouped suggestion, and entries whose best
	// candidate fell below the acceptance threshold, are absent.
	Suggestions map[string]Suggestion
	Claims      *ClaimSets
}

// Engine evaluates the strategy cascade over snapshots. It holds only
// configuration and the learned patterns; every pass is pure with respect to
// the snapshot.
type Engine struct {
	cfg        *Config
	patterns   []*models.Pattern
	strategies []strategy
	log        logger.Logger
}

// New creates an engine with the given policy configuration and learned
// patterns. A nil config falls back to the defaults.
func New(cfg *Config, patterns []*models.Pattern) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Engine{
		cfg:      cfg,
		patterns: sortPatterns(patterns),
		// Priority order is load-bearing: confident strategies run first
		// and their scores gate the rest of the cascade.
		strategies: []strategy{
			directLoanStrategy{},
			groupedDisbursementStrategy{},
			groupedRepaymentStrategy{},
			investorStrategy{},
			groupedInvestorStrategy{},
			expenseStrategy{},
			patternStrategy{},
			expenseKeywordStrategy{},
			loanNameStrategy{},
			investorNameStrategy{},
		},
		log: logger.GetGlobalLogger().WithComponent("matching_engine"),
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.cfg.Clone()
}

// passState carries the per-invocation state the strategies read and the
// claiming pass mutates. It never escapes ComputeSuggestions.
type passState struct {
	snap     *models.Snapshot
	cfg      *Config
	index    *ledgerIndex
	patterns []*models.Pattern
	claims   *ClaimSets

	// consumed holds bank entries already covered as siblings of an
	// accepted grouped suggestion; they are skipped by the pass and
	// excluded from later group pools.
	consumed map[string]bool

	// suggested holds bank entries that already received a suggestion, so
	// group pools for later entries cannot re-use them.
	suggested map[string]bool
}

// ComputeSuggestions runs one deterministic claiming pass over the snapshot.
// Bank entries are processed oldest first (ties broken by id); for each entry
// the strategy cascade is evaluated in priority order, keeping the best
// strictly-greater score, and the winning candidate's ledger records are
// claimed so later entries cannot also take them. Identical snapshots always
// produce identical results.
func (e *Engine) ComputeSuggestions(snap *models.Snapshot) *Result {
	result := &Result{
		Suggestions: make(map[string]Suggestion),
		Claims:      NewClaimSets(),
	}
	if snap == nil {
		return result
	}

	st := &passState{
		snap:      snap,
		cfg:       e.cfg,
		index:     newLedgerIndex(snap),
		patterns:  e.patterns,
		claims:    result.Claims,
		consumed:  make(map[string]bool),
		suggested: make(map[string]bool),
	}

	entries := orderedEntries(snap.Entries)

	for _, entry := range entries {
		if st.consumed[entry.ID] {
			continue
		}

		suggestion, score := e.evaluateEntry(entry, st)
		if suggestion == nil || score < e.cfg.AcceptThreshold {
			// NoCandidateFound is a valid terminal state: the entry is
			// routed to manual review, not an error.
			continue
		}

		result.Suggestions[entry.ID] = suggestion
		st.suggested[entry.ID] = true

		for _, ref := range suggestion.Targets() {
			st.claims.Claim(ref)
		}

		// Sibling entries of a grouped suggestion are covered by it.
		for _, id := range groupedEntryIDs(suggestion) {
			if id != entry.ID {
				st.consumed[id] = true
			}
		}
	}

	e.log.WithFields(logger.Fields{
		"entries":     len(entries),
		"suggestions": len(result.Suggestions),
	}).Debug("Claiming pass completed")

	return result
}

// evaluateEntry walks the strategy cascade for one bank entry, keeping the
// best strictly-greater score. Equal scores keep the first-found candidate,
// favoring the earlier (simpler, cheaper) strategy.
func (e *Engine) evaluateEntry(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	if entry == nil || entry.Reconciled || entry.Date.IsZero() || entry.Amount.IsZero() {
		return nil, 0
	}

	var best Suggestion
	bestScore := 0.0

	for _, strat := range e.strategies {
		if best != nil && bestScore >= strat.gate(e.cfg) {
			continue
		}

		candidate, score := strat.evaluate(entry, st)
		if candidate == nil {
			continue
		}

		if score > bestScore || best == nil {
			best = candidate
			bestScore = score
		}
	}

	return best, bestScore
}

// orderedEntries sorts unreconciled, well-formed bank entries by date
// ascending with id as the stable secondary key.
func orderedEntries(entries []*models.BankEntry) []*models.BankEntry {
	var out []*models.BankEntry
	for _, e := range entries {
		if e == nil || e.Reconciled {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// groupedEntryIDs returns the bank entries covered by a grouped suggestion.
func groupedEntryIDs(s Suggestion) []string {
	switch v := s.(type) {
	case GroupedDisbursement:
		return v.EntryIDs
	case GroupedInvestor:
		return v.EntryIDs
	default:
		return nil
	}
}

// sortPatterns fixes pattern enumeration order for deterministic tie-breaks.
func sortPatterns(patterns []*models.Pattern) []*models.Pattern {
	out := make([]*models.Pattern, 0, len(patterns))
	for _, p := range patterns {
		if p != nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
