// Package patterns maintains the learned description → classification rules
// the matching engine falls back to when no ledger record fits. Learning is
// positive-only: a confirmed suggestion reinforces or creates a pattern, a
// dismissed one changes nothing. Confidence therefore only ever rises.
package patterns

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lender-reconciliation-engine/internal/models"
	"lender-reconciliation-engine/internal/normalize"
	"lender-reconciliation-engine/pkg/logger"
)

const (
	// initialConfidence is the confidence a freshly learned pattern starts
	// at, and reinforceStep is added on each later confirmation, capped at
	// confidenceCeiling.
	initialConfidence = 0.6
	reinforceStep     = 0.1
	confidenceCeiling = 1.0

	// reinforceSimilarity is the keyword similarity above which a
	// confirmation updates an existing pattern instead of creating a new
	// one.
	reinforceSimilarity = 0.7

	// amountWindowPercent widens a new pattern's amount window either side
	// of the confirmed amount, so recurring bills match across small
	// fluctuations.
	amountWindowPercent = 20
)

// Store persists patterns. Implementations must be safe for concurrent use.
type Store interface {
	All() ([]*models.Pattern, error)
	Get(id string) (*models.Pattern, error)
	Save(p *models.Pattern) error
	Delete(id string) error
}

// Confirmation is the feedback from an operator accepting a "create new"
// suggestion, or manually classifying an entry the engine could not.
type Confirmation struct {
	Description    string
	Amount         decimal.Decimal
	Direction      models.Direction
	Classification string
	TargetEntityID string
	ExpenseType    string

	// Split overrides; applied only when HasSplit is set.
	HasSplit       bool
	SplitPrincipal float64
	SplitInterest  float64
	SplitFees      float64
}

// Learner turns confirmations into stored patterns.
type Learner struct {
	store Store
	log   logger.Logger
	mu    sync.Mutex
	now   func() time.Time
}

// NewLearner creates a learner over the given store.
func NewLearner(store Store) *Learner {
	return &Learner{
		store: store,
		log:   logger.GetGlobalLogger().WithComponent("pattern_learner"),
		now:   time.Now,
	}
}

// Observe records a confirmed classification. If an existing pattern with the
// same classification has sufficiently similar keywords, it is reinforced:
// its match count grows, its confidence steps up toward the ceiling, its
// amount window stretches to cover the confirmed amount. Otherwise a new
// pattern is created around the confirmation. Returns the affected pattern.
func (l *Learner) Observe(c Confirmation) (*models.Pattern, error) {
	keywords := normalize.VendorKeywords(c.Description)
	if len(keywords) == 0 {
		// Nothing distinctive to learn from, e.g. a bare reference number.
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.findReinforceable(keywords, c)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		l.reinforce(existing, c)
		if err := l.store.Save(existing); err != nil {
			return nil, err
		}
		l.log.WithFields(logger.Fields{
			"pattern_id":  existing.ID,
			"confidence":  existing.Confidence,
			"match_count": existing.MatchCount,
		}).Debug("Pattern reinforced")
		return existing, nil
	}

	p := l.newPattern(keywords, c)
	if err := l.store.Save(p); err != nil {
		return nil, err
	}
	l.log.WithFields(logger.Fields{
		"pattern_id": p.ID,
		"signature":  p.Signature(),
	}).Debug("Pattern learned")
	return p, nil
}

// findReinforceable returns the best existing pattern the confirmation can
// reinforce, or nil. Candidates must share direction and classification and
// clear the keyword similarity bar; ties resolve to the lowest pattern id.
func (l *Learner) findReinforceable(keywords []string, c Confirmation) (*models.Pattern, error) {
	all, err := l.store.All()
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	var best *models.Pattern
	bestSim := 0.0
	for _, p := range all {
		if p.Direction != c.Direction || p.Classification != c.Classification {
			continue
		}
		if p.Classification != "expense" && p.TargetEntityID != c.TargetEntityID {
			continue
		}
		sim := normalize.KeywordOverlap(p.Keywords, keywords)
		if sim >= reinforceSimilarity && sim > bestSim {
			best = p
			bestSim = sim
		}
	}
	return best, nil
}

func (l *Learner) reinforce(p *models.Pattern, c Confirmation) {
	p.MatchCount++
	p.Confidence += reinforceStep
	if p.Confidence > confidenceCeiling {
		p.Confidence = confidenceCeiling
	}

	amount := c.Amount.Abs()
	if amount.LessThan(p.AmountMin) {
		p.AmountMin = amount
	}
	if amount.GreaterThan(p.AmountMax) {
		p.AmountMax = amount
	}

	if c.ExpenseType != "" {
		p.ExpenseType = c.ExpenseType
	}
	if c.HasSplit {
		p.SplitPrincipal = c.SplitPrincipal
		p.SplitInterest = c.SplitInterest
		p.SplitFees = c.SplitFees
	}
	p.UpdatedAt = l.now()
}

func (l *Learner) newPattern(keywords []string, c Confirmation) *models.Pattern {
	amount := c.Amount.Abs()
	window := amount.Mul(decimal.NewFromInt(amountWindowPercent)).Div(decimal.NewFromInt(100))
	now := l.now()

	p := &models.Pattern{
		ID:             uuid.New().String(),
		Keywords:       keywords,
		AmountMin:      amount.Sub(window),
		AmountMax:      amount.Add(window),
		Direction:      c.Direction,
		Classification: c.Classification,
		TargetEntityID: c.TargetEntityID,
		ExpenseType:    c.ExpenseType,
		Confidence:     initialConfidence,
		MatchCount:     1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.AmountMin.IsNegative() {
		p.AmountMin = decimal.Zero
	}
	if c.HasSplit {
		p.SplitPrincipal = c.SplitPrincipal
		p.SplitInterest = c.SplitInterest
		p.SplitFees = c.SplitFees
	}
	return p
}
