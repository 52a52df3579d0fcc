package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountsMatch reports whether two amounts agree within tolerancePercent of
// the larger one. Two zero amounts match; a zero against a non-zero never
// does.
func AmountsMatch(a, b decimal.Decimal, tolerancePercent float64) bool {
	absA, absB := a.Abs(), b.Abs()

	if absA.IsZero() && absB.IsZero() {
		return true
	}
	if absA.IsZero() || absB.IsZero() {
		return false
	}

	larger := absA
	if absB.GreaterThan(larger) {
		larger = absB
	}

	tolerance := larger.Mul(decimal.NewFromFloat(tolerancePercent / 100.0))
	return absA.Sub(absB).Abs().LessThanOrEqual(tolerance)
}

// dayGap returns the whole-day distance between two dates, ignoring time of
// day.
func dayGap(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)

	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

// MatchScore combines amount exactness and date proximity into a confidence
// score using a fixed table. Amount exactness dominates date closeness:
// dates routinely slip by a few days through bank processing, amounts almost
// never do.
func (c *Config) MatchScore(entryAmount decimal.Decimal, entryDate time.Time, recordAmount decimal.Decimal, recordDate time.Time) float64 {
	if entryDate.IsZero() || recordDate.IsZero() {
		return 0
	}

	exact := AmountsMatch(entryAmount, recordAmount, c.ExactTolerancePercent)
	close := AmountsMatch(entryAmount, recordAmount, c.CloseTolerancePercent)
	if !exact && !close {
		return 0
	}

	days := dayGap(entryDate, recordDate)

	switch {
	case exact && days == 0:
		return 0.95
	case exact && days <= 3:
		return 0.85
	case exact && days <= 7:
		return 0.75
	case close && days == 0:
		return 0.70
	case close && days <= 3:
		return 0.60
	case exact && days <= 14:
		return 0.50
	case close && days <= 7:
		return 0.45
	case exact && days <= 30:
		return 0.40
	case close && days <= 14:
		return 0.25
	case days > 30:
		return 0.10
	default:
		// close-but-not-exact match 15-30 days out scores nothing
		return 0
	}
}

// DateProximityScore is a coarser decay used only for grouping eligibility,
// never for final confidence.
func DateProximityScore(a, b time.Time) float64 {
	days := dayGap(a, b)

	switch {
	case days == 0:
		return 1.0
	case days <= 1:
		return 0.95
	case days <= 3:
		return 0.85
	case days <= 7:
		return 0.70
	case days <= 14:
		return 0.50
	case days <= 30:
		return 0.30
	default:
		return 0.1
	}
}

// ApplyNameBoost adds the counterparty-name bonus to a base score. The boost
// is at most NameBoostMax and the combined score never reaches 1.00, which is
// reserved as a sentinel the scorer must not emit.
func (c *Config) ApplyNameBoost(base, nameScore float64) float64 {
	boost := nameScore * c.NameBoostMax
	if boost > c.NameBoostMax {
		boost = c.NameBoostMax
	}

	score := base + boost
	if score > c.ScoreCap {
		score = c.ScoreCap
	}
	return score
}

// groupConfidence scores an accepted N:1 group from the date proximity of
// the grouped side to the ledger record.
func groupConfidence(proximity float64) float64 {
	return 0.5 + 0.35*proximity
}
