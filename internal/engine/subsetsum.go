package engine

import (
	"sort"
	"strings"

	"lender-reconciliation-engine/internal/normalize"

	"github.com/shopspring/decimal"
)

// SumCandidate is one element of a subset-sum pool: a bank entry or a ledger
// record reduced to its id and unsigned amount. Description is carried only
// for the relatedness gate.
type SumCandidate struct {
	ID          string
	Amount      decimal.Decimal
	Description string
}

// FindSubsetSum searches the pool for the smallest subset, of size 1 up to
// maxSize, whose absolute amounts sum to target within tolerancePercent. If
// mustIncludeID is non-empty the subset must contain that element. Sizes are
// tried in ascending order and the first hit wins, deliberately favoring
// smaller, simpler groupings. The exhaustive combination search is acceptable
// because pools are pre-filtered to a date window and are single-digit sized
// in practice.
//
// Returns nil when no subset up to maxSize matches.
func FindSubsetSum(pool []SumCandidate, target decimal.Decimal, mustIncludeID string, tolerancePercent float64, maxSize int) []SumCandidate {
	if len(pool) == 0 || maxSize < 1 {
		return nil
	}

	// Stable order so equal-quality subsets resolve the same way on every
	// run regardless of input ordering.
	sorted := make([]SumCandidate, len(pool))
	copy(sorted, pool)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	target = target.Abs()

	mustIdx := -1
	if mustIncludeID != "" {
		for i, c := range sorted {
			if c.ID == mustIncludeID {
				mustIdx = i
				break
			}
		}
		if mustIdx < 0 {
			return nil
		}
	}

	limit := maxSize
	if len(sorted) < limit {
		limit = len(sorted)
	}

	for size := 1; size <= limit; size++ {
		if subset := combinations(sorted, size, mustIdx, target, tolerancePercent); subset != nil {
			return subset
		}
	}

	return nil
}

// combinations tries every subset of exactly size elements, returning the
// first whose sum matches the target within tolerance. When mustIdx is
// non-negative, that element is fixed into every candidate subset.
func combinations(pool []SumCandidate, size, mustIdx int, target decimal.Decimal, tolerancePercent float64) []SumCandidate {
	var chosen []SumCandidate
	sum := decimal.Zero

	if mustIdx >= 0 {
		chosen = append(chosen, pool[mustIdx])
		sum = pool[mustIdx].Amount.Abs()
		size--
		if size == 0 {
			if AmountsMatch(sum, target, tolerancePercent) {
				return chosen
			}
			return nil
		}
	}

	var recurse func(start int, remaining int, sum decimal.Decimal, chosen []SumCandidate) []SumCandidate
	recurse = func(start int, remaining int, sum decimal.Decimal, chosen []SumCandidate) []SumCandidate {
		if remaining == 0 {
			if AmountsMatch(sum, target, tolerancePercent) {
				out := make([]SumCandidate, len(chosen))
				copy(out, chosen)
				return out
			}
			return nil
		}

		for i := start; i <= len(pool)-remaining; i++ {
			if i == mustIdx {
				continue
			}
			candidate := pool[i]
			if result := recurse(i+1, remaining-1, sum.Add(candidate.Amount.Abs()), append(chosen, candidate)); result != nil {
				return result
			}
		}

		return nil
	}

	return recurse(0, size, sum, chosen)
}

// GroupIsRelated applies the relatedness gate that separates genuine split
// payments from arithmetic coincidences: either every pair of descriptions
// shares at least half of its significant words, or the counterparty's name
// appears in at least one description.
func GroupIsRelated(descriptions []string, personalName, businessName string) bool {
	for _, desc := range descriptions {
		if normalize.NameMatchScore(desc, personalName, businessName) > 0 {
			return true
		}
	}

	if len(descriptions) < 2 {
		return false
	}

	for i := 0; i < len(descriptions); i++ {
		for j := i + 1; j < len(descriptions); j++ {
			if !sharesSignificantWords(descriptions[i], descriptions[j]) {
				return false
			}
		}
	}

	return true
}

// sharesSignificantWords reports whether at least half of the smaller
// description's significant words appear in the other description.
func sharesSignificantWords(a, b string) bool {
	ka := normalize.Keywords(a)
	kb := normalize.Keywords(b)

	if len(ka) == 0 || len(kb) == 0 {
		return false
	}

	smaller, other := ka, kb
	if len(kb) < len(ka) {
		smaller, other = kb, ka
	}

	shared := 0
	for _, w := range smaller {
		for _, o := range other {
			if w == o || strings.Contains(o, w) || strings.Contains(w, o) {
				shared++
				break
			}
		}
	}

	return float64(shared) >= float64(len(smaller))*0.5
}
