package normalize

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// TokenOverlap scores the similarity of two free-text strings in [0,1].
// Exact match scores 1, substring containment either direction scores 0.8,
// otherwise the fraction of keyword pairs that match exactly or by substring,
// normalized by the larger keyword-set size. No keywords on either side
// scores 0.
func TokenOverlap(a, b string) float64 {
	na := strings.TrimSpace(strings.ToLower(a))
	nb := strings.TrimSpace(strings.ToLower(b))

	if na == "" || nb == "" {
		return 0
	}

	if na == nb {
		return 1.0
	}

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.8
	}

	ka := Keywords(na)
	kb := Keywords(nb)
	return KeywordOverlap(ka, kb)
}

// KeywordOverlap scores two keyword sets by the fraction of pairs that match
// exactly or by substring containment, normalized by the larger set size.
func KeywordOverlap(ka, kb []string) float64 {
	if len(ka) == 0 || len(kb) == 0 {
		return 0
	}

	matches := 0
	for _, wa := range ka {
		for _, wb := range kb {
			if wa == wb || strings.Contains(wa, wb) || strings.Contains(wb, wa) {
				matches++
				break
			}
		}
	}

	larger := len(ka)
	if len(kb) > larger {
		larger = len(kb)
	}

	return float64(matches) / float64(larger)
}

// LevenshteinSimilarity scores edit-distance similarity in [0,1] as
// 1 - distance/maxLength. A length-ratio pre-check skips the full
// edit-distance matrix when the length difference alone rules out a
// meaningful score.
func LevenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	if a == "" || b == "" {
		return 0
	}

	la, lb := len(a), len(b)
	longer := la
	if lb > longer {
		longer = lb
	}

	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) > float64(longer)*0.5 {
		return 0
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longer)
}
