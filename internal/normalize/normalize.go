// Package normalize cleans free-text bank statement descriptions into short
// keyword sets, and provides the string similarity measures the matching
// strategies are built on: token-overlap similarity, Levenshtein similarity
// and counterparty name matching.
package normalize

import (
	"regexp"
	"strings"
)

// maxKeywords bounds every extracted keyword set.
const maxKeywords = 5

// minKeywordLen filters out short noise tokens (also drops bare two-letter
// country codes).
const minKeywordLen = 3

var (
	urlPattern   = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\b\S+\.(com|co\.uk|org|net|io)\b\S*)`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-().]{6,}\d`)
	longCodeRe   = regexp.MustCompile(`\b\d{5,}\b`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9 ]+`)
	digitRe      = regexp.MustCompile(`\d`)
)

// stopWords covers prepositions, payment-rail jargon, card schemes and
// currency codes that carry no vendor signal.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "from": true, "with": true,
	"into": true, "out": true, "via": true, "per": true,
	"bacs": true, "chaps": true, "fps": true, "sepa": true, "swift": true,
	"faster": true, "payment": true, "payments": true, "transfer": true,
	"standing": true, "order": true, "direct": true, "debit": true,
	"credit": true, "ref": true, "reference": true, "trn": true,
	"visa": true, "mastercard": true, "maestro": true, "amex": true,
	"card": true, "contactless": true, "pos": true,
	"gbp": true, "eur": true, "usd": true,
	"bank": true, "online": true, "mobile": true, "app": true,
}

// VendorKeywords extracts up to five significant lowercase keywords from a
// raw bank description, stripping URLs, phone numbers, reference codes and
// payment jargon. Used for pattern signatures and vendor matching. Empty
// input yields an empty slice, never an error.
func VendorKeywords(description string) []string {
	s := strings.ToLower(description)
	s = urlPattern.ReplaceAllString(s, " ")
	s = phonePattern.ReplaceAllString(s, " ")
	s = longCodeRe.ReplaceAllString(s, " ")
	s = nonAlnumRe.ReplaceAllString(s, " ")

	var keywords []string
	for _, token := range strings.Fields(s) {
		if len(token) < minKeywordLen {
			continue
		}
		if stopWords[token] {
			continue
		}
		// Alphanumeric reference codes carry no vendor signal.
		if digitRe.MatchString(token) {
			continue
		}
		keywords = append(keywords, token)
		if len(keywords) == maxKeywords {
			break
		}
	}

	return keywords
}

// Keywords is the lighter extraction variant used for general keyword
// similarity: lowercase, punctuation stripped, stop words removed, no
// URL/phone/code stripping.
func Keywords(text string) []string {
	s := strings.ToLower(text)
	s = nonAlnumRe.ReplaceAllString(s, " ")

	var keywords []string
	for _, token := range strings.Fields(s) {
		if len(token) < minKeywordLen {
			continue
		}
		if stopWords[token] {
			continue
		}
		keywords = append(keywords, token)
		if len(keywords) == maxKeywords {
			break
		}
	}

	return keywords
}
