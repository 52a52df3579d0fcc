package normalize

import (
	"regexp"
	"strings"
)

var legalSuffixRe = regexp.MustCompile(`(?i)\b(ltd|limited|plc|inc|llc|llp)\b\.?`)

// normalizeName lowercases a counterparty name and strips legal suffixes and
// punctuation so "J. Smith Holdings Ltd." compares as "j smith holdings".
func normalizeName(name string) string {
	s := legalSuffixRe.ReplaceAllString(name, " ")
	s = strings.ToLower(s)
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// NameMatchScore reports how strongly a bank description refers to a
// counterparty. Business-name containment scores 1.0, personal-name
// containment 0.9, containment of any single business-name word of at least
// four characters 0.7, otherwise 0.
func NameMatchScore(description, personalName, businessName string) float64 {
	desc := normalizeName(description)
	if desc == "" {
		return 0
	}

	if business := normalizeName(businessName); len(business) >= 3 {
		if strings.Contains(desc, business) {
			return 1.0
		}
	}

	if personal := normalizeName(personalName); personal != "" {
		if strings.Contains(desc, personal) {
			return 0.9
		}
	}

	if business := normalizeName(businessName); business != "" {
		for _, word := range strings.Fields(business) {
			if len(word) >= 4 && strings.Contains(desc, word) {
				return 0.7
			}
		}
	}

	return 0
}
