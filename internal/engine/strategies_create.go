package engine

import (
	"fmt"
	"sort"
	"strings"

	"lender-reconciliation-engine/internal/models"
	"lender-reconciliation-engine/internal/normalize"
)

// Keyword match weights for pattern scoring. An exact token match counts
// full, a substring containment counts most of the way, and a near-miss by
// edit distance still counts for something.
const (
	keywordWeightExact       = 1.0
	keywordWeightSubstring   = 0.7
	keywordWeightLevenshtein = 0.5
	keywordLevenshteinFloor  = 0.75
)

// patternStrategy matches the entry description against learned patterns and
// proposes creating the record the pattern classifies. Score blends the
// pattern's own confidence, the keyword overlap, and how often the pattern
// has matched before.
type patternStrategy struct{}

func (patternStrategy) name() string { return "pattern" }
func (patternStrategy) gate(cfg *Config) float64 { return cfg.PatternGate }

func (patternStrategy) evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	entryKeywords := normalize.VendorKeywords(entry.Description)
	if len(entryKeywords) == 0 {
		return nil, 0
	}

	var best *models.Pattern
	bestScore := 0.0
	bestKeywordScore := 0.0

	for _, p := range st.patterns {
		if p.Direction != entry.Direction() {
			continue
		}
		if !p.ContainsAmount(entry.Amount) {
			continue
		}

		kw := keywordMatchScore(p.Keywords, entryKeywords)
		if kw == 0 {
			continue
		}

		usage := float64(p.MatchCount) / 20
		if usage > 0.15 {
			usage = 0.15
		}

		score := 0.6*p.Confidence + 0.25*kw + usage
		if score > bestScore {
			best = p
			bestScore = score
			bestKeywordScore = kw
		}
	}

	if best == nil {
		return nil, 0
	}

	suggestion := CreateNew{
		Classification: best.Classification,
		TargetEntityID: best.TargetEntityID,
		ExpenseType:    best.ExpenseType,
		PatternID:      best.ID,
		SplitPrincipal: best.SplitPrincipal,
		SplitInterest:  best.SplitInterest,
		SplitFees:      best.SplitFees,
		Score:          bestScore,
		Why:            fmt.Sprintf("learned pattern %q (keyword overlap %.2f, seen %d times)", best.Signature(), bestKeywordScore, best.MatchCount),
	}
	return suggestion, bestScore
}

// keywordMatchScore scores pattern keywords against entry keywords. Each
// pattern keyword contributes the weight of its best counterpart in the
// entry, normalized by the larger keyword set so verbose descriptions are
// not rewarded.
func keywordMatchScore(patternKeywords, entryKeywords []string) float64 {
	if len(patternKeywords) == 0 || len(entryKeywords) == 0 {
		return 0
	}

	total := 0.0
	for _, pk := range patternKeywords {
		best := 0.0
		for _, ek := range entryKeywords {
			var w float64
			switch {
			case pk == ek:
				w = keywordWeightExact
			case strings.Contains(ek, pk) || strings.Contains(pk, ek):
				w = keywordWeightSubstring
			case normalize.LevenshteinSimilarity(pk, ek) >= keywordLevenshteinFloor:
				w = keywordWeightLevenshtein
			}
			if w > best {
				best = w
			}
			if best == keywordWeightExact {
				break
			}
		}
		total += best
	}

	denom := len(patternKeywords)
	if len(entryKeywords) > denom {
		denom = len(entryKeywords)
	}
	return total / float64(denom)
}

// expenseVocabulary is the fixed list of words that mark a debit as an
// operating cost of the business itself rather than lending activity.
var expenseVocabulary = []string{
	"accountancy", "accountant", "accounting", "advertising", "audit",
	"bank charge", "broadband", "electric", "electricity", "fee", "fuel",
	"gas", "hmrc", "hosting", "insurance", "legal", "payroll", "phone",
	"postage", "printing", "rates", "rent", "salaries", "salary",
	"software", "solicitor", "stationery", "subscription", "tax",
	"telecom", "travel", "utilities", "vat", "wages", "water",
}

// expenseVocabularyHit returns the first expense word contained in the
// description, or "".
func expenseVocabularyHit(description string) string {
	desc := strings.ToLower(description)
	for _, w := range expenseVocabulary {
		if strings.Contains(desc, w) {
			return w
		}
	}
	return ""
}

// expenseKeywordStrategy is the last-resort classifier for debits: when the
// description contains a known expense word, propose creating an expense at
// a fixed modest confidence.
type expenseKeywordStrategy struct{}

func (expenseKeywordStrategy) name() string { return "expense_keyword" }
func (expenseKeywordStrategy) gate(cfg *Config) float64 { return cfg.ExpenseKeywordGate }

func (expenseKeywordStrategy) evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	if !entry.IsDebit() {
		return nil, 0
	}

	hit := expenseVocabularyHit(entry.Description)
	if hit == "" {
		return nil, 0
	}

	score := st.cfg.ExpenseKeywordConfidence
	suggestion := CreateNew{
		Classification: "expense",
		ExpenseType:    hit,
		Score:          score,
		Why:            fmt.Sprintf("description contains expense word %q", hit),
	}
	return suggestion, score
}

// loanNameStrategy proposes creating a loan transaction when no ledger
// record fits but the description resembles a borrower of an open loan.
// Descriptions carrying expense vocabulary are excluded: "RENT J SMITH" is
// the lender paying rent, not borrower Smith repaying.
type loanNameStrategy struct{}

func (loanNameStrategy) name() string { return "loan_name" }
func (loanNameStrategy) gate(cfg *Config) float64 { return cfg.LoanNameGate }

func (loanNameStrategy) evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	if expenseVocabularyHit(entry.Description) != "" {
		return nil, 0
	}

	classification := "loan_disbursement"
	if entry.IsCredit() {
		classification = "loan_repayment"
	}

	bestLoanID := ""
	bestName := ""
	bestSim := 0.0

	for _, loanID := range sortedLoanIDs(st.snap) {
		loan := st.snap.Loans[loanID]
		if loan == nil || !loan.IsOpen() {
			continue
		}
		borrower := st.snap.Borrowers[loan.BorrowerID]
		if borrower == nil {
			continue
		}

		sim := normalize.TokenOverlap(entry.Description, borrower.Name)
		simName := borrower.Name
		if borrower.BusinessName != "" {
			if bs := normalize.TokenOverlap(entry.Description, borrower.BusinessName); bs > sim {
				sim = bs
				simName = borrower.BusinessName
			}
		}

		if sim > bestSim {
			bestLoanID = loanID
			bestName = simName
			bestSim = sim
		}
	}

	if bestLoanID == "" || bestSim == 0 {
		return nil, 0
	}

	score := bestSim * 0.55
	suggestion := CreateNew{
		Classification: classification,
		TargetEntityID: bestLoanID,
		Score:          score,
		Why:            fmt.Sprintf("description resembles borrower %q", bestName),
	}
	return suggestion, score
}

// investorNameStrategy is the investor mirror of loanNameStrategy, at a
// slightly lower confidence still.
type investorNameStrategy struct{}

func (investorNameStrategy) name() string { return "investor_name" }
func (investorNameStrategy) gate(cfg *Config) float64 { return cfg.InvestorNameGate }

func (investorNameStrategy) evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	if expenseVocabularyHit(entry.Description) != "" {
		return nil, 0
	}

	classification := "capital_out"
	if entry.IsCredit() {
		classification = "capital_in"
	}

	bestInvestorID := ""
	bestName := ""
	bestSim := 0.0

	for _, investorID := range sortedInvestorIDs(st.snap) {
		inv := st.snap.Investors[investorID]
		if inv == nil || !inv.Active {
			continue
		}

		sim := normalize.TokenOverlap(entry.Description, inv.Name)
		simName := inv.Name
		if inv.BusinessName != "" {
			if bs := normalize.TokenOverlap(entry.Description, inv.BusinessName); bs > sim {
				sim = bs
				simName = inv.BusinessName
			}
		}

		if sim > bestSim {
			bestInvestorID = investorID
			bestName = simName
			bestSim = sim
		}
	}

	if bestInvestorID == "" || bestSim == 0 {
		return nil, 0
	}

	score := bestSim * 0.5
	suggestion := CreateNew{
		Classification: classification,
		TargetEntityID: bestInvestorID,
		Score:          score,
		Why:            fmt.Sprintf("description resembles investor %q", bestName),
	}
	return suggestion, score
}

func sortedLoanIDs(snap *models.Snapshot) []string {
	ids := make([]string, 0, len(snap.Loans))
	for id := range snap.Loans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedInvestorIDs(snap *models.Snapshot) []string {
	ids := make([]string, 0, len(snap.Investors))
	for id := range snap.Investors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
