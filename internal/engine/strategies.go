package engine

import (
	"fmt"
	"sort"
	"time"

	"lender-reconciliation-engine/internal/models"
	"lender-reconciliation-engine/internal/normalize"

	"github.com/shopspring/decimal"
)

// strategy is one step of the matching cascade. evaluate returns the
// strategy's best candidate for the entry, or nil when it has none. gate is
// the confidence at which the cascade stops consulting the strategy: cheaper,
// confident strategies run first and a strong early match short-circuits the
// speculative ones.
type strategy interface {
	name() string
	gate(cfg *Config) float64
	evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64)
}

// gateNever means the strategy is always evaluated.
const gateNever = 2.0

// amountDateReason renders the human-readable half of a direct match reason.
func amountDateReason(cfg *Config, entryAmount decimal.Decimal, entryDate time.Time, recordAmount decimal.Decimal, recordDate time.Time) string {
	amount := "close amount"
	if AmountsMatch(entryAmount, recordAmount, cfg.ExactTolerancePercent) {
		amount = "exact amount"
	}

	gap := dayGap(entryDate, recordDate)
	if gap == 0 {
		return amount + ", same day"
	}
	return fmt.Sprintf("%s, %d days apart", amount, gap)
}

// directLoanStrategy matches one bank entry to one loan transaction: credits
// against repayments, debits against disbursements. The most confident
// strategy, always evaluated first.
type directLoanStrategy struct{}

func (directLoanStrategy) name() string { return "direct_loan" }
func (directLoanStrategy) gate(cfg *Config) float64 { return gateNever }

func (directLoanStrategy) evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	candidates := st.index.disbursements
	if entry.IsCredit() {
		candidates = st.index.repayments
	}

	var best *models.LoanTransaction
	bestScore := 0.0
	bestWhy := ""

	for _, tx := range candidates {
		if st.claims.IsClaimed(tx.Ref()) {
			continue
		}

		base := st.cfg.MatchScore(entry.AbsAmount(), entry.Date, tx.Amount, tx.Date)
		if base == 0 {
			continue
		}

		score := base
		why := amountDateReason(st.cfg, entry.AbsAmount(), entry.Date, tx.Amount, tx.Date)
		if borrower := st.snap.BorrowerForLoan(tx.LoanID); borrower != nil {
			if ns := normalize.NameMatchScore(entry.Description, borrower.Name, borrower.BusinessName); ns > 0 {
				score = st.cfg.ApplyNameBoost(base, ns)
				why += ", borrower name in description"
			}
		}

		if score > bestScore {
			best = tx
			bestScore = score
			bestWhy = why
		}
	}

	if best == nil {
		return nil, 0
	}
	return DirectMatch{Target: best.Ref(), Score: bestScore, Why: bestWhy}, bestScore
}

// groupedDisbursementStrategy covers one disbursement paid out as several
// bank debits: it looks for a subset of debits around the entry, including
// the entry itself, that sums to a single disbursement. Groups must pass the
// relatedness gate so arithmetic coincidences are rejected.
type groupedDisbursementStrategy struct{}

func (groupedDisbursementStrategy) name() string { return "grouped_disbursement" }
func (groupedDisbursementStrategy) gate(cfg *Config) float64 { return cfg.GroupGate }

func (groupedDisbursementStrategy) evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	if !entry.IsDebit() {
		return nil, 0
	}

	for _, d := range st.index.disbursements {
		if st.claims.IsClaimed(d.Ref()) {
			continue
		}
		if dayGap(entry.Date, d.Date) > st.cfg.GroupDayWindow {
			continue
		}

		pool := groupPool(entry, st, models.DirectionDebit, d.Date, st.cfg.GroupDayWindow)
		subset := FindSubsetSum(pool, d.Amount, entry.ID, st.cfg.GroupTolerancePercent, st.cfg.MaxGroupSize)
		if len(subset) < 2 {
			continue
		}

		var personalName, businessName string
		if borrower := st.snap.BorrowerForLoan(d.LoanID); borrower != nil {
			personalName = borrower.Name
			businessName = borrower.BusinessName
		}
		if !GroupIsRelated(subsetDescriptions(subset), personalName, businessName) {
			continue
		}

		score := groupConfidence(subsetProximity(subset, st, d.Date))
		suggestion := GroupedDisbursement{
			Target:   d.Ref(),
			EntryIDs: subsetIDs(subset),
			Score:    score,
			Why:      fmt.Sprintf("%d entries sum to disbursement amount", len(subset)),
		}
		return suggestion, score
	}

	return nil, 0
}

// groupedRepaymentStrategy covers one bank credit that settles several
// repayments at once, for example a borrower paying two loans with a single
// transfer. Repayments are pooled per borrower, with borrowers sharing an
// email address treated as the same payer.
type groupedRepaymentStrategy struct{}

func (groupedRepaymentStrategy) name() string { return "grouped_repayment" }
func (groupedRepaymentStrategy) gate(cfg *Config) float64 { return cfg.GroupGate }

func (groupedRepaymentStrategy) evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	if !entry.IsCredit() {
		return nil, 0
	}

	pools := repaymentPoolsByPayer(entry, st)

	for _, pool := range pools {
		subset := FindSubsetSum(pool.candidates, entry.AbsAmount(), "", st.cfg.GroupTolerancePercent, st.cfg.MaxGroupSize)
		if len(subset) < 2 {
			continue
		}

		refs := make([]models.TargetRef, 0, len(subset))
		worst := 1.0
		for _, c := range subset {
			tx := pool.byID[c.ID]
			refs = append(refs, tx.Ref())
			if p := DateProximityScore(entry.Date, tx.Date); p < worst {
				worst = p
			}
		}

		score := groupConfidence(worst)
		suggestion := GroupMatch{
			TargetRefs: refs,
			Score:      score,
			Why:        fmt.Sprintf("entry sums %d repayments from the same payer", len(subset)),
		}
		return suggestion, score
	}

	return nil, 0
}

// repaymentPool is the unclaimed repayments attributable to one payer, close
// enough in time to the entry to plausibly share a transfer.
type repaymentPool struct {
	key        string
	candidates []SumCandidate
	byID       map[string]*models.LoanTransaction
}

// repaymentPoolsByPayer groups candidate repayments by borrower, folding
// borrowers that share an email address into one pool. Pools are returned in
// a deterministic order.
func repaymentPoolsByPayer(entry *models.BankEntry, st *passState) []*repaymentPool {
	pools := make(map[string]*repaymentPool)

	for _, tx := range st.index.repayments {
		if st.claims.IsClaimed(tx.Ref()) {
			continue
		}
		if dayGap(entry.Date, tx.Date) > st.cfg.RepaymentGroupDayWindow {
			continue
		}

		borrower := st.snap.BorrowerForLoan(tx.LoanID)
		if borrower == nil {
			continue
		}
		key := "borrower:" + borrower.ID
		if borrower.Email != "" {
			key = "email:" + borrower.Email
		}

		pool, ok := pools[key]
		if !ok {
			pool = &repaymentPool{key: key, byID: make(map[string]*models.LoanTransaction)}
			pools[key] = pool
		}
		pool.candidates = append(pool.candidates, SumCandidate{ID: tx.ID, Amount: tx.Amount})
		pool.byID[tx.ID] = tx
	}

	out := make([]*repaymentPool, 0, len(pools))
	for _, p := range pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// investorStrategy mirrors the loan strategies for investor money: single
// capital movements, single interest withdrawals, and the cross-table case
// where one bank debit pays out a capital withdrawal together with accrued
// interest in a single transfer.
type investorStrategy struct{}

func (investorStrategy) name() string { return "investor" }
func (investorStrategy) gate(cfg *Config) float64 { return cfg.GroupGate }

func (investorStrategy) evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	best, bestScore := investorSingleMatch(entry, st)

	if entry.IsDebit() {
		if s, score := investorCrossTableMatch(entry, st); s != nil && score > bestScore {
			best, bestScore = s, score
		}
	}

	return best, bestScore
}

func investorSingleMatch(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	var best Suggestion
	bestScore := 0.0

	capital := st.index.capitalOut
	if entry.IsCredit() {
		capital = st.index.capitalIn
	}

	for _, tx := range capital {
		if st.claims.IsClaimed(tx.Ref()) {
			continue
		}

		base := st.cfg.MatchScore(entry.AbsAmount(), entry.Date, tx.Amount, tx.Date)
		if base == 0 {
			continue
		}

		score := base
		why := amountDateReason(st.cfg, entry.AbsAmount(), entry.Date, tx.Amount, tx.Date)
		if inv := st.snap.InvestorByID(tx.InvestorID); inv != nil {
			if ns := normalize.NameMatchScore(entry.Description, inv.Name, inv.BusinessName); ns > 0 {
				score = st.cfg.ApplyNameBoost(base, ns)
				why += ", investor name in description"
			}
		}

		if score > bestScore {
			best = DirectMatch{Target: tx.Ref(), Score: score, Why: why}
			bestScore = score
		}
	}

	if entry.IsDebit() {
		for _, ie := range st.index.interestDebits {
			if st.claims.IsClaimed(ie.Ref()) {
				continue
			}

			base := st.cfg.MatchScore(entry.AbsAmount(), entry.Date, ie.Amount, ie.Date)
			if base == 0 {
				continue
			}

			score := base
			why := amountDateReason(st.cfg, entry.AbsAmount(), entry.Date, ie.Amount, ie.Date)
			if inv := st.snap.InvestorByID(ie.InvestorID); inv != nil {
				if ns := normalize.NameMatchScore(entry.Description, inv.Name, inv.BusinessName); ns > 0 {
					score = st.cfg.ApplyNameBoost(base, ns)
					why += ", investor name in description"
				}
			}

			if score > bestScore {
				best = DirectMatch{Target: ie.Ref(), Score: score, Why: why}
				bestScore = score
			}
		}
	}

	return best, bestScore
}

// investorCrossTableMatch finds a subset across one investor's unsettled
// capital withdrawals and interest withdrawals that sums to the bank debit.
func investorCrossTableMatch(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	byInvestor := make(map[string][]SumCandidate)
	refs := make(map[string]models.TargetRef)
	dates := make(map[string]time.Time)

	for _, tx := range st.index.capitalOut {
		if st.claims.IsClaimed(tx.Ref()) || dayGap(entry.Date, tx.Date) > st.cfg.GroupDayWindow {
			continue
		}
		key := tx.Ref().Key()
		byInvestor[tx.InvestorID] = append(byInvestor[tx.InvestorID], SumCandidate{ID: key, Amount: tx.Amount})
		refs[key] = tx.Ref()
		dates[key] = tx.Date
	}
	for _, ie := range st.index.interestDebits {
		if st.claims.IsClaimed(ie.Ref()) || dayGap(entry.Date, ie.Date) > st.cfg.GroupDayWindow {
			continue
		}
		key := ie.Ref().Key()
		byInvestor[ie.InvestorID] = append(byInvestor[ie.InvestorID], SumCandidate{ID: key, Amount: ie.Amount})
		refs[key] = ie.Ref()
		dates[key] = ie.Date
	}

	investorIDs := make([]string, 0, len(byInvestor))
	for id := range byInvestor {
		investorIDs = append(investorIDs, id)
	}
	sort.Strings(investorIDs)

	for _, investorID := range investorIDs {
		subset := FindSubsetSum(byInvestor[investorID], entry.AbsAmount(), "", st.cfg.GroupTolerancePercent, st.cfg.MaxGroupSize)
		if len(subset) < 2 {
			continue
		}

		targetRefs := make([]models.TargetRef, 0, len(subset))
		worst := 1.0
		for _, c := range subset {
			targetRefs = append(targetRefs, refs[c.ID])
			if p := DateProximityScore(entry.Date, dates[c.ID]); p < worst {
				worst = p
			}
		}

		score := groupConfidence(worst)
		suggestion := GroupMatch{
			TargetRefs: targetRefs,
			Score:      score,
			Why:        "entry sums capital withdrawal plus interest for one investor",
		}
		return suggestion, score
	}

	return nil, 0
}

// groupedInvestorStrategy is the investor mirror of groupedDisbursementStrategy:
// several bank entries that sum to one capital movement.
type groupedInvestorStrategy struct{}

func (groupedInvestorStrategy) name() string { return "grouped_investor" }
func (groupedInvestorStrategy) gate(cfg *Config) float64 { return cfg.GroupGate }

func (groupedInvestorStrategy) evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	capital := st.index.capitalOut
	direction := models.DirectionDebit
	if entry.IsCredit() {
		capital = st.index.capitalIn
		direction = models.DirectionCredit
	}

	for _, tx := range capital {
		if st.claims.IsClaimed(tx.Ref()) {
			continue
		}
		if dayGap(entry.Date, tx.Date) > st.cfg.GroupDayWindow {
			continue
		}

		pool := groupPool(entry, st, direction, tx.Date, st.cfg.GroupDayWindow)
		subset := FindSubsetSum(pool, tx.Amount, entry.ID, st.cfg.GroupTolerancePercent, st.cfg.MaxGroupSize)
		if len(subset) < 2 {
			continue
		}

		var personalName, businessName string
		if inv := st.snap.InvestorByID(tx.InvestorID); inv != nil {
			personalName = inv.Name
			businessName = inv.BusinessName
		}
		if !GroupIsRelated(subsetDescriptions(subset), personalName, businessName) {
			continue
		}

		score := groupConfidence(subsetProximity(subset, st, tx.Date))
		suggestion := GroupedInvestor{
			Target:   tx.Ref(),
			EntryIDs: subsetIDs(subset),
			Score:    score,
			Why:      fmt.Sprintf("%d entries sum to capital transaction amount", len(subset)),
		}
		return suggestion, score
	}

	return nil, 0
}

// expenseStrategy matches bank debits against pre-recorded operating
// expenses on amount and date alone.
type expenseStrategy struct{}

func (expenseStrategy) name() string { return "expense" }
func (expenseStrategy) gate(cfg *Config) float64 { return cfg.GroupGate }

func (expenseStrategy) evaluate(entry *models.BankEntry, st *passState) (Suggestion, float64) {
	if !entry.IsDebit() {
		return nil, 0
	}

	var best *models.Expense
	bestScore := 0.0

	for _, x := range st.index.expenses {
		if st.claims.IsClaimed(x.Ref()) {
			continue
		}

		score := st.cfg.MatchScore(entry.AbsAmount(), entry.Date, x.Amount, x.Date)
		if score == 0 {
			continue
		}
		if score > bestScore {
			best = x
			bestScore = score
		}
	}

	if best == nil {
		return nil, 0
	}
	why := amountDateReason(st.cfg, entry.AbsAmount(), entry.Date, best.Amount, best.Date) + ", recorded expense"
	return DirectMatch{Target: best.Ref(), Score: bestScore, Why: why}, bestScore
}

// groupPool assembles the subset-sum pool around a ledger record: bank
// entries of the right direction inside the date window, excluding entries
// already suggested or consumed by earlier groups. The anchor entry is
// always present.
func groupPool(entry *models.BankEntry, st *passState, direction models.Direction, anchor time.Time, windowDays int) []SumCandidate {
	var pool []SumCandidate
	for _, e := range entriesWithinWindow(st.snap.Entries, direction, anchor, windowDays) {
		if e.ID != entry.ID && (st.suggested[e.ID] || st.consumed[e.ID]) {
			continue
		}
		pool = append(pool, SumCandidate{ID: e.ID, Amount: e.AbsAmount(), Description: e.Description})
	}

	found := false
	for _, c := range pool {
		if c.ID == entry.ID {
			found = true
			break
		}
	}
	if !found {
		pool = append(pool, SumCandidate{ID: entry.ID, Amount: entry.AbsAmount(), Description: entry.Description})
	}

	return pool
}

func subsetIDs(subset []SumCandidate) []string {
	ids := make([]string, 0, len(subset))
	for _, c := range subset {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids
}

func subsetDescriptions(subset []SumCandidate) []string {
	descs := make([]string, 0, len(subset))
	for _, c := range subset {
		descs = append(descs, c.Description)
	}
	return descs
}

// subsetProximity returns the date proximity of the worst-placed group
// member relative to the ledger record, so scattered groups score lower
// than same-day ones.
func subsetProximity(subset []SumCandidate, st *passState, recordDate time.Time) float64 {
	byID := make(map[string]*models.BankEntry, len(st.snap.Entries))
	for _, e := range st.snap.Entries {
		if e != nil {
			byID[e.ID] = e
		}
	}

	worst := 1.0
	for _, c := range subset {
		e, ok := byID[c.ID]
		if !ok {
			continue
		}
		if p := DateProximityScore(e.Date, recordDate); p < worst {
			worst = p
		}
	}
	return worst
}
