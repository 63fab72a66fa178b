package ledger

import (
	"sort"
	"time"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/models"
)

// NAVLookup returns the NAV usable for fundID on date, or false when the
// fund has no fresh observation at or before it.
type NAVLookup func(fundID string, date time.Time) (float64, bool)

// Ledger applies rebalance steps to a Portfolio
type Ledger struct {
	lookup NAVLookup
	logger *common.Logger
}

// New creates a ledger valuing positions through lookup
func New(lookup NAVLookup, logger *common.Logger) *Ledger {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Ledger{lookup: lookup, logger: logger}
}

// Step is the bookkeeping record of one rebalance transition
type Step struct {
	Date            time.Time
	ValueBefore     float64 // cash + valued holdings before any trade
	Breakdown       []models.HoldingValue
	Sold            []string
	PLReport        []models.PLRecord
	CashAfterSales  float64
	HeldValue       float64 // retained holdings at their rebalance-date NAV
	InvestableTotal float64
	AmountPerFund   float64
	Bought          []string
	ValueAfter      float64
	Flags           []string
}

// Rebalance moves the portfolio onto an equal-weight allocation across top.
//
// Holdings are valued at date, holdings outside top are liquidated, and the
// investable total (cash + retained holdings) is split equally over n funds.
// If fewer than n funds in top have a NAV at date, nothing is bought: sale
// proceeds stay in cash and retained holdings keep their units. Retained
// holdings keep their original buy NAV and date.
//
// The portfolio is only modified once the whole step has been computed.
func (l *Ledger) Rebalance(p *Portfolio, date time.Time, top []models.RankedFund, n int) *Step {
	step := &Step{Date: date}
	cash := p.cash
	positions := make(map[string]models.Position, len(p.positions))

	// 1. valuation
	valued := cash
	for _, id := range p.fundIDs() {
		pos := clonePosition(p.positions[id])
		units := pos.Units
		line := models.HoldingValue{FundID: id, Units: &units}

		if nav, ok := l.lookup(id, date); ok {
			pos.LastKnownNAV = floatPtr(nav)
			line.NAV = floatPtr(nav)
			line.Value = pos.Value()
			valued += line.Value
		} else {
			pos.LastKnownNAV = nil
			l.logger.Warn().
				Str("fund", id).
				Str("date", date.Format("2006-01-02")).
				Msg("Held fund has no NAV at rebalance date, valued at 0")
			addFlag(step, models.FlagUnvaluableHolding)
		}
		positions[id] = pos
		step.Breakdown = append(step.Breakdown, line)
	}
	if cash > 0 {
		step.Breakdown = append(step.Breakdown, models.HoldingValue{FundID: models.CashFundID, Value: cash})
	}
	step.ValueBefore = valued

	topSet := make(map[string]bool, len(top))
	for _, f := range top {
		topSet[f.FundID] = true
	}

	// 2. liquidate everything that fell out of the top set
	for _, id := range sortedKeys(positions) {
		if topSet[id] {
			continue
		}
		pos := positions[id]
		rec := models.PLRecord{
			FundID:   id,
			Units:    pos.Units,
			BuyNAV:   pos.BuyNAV,
			BuyDate:  pos.BuyDate,
			SellDate: date,
		}
		if pos.LastKnownNAV != nil {
			sellNAV := *pos.LastKnownNAV
			cash += pos.Units * sellNAV
			rec.SellNAV = floatPtr(sellNAV)
			rec.ProfitLoss = floatPtr((sellNAV - pos.BuyNAV) * pos.Units)
		} else {
			l.logger.Warn().
				Str("fund", id).
				Float64("units", pos.Units).
				Msg("Unrealizable sale: position removed without proceeds")
			addFlag(step, models.FlagUnrealizableSale)
		}
		step.Sold = append(step.Sold, id)
		step.PLReport = append(step.PLReport, rec)
		delete(positions, id)
	}
	step.CashAfterSales = cash

	// 3. investable total
	for _, id := range sortedKeys(positions) {
		step.HeldValue += positions[id].Value()
	}
	step.InvestableTotal = cash + step.HeldValue

	// 4. target allocation
	navs := make(map[string]float64, len(top))
	for _, f := range top {
		if nav, ok := l.lookup(f.FundID, date); ok {
			navs[f.FundID] = nav
		}
	}
	if len(top) != n || len(navs) != n {
		l.logger.Warn().
			Str("date", date.Format("2006-01-02")).
			Int("want", n).
			Int("ranked", len(top)).
			Int("priced", len(navs)).
			Msg("Insufficient candidates, skipping allocation")
		addFlag(step, models.FlagInsufficientCandidates)

		step.AmountPerFund = 0
		p.cash = cash
		p.positions = positions
		step.ValueAfter = p.Value()
		return step
	}
	step.AmountPerFund = step.InvestableTotal / float64(n)

	// 5. buy / resize to equal weight
	next := make(map[string]models.Position, n)
	for _, f := range top {
		nav := navs[f.FundID]
		units := step.AmountPerFund / nav
		if held, ok := positions[f.FundID]; ok {
			held.Units = units
			held.LastKnownNAV = floatPtr(nav)
			next[f.FundID] = held
			continue
		}
		next[f.FundID] = models.Position{
			FundID:       f.FundID,
			Units:        units,
			BuyNAV:       nav,
			BuyDate:      date,
			LastKnownNAV: floatPtr(nav),
		}
		step.Bought = append(step.Bought, f.FundID)
	}

	// 6. fully invested
	p.cash = 0
	p.positions = next
	step.ValueAfter = p.Value()
	return step
}

func addFlag(step *Step, flag string) {
	for _, f := range step.Flags {
		if f == flag {
			return
		}
	}
	step.Flags = append(step.Flags, flag)
}

func sortedKeys(m map[string]models.Position) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
