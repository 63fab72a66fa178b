package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/navrank/internal/models"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// navTable is a fixed NAV lookup: fund -> date -> nav
type navTable map[string]map[time.Time]float64

func (t navTable) lookup(fundID string, date time.Time) (float64, bool) {
	nav, ok := t[fundID][date]
	return nav, ok
}

func top(ids ...string) []models.RankedFund {
	out := make([]models.RankedFund, len(ids))
	for i, id := range ids {
		out[i] = models.RankedFund{FundID: id}
	}
	return out
}

func TestRebalance_InitialBuyFullyInvests(t *testing.T) {
	t0 := d(2020, 1, 1)
	navs := navTable{
		"F1": {t0: 10},
		"F2": {t0: 20},
	}
	l := New(navs.lookup, nil)
	p := NewPortfolio(1000)

	step := l.Rebalance(p, t0, top("F1", "F2"), 2)

	assert.Equal(t, 0.0, p.Cash())
	assert.Equal(t, 1000.0, step.InvestableTotal)
	assert.Equal(t, 500.0, step.AmountPerFund)
	assert.Equal(t, []string{"F1", "F2"}, step.Bought)
	assert.Empty(t, step.Sold)
	assert.Empty(t, step.Flags)

	f1, ok := p.Position("F1")
	require.True(t, ok)
	assert.InDelta(t, 50.0, f1.Units, 1e-9)
	assert.Equal(t, 10.0, f1.BuyNAV)
	assert.Equal(t, t0, f1.BuyDate)

	f2, _ := p.Position("F2")
	assert.InDelta(t, 25.0, f2.Units, 1e-9)
	assert.InDelta(t, 1000.0, p.Value(), 1e-9)
	assert.InDelta(t, 1000.0, step.ValueAfter, 1e-9)

	// initial breakdown is only cash
	require.Len(t, step.Breakdown, 1)
	assert.Equal(t, models.CashFundID, step.Breakdown[0].FundID)
	assert.Nil(t, step.Breakdown[0].Units)
}

func TestRebalance_DropOutSellsWithProfitLoss(t *testing.T) {
	t0, t1 := d(2020, 1, 1), d(2020, 7, 1)
	navs := navTable{
		"F1": {t0: 10, t1: 12},
		"F2": {t0: 20, t1: 30},
		"F3": {t1: 5},
	}
	l := New(navs.lookup, nil)
	p := NewPortfolio(1000)
	l.Rebalance(p, t0, top("F1", "F2"), 2)

	step := l.Rebalance(p, t1, top("F2", "F3"), 2)

	require.Equal(t, []string{"F1"}, step.Sold)
	require.Len(t, step.PLReport, 1)
	rec := step.PLReport[0]
	assert.Equal(t, "F1", rec.FundID)
	assert.InDelta(t, 50.0, rec.Units, 1e-9)
	require.NotNil(t, rec.SellNAV)
	assert.Equal(t, 12.0, *rec.SellNAV)
	require.NotNil(t, rec.ProfitLoss)
	assert.InDelta(t, (12.0-10.0)*50, *rec.ProfitLoss, 1e-9)
	assert.Equal(t, t0, rec.BuyDate)
	assert.Equal(t, t1, rec.SellDate)

	// proceeds land in cash before the buy pass
	assert.InDelta(t, 600.0, step.CashAfterSales, 1e-9)
	// investable = 600 cash + 25 units F2 @ 30
	assert.InDelta(t, 1350.0, step.InvestableTotal, 1e-9)
	assert.InDelta(t, 675.0, step.AmountPerFund, 1e-9)
	assert.Equal(t, []string{"F3"}, step.Bought)
	assert.Equal(t, 0.0, p.Cash())
	assert.InDelta(t, step.ValueBefore, step.ValueAfter, 1e-9)
}

func TestRebalance_RetainedFundKeepsCostBasis(t *testing.T) {
	t0, t1 := d(2020, 1, 1), d(2020, 7, 1)
	navs := navTable{
		"F1": {t0: 10, t1: 20},
		"F2": {t0: 10, t1: 10},
	}
	l := New(navs.lookup, nil)
	p := NewPortfolio(1000)
	l.Rebalance(p, t0, top("F1", "F2"), 2)

	step := l.Rebalance(p, t1, top("F1", "F2"), 2)

	assert.Empty(t, step.Bought)
	assert.Empty(t, step.Sold)
	assert.InDelta(t, 1500.0, step.InvestableTotal, 1e-9)

	f1, _ := p.Position("F1")
	assert.Equal(t, 10.0, f1.BuyNAV)
	assert.Equal(t, t0, f1.BuyDate)
	assert.InDelta(t, 37.5, f1.Units, 1e-9)

	f2, _ := p.Position("F2")
	assert.InDelta(t, 75.0, f2.Units, 1e-9)
	assert.InDelta(t, 1500.0, p.Value(), 1e-9)
}

func TestRebalance_UnrealizableSale(t *testing.T) {
	t0, t1 := d(2020, 1, 1), d(2020, 7, 1)
	navs := navTable{
		"F1": {t0: 10},
		"F2": {t0: 10, t1: 11},
	}
	l := New(navs.lookup, nil)
	p := NewPortfolio(1000)
	l.Rebalance(p, t0, top("F1", "F2"), 2)

	step := l.Rebalance(p, t1, top("F2"), 1)

	assert.Contains(t, step.Flags, models.FlagUnvaluableHolding)
	assert.Contains(t, step.Flags, models.FlagUnrealizableSale)
	require.Len(t, step.PLReport, 1)
	assert.Equal(t, "F1", step.PLReport[0].FundID)
	assert.Nil(t, step.PLReport[0].SellNAV)
	assert.Nil(t, step.PLReport[0].ProfitLoss)

	_, held := p.Position("F1")
	assert.False(t, held)

	// F1 contributed nothing: 50 units F2 @ 11
	assert.InDelta(t, 550.0, step.ValueBefore, 1e-9)
	assert.InDelta(t, 550.0, step.InvestableTotal, 1e-9)
	assert.InDelta(t, 550.0, p.Value(), 1e-9)

	// breakdown lists the unvaluable line with a nil NAV
	require.Len(t, step.Breakdown, 2)
	assert.Equal(t, "F1", step.Breakdown[0].FundID)
	assert.Nil(t, step.Breakdown[0].NAV)
	assert.Equal(t, 0.0, step.Breakdown[0].Value)
}

func TestRebalance_InsufficientCandidatesStallsReinvestment(t *testing.T) {
	t0, t1 := d(2020, 1, 1), d(2020, 7, 1)
	navs := navTable{
		"F1": {t0: 10, t1: 15},
		"F2": {t0: 10, t1: 8},
	}
	l := New(navs.lookup, nil)
	p := NewPortfolio(1000)
	l.Rebalance(p, t0, top("F1", "F2"), 2)

	// only F1 qualifies: F2 is sold, nothing is bought
	step := l.Rebalance(p, t1, top("F1"), 2)

	assert.Equal(t, []string{models.FlagInsufficientCandidates}, step.Flags)
	assert.Equal(t, 0.0, step.AmountPerFund)
	assert.Empty(t, step.Bought)
	assert.Equal(t, []string{"F2"}, step.Sold)

	// proceeds stay in cash, F1 untouched apart from valuation drift
	assert.InDelta(t, 400.0, p.Cash(), 1e-9)
	f1, ok := p.Position("F1")
	require.True(t, ok)
	assert.InDelta(t, 50.0, f1.Units, 1e-9)
	assert.Equal(t, 10.0, f1.BuyNAV)
	assert.InDelta(t, 1150.0, p.Value(), 1e-9)
	assert.InDelta(t, step.ValueBefore, step.ValueAfter, 1e-9)
}

func TestRebalance_EmptyTopKeepsEverythingInCash(t *testing.T) {
	t0 := d(2020, 1, 1)
	l := New(navTable{}.lookup, nil)
	p := NewPortfolio(1000)

	step := l.Rebalance(p, t0, nil, 3)

	assert.Equal(t, 1000.0, p.Cash())
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 0.0, step.AmountPerFund)
	assert.True(t, len(step.Flags) == 1 && step.Flags[0] == models.FlagInsufficientCandidates)
}

func TestRebalance_ValueConservedAcrossSteps(t *testing.T) {
	dates := []time.Time{d(2020, 1, 1), d(2020, 4, 1), d(2020, 7, 1), d(2020, 10, 1)}
	navs := navTable{
		"A": {dates[0]: 10, dates[1]: 11, dates[2]: 9, dates[3]: 14},
		"B": {dates[0]: 50, dates[1]: 40, dates[2]: 45, dates[3]: 60},
		"C": {dates[0]: 1, dates[1]: 1.2, dates[2]: 1.5, dates[3]: 1.4},
	}
	tops := [][]models.RankedFund{top("A", "B"), top("C", "A"), top("B", "C"), top("A", "C")}

	l := New(navs.lookup, nil)
	p := NewPortfolio(10000)
	for i, date := range dates {
		step := l.Rebalance(p, date, tops[i], 2)
		assert.InDelta(t, step.ValueBefore, step.ValueAfter, 1e-6, "step %d", i)
		assert.InDelta(t, step.InvestableTotal, step.AmountPerFund*2, 1e-6, "step %d", i)
		assert.Equal(t, 0.0, p.Cash())
		assert.Equal(t, 2, p.Len())
	}
}

func TestPortfolio_PositionsReturnsCopies(t *testing.T) {
	t0 := d(2020, 1, 1)
	l := New(navTable{"F1": {t0: 10}}.lookup, nil)
	p := NewPortfolio(100)
	l.Rebalance(p, t0, top("F1"), 1)

	positions := p.Positions()
	require.Len(t, positions, 1)
	*positions[0].LastKnownNAV = 999
	positions[0].Units = 0

	f1, _ := p.Position("F1")
	assert.InDelta(t, 10.0, f1.Units, 1e-9)
	assert.Equal(t, 10.0, *f1.LastKnownNAV)
}
