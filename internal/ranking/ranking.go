// Package ranking orders funds by trailing return at a point in time.
package ranking

import (
	"errors"
	"sort"
	"time"

	"github.com/bobmcallan/navrank/internal/models"
	"github.com/bobmcallan/navrank/internal/navseries"
)

// Options configures a ranking pass
type Options struct {
	Lookback   navseries.Period
	TopN       int
	StaleAfter time.Duration // funds whose NAV at the ranking date is older than this are excluded
}

// Result is the outcome of ranking the universe on one date
type Result struct {
	Date        time.Time
	Top         []models.RankedFund
	Eligible    int      // funds with a trailing return
	Stale       []string // excluded: latest NAV older than the threshold
	Unavailable []string // excluded: no NAV at the date or at the lookback anchor
}

// Rank computes every fund's trailing return over the lookback window ending
// at date, drops funds without one, and returns the best TopN ordered by
// return descending then fund ID ascending. Fewer than TopN entries are
// returned when not enough funds qualify.
func Rank(universe []*navseries.Series, date time.Time, opts Options) Result {
	res := Result{Date: date}
	lookbackStart := opts.Lookback.Before(date)

	ranked := make([]models.RankedFund, 0, len(universe))
	for _, s := range universe {
		r, err := navseries.FreshTrailingReturn(s, date, lookbackStart, opts.StaleAfter)
		if err != nil {
			if errors.Is(err, navseries.ErrStale) {
				res.Stale = append(res.Stale, s.ID())
			} else {
				res.Unavailable = append(res.Unavailable, s.ID())
			}
			continue
		}
		ranked = append(ranked, models.RankedFund{
			FundID:         s.ID(),
			Name:           s.Fund.Name,
			TrailingReturn: r,
		})
	}

	Sort(ranked)
	res.Eligible = len(ranked)

	n := opts.TopN
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	res.Top = ranked[:n:n]

	sort.Strings(res.Stale)
	sort.Strings(res.Unavailable)
	return res
}

// Sort orders funds by trailing return descending, ties by fund ID ascending.
func Sort(funds []models.RankedFund) {
	sort.SliceStable(funds, func(i, j int) bool {
		if funds[i].TrailingReturn != funds[j].TrailingReturn {
			return funds[i].TrailingReturn > funds[j].TrailingReturn
		}
		return funds[i].FundID < funds[j].FundID
	})
}

// IDs returns the fund IDs of a ranking in order
func IDs(funds []models.RankedFund) []string {
	ids := make([]string, len(funds))
	for i, f := range funds {
		ids[i] = f.FundID
	}
	return ids
}
