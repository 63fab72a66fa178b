package navseries

import (
	"fmt"
	"math"
	"time"
)

// TrailingReturn returns NAV(asOf) / NAV(lookbackStart) − 1, each anchor
// being the last observation on or before its date.
func TrailingReturn(s *Series, asOf, lookbackStart time.Time) (float64, error) {
	return FreshTrailingReturn(s, asOf, lookbackStart, 0)
}

// FreshTrailingReturn is TrailingReturn with the staleness gate applied to
// the asOf anchor. The lookback anchor is historical and never stale.
func FreshTrailingReturn(s *Series, asOf, lookbackStart time.Time, staleAfter time.Duration) (float64, error) {
	now, err := s.AsOfFresh(asOf, staleAfter)
	if err != nil {
		return 0, err
	}
	past, err := s.AsOf(lookbackStart)
	if err != nil {
		return 0, err
	}
	return now.NAV/past.NAV - 1, nil
}

// CAGR annualizes a total return over years: (1 + total)^(1/years) − 1.
func CAGR(totalReturn, years float64) (float64, error) {
	if years <= 0 {
		return 0, fmt.Errorf("cagr: years must be positive, got %v", years)
	}
	growth := 1 + totalReturn
	if growth < 0 {
		return 0, fmt.Errorf("cagr: total return %v below -100%%", totalReturn)
	}
	return math.Pow(growth, 1/years) - 1, nil
}

// RollingPoint is the trailing return ending at Date
type RollingPoint struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// RollingReturns computes, for every observation, the trailing return over
// window ending at that observation. Observations without a lookback anchor
// are omitted.
func RollingReturns(s *Series, window Period) []RollingPoint {
	var out []RollingPoint
	for _, p := range s.points {
		r, err := TrailingReturn(s, p.Date, window.Before(p.Date))
		if err != nil {
			continue
		}
		out = append(out, RollingPoint{Date: p.Date, Return: r})
	}
	return out
}
