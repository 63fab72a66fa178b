// Package navseries holds one fund's chronological NAV history and the
// return calculations derived from it.
package navseries

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/bobmcallan/navrank/internal/models"
)

var (
	// ErrUnavailable is returned when no observation exists at or before a date.
	ErrUnavailable = errors.New("nav unavailable")
	// ErrStale is returned when the latest observation is older than the freshness threshold.
	ErrStale = errors.New("nav stale")
)

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Point is an observation with its derived returns. DailyReturn is nil for
// the first observation.
type Point struct {
	Date        time.Time `json:"date"`
	NAV         float64   `json:"nav"`
	DailyReturn *float64  `json:"daily_return"`
	Cumulative  float64   `json:"cumulative_return"`
}

// Series is a read-only, date-ordered NAV history for one fund.
type Series struct {
	Fund   models.Fund
	points []Point
}

// New builds a Series from observations in any order. Dates are truncated
// to the day, non-positive or non-finite NAVs are dropped, and for
// duplicate dates the last-seen value wins.
func New(fund models.Fund, obs []models.NAVObservation) *Series {
	clean := make([]models.NAVObservation, 0, len(obs))
	for _, o := range obs {
		if o.NAV <= 0 || math.IsInf(o.NAV, 0) || math.IsNaN(o.NAV) {
			continue
		}
		clean = append(clean, models.NAVObservation{Date: Day(o.Date), NAV: o.NAV})
	}

	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Date.Before(clean[j].Date)
	})

	// Stable sort keeps input order within a date, so the last entry of a run wins.
	deduped := clean[:0]
	for _, o := range clean {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(o.Date) {
			deduped[n-1] = o
			continue
		}
		deduped = append(deduped, o)
	}

	s := &Series{Fund: fund, points: make([]Point, len(deduped))}
	cumulative := 1.0
	for i, o := range deduped {
		p := Point{Date: o.Date, NAV: o.NAV, Cumulative: 1.0}
		if i > 0 {
			r := o.NAV/deduped[i-1].NAV - 1
			p.DailyReturn = &r
			cumulative *= 1 + r
			p.Cumulative = cumulative
		}
		s.points[i] = p
	}
	return s
}

// ID returns the fund identifier
func (s *Series) ID() string { return s.Fund.ID }

// Len returns the number of observations
func (s *Series) Len() int { return len(s.points) }

// Points returns a copy of the derived series
func (s *Series) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Observations returns the normalized observations
func (s *Series) Observations() []models.NAVObservation {
	out := make([]models.NAVObservation, len(s.points))
	for i, p := range s.points {
		out[i] = models.NAVObservation{Date: p.Date, NAV: p.NAV}
	}
	return out
}

// Start returns the first observation date, zero when empty
func (s *Series) Start() time.Time {
	if len(s.points) == 0 {
		return time.Time{}
	}
	return s.points[0].Date
}

// End returns the last observation date, zero when empty
func (s *Series) End() time.Time {
	if len(s.points) == 0 {
		return time.Time{}
	}
	return s.points[len(s.points)-1].Date
}

// Latest returns the most recent observation
func (s *Series) Latest() (models.NAVObservation, bool) {
	if len(s.points) == 0 {
		return models.NAVObservation{}, false
	}
	p := s.points[len(s.points)-1]
	return models.NAVObservation{Date: p.Date, NAV: p.NAV}, true
}

// AsOf returns the last observation whose date is on or before target.
func (s *Series) AsOf(target time.Time) (models.NAVObservation, error) {
	target = Day(target)
	// first index strictly after target
	idx := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].Date.After(target)
	})
	if idx == 0 {
		return models.NAVObservation{}, ErrUnavailable
	}
	p := s.points[idx-1]
	return models.NAVObservation{Date: p.Date, NAV: p.NAV}, nil
}

// AsOfFresh is AsOf with a data-quality gate: the observation found must be
// no older than staleAfter relative to target. A non-positive staleAfter
// disables the gate.
func (s *Series) AsOfFresh(target time.Time, staleAfter time.Duration) (models.NAVObservation, error) {
	obs, err := s.AsOf(target)
	if err != nil {
		return obs, err
	}
	if staleAfter > 0 && Day(target).Sub(obs.Date) > staleAfter {
		return obs, ErrStale
	}
	return obs, nil
}
