package navseries

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/navrank/internal/models"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func obs(date time.Time, nav float64) models.NAVObservation {
	return models.NAVObservation{Date: date, NAV: nav}
}

func TestNew_SortsAndDedupesKeepingLast(t *testing.T) {
	s := New(models.Fund{ID: "F1"}, []models.NAVObservation{
		obs(d(2024, 1, 3), 12),
		obs(d(2024, 1, 1), 10),
		obs(d(2024, 1, 2), 11),
		obs(d(2024, 1, 2).Add(15*time.Hour), 11.5), // same day, seen later
	})

	got := s.Observations()
	require.Len(t, got, 3)
	assert.Equal(t, d(2024, 1, 1), got[0].Date)
	assert.Equal(t, 11.5, got[1].NAV)
	assert.Equal(t, d(2024, 1, 2), got[1].Date)
	assert.Equal(t, d(2024, 1, 3), s.End())
	assert.Equal(t, d(2024, 1, 1), s.Start())
}

func TestNew_DropsInvalidNAV(t *testing.T) {
	s := New(models.Fund{ID: "F1"}, []models.NAVObservation{
		obs(d(2024, 1, 1), 0),
		obs(d(2024, 1, 2), -4),
		obs(d(2024, 1, 3), math.NaN()),
		obs(d(2024, 1, 4), math.Inf(1)),
		obs(d(2024, 1, 5), 10),
	})
	assert.Equal(t, 1, s.Len())
}

func TestDerived_DailyAndCumulative(t *testing.T) {
	s := New(models.Fund{ID: "F1"}, []models.NAVObservation{
		obs(d(2024, 1, 1), 10),
		obs(d(2024, 1, 2), 11),
		obs(d(2024, 1, 3), 9.9),
	})
	pts := s.Points()
	require.Len(t, pts, 3)

	assert.Nil(t, pts[0].DailyReturn)
	assert.Equal(t, 1.0, pts[0].Cumulative)

	require.NotNil(t, pts[1].DailyReturn)
	assert.InDelta(t, 0.10, *pts[1].DailyReturn, 1e-12)
	assert.InDelta(t, 1.10, pts[1].Cumulative, 1e-12)

	require.NotNil(t, pts[2].DailyReturn)
	assert.InDelta(t, -0.10, *pts[2].DailyReturn, 1e-12)
	assert.InDelta(t, 0.99, pts[2].Cumulative, 1e-12)
}

func TestAsOf(t *testing.T) {
	s := New(models.Fund{ID: "F1"}, []models.NAVObservation{
		obs(d(2024, 1, 1), 10),
		obs(d(2024, 1, 5), 12),
	})

	_, err := s.AsOf(d(2023, 12, 31))
	assert.ErrorIs(t, err, ErrUnavailable)

	o, err := s.AsOf(d(2024, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 10.0, o.NAV)

	o, err = s.AsOf(d(2024, 1, 4))
	require.NoError(t, err)
	assert.Equal(t, 10.0, o.NAV)

	// intraday timestamps resolve to their calendar day
	o, err = s.AsOf(d(2024, 1, 5).Add(9 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 12.0, o.NAV)

	o, err = s.AsOf(d(2030, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 12.0, o.NAV)
}

func TestAsOf_EmptySeries(t *testing.T) {
	s := New(models.Fund{ID: "F1"}, nil)
	_, err := s.AsOf(d(2024, 1, 1))
	assert.ErrorIs(t, err, ErrUnavailable)
	_, ok := s.Latest()
	assert.False(t, ok)
	assert.True(t, s.End().IsZero())
}

func TestAsOfFresh(t *testing.T) {
	s := New(models.Fund{ID: "F1"}, []models.NAVObservation{
		obs(d(2024, 1, 5), 12), // Friday
	})

	// Monday, three days on: still fresh
	_, err := s.AsOfFresh(d(2024, 1, 8), 72*time.Hour)
	assert.NoError(t, err)

	_, err = s.AsOfFresh(d(2024, 1, 9), 72*time.Hour)
	assert.True(t, errors.Is(err, ErrStale))

	// gate disabled
	_, err = s.AsOfFresh(d(2025, 1, 9), 0)
	assert.NoError(t, err)
}
