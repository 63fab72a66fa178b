// Package screen answers read-only screening queries over the fund
// universe and its cached NAV dataset.
package screen

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/interfaces"
	"github.com/bobmcallan/navrank/internal/models"
	"github.com/bobmcallan/navrank/internal/navseries"
)

// Service implements ScreenService
type Service struct {
	datasets     interfaces.DatasetService
	logger       *common.Logger
	staleAfter   time.Duration
	defaultLimit int
	now          func() time.Time
}

// NewService creates a new screening service
func NewService(datasets interfaces.DatasetService, config *common.Config, logger *common.Logger) *Service {
	limit := config.Screen.Limit
	if limit <= 0 {
		limit = 20
	}
	return &Service{
		datasets:     datasets,
		logger:       logger,
		staleAfter:   config.Dataset.GetStaleAfter(),
		defaultLimit: limit,
		now:          time.Now,
	}
}

func (s *Service) load(ctx context.Context) (*models.Dataset, error) {
	ds, err := s.datasets.Load(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return ds, nil
}

// ListFunds returns the whole universe in source order
func (s *Service) ListFunds(ctx context.Context) ([]models.Fund, error) {
	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Fund, len(ds.Funds))
	copy(out, ds.Funds)
	return out, nil
}

// ListCategories returns the sorted distinct scheme categories
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return distinct(ds.Funds, func(f models.Fund) string { return f.Category }), nil
}

// ListAMCs returns the sorted distinct fund houses
func (s *Service) ListAMCs(ctx context.Context) ([]string, error) {
	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return distinct(ds.Funds, func(f models.Fund) string { return f.AMC }), nil
}

// FundsByCategory returns the funds whose category matches exactly
func (s *Service) FundsByCategory(ctx context.Context, category string) ([]models.Fund, error) {
	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Fund{}
	for _, f := range ds.Funds {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out, nil
}

// TopByCAGR ranks funds by CAGR over the trailing years, measured from the
// last observation on or before now − years×365 days to the latest NAV.
// Funds whose latest NAV is stale are skipped. Funds younger than the
// window are listed with a CAGR of 0.
func (s *Service) TopByCAGR(ctx context.Context, years, limit int) ([]models.ScreenRow, error) {
	if years <= 0 {
		return nil, fmt.Errorf("years must be positive, got %d", years)
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cutoff := navseries.Day(now.AddDate(0, 0, -years*365))

	ids := make([]string, 0, len(ds.History))
	for id := range ds.History {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type scored struct {
		row  models.ScreenRow
		cagr float64
	}
	var results []scored
	stale := 0

	for _, id := range ids {
		fund, ok := ds.Fund(id)
		if !ok {
			fund = models.Fund{ID: id}
		}
		series := navseries.New(fund, ds.History[id])
		latest, ok := series.Latest()
		if !ok {
			continue
		}
		// NAV dates are whole days, so staleness is counted from today's midnight
		if !common.IsFreshAt(latest.Date, navseries.Day(now), s.staleAfter) {
			stale++
			continue
		}

		var cagr float64
		if !series.Start().Before(cutoff) {
			cagr = 0
		} else {
			total, err := navseries.TrailingReturn(series, latest.Date, cutoff)
			if err != nil {
				continue
			}
			if cagr, err = navseries.CAGR(total, float64(years)); err != nil {
				continue
			}
		}

		results = append(results, scored{
			row: models.ScreenRow{
				SchemeCode: fund.ID,
				SchemeName: fund.Name,
				Category:   fund.Category,
				Years:      years,
				CAGRPct:    decimal.NewFromFloat(cagr).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64(),
			},
			cagr: cagr,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].cagr != results[j].cagr {
			return results[i].cagr > results[j].cagr
		}
		return results[i].row.SchemeCode < results[j].row.SchemeCode
	})

	if len(results) > limit {
		results = results[:limit]
	}
	rows := make([]models.ScreenRow, len(results))
	for i, r := range results {
		rows[i] = r.row
	}

	s.logger.Debug().
		Int("years", years).
		Int("ranked", len(rows)).
		Int("stale", stale).
		Msg("Screened funds by CAGR")
	return rows, nil
}

func distinct(funds []models.Fund, key func(models.Fund) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, f := range funds {
		k := key(f)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
