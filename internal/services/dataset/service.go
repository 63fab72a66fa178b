// Package dataset fetches the fund universe and NAV histories and caches
// the combined dataset with a max-age invalidation policy.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/interfaces"
	"github.com/bobmcallan/navrank/internal/models"
)

// Service implements DatasetService
type Service struct {
	storage     interfaces.StorageManager
	universe    interfaces.FundUniverseClient
	navs        interfaces.NAVHistoryClient
	logger      *common.Logger
	maxAge      time.Duration
	concurrency int
	now         func() time.Time

	mu     sync.Mutex // serializes Load and Invalidate
	cached *models.Dataset
}

// NewService creates a new dataset service
func NewService(
	storage interfaces.StorageManager,
	universe interfaces.FundUniverseClient,
	navs interfaces.NAVHistoryClient,
	config *common.Config,
	logger *common.Logger,
) *Service {
	return &Service{
		storage:     storage,
		universe:    universe,
		navs:        navs,
		logger:      logger,
		maxAge:      config.Dataset.GetMaxAge(),
		concurrency: config.Dataset.GetConcurrency(),
		now:         time.Now,
	}
}

// Load returns the cached dataset while it is younger than the max age and
// refetches it otherwise. A failed universe fetch falls back to whatever
// dataset is cached, however old.
func (s *Service) Load(ctx context.Context, force bool) (*models.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cached := s.loadCached(ctx)
	if !force && cached != nil && common.IsFreshAt(cached.FetchedAt, now, s.maxAge) {
		s.logger.Debug().Time("fetched_at", cached.FetchedAt).Msg("Using cached dataset")
		return cached, nil
	}

	funds, err := s.universe.GetFunds(ctx)
	if err != nil {
		if cached != nil {
			s.logger.Warn().Err(err).Time("fetched_at", cached.FetchedAt).Msg("Fund universe fetch failed, using stale dataset")
			return cached, nil
		}
		return nil, fmt.Errorf("failed to fetch fund universe: %w", err)
	}

	history, err := s.fetchHistories(ctx, funds)
	if err != nil {
		return nil, err
	}

	if len(history) == 0 && !cached.IsEmpty() {
		s.logger.Warn().Int("funds", len(funds)).Msg("No NAV history fetched, keeping cached dataset")
		return cached, nil
	}

	ds := &models.Dataset{
		FetchedAt: now,
		Funds:     funds,
		History:   history,
	}
	if err := s.storage.DatasetStore().SaveDataset(ctx, ds); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist dataset")
	}
	s.cached = ds

	s.logger.Info().
		Int("funds", len(funds)).
		Int("with_history", len(history)).
		Msg("Dataset refreshed")
	return ds, nil
}

// Invalidate drops both the in-memory and the persisted dataset
func (s *Service) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	if err := s.storage.DatasetStore().DeleteDataset(ctx); err != nil {
		return fmt.Errorf("failed to invalidate dataset: %w", err)
	}
	s.logger.Info().Msg("Dataset invalidated")
	return nil
}

func (s *Service) loadCached(ctx context.Context) *models.Dataset {
	if s.cached != nil {
		return s.cached
	}
	ds, err := s.storage.DatasetStore().GetDataset(ctx)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Failed to read cached dataset")
		}
		return nil
	}
	s.cached = ds
	return ds
}

// fetchHistories fetches every fund's NAV history with bounded parallelism.
// A failed or empty fetch leaves the fund without history; it never fails
// the batch.
func (s *Service) fetchHistories(ctx context.Context, funds []models.Fund) (map[string][]models.NAVObservation, error) {
	history := make(map[string][]models.NAVObservation, len(funds))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed, empty := 0, 0

	started := s.now()
loop:
	for _, fund := range funds {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break loop
		}
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			defer func() { <-sem }()

			obs, err := s.navs.GetNAVHistory(ctx, code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failed++
				s.logger.Warn().Str("scheme", code).Err(err).Msg("NAV history fetch failed")
			case len(obs) == 0:
				empty++
			default:
				history[code] = obs
			}
		}(fund.ID)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dataset fetch interrupted: %w", err)
	}

	s.logger.Info().
		Int("fetched", len(history)).
		Int("failed", failed).
		Int("empty", empty).
		Dur("elapsed", s.now().Sub(started)).
		Msg("NAV histories collected")
	return history, nil
}
