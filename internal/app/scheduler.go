package app

import (
	"context"
	"time"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/interfaces"
)

// startDatasetRefresher reloads the dataset on a fixed interval. Load only
// refetches once the cached copy has aged out, so ticks on a fresh cache are
// no-ops.
func startDatasetRefresher(ctx context.Context, datasets interfaces.DatasetService, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Dataset refresher: stopped")
			return
		case <-ticker.C:
			refreshDataset(ctx, datasets, logger)
		}
	}
}

func refreshDataset(ctx context.Context, datasets interfaces.DatasetService, logger *common.Logger) {
	start := time.Now()

	ds, err := datasets.Load(ctx, false)
	if err != nil {
		logger.Warn().Err(err).Msg("Dataset refresh: failed")
		return
	}

	logger.Info().
		Int("funds", len(ds.Funds)).
		Time("fetched_at", ds.FetchedAt).
		Dur("elapsed", time.Since(start)).
		Msg("Dataset refresh: complete")
}
