package app

import (
	"context"
	"os"
	"time"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/interfaces"
)

// warmCache loads the dataset on startup so the first backtest does not pay
// for a full fetch.
func warmCache(ctx context.Context, datasets interfaces.DatasetService, logger *common.Logger) {
	if os.Getenv("NAVRANK_WARM_CACHE") == "off" {
		logger.Info().Msg("Warm cache: disabled via NAVRANK_WARM_CACHE=off")
		return
	}

	start := time.Now()
	logger.Info().Msg("Warm cache: starting")

	ds, err := datasets.Load(ctx, false)
	if err != nil {
		logger.Warn().Err(err).Msg("Warm cache: dataset load failed")
		return
	}

	logger.Info().
		Int("funds", len(ds.Funds)).
		Int("histories", len(ds.History)).
		Time("fetched_at", ds.FetchedAt).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
}
