// Package interfaces defines service contracts for navrank
package interfaces

import (
	"context"

	"github.com/bobmcallan/navrank/internal/models"
)

// FundUniverseClient lists the schemes that make up the fund universe
type FundUniverseClient interface {
	// GetFunds returns every scheme eligible for screening and simulation
	GetFunds(ctx context.Context) ([]models.Fund, error)
}

// NAVHistoryClient provides per-scheme NAV history
type NAVHistoryClient interface {
	// GetNAVHistory returns a scheme's observations in ascending date order.
	// A scheme without data yields an empty slice and no error.
	GetNAVHistory(ctx context.Context, schemeCode string) ([]models.NAVObservation, error)
}
