package interfaces

import (
	"context"
	"errors"

	"github.com/bobmcallan/navrank/internal/models"
)

// DatasetService owns the cached fund universe + NAV dataset
type DatasetService interface {
	// Load returns the cached dataset while it is younger than the configured
	// max age, refetching otherwise. When force is true it always refetches.
	Load(ctx context.Context, force bool) (*models.Dataset, error)

	// Invalidate drops the cached dataset
	Invalidate(ctx context.Context) error
}

// ScreenService answers read-only queries over the fund universe
type ScreenService interface {
	ListFunds(ctx context.Context) ([]models.Fund, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListAMCs(ctx context.Context) ([]string, error)
	FundsByCategory(ctx context.Context, category string) ([]models.Fund, error)

	// TopByCAGR ranks funds by annualized return over the last years years
	TopByCAGR(ctx context.Context, years, limit int) ([]models.ScreenRow, error)
}

// BacktestService runs and retrieves momentum-rotation simulations
type BacktestService interface {
	Run(ctx context.Context, opts BacktestOptions) (*models.SimulationReport, error)
	GetReport(ctx context.Context, runID string) (*models.SimulationReport, error)
	ListRuns(ctx context.Context) ([]string, error)
	GetChart(ctx context.Context, runID string) ([]byte, error)
	GetCSV(ctx context.Context, runID string) ([]byte, error)
}

// ErrInvalidOptions marks backtest options that cannot be resolved into
// runnable simulation parameters
var ErrInvalidOptions = errors.New("invalid backtest options")

// BacktestOptions overrides the configured simulation parameters.
// Zero values keep the configured default.
type BacktestOptions struct {
	StartDate         string  `json:"start_date,omitempty"`
	TopN              int     `json:"top_n,omitempty"`
	CadenceMonths     int     `json:"cadence_months,omitempty"`
	Lookback          string  `json:"lookback,omitempty"`
	InitialInvestment float64 `json:"initial_investment,omitempty"`
	RefreshData       bool    `json:"refresh_data,omitempty"`
}
