// Package backtest runs momentum-rotation simulations over the cached
// dataset and persists their audit output.
package backtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/interfaces"
	"github.com/bobmcallan/navrank/internal/models"
	"github.com/bobmcallan/navrank/internal/navseries"
	"github.com/bobmcallan/navrank/internal/rebalance"
)

// Storage subdirectories for audit artefacts
const (
	AuditDir  = "audit"
	ChartsDir = "charts"
)

// Service implements BacktestService
type Service struct {
	storage  interfaces.StorageManager
	datasets interfaces.DatasetService
	config   *common.Config
	logger   *common.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a new backtest service
func NewService(
	storage interfaces.StorageManager,
	datasets interfaces.DatasetService,
	config *common.Config,
	logger *common.Logger,
) *Service {
	return &Service{
		storage:  storage,
		datasets: datasets,
		config:   config,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Params resolves simulation parameters from config with opts applied on top
func (s *Service) Params(opts interfaces.BacktestOptions) (rebalance.Params, error) {
	sim := s.config.Simulation
	if opts.StartDate != "" {
		sim.StartDate = opts.StartDate
	}
	if opts.TopN != 0 {
		sim.TopN = opts.TopN
	}
	if opts.CadenceMonths != 0 {
		sim.CadenceMonths = opts.CadenceMonths
	}
	if opts.Lookback != "" {
		sim.Lookback = opts.Lookback
	}
	if opts.InitialInvestment != 0 {
		sim.InitialInvestment = opts.InitialInvestment
	}

	start, err := sim.GetStartDate()
	if err != nil {
		return rebalance.Params{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidOptions, err)
	}
	lookback, err := navseries.ParsePeriod(sim.Lookback)
	if err != nil {
		return rebalance.Params{}, fmt.Errorf("%w: lookback: %v", interfaces.ErrInvalidOptions, err)
	}

	p := rebalance.Params{
		InitialInvestment: sim.InitialInvestment,
		Start:             start,
		CadenceMonths:     sim.CadenceMonths,
		Lookback:          lookback,
		TopN:              sim.TopN,
		StaleAfter:        s.config.Dataset.GetStaleAfter(),
	}
	if err := p.Validate(); err != nil {
		return rebalance.Params{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidOptions, err)
	}
	return p, nil
}

// Run executes a simulation and persists its report, CSV and chart.
// Persistence failures are logged; the report is still returned.
func (s *Service) Run(ctx context.Context, opts interfaces.BacktestOptions) (*models.SimulationReport, error) {
	params, err := s.Params(opts)
	if err != nil {
		return nil, err
	}

	ds, err := s.datasets.Load(ctx, opts.RefreshData)
	if err != nil {
		return nil, err
	}

	sched, err := rebalance.NewScheduler(ds, params, s.logger)
	if err != nil {
		return nil, err
	}

	started := s.now()
	report, err := sched.Run(ctx)
	if err != nil {
		return nil, err
	}
	report.RunID = s.newID()
	report.CreatedAt = s.now().UTC()

	s.logger.Info().
		Str("run_id", report.RunID).
		Int("events", len(report.Events)).
		Float64("final_value", report.FinalValue).
		Float64("total_return", report.TotalReturn).
		Dur("elapsed", s.now().Sub(started)).
		Msg("Backtest complete")

	s.persist(ctx, report)
	return report, nil
}

func (s *Service) persist(ctx context.Context, report *models.SimulationReport) {
	log := s.logger.With().Str("run_id", report.RunID).Logger()

	if err := s.storage.ReportStore().SaveReport(ctx, report); err != nil {
		log.Warn().Err(err).Msg("Failed to save report")
	}

	var js bytes.Buffer
	if err := rebalance.EncodeJSON(&js, report); err != nil {
		log.Warn().Err(err).Msg("Failed to encode nested audit")
	} else if err := s.storage.WriteRaw(AuditDir, report.RunID+".json", js.Bytes()); err != nil {
		log.Warn().Err(err).Msg("Failed to write nested audit")
	}

	if data, err := renderCSV(report); err != nil {
		log.Warn().Err(err).Msg("Failed to encode flat audit")
	} else if err := s.storage.WriteRaw(AuditDir, report.RunID+".csv", data); err != nil {
		log.Warn().Err(err).Msg("Failed to write flat audit")
	}

	if png, err := RenderValueChart(report); err != nil {
		log.Debug().Err(err).Msg("Chart not rendered")
	} else if err := s.storage.WriteRaw(ChartsDir, report.RunID+".png", png); err != nil {
		log.Warn().Err(err).Msg("Failed to write chart")
	}
}

// GetReport returns a stored report
func (s *Service) GetReport(ctx context.Context, runID string) (*models.SimulationReport, error) {
	return s.storage.ReportStore().GetReport(ctx, runID)
}

// ListRuns returns the IDs of stored runs
func (s *Service) ListRuns(ctx context.Context) ([]string, error) {
	return s.storage.ReportStore().ListReports(ctx)
}

// GetChart returns the stored PNG chart, rendering it from the report when
// no chart was stored
func (s *Service) GetChart(ctx context.Context, runID string) ([]byte, error) {
	data, err := s.storage.ReadRaw(ChartsDir, runID+".png")
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, err
	}
	report, err := s.GetReport(ctx, runID)
	if err != nil {
		return nil, err
	}
	return RenderValueChart(report)
}

// GetCSV returns the flat audit projection of a stored run
func (s *Service) GetCSV(ctx context.Context, runID string) ([]byte, error) {
	data, err := s.storage.ReadRaw(AuditDir, runID+".csv")
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, err
	}
	report, err := s.GetReport(ctx, runID)
	if err != nil {
		return nil, err
	}
	return renderCSV(report)
}

func renderCSV(report *models.SimulationReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := rebalance.WriteCSV(&buf, report.Events); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
