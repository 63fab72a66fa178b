// Package rebalance drives the momentum-rotation simulation through its
// schedule of rebalance dates and projects the resulting audit trail.
package rebalance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/ledger"
	"github.com/bobmcallan/navrank/internal/models"
	"github.com/bobmcallan/navrank/internal/navseries"
	"github.com/bobmcallan/navrank/internal/ranking"
)

// ErrEmptyDataset is returned when the input dataset has no NAV history at all
var ErrEmptyDataset = errors.New("dataset has no nav history")

// State is the scheduler lifecycle state
type State int

const (
	NotStarted State = iota
	AwaitingNextInterval
	Terminated
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case AwaitingNextInterval:
		return "awaiting_next_interval"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Params configures a simulation run
type Params struct {
	InitialInvestment float64
	Start             time.Time
	CadenceMonths     int
	Lookback          navseries.Period
	TopN              int
	StaleAfter        time.Duration
}

// Validate rejects parameters the simulation cannot run with
func (p Params) Validate() error {
	if p.InitialInvestment <= 0 {
		return fmt.Errorf("initial investment must be positive, got %v", p.InitialInvestment)
	}
	if p.CadenceMonths <= 0 {
		return fmt.Errorf("cadence must be at least one month, got %d", p.CadenceMonths)
	}
	if p.TopN <= 0 {
		return fmt.Errorf("top_n must be positive, got %d", p.TopN)
	}
	if p.Lookback.IsZero() {
		return errors.New("lookback must be non-zero")
	}
	if p.Start.IsZero() {
		return errors.New("start date is required")
	}
	return nil
}

// Echo returns the parameters in report form
func (p Params) Echo() models.SimulationParams {
	return models.SimulationParams{
		InitialInvestment: p.InitialInvestment,
		StartDate:         p.Start.Format("2006-01-02"),
		CadenceMonths:     p.CadenceMonths,
		Lookback:          p.Lookback.String(),
		TopN:              p.TopN,
		StaleAfter:        p.StaleAfter.String(),
	}
}

// Schedule returns the month-start rebalance dates from start through end.
// A start that is not the 1st of a month rolls forward to the next 1st.
func Schedule(start, end time.Time, cadenceMonths int) []time.Time {
	if cadenceMonths <= 0 {
		return nil
	}
	start, end = navseries.Day(start), navseries.Day(end)
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	if first.Before(start) {
		first = first.AddDate(0, 1, 0)
	}

	var dates []time.Time
	for k := 0; ; k++ {
		d := first.AddDate(0, k*cadenceMonths, 0)
		if d.After(end) {
			break
		}
		dates = append(dates, d)
	}
	return dates
}

// Scheduler owns the portfolio for one simulation run and advances it one
// rebalance date at a time. It is not safe for concurrent use.
type Scheduler struct {
	params   Params
	logger   *common.Logger
	universe []*navseries.Series
	byID     map[string]*navseries.Series
	ledger   *ledger.Ledger

	portfolio *ledger.Portfolio
	dates     []time.Time
	next      int
	state     State
	events    []models.RebalanceEvent
	end       time.Time
}

// NewScheduler builds the per-fund series from the dataset and plans the
// rebalance dates up to the latest observation in the dataset.
func NewScheduler(ds *models.Dataset, params Params, logger *common.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if ds.IsEmpty() {
		return nil, ErrEmptyDataset
	}

	s := &Scheduler{
		params:    params,
		logger:    logger,
		byID:      make(map[string]*navseries.Series),
		portfolio: ledger.NewPortfolio(params.InitialInvestment),
		state:     NotStarted,
	}

	ids := make([]string, 0, len(ds.History))
	for id, obs := range ds.History {
		if len(obs) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		fund, ok := ds.Fund(id)
		if !ok {
			fund = models.Fund{ID: id}
		}
		series := navseries.New(fund, ds.History[id])
		if series.Len() == 0 {
			continue
		}
		s.universe = append(s.universe, series)
		s.byID[id] = series
		if series.End().After(s.end) {
			s.end = series.End()
		}
	}
	if len(s.universe) == 0 {
		return nil, ErrEmptyDataset
	}

	s.ledger = ledger.New(s.navAt, logger)
	s.dates = Schedule(params.Start, s.end, params.CadenceMonths)
	return s, nil
}

// navAt is the ledger's NAV lookup: the last observation on or before date,
// excluded when older than the staleness threshold.
func (s *Scheduler) navAt(fundID string, date time.Time) (float64, bool) {
	series, ok := s.byID[fundID]
	if !ok {
		return 0, false
	}
	obs, err := series.AsOfFresh(date, s.params.StaleAfter)
	if err != nil {
		return 0, false
	}
	return obs.NAV, true
}

// State returns the current lifecycle state
func (s *Scheduler) State() State { return s.state }

// Dates returns the planned rebalance dates
func (s *Scheduler) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// EndDate returns the latest observation date in the dataset
func (s *Scheduler) EndDate() time.Time { return s.end }

// Events returns the audit trail recorded so far
func (s *Scheduler) Events() []models.RebalanceEvent {
	out := make([]models.RebalanceEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Step performs the next scheduled rebalance and returns its event.
// It returns false once every date has been processed.
func (s *Scheduler) Step() (models.RebalanceEvent, bool) {
	if s.state == Terminated {
		return models.RebalanceEvent{}, false
	}
	if s.next >= len(s.dates) {
		s.state = Terminated
		return models.RebalanceEvent{}, false
	}

	date := s.dates[s.next]
	s.next++

	ranked := ranking.Rank(s.universe, date, ranking.Options{
		Lookback:   s.params.Lookback,
		TopN:       s.params.TopN,
		StaleAfter: s.params.StaleAfter,
	})
	if len(ranked.Stale) > 0 {
		s.logger.Debug().
			Str("date", date.Format("2006-01-02")).
			Strs("funds", ranked.Stale).
			Msg("Stale funds excluded from ranking")
	}

	step := s.ledger.Rebalance(s.portfolio, date, ranked.Top, s.params.TopN)

	event := models.RebalanceEvent{
		RebalanceDate:   date,
		Top:             ranked.Top,
		Bought:          emptyIfNil(step.Bought),
		Sold:            emptyIfNil(step.Sold),
		PLReport:        step.PLReport,
		InvestableTotal: step.InvestableTotal,
		AmountPerFund:   step.AmountPerFund,
		Cash:            s.portfolio.Cash(),
		PortfolioValue:  step.ValueAfter,
		Breakdown:       step.Breakdown,
		Holdings:        s.portfolio.Positions(),
		Flags:           step.Flags,
	}
	if event.PLReport == nil {
		event.PLReport = []models.PLRecord{}
	}
	if event.Breakdown == nil {
		event.Breakdown = []models.HoldingValue{}
	}
	s.events = append(s.events, event)

	s.logger.Info().
		Str("date", date.Format("2006-01-02")).
		Strs("top", ranking.IDs(ranked.Top)).
		Int("sold", len(event.Sold)).
		Int("bought", len(event.Bought)).
		Float64("value", event.PortfolioValue).
		Msg("Rebalanced")

	if s.next >= len(s.dates) {
		s.state = Terminated
	} else {
		s.state = AwaitingNextInterval
	}
	return event, true
}

// Run processes every remaining rebalance date and returns the final report.
// Cancellation is checked between steps.
func (s *Scheduler) Run(ctx context.Context) (*models.SimulationReport, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation interrupted after %d events: %w", len(s.events), err)
		}
		if _, ok := s.Step(); !ok {
			break
		}
	}
	return s.Report(), nil
}

// Report values the current portfolio at the dataset's max date
func (s *Scheduler) Report() *models.SimulationReport {
	final := []models.HoldingValue{}
	value := s.portfolio.Cash()
	for _, pos := range s.portfolio.Positions() {
		units := pos.Units
		line := models.HoldingValue{FundID: pos.FundID, Units: &units}
		if nav, ok := s.navAt(pos.FundID, s.end); ok {
			line.NAV = &nav
			line.Value = units * nav
			value += line.Value
		}
		final = append(final, line)
	}
	if cash := s.portfolio.Cash(); cash > 0 {
		final = append(final, models.HoldingValue{FundID: models.CashFundID, Value: cash})
	}

	events := s.Events()
	if events == nil {
		events = []models.RebalanceEvent{}
	}
	return &models.SimulationReport{
		Params:        s.params.Echo(),
		StartDate:     navseries.Day(s.params.Start),
		EndDate:       s.end,
		Events:        events,
		FinalCash:     s.portfolio.Cash(),
		FinalValue:    value,
		TotalReturn:   value/s.params.InitialInvestment - 1,
		FinalHoldings: final,
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
