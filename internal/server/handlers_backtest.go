package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/bobmcallan/navrank/internal/interfaces"
	"github.com/bobmcallan/navrank/internal/rebalance"
)

// handleBacktests handles GET (list run IDs) and POST (run) on /api/backtests.
func (s *Server) handleBacktests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleBacktestList(w, r)
	case http.MethodPost:
		s.handleBacktestRun(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleBacktestList(w http.ResponseWriter, r *http.Request) {
	runs, err := s.app.BacktestService.ListRuns(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleBacktestRun handles POST /api/backtests and responds with the nested
// audit of the run. An empty body runs with the configured defaults.
func (s *Server) handleBacktestRun(w http.ResponseWriter, r *http.Request) {
	var opts interfaces.BacktestOptions
	if r.ContentLength != 0 {
		if !DecodeJSON(w, r, &opts) {
			return
		}
	}

	report, err := s.app.BacktestService.Run(r.Context(), opts)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.logger.Info().
		Str("run_id", report.RunID).
		Str("correlation_id", CorrelationID(r.Context())).
		Int("events", len(report.Events)).
		Float64("final_value", report.FinalValue).
		Msg("Backtest completed")

	w.Header().Set("X-Run-ID", report.RunID)
	WriteJSON(w, http.StatusCreated, rebalance.Nested(report))
}

func (s *Server) handleBacktestGet(w http.ResponseWriter, r *http.Request, runID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	report, err := s.app.BacktestService.GetReport(r.Context(), runID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// handleBacktestAudit serves the nested audit projection of a run.
func (s *Server) handleBacktestAudit(w http.ResponseWriter, r *http.Request, runID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	report, err := s.app.BacktestService.GetReport(r.Context(), runID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rebalance.Nested(report))
}

func (s *Server) handleBacktestCSV(w http.ResponseWriter, r *http.Request, runID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	data, err := s.app.BacktestService.GetCSV(r.Context(), runID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+runID+`.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleBacktestChart(w http.ResponseWriter, r *http.Request, runID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	data, err := s.app.BacktestService.GetChart(r.Context(), runID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// writeServiceError maps service errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, interfaces.ErrInvalidOptions):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_options")
	case errors.Is(err, rebalance.ErrEmptyDataset):
		WriteErrorWithCode(w, http.StatusServiceUnavailable, err.Error(), "no_data")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		WriteErrorWithCode(w, http.StatusServiceUnavailable, err.Error(), "interrupted")
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
