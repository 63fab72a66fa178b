package server

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/bobmcallan/navrank/internal/common"
)

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Fund universe and screening
	mux.HandleFunc("/api/funds/", s.routeFunds) // categories, amcs, category/{c}, top, top/{years}
	mux.HandleFunc("/api/funds", s.handleFundList)

	// Dataset
	mux.HandleFunc("/api/dataset/refresh", s.handleDatasetRefresh)
	mux.HandleFunc("/api/dataset", s.handleDataset)

	// Backtests
	mux.HandleFunc("/api/backtests/", s.routeBacktests) // {id}, {id}/audit, {id}/csv, {id}/chart
	mux.HandleFunc("/api/backtests", s.handleBacktests)
}

// routeFunds dispatches /api/funds/* to the appropriate handler.
func (s *Server) routeFunds(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/funds/")
	head, rest, _ := strings.Cut(path, "/")

	switch head {
	case "":
		s.handleFundList(w, r)
	case "categories":
		s.handleCategoryList(w, r)
	case "amcs":
		s.handleAMCList(w, r)
	case "category":
		if rest == "" {
			WriteError(w, http.StatusBadRequest, "category is required in path")
			return
		}
		s.handleCategoryFunds(w, r, rest)
	case "top":
		s.handleScreenTop(w, r, rest)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeBacktests dispatches /api/backtests/{id}/* to the appropriate handler.
func (s *Server) routeBacktests(w http.ResponseWriter, r *http.Request) {
	runID := PathParam(r, "/api/backtests/", "")
	rest := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/backtests/"+runID), "/")
	if runID == "" {
		s.handleBacktests(w, r)
		return
	}

	switch rest {
	case "":
		s.handleBacktestGet(w, r, runID)
	case "audit":
		s.handleBacktestAudit(w, r, runID)
	case "csv":
		s.handleBacktestCSV(w, r, runID)
	case "chart":
		s.handleBacktestChart(w, r, runID)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":        common.GetVersion(),
		"environment":    s.app.Config.Environment,
		"storage_driver": s.app.Config.Storage.Driver,
		"uptime_seconds": int(time.Since(s.app.StartupTime).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  float64(mem.HeapAlloc) / (1 << 20),
	})
}
