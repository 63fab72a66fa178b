package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/navrank/internal/models"
)

type datasetSummary struct {
	FetchedAt    time.Time `json:"fetched_at"`
	Funds        int       `json:"funds"`
	Histories    int       `json:"histories"`
	Observations int       `json:"observations"`
}

func summarize(ds *models.Dataset) datasetSummary {
	sum := datasetSummary{FetchedAt: ds.FetchedAt, Funds: len(ds.Funds)}
	for _, obs := range ds.History {
		if len(obs) > 0 {
			sum.Histories++
			sum.Observations += len(obs)
		}
	}
	return sum
}

// handleDataset handles GET (summary, loading if needed) and DELETE
// (invalidate) on /api/dataset.
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ds, err := s.app.DatasetService.Load(r.Context(), false)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, summarize(ds))
	case http.MethodDelete:
		if err := s.app.DatasetService.Invalidate(r.Context()); err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// handleDatasetRefresh handles POST /api/dataset/refresh.
func (s *Server) handleDatasetRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ds, err := s.app.DatasetService.Load(r.Context(), true)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summarize(ds))
}
