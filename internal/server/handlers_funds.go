package server

import (
	"net/http"
	"strconv"
	"strings"
)

// handleFundList handles GET /api/funds. An optional ?category= filters by
// exact category.
func (s *Server) handleFundList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		s.handleCategoryFunds(w, r, category)
		return
	}

	funds, err := s.app.ScreenService.ListFunds(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(funds),
		"funds": funds,
	})
}

func (s *Server) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	categories, err := s.app.ScreenService.ListCategories(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (s *Server) handleAMCList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	amcs, err := s.app.ScreenService.ListAMCs(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"amcs": amcs})
}

func (s *Server) handleCategoryFunds(w http.ResponseWriter, r *http.Request, category string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	funds, err := s.app.ScreenService.FundsByCategory(r.Context(), category)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"category": category,
		"count":    len(funds),
		"funds":    funds,
	})
}

// handleScreenTop handles GET /api/funds/top?years=3&limit=20 and
// GET /api/funds/top/{years}.
func (s *Server) handleScreenTop(w http.ResponseWriter, r *http.Request, pathYears string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	years, ok := QueryInt(w, r, "years", 3)
	if !ok {
		return
	}
	if pathYears != "" {
		v, err := strconv.Atoi(strings.TrimSuffix(pathYears, "/"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid years: "+pathYears)
			return
		}
		years = v
	}
	if years <= 0 {
		WriteError(w, http.StatusBadRequest, "years must be positive, got "+strconv.Itoa(years))
		return
	}
	limit, ok := QueryInt(w, r, "limit", 0)
	if !ok {
		return
	}

	rows, err := s.app.ScreenService.TopByCAGR(r.Context(), years, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"years": years,
		"count": len(rows),
		"funds": rows,
	})
}
