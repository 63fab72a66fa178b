package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/navrank/internal/app"
	"github.com/bobmcallan/navrank/internal/common"
)

const upstreamSchemes = `AMC,Code,Scheme Name,Scheme Type,Scheme Category,Scheme NAV Name
Alpha AMC,100,Alpha Flexi Cap Fund,Open Ended,Equity Scheme - Flexi Cap Fund,Alpha Flexi Cap Fund - Direct Plan - Growth
Beta AMC,200,Beta Liquid Fund,Open Ended,Debt Scheme - Liquid Fund,Beta Liquid Fund - Direct Plan - Growth
Beta AMC,201,Beta Liquid Fund,Open Ended,Debt Scheme - Liquid Fund,Beta Liquid Fund - Regular Plan - Growth
`

// navBody renders an mfapi response with month-start observations from
// 2018-01-01 plus one for today, newest first.
func navBody(now time.Time, nav func(i int) float64) string {
	type row struct {
		Date string `json:"date"`
		NAV  string `json:"nav"`
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var rows []row
	i := 0
	for d := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC); d.Before(today); d = d.AddDate(0, 1, 0) {
		rows = append([]row{{Date: d.Format("02-01-2006"), NAV: fmt.Sprintf("%.4f", nav(i))}}, rows...)
		i++
	}
	rows = append([]row{{Date: today.Format("02-01-2006"), NAV: fmt.Sprintf("%.4f", nav(i))}}, rows...)
	body, _ := json.Marshal(map[string]interface{}{"meta": map[string]string{}, "data": rows, "status": "SUCCESS"})
	return string(body)
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Now().UTC()
	bodies := map[string]string{
		"/mf/100": navBody(now, func(i int) float64 { return 10 * math.Pow(1.02, float64(i)) }),
		"/mf/200": navBody(now, func(i int) float64 { return 1000 + float64(i) }),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/amfi" {
			w.Write([]byte(upstreamSchemes))
			return
		}
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newLiveServer(t *testing.T, driver string) http.Handler {
	t.Helper()
	upstream := newUpstream(t)

	cfg := common.NewDefaultConfig()
	cfg.Storage.Driver = driver
	cfg.Storage.Path = t.TempDir()
	cfg.Clients.AMFI.URL = upstream.URL + "/amfi"
	cfg.Clients.MFAPI.BaseURL = upstream.URL
	cfg.Clients.MFAPI.RateLimit = 1000
	cfg.Clients.MFAPI.MaxRetries = 1
	cfg.Dataset.StaleAfter = "800h" // month-start observations
	cfg.Simulation.InitialInvestment = 100000
	cfg.Simulation.TopN = 1

	a, err := app.NewAppWithConfig(cfg, common.NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return NewServer(a).Handler()
}

func TestEndToEnd(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			env := &testEnv{handler: newLiveServer(t, driver)}

			rr := env.do(http.MethodPost, "/api/dataset/refresh", "")
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			summary := decode(t, rr)
			assert.Equal(t, float64(2), summary["funds"])
			assert.Equal(t, float64(2), summary["histories"])

			rr = env.do(http.MethodGet, "/api/funds/categories", "")
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, []interface{}{"Debt Scheme - Liquid Fund", "Equity Scheme - Flexi Cap Fund"}, decode(t, rr)["categories"])

			rr = env.do(http.MethodGet, "/api/funds/top/1", "")
			require.Equal(t, http.StatusOK, rr.Code)
			var top struct {
				Funds []struct {
					SchemeCode string  `json:"scheme_code"`
					CAGRPct    float64 `json:"cagr_pct"`
				} `json:"funds"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &top))
			require.Len(t, top.Funds, 2)
			assert.Equal(t, "100", top.Funds[0].SchemeCode)
			assert.Greater(t, top.Funds[0].CAGRPct, top.Funds[1].CAGRPct)

			rr = env.do(http.MethodPost, "/api/backtests", `{"start_date":"2019-01-01","cadence_months":6,"lookback":"1y"}`)
			require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
			runID := rr.Header().Get("X-Run-ID")
			require.NotEmpty(t, runID)

			var created struct {
				Events []struct {
					Top []struct {
						Fund string `json:"fund"`
					} `json:"top"`
				} `json:"events"`
				FinalValue float64 `json:"final_value"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
			require.NotEmpty(t, created.Events)
			assert.Equal(t, "100", created.Events[0].Top[0].Fund)
			assert.Greater(t, created.FinalValue, 100000.0)

			rr = env.do(http.MethodGet, "/api/backtests/"+runID+"/csv", "")
			require.Equal(t, http.StatusOK, rr.Code)
			assert.True(t, strings.HasPrefix(rr.Body.String(), "rebalance_date,top,"))

			rr = env.do(http.MethodGet, "/api/backtests/"+runID+"/chart", "")
			require.Equal(t, http.StatusOK, rr.Code)
			assert.True(t, strings.HasPrefix(rr.Body.String(), "\x89PNG"))

			rr = env.do(http.MethodGet, "/api/backtests/"+runID, "")
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, runID, decode(t, rr)["run_id"])

			rr = env.do(http.MethodPost, "/api/backtests", `{"lookback":"soon"}`)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}
