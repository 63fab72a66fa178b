package models

import "time"

// SimulationParams echoes the parameters a simulation ran with
type SimulationParams struct {
	InitialInvestment float64 `json:"initial_investment"`
	StartDate         string  `json:"start_date"`
	CadenceMonths     int     `json:"cadence_months"`
	Lookback          string  `json:"lookback"`
	TopN              int     `json:"top_n"`
	StaleAfter        string  `json:"stale_after"`
}

// SimulationReport is the full outcome of a momentum-rotation backtest
type SimulationReport struct {
	RunID         string           `json:"run_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Params        SimulationParams `json:"params"`
	StartDate     time.Time        `json:"start_date"`
	EndDate       time.Time        `json:"end_date"` // max data date
	Events        []RebalanceEvent `json:"events"`
	FinalCash     float64          `json:"final_cash"`
	FinalValue    float64          `json:"final_value"`
	TotalReturn   float64          `json:"total_return"`
	FinalHoldings []HoldingValue   `json:"final_holdings"`
}

// ScreenRow is one result of a top-by-CAGR screening query
type ScreenRow struct {
	SchemeCode string  `json:"scheme_code"`
	SchemeName string  `json:"scheme_name"`
	Category   string  `json:"scheme_category"`
	Years      int     `json:"years"`
	CAGRPct    float64 `json:"cagr_pct"`
}
