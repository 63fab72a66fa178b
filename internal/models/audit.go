package models

import "time"

// Audit flags recorded on a RebalanceEvent for recoverable conditions
const (
	FlagInsufficientCandidates = "insufficient_candidates"
	FlagUnrealizableSale       = "unrealizable_sale"
	FlagUnvaluableHolding      = "unvaluable_holding"
)

// CashFundID is the synthetic fund ID used for the cash line of a value breakdown
const CashFundID = "CASH"

// Position is a holding in the simulated portfolio. LastKnownNAV is nil
// when no NAV was available at the most recent valuation date.
type Position struct {
	FundID       string    `json:"fund"`
	Units        float64   `json:"units"`
	BuyNAV       float64   `json:"buy_nav"`
	BuyDate      time.Time `json:"buy_date"`
	LastKnownNAV *float64  `json:"last_known_nav"`
}

// Value returns units × last known NAV, or 0 when the position is unvaluable
func (p Position) Value() float64 {
	if p.LastKnownNAV == nil {
		return 0
	}
	return p.Units * *p.LastKnownNAV
}

// RankedFund is one entry of a ranking with its trailing return (fraction, 0.25 = 25%)
type RankedFund struct {
	FundID         string  `json:"fund"`
	Name           string  `json:"name,omitempty"`
	TrailingReturn float64 `json:"trailing_return"`
}

// PLRecord is the realized profit/loss of a liquidated position.
// SellNAV and ProfitLoss are nil when the sale was unrealizable.
type PLRecord struct {
	FundID     string    `json:"fund"`
	Units      float64   `json:"units"`
	BuyNAV     float64   `json:"buy_nav"`
	BuyDate    time.Time `json:"buy_date"`
	SellNAV    *float64  `json:"sell_nav"`
	SellDate   time.Time `json:"sell_date"`
	ProfitLoss *float64  `json:"profit_loss"`
}

// HoldingValue is one line of a valuation breakdown. Units and NAV are nil
// for the CASH line; NAV is nil for an unvaluable holding.
type HoldingValue struct {
	FundID string   `json:"fund"`
	Units  *float64 `json:"units"`
	NAV    *float64 `json:"nav"`
	Value  float64  `json:"value"`
}

// RebalanceEvent is the immutable audit record of one rebalance step.
type RebalanceEvent struct {
	RebalanceDate   time.Time      `json:"rebalance_date"`
	Top             []RankedFund   `json:"top"`
	Bought          []string       `json:"bought_funds"`
	Sold            []string       `json:"sold_funds"`
	PLReport        []PLRecord     `json:"pl_report"`
	InvestableTotal float64        `json:"investable_total"`
	AmountPerFund   float64        `json:"amount_per_fund"`
	Cash            float64        `json:"cash"`
	PortfolioValue  float64        `json:"portfolio_value"`
	Breakdown       []HoldingValue `json:"portfolio_value_breakdown"`
	Holdings        []Position     `json:"holdings"`
	Flags           []string       `json:"flags,omitempty"`
}

// HasFlag reports whether the event carries the given audit flag
func (e *RebalanceEvent) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
