package rebalance

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/navrank/internal/models"
)

const isoDate = "2006-01-02"

// NestedRanked is a ranked fund with its trailing return in percent
type NestedRanked struct {
	Fund           string  `json:"fund"`
	Name           string  `json:"name,omitempty"`
	TrailingReturn float64 `json:"trailing_return_pct"`
}

// NestedPL is a P&L record with ISO-8601 dates
type NestedPL struct {
	Fund       string   `json:"fund"`
	Units      float64  `json:"units"`
	BuyNAV     float64  `json:"buy_nav"`
	BuyDate    string   `json:"buy_date"`
	SellNAV    *float64 `json:"sell_nav"`
	SellDate   string   `json:"sell_date"`
	ProfitLoss *float64 `json:"profit_loss"`
}

// NestedPosition is an open position with ISO-8601 dates
type NestedPosition struct {
	Fund         string   `json:"fund"`
	Units        float64  `json:"units"`
	BuyNAV       float64  `json:"buy_nav"`
	BuyDate      string   `json:"buy_date"`
	LastKnownNAV *float64 `json:"last_known_nav"`
}

// NestedEvent is the structured projection of one RebalanceEvent
type NestedEvent struct {
	RebalanceDate   string                `json:"rebalance_date"`
	Top             []NestedRanked        `json:"top"`
	BoughtFunds     []string              `json:"bought_funds"`
	SoldFunds       []string              `json:"sold_funds"`
	PLReport        []NestedPL            `json:"pl_report"`
	InvestableTotal float64               `json:"investable_total"`
	AmountPerFund   float64               `json:"amount_per_fund"`
	Cash            float64               `json:"cash"`
	PortfolioValue  float64               `json:"portfolio_value"`
	Breakdown       []models.HoldingValue `json:"portfolio_value_breakdown"`
	Holdings        []NestedPosition      `json:"holdings"`
	Flags           []string              `json:"flags"`
}

// NestedReport is the structured projection of a SimulationReport
type NestedReport struct {
	RunID         string                  `json:"run_id,omitempty"`
	CreatedAt     string                  `json:"created_at,omitempty"`
	Params        models.SimulationParams `json:"params"`
	StartDate     string                  `json:"start_date"`
	EndDate       string                  `json:"end_date"`
	Events        []NestedEvent           `json:"events"`
	FinalCash     float64                 `json:"final_cash"`
	FinalValue    float64                 `json:"final_value"`
	TotalReturn   float64                 `json:"total_return"`
	FinalHoldings []models.HoldingValue   `json:"final_holdings"`
}

// NestedEvents projects events into the nested record form
func NestedEvents(events []models.RebalanceEvent) []NestedEvent {
	out := make([]NestedEvent, 0, len(events))
	for _, e := range events {
		ne := NestedEvent{
			RebalanceDate:   e.RebalanceDate.Format(isoDate),
			Top:             make([]NestedRanked, 0, len(e.Top)),
			BoughtFunds:     nonNil(e.Bought),
			SoldFunds:       nonNil(e.Sold),
			PLReport:        make([]NestedPL, 0, len(e.PLReport)),
			InvestableTotal: e.InvestableTotal,
			AmountPerFund:   e.AmountPerFund,
			Cash:            e.Cash,
			PortfolioValue:  e.PortfolioValue,
			Breakdown:       e.Breakdown,
			Holdings:        make([]NestedPosition, 0, len(e.Holdings)),
			Flags:           nonNil(e.Flags),
		}
		if ne.Breakdown == nil {
			ne.Breakdown = []models.HoldingValue{}
		}
		for _, f := range e.Top {
			ne.Top = append(ne.Top, NestedRanked{
				Fund:           f.FundID,
				Name:           f.Name,
				TrailingReturn: pct(f.TrailingReturn).InexactFloat64(),
			})
		}
		for _, pl := range e.PLReport {
			ne.PLReport = append(ne.PLReport, NestedPL{
				Fund:       pl.FundID,
				Units:      pl.Units,
				BuyNAV:     pl.BuyNAV,
				BuyDate:    formatDate(pl.BuyDate),
				SellNAV:    pl.SellNAV,
				SellDate:   formatDate(pl.SellDate),
				ProfitLoss: pl.ProfitLoss,
			})
		}
		for _, pos := range e.Holdings {
			ne.Holdings = append(ne.Holdings, NestedPosition{
				Fund:         pos.FundID,
				Units:        pos.Units,
				BuyNAV:       pos.BuyNAV,
				BuyDate:      formatDate(pos.BuyDate),
				LastKnownNAV: pos.LastKnownNAV,
			})
		}
		out = append(out, ne)
	}
	return out
}

// Nested projects a whole report into the nested record form
func Nested(r *models.SimulationReport) NestedReport {
	nr := NestedReport{
		RunID:         r.RunID,
		Params:        r.Params,
		StartDate:     formatDate(r.StartDate),
		EndDate:       formatDate(r.EndDate),
		Events:        NestedEvents(r.Events),
		FinalCash:     r.FinalCash,
		FinalValue:    r.FinalValue,
		TotalReturn:   r.TotalReturn,
		FinalHoldings: r.FinalHoldings,
	}
	if !r.CreatedAt.IsZero() {
		nr.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	if nr.FinalHoldings == nil {
		nr.FinalHoldings = []models.HoldingValue{}
	}
	return nr
}

// EncodeJSON writes the nested projection of r as indented JSON
func EncodeJSON(w io.Writer, r *models.SimulationReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Nested(r)); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// FlatHeader is the column order of the tabular projection
var FlatHeader = []string{
	"rebalance_date",
	"top",
	"bought_funds",
	"sold_funds",
	"sold_fund",
	"units",
	"buy_nav",
	"buy_date",
	"sell_nav",
	"sell_date",
	"profit_loss",
	"portfolio_value",
	"portfolio_value_breakdown",
	"flags",
}

// FlatRow is one spreadsheet row: one per sold position, or one per event
// when nothing was sold. Numbers are rounded to 2dp; absent values are empty.
type FlatRow struct {
	RebalanceDate  string
	Top            string
	BoughtFunds    string
	SoldFunds      string
	SoldFund       string
	Units          string
	BuyNAV         string
	BuyDate        string
	SellNAV        string
	SellDate       string
	ProfitLoss     string
	PortfolioValue string
	Breakdown      string
	Flags          string
}

// Record returns the row's cells in FlatHeader order
func (r FlatRow) Record() []string {
	return []string{
		r.RebalanceDate, r.Top, r.BoughtFunds, r.SoldFunds, r.SoldFund,
		r.Units, r.BuyNAV, r.BuyDate, r.SellNAV, r.SellDate, r.ProfitLoss,
		r.PortfolioValue, r.Breakdown, r.Flags,
	}
}

// Flatten projects events into the tabular form
func Flatten(events []models.RebalanceEvent) []FlatRow {
	var rows []FlatRow
	for _, e := range events {
		top := make([]string, len(e.Top))
		for i, f := range e.Top {
			top[i] = fmt.Sprintf("%s (%s%%)", f.FundID, pct(f.TrailingReturn).StringFixed(2))
		}
		breakdown, err := json.Marshal(e.Breakdown)
		if err != nil || e.Breakdown == nil {
			breakdown = []byte("[]")
		}

		base := FlatRow{
			RebalanceDate:  e.RebalanceDate.Format(isoDate),
			Top:            strings.Join(top, ", "),
			BoughtFunds:    strings.Join(e.Bought, ", "),
			SoldFunds:      strings.Join(e.Sold, ", "),
			PortfolioValue: round2(e.PortfolioValue),
			Breakdown:      string(breakdown),
			Flags:          strings.Join(e.Flags, ", "),
		}
		if len(e.PLReport) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, pl := range e.PLReport {
			row := base
			row.SoldFund = pl.FundID
			row.Units = round2(pl.Units)
			row.BuyNAV = round2(pl.BuyNAV)
			row.BuyDate = formatDate(pl.BuyDate)
			row.SellNAV = round2Ptr(pl.SellNAV)
			row.SellDate = formatDate(pl.SellDate)
			row.ProfitLoss = round2Ptr(pl.ProfitLoss)
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteCSV writes the tabular projection of events with a header row
func WriteCSV(w io.Writer, events []models.RebalanceEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FlatHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range Flatten(events) {
		if err := cw.Write(row.Record()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func pct(fraction float64) decimal.Decimal {
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).Round(2)
}

func round2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func round2Ptr(v *float64) string {
	if v == nil {
		return ""
	}
	return round2(*v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(isoDate)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
