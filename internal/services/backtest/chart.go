package backtest

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/navrank/internal/models"
)

// RenderValueChart renders a PNG line chart of the portfolio value at each
// rebalance date plus the final valuation, against the initial investment.
func RenderValueChart(report *models.SimulationReport) ([]byte, error) {
	var xValues []time.Time
	var valueY []float64
	for _, e := range report.Events {
		xValues = append(xValues, e.RebalanceDate)
		valueY = append(valueY, e.PortfolioValue)
	}
	if n := len(xValues); n == 0 || report.EndDate.After(xValues[n-1]) {
		xValues = append(xValues, report.EndDate)
		valueY = append(valueY, report.FinalValue)
	}
	if len(xValues) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(xValues))
	}

	investedY := make([]float64, len(xValues))
	for i := range investedY {
		investedY[i] = report.Params.InitialInvestment
	}

	valueSeries := chart.TimeSeries{
		Name: "Portfolio Value",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: valueY,
	}

	investedSeries := chart.TimeSeries{
		Name: "Initial Investment",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: xValues,
		YValues: investedY,
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Momentum Rotation (top %d, %s lookback)", report.Params.TopN, report.Params.Lookback),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("₹%.1fL", f/100000)
				}
				return ""
			},
		},
		Series: []chart.Series{
			valueSeries,
			investedSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
