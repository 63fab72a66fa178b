package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/bobmcallan/navrank/internal/interfaces"
	"github.com/bobmcallan/navrank/internal/models"
	"github.com/bobmcallan/navrank/internal/rebalance"
)

type screenCmd struct {
	years int
	limit int
}

func (*screenCmd) Name() string     { return "screen" }
func (*screenCmd) Synopsis() string { return "rank funds by trailing CAGR" }
func (*screenCmd) Usage() string {
	return `navrank screen [-years n] [-limit n]

Ranks funds with a fresh NAV by annualized return over the last n years.
Funds whose history does not reach back that far score 0.
`
}

func (c *screenCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.years, "years", 3, "CAGR window in years")
	f.IntVar(&c.limit, "limit", 0, "Maximum rows (defaults to screen.limit)")
}

func (c *screenCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.years <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -years must be positive")
		return subcommands.ExitUsageError
	}
	a, ok := openApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	rows, err := a.ScreenService.TopByCAGR(ctx, c.years, c.limit)
	if err != nil {
		return fail(err)
	}

	out := make([][]string, 0, len(rows))
	for i, r := range rows {
		out = append(out, []string{
			fmt.Sprint(i + 1),
			r.SchemeCode,
			r.SchemeName,
			r.Category,
			fmt.Sprintf("%.2f%%", r.CAGRPct),
		})
	}
	printMarkdown(fmt.Sprintf("## Top funds by %d-year CAGR\n\n", c.years) +
		markdownTable([]string{"#", "Code", "Scheme", "Category", "CAGR"}, out))
	return subcommands.ExitSuccess
}

type simulateCmd struct {
	opts     interfaces.BacktestOptions
	jsonPath string
	csvPath  string
	quiet    bool
}

func (*simulateCmd) Name() string     { return "simulate" }
func (*simulateCmd) Synopsis() string { return "run a momentum-rotation backtest" }
func (*simulateCmd) Usage() string {
	return `navrank simulate [-start YYYY-MM-DD] [-top n] [-cadence months] [-lookback 1y]
                 [-investment amount] [-refresh] [-json file] [-csv file]

At every rebalance date the portfolio is rotated into the top n funds by
trailing return over the lookback window, split equally. Unset flags use the
[simulation] section of the config. The run and its audit files are stored
under the data path; -json and -csv additionally copy them to local files.
`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.opts.StartDate, "start", "", "First rebalance date (YYYY-MM-DD)")
	f.IntVar(&c.opts.TopN, "top", 0, "Number of funds held")
	f.IntVar(&c.opts.CadenceMonths, "cadence", 0, "Months between rebalances")
	f.StringVar(&c.opts.Lookback, "lookback", "", "Trailing return window, e.g. 1y, 6m, 1y6m, 90d")
	f.Float64Var(&c.opts.InitialInvestment, "investment", 0, "Initial cash in rupees")
	f.BoolVar(&c.opts.RefreshData, "refresh", false, "Refetch the dataset before running")
	f.StringVar(&c.jsonPath, "json", "", "Write the nested audit JSON to this file")
	f.StringVar(&c.csvPath, "csv", "", "Write the flat audit CSV to this file")
	f.BoolVar(&c.quiet, "q", false, "Only print the summary")
}

func (c *simulateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, ok := openApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	report, err := a.BacktestService.Run(ctx, c.opts)
	if errors.Is(err, interfaces.ErrInvalidOptions) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err != nil {
		return fail(err)
	}

	if err := writeAudit(report, c.jsonPath, c.csvPath); err != nil {
		return fail(err)
	}

	printMarkdown(renderReport(report, !c.quiet))
	return subcommands.ExitSuccess
}

type reportCmd struct {
	csv bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "show a stored backtest" }
func (*reportCmd) Usage() string {
	return `navrank report [-csv] [<run-id>]

Without a run ID, lists stored runs. With -csv, prints the flat audit CSV.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.csv, "csv", false, "Print the flat audit CSV instead of the summary")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, ok := openApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	if f.NArg() == 0 {
		runs, err := a.BacktestService.ListRuns(ctx)
		if err != nil {
			return fail(err)
		}
		printMarkdown(bulletList("Stored runs", runs))
		return subcommands.ExitSuccess
	}

	runID := f.Arg(0)
	if c.csv {
		data, err := a.BacktestService.GetCSV(ctx, runID)
		if err != nil {
			return fail(err)
		}
		os.Stdout.Write(data)
		return subcommands.ExitSuccess
	}

	report, err := a.BacktestService.GetReport(ctx, runID)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderReport(report, true))
	return subcommands.ExitSuccess
}

func writeAudit(report *models.SimulationReport, jsonPath, csvPath string) error {
	if jsonPath != "" {
		var buf bytes.Buffer
		if err := rebalance.EncodeJSON(&buf, report); err != nil {
			return err
		}
		if err := os.WriteFile(jsonPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", jsonPath, err)
		}
	}
	if csvPath != "" {
		var buf bytes.Buffer
		if err := rebalance.WriteCSV(&buf, report.Events); err != nil {
			return err
		}
		if err := os.WriteFile(csvPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", csvPath, err)
		}
	}
	return nil
}

// renderReport builds the markdown summary of a run, optionally with the
// per-rebalance event table.
func renderReport(r *models.SimulationReport, events bool) string {
	var b strings.Builder

	title := "Backtest"
	if r.RunID != "" {
		title += " " + r.RunID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	p := r.Params
	b.WriteString(markdownTable(
		[]string{"Start", "End", "Top N", "Cadence", "Lookback", "Invested", "Final value", "Return"},
		[][]string{{
			p.StartDate,
			r.EndDate.Format("2006-01-02"),
			fmt.Sprint(p.TopN),
			fmt.Sprintf("%dm", p.CadenceMonths),
			p.Lookback,
			formatINR(p.InitialInvestment),
			formatINR(r.FinalValue),
			formatPct(r.TotalReturn),
		}},
	))

	if events && len(r.Events) > 0 {
		b.WriteString("\n## Rebalances\n\n")
		rows := make([][]string, 0, len(r.Events))
		for _, e := range r.Events {
			top := make([]string, 0, len(e.Top))
			for _, f := range e.Top {
				top = append(top, fmt.Sprintf("%s (%s)", f.FundID, formatPct(f.TrailingReturn)))
			}
			rows = append(rows, []string{
				e.RebalanceDate.Format("2006-01-02"),
				strings.Join(top, ", "),
				strings.Join(e.Bought, ", "),
				strings.Join(e.Sold, ", "),
				realized(e.PLReport),
				formatINR(e.PortfolioValue),
				strings.Join(e.Flags, ", "),
			})
		}
		b.WriteString(markdownTable(
			[]string{"Date", "Top", "Bought", "Sold", "Realized P&L", "Value", "Flags"}, rows))
	}

	if len(r.FinalHoldings) > 0 {
		b.WriteString("\n## Final holdings\n\n")
		rows := make([][]string, 0, len(r.FinalHoldings))
		for _, h := range r.FinalHoldings {
			units := ""
			if h.Units != nil {
				units = fmt.Sprintf("%.4f", *h.Units)
			}
			rows = append(rows, []string{h.FundID, units, formatINRPtr(h.NAV), formatINR(h.Value)})
		}
		b.WriteString(markdownTable([]string{"Fund", "Units", "NAV", "Value"}, rows))
	}
	return b.String()
}

// realized sums the realizable P&L of a rebalance. Unrealizable sales are
// noted separately.
func realized(pl []models.PLRecord) string {
	if len(pl) == 0 {
		return ""
	}
	var total float64
	missing := 0
	for _, rec := range pl {
		if rec.ProfitLoss == nil {
			missing++
			continue
		}
		total += *rec.ProfitLoss
	}
	s := formatINR(total)
	if missing > 0 {
		s += fmt.Sprintf(" (%d unpriced)", missing)
	}
	return s
}
