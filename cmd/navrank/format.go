package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
)

// printMarkdown renders md for the terminal, falling back to the raw text
// when -plain is set or rendering fails.
func printMarkdown(md string) {
	if *plain {
		fmt.Print(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(160))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: markdown rendering failed: %v\n", err)
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func markdownTable(header []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = escapeCell(c)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// formatINR formats an amount in rupees with currency grouping and two
// decimal places.
func formatINR(v float64) string {
	cur := money.New(0, money.INR).Currency()
	minor := decimal.NewFromFloat(v).Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

func formatINRPtr(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return formatINR(*v)
}

// formatPct renders a fraction as a percentage, e.g. 0.1234 -> "12.34%".
func formatPct(fraction float64) string {
	return decimal.NewFromFloat(fraction).Shift(2).StringFixed(2) + "%"
}
