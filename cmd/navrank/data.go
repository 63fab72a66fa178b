package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/bobmcallan/navrank/internal/common"
	"github.com/bobmcallan/navrank/internal/models"
)

type versionCmd struct{}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print build information" }
func (*versionCmd) Usage() string            { return "navrank version\n" }
func (*versionCmd) SetFlags(_ *flag.FlagSet) {}

func (*versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	common.LoadVersionFromFile()
	fmt.Println("navrank " + common.GetFullVersion())
	return subcommands.ExitSuccess
}

type fetchCmd struct {
	force bool
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "download the fund universe and NAV histories" }
func (*fetchCmd) Usage() string {
	return `navrank fetch [-force]

Downloads the Direct Growth fund universe and every fund's NAV history,
reusing the cached dataset while it is younger than dataset.max_age.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "force", false, "Refetch even when the cached dataset is fresh")
}

func (c *fetchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, ok := openApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	ds, err := a.DatasetService.Load(ctx, c.force)
	if err != nil {
		return fail(err)
	}

	histories, observations := 0, 0
	for _, obs := range ds.History {
		if len(obs) > 0 {
			histories++
			observations += len(obs)
		}
	}

	printMarkdown(markdownTable(
		[]string{"Fetched", "Funds", "With history", "Observations"},
		[][]string{{
			ds.FetchedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprint(len(ds.Funds)),
			fmt.Sprint(histories),
			fmt.Sprint(observations),
		}},
	))
	return subcommands.ExitSuccess
}

type fundsCmd struct {
	category string
}

func (*fundsCmd) Name() string     { return "funds" }
func (*fundsCmd) Synopsis() string { return "list funds in the universe" }
func (*fundsCmd) Usage() string {
	return `navrank funds [-category <name>]

Lists every fund, or only those in the exact category given.
`
}

func (c *fundsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "category", "", "Only list funds in this category")
}

func (c *fundsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, ok := openApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	var funds []models.Fund
	var err error
	if c.category != "" {
		funds, err = a.ScreenService.FundsByCategory(ctx, c.category)
	} else {
		funds, err = a.ScreenService.ListFunds(ctx)
	}
	if err != nil {
		return fail(err)
	}

	rows := make([][]string, 0, len(funds))
	for _, f := range funds {
		rows = append(rows, []string{f.ID, f.Name, f.Category, f.AMC})
	}
	printMarkdown(markdownTable([]string{"Code", "Scheme", "Category", "AMC"}, rows))
	return subcommands.ExitSuccess
}

type categoriesCmd struct{}

func (*categoriesCmd) Name() string             { return "categories" }
func (*categoriesCmd) Synopsis() string         { return "list distinct fund categories" }
func (*categoriesCmd) Usage() string            { return "navrank categories\n" }
func (*categoriesCmd) SetFlags(_ *flag.FlagSet) {}

func (*categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, ok := openApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	categories, err := a.ScreenService.ListCategories(ctx)
	if err != nil {
		return fail(err)
	}
	printMarkdown(bulletList("Categories", categories))
	return subcommands.ExitSuccess
}

type amcsCmd struct{}

func (*amcsCmd) Name() string             { return "amcs" }
func (*amcsCmd) Synopsis() string         { return "list distinct fund houses" }
func (*amcsCmd) Usage() string            { return "navrank amcs\n" }
func (*amcsCmd) SetFlags(_ *flag.FlagSet) {}

func (*amcsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, ok := openApp()
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.Close()

	amcs, err := a.ScreenService.ListAMCs(ctx)
	if err != nil {
		return fail(err)
	}
	printMarkdown(bulletList("Fund houses", amcs))
	return subcommands.ExitSuccess
}

func bulletList(title string, items []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%d)\n\n", title, len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", escapeCell(it))
	}
	return b.String()
}
