package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/bobmcallan/navrank/internal/app"
)

var (
	configPath = flag.String("config", "", "Path to navrank.toml (defaults to $NAVRANK_CONFIG)")
	plain      = flag.Bool("plain", false, "Print raw markdown instead of rendering it")
)

// register adds every subcommand to the commander.
func register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(&versionCmd{}, "")

	c.Register(&fetchCmd{}, "data")
	c.Register(&fundsCmd{}, "data")
	c.Register(&categoriesCmd{}, "data")
	c.Register(&amcsCmd{}, "data")

	c.Register(&screenCmd{}, "analysis")
	c.Register(&simulateCmd{}, "analysis")
	c.Register(&reportCmd{}, "analysis")
}

// openApp initializes the shared app, reporting failures on stderr.
func openApp() (*app.App, bool) {
	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, false
	}
	return a, true
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}
