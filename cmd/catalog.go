package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/backtest"
	"github.com/google/subcommands"
)

type catalogCmd struct {
	sector   string
	register string
	name     string
}

func (*catalogCmd) Name() string     { return "catalog" }
func (*catalogCmd) Synopsis() string { return "list or register catalog tickers" }
func (*catalogCmd) Usage() string {
	return `btx catalog [-sector <sector>]
btx catalog -register <ticker> [-name <name>] [-sector <sector>]

  Lists the tickers of the catalog by sector, or registers a ticker in the
  catalog file.

`
}

func (c *catalogCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sector, "sector", "", "Sector to list, or sector of the registered ticker")
	f.StringVar(&c.register, "register", "", "Ticker to register")
	f.StringVar(&c.name, "name", "", "Name of the registered ticker")
}

func (c *catalogCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	catalog, err := openCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog %q: %v\n", *catalogFile, err)
		return subcommands.ExitFailure
	}

	if c.register != "" {
		m := catalog.Register(c.register, backtest.Metadata{Name: c.name, Sector: c.sector})
		if err := catalog.Save(*catalogFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving catalog %q: %v\n", *catalogFile, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Registered %s (%s) in sector %s\n", m.Ticker, m.Name, m.Sector)
		return subcommands.ExitSuccess
	}

	sectors := catalog.Sectors()
	if c.sector != "" {
		sectors = []string{c.sector}
	}
	var b strings.Builder
	b.WriteString("# Catalog\n\n")
	if catalog.Len() == 0 {
		fmt.Fprintf(&b, "The catalog %s is empty, add tickers with `btx catalog -register`.\n", *catalogFile)
	}
	for _, s := range sectors {
		tickers := catalog.BySector(s)
		if len(tickers) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n| Ticker | Name |\n|:---|:---|\n", s)
		for _, t := range tickers {
			m, _ := catalog.Lookup(t)
			fmt.Fprintf(&b, "| %s | %s |\n", m.Ticker, m.Name)
		}
		b.WriteString("\n")
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
