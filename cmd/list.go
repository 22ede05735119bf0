package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/backtest/renderer"
	"github.com/google/subcommands"
)

type listCmd struct {
	limit int
	json  bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list saved backtests, newest first" }
func (*listCmd) Usage() string {
	return `btx list [-n <limit>] [-json]

  Lists the saved backtest runs, most recent first.

`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 0, "Maximum number of runs to list, 0 for all")
	f.BoolVar(&c.json, "json", false, "Print the list as json")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening result store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeStore(s)

	list, err := s.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing runs: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.limit > 0 && len(list) > c.limit {
		list = list[:c.limit]
	}
	if c.json {
		if err := json.NewEncoder(os.Stdout).Encode(list); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.RenderRuns(renderer.NewRuns(list)))
	return subcommands.ExitSuccess
}
