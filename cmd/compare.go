package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/backtest/renderer"
	"github.com/etnz/backtest/store"
	"github.com/google/subcommands"
)

type compareCmd struct{}

func (*compareCmd) Name() string     { return "compare" }
func (*compareCmd) Synopsis() string { return "compare saved backtests side by side" }
func (*compareCmd) Usage() string {
	return `btx compare <run_id> <run_id>...

  Displays the summary metrics of several saved runs side by side. Unknown
  runs are shown with empty cells.

`
}

func (c *compareCmd) SetFlags(f *flag.FlagSet) {}

func (c *compareCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "compare requires at least one run id")
		return subcommands.ExitUsageError
	}
	s, err := openStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening result store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeStore(s)

	table, err := store.Compare(ctx, s, f.Args()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error comparing runs: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderComparison(renderer.NewComparison(table)))
	return subcommands.ExitSuccess
}
