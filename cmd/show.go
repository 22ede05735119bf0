package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/backtest/renderer"
	"github.com/etnz/backtest/store"
	"github.com/google/subcommands"
)

type showCmd struct {
	json bool
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "display the report of a saved backtest" }
func (*showCmd) Usage() string {
	return `btx show [-json] <run_id>

  Displays the report of a saved backtest run.

`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "Print the saved record as json")
}

func (c *showCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "show requires exactly one run id")
		return subcommands.ExitUsageError
	}
	s, err := openStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening result store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeStore(s)

	rec, err := s.Load(ctx, f.Arg(0))
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "No run %q, see 'btx list'\n", f.Arg(0))
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading run: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.RenderReport(renderer.NewReport(rec, *currency)))
	return subcommands.ExitSuccess
}
