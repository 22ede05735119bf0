package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type deleteCmd struct{}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete saved backtests" }
func (*deleteCmd) Usage() string {
	return `btx delete <run_id>...

  Deletes saved backtest runs. Fails if one of them does not exist.

`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "delete requires at least one run id")
		return subcommands.ExitUsageError
	}
	s, err := openStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening result store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeStore(s)

	status := subcommands.ExitSuccess
	for _, id := range f.Args() {
		ok, err := s.Delete(ctx, id)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error deleting %q: %v\n", id, err)
			status = subcommands.ExitFailure
		case !ok:
			fmt.Fprintf(os.Stderr, "No run %q\n", id)
			status = subcommands.ExitFailure
		default:
			fmt.Printf("Deleted %s\n", id)
		}
	}
	return status
}
