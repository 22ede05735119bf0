package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/backtest/renderer"
	"github.com/google/subcommands"
)

type chartCmd struct {
	output string
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "draw the equity curve of a saved backtest" }
func (*chartCmd) Usage() string {
	return `btx chart [-o <file.png>] <run_id>

  Draws the equity curve of a saved run as a PNG image.

`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file, <run_id>.png by default")
}

func (c *chartCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "chart requires exactly one run id")
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)
	s, err := openStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening result store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeStore(s)

	rec, err := s.Load(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading run: %v\n", err)
		return subcommands.ExitFailure
	}
	title := fmt.Sprintf("%s (%s → %s)", rec.Strategy, rec.Start, rec.End)
	png, err := renderer.EquityChart(title, rec.EquityCurve, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error drawing chart: %v\n", err)
		return subcommands.ExitFailure
	}
	out := c.output
	if out == "" {
		out = id + ".png"
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", out, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Equity curve written to %s\n", out)
	return subcommands.ExitSuccess
}
