package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/etnz/backtest"
	"github.com/etnz/backtest/date"
	"github.com/etnz/backtest/renderer"
	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"
)

type runCmd struct {
	config string
	json   bool

	tickers    string
	sector     string
	start, end date.Date
	benchmark  string
	runID      string
	noSave     bool

	variant    backtest.Variant
	risk       string
	buy, sell  float64
	maxPos     float64
	conviction bool

	capital    float64
	slippage   float64
	commission float64
	shorts     bool
	rf         bool
	positions  int
	rebalance  date.Period
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run a backtest and save its result" }
func (*runCmd) Usage() string {
	return `btx run [-config <run.yaml>] [-tickers <T1,T2> | -sector <sector>] [-start <date>] [-end <date>] [flags]

  Runs a walk-forward backtest of a sentiment strategy over the requested
  tickers and prints its report. Without tickers nor sector the whole catalog
  is used. Flags override the values of the configuration file.

`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	def := backtest.DefaultRunConfig()
	f.StringVar(&c.config, "config", "", "Run configuration file (YAML)")
	f.BoolVar(&c.json, "json", false, "Print the result as json instead of a report")

	f.StringVar(&c.tickers, "tickers", "", "Comma separated tickers")
	f.StringVar(&c.sector, "sector", "", "Catalog sector to backtest")
	f.TextVar(&c.start, "start", def.Start, "First day of the backtest")
	f.TextVar(&c.end, "end", def.End, "Last day of the backtest")
	f.StringVar(&c.benchmark, "benchmark", def.Benchmark, "Benchmark ticker, empty for none")
	f.StringVar(&c.runID, "run-id", "", "Run id of the saved result, generated when empty")
	f.BoolVar(&c.noSave, "no-save", false, "Do not save the result")

	f.TextVar(&c.variant, "strategy", def.Strategy.Variant, "Strategy: threshold, blend or adaptive")
	f.StringVar(&c.risk, "risk", string(def.Strategy.RiskLevel), "Risk level of the adaptive strategy: Low, Medium or High")
	f.Float64Var(&c.buy, "buy", def.Strategy.BuyThreshold, "Buy threshold")
	f.Float64Var(&c.sell, "sell", def.Strategy.SellThreshold, "Sell threshold")
	f.Float64Var(&c.maxPos, "max-position", def.Strategy.MaxPositionPct, "Maximum fraction of the portfolio per position")
	f.BoolVar(&c.conviction, "conviction", def.Strategy.ConvictionSizing, "Size positions by signal conviction")

	f.Float64Var(&c.capital, "capital", def.Engine.InitialCapital, "Initial capital")
	f.Float64Var(&c.slippage, "slippage", def.Engine.SlippageBps, "Slippage in basis points")
	f.Float64Var(&c.commission, "commission", def.Engine.Commission, "Commission per trade")
	f.BoolVar(&c.shorts, "shorts", def.Engine.AllowShorts, "Allow short positions")
	f.BoolVar(&c.rf, "rf", def.Engine.ApplyRFOnCash, "Accrue the risk free rate on cash")
	f.IntVar(&c.positions, "max-positions", def.Engine.MaxOpenPositions, "Maximum open positions, 0 for unlimited")
	f.TextVar(&c.rebalance, "rebalance", def.Engine.Rebalance, "Rebalance frequency: daily, weekly, monthly, quarterly or yearly")
}

// runConfig loads the configuration file and applies the flags explicitly set.
func (c *runCmd) runConfig(f *flag.FlagSet) (backtest.RunConfig, error) {
	cfg := backtest.DefaultRunConfig()
	if c.config != "" {
		var err error
		if cfg, err = backtest.LoadRunConfig(c.config); err != nil {
			return cfg, err
		}
	}
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "tickers":
			cfg.Tickers = splitTickers(c.tickers)
		case "sector":
			cfg.Sector = c.sector
		case "start":
			cfg.Start = c.start
		case "end":
			cfg.End = c.end
		case "benchmark":
			cfg.Benchmark = strings.TrimSpace(c.benchmark)
		case "run-id":
			cfg.RunID = c.runID
		case "no-save":
			cfg.Save = !c.noSave
		case "strategy":
			cfg.Strategy.Variant = c.variant
		case "risk":
			cfg.Strategy.RiskLevel = backtest.RiskLevel(c.risk)
		case "buy":
			cfg.Strategy.BuyThreshold = c.buy
		case "sell":
			cfg.Strategy.SellThreshold = c.sell
		case "max-position":
			cfg.Strategy.MaxPositionPct = c.maxPos
		case "conviction":
			cfg.Strategy.ConvictionSizing = c.conviction
		case "capital":
			cfg.Engine.InitialCapital = c.capital
		case "slippage":
			cfg.Engine.SlippageBps = c.slippage
		case "commission":
			cfg.Engine.Commission = c.commission
		case "shorts":
			cfg.Engine.AllowShorts = c.shorts
		case "rf":
			cfg.Engine.ApplyRFOnCash = c.rf
		case "max-positions":
			cfg.Engine.MaxOpenPositions = c.positions
		case "rebalance":
			cfg.Engine.Rebalance = c.rebalance
		}
	})
	return cfg, nil
}

func splitTickers(s string) []string {
	var tickers []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.runConfig(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	catalog, err := openCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog %q: %v\n", *catalogFile, err)
		return subcommands.ExitFailure
	}

	runner := &backtest.Runner{
		Catalog:   catalog,
		Loader:    backtest.CSVLoader{Dir: *dataDir},
		Log:       log.Logger,
		Telemetry: telemetry,
	}
	if cfg.Save {
		s, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening result store: %v\n", err)
			return subcommands.ExitFailure
		}
		defer closeStore(s)
		runner.Store = s
	}

	run, err := runner.Run(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running backtest: %v\n", err)
		return subcommands.ExitFailure
	}
	if len(run.Skipped) > 0 {
		log.Warn().Strs("tickers", run.Skipped).Msg("tickers skipped for lack of data")
	}

	rec := &backtest.Record{Payload: run.Result.Payload(), RunID: run.RunID, SavedAt: time.Now()}
	if c.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.RenderReport(renderer.NewReport(rec, *currency)))
	return subcommands.ExitSuccess
}
