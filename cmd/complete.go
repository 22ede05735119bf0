package cmd

import (
	"context"
	"flag"
	"slices"

	"github.com/etnz/backtest"
	"github.com/etnz/backtest/docs"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// flagPredictors overrides the prediction of flags whose values are known.
var flagPredictors = map[string]complete.Predictor{
	"config":       predict.Files("*.yaml"),
	"catalog-file": predict.Files("*.yaml"),
	"data-dir":     predict.Dirs("*"),
	"cache":        predict.Dirs("*"),
	"news":         predict.Files("*.csv"),
	"o":            predict.Files("*.png"),
	"store":        predict.Set{"dir", "sqlite", "postgres", "redis"},
	"strategy":     predict.Set{"threshold", "blend", "adaptive"},
	"risk":         predict.Set{string(backtest.Low), string(backtest.Medium), string(backtest.High)},
	"rebalance":    predict.Set{"daily", "weekly", "monthly", "quarterly", "yearly"},
	"log-level":    predict.Set{"debug", "info", "warn", "error"},
	"sector":       complete.PredictFunc(predictSectors),
}

// argPredictors predicts the positional arguments of commands.
var argPredictors = map[string]complete.Predictor{
	"show":    complete.PredictFunc(predictRuns),
	"chart":   complete.PredictFunc(predictRuns),
	"compare": complete.PredictFunc(predictRuns),
	"delete":  complete.PredictFunc(predictRuns),
	"topic":   complete.PredictFunc(predictTopics),
}

// flags returns the completion of every flag of a flag set.
func flags(fs *flag.FlagSet) map[string]complete.Predictor {
	m := make(map[string]complete.Predictor)
	fs.VisitAll(func(f *flag.Flag) {
		if p, ok := flagPredictors[f.Name]; ok {
			m[f.Name] = p
			return
		}
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			m[f.Name] = predict.Nothing
			return
		}
		m[f.Name] = predict.Something
	})
	return m
}

// Completion returns the shell completion of the commands registered in c.
// Install it with COMP_INSTALL=1 btx.
func Completion(c *subcommands.Commander) *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command),
		Flags: flags(flag.CommandLine),
	}
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		cmd.SetFlags(fs)
		root.Sub[cmd.Name()] = &complete.Command{Flags: flags(fs), Args: argPredictors[cmd.Name()]}
	})
	return root
}

func predictRuns(prefix string) []string {
	s, err := openStore()
	if err != nil {
		return nil
	}
	defer closeStore(s)
	list, err := s.List(context.Background())
	if err != nil {
		return nil
	}
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.RunID
	}
	return ids
}

func predictSectors(prefix string) []string {
	catalog, err := openCatalog()
	if err != nil {
		return nil
	}
	return catalog.Sectors()
}

func predictTopics(prefix string) []string {
	topics, err := docs.All()
	if err != nil {
		return nil
	}
	return slices.Insert(topics, 0, "*")
}
