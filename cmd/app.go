// Package cmd implements the btx command line application.
package cmd

import (
	"flag"
	"io"

	"github.com/etnz/backtest"
	"github.com/etnz/backtest/store"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&runCmd{}, "backtests")
	c.Register(&listCmd{}, "backtests")
	c.Register(&showCmd{}, "backtests")
	c.Register(&compareCmd{}, "backtests")
	c.Register(&chartCmd{}, "backtests")
	c.Register(&deleteCmd{}, "backtests")

	c.Register(&catalogCmd{}, "data")
	c.Register(&fetchCmd{}, "data")
	c.Register(&scoreCmd{}, "data")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	storeKind   = flag.String("store", "dir", "Result store backend: dir, sqlite, postgres or redis")
	storeDSN    = flag.String("store-dsn", "", "Result store location: a directory, a sqlite file, a postgres connection string or a redis url")
	dataDir     = flag.String("data-dir", "datasets", "Directory holding the prices/ and sentiment/ csv files")
	catalogFile = flag.String("catalog-file", "catalog.yaml", "Path to the ticker catalog (YAML)")
	metricsFile = flag.String("metrics-file", "", "Write prometheus metrics to this file on exit")
	currency    = flag.String("currency", "USD", "Currency used to format amounts")
)

// registry collects the metrics of the current invocation.
var registry = prometheus.NewRegistry()

var telemetry = backtest.NewTelemetry(registry)

// WriteMetrics writes the collected metrics to the -metrics-file, if any.
func WriteMetrics() error {
	if *metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(*metricsFile, registry); err != nil {
		log.Error().Err(err).Str("file", *metricsFile).Msg("cannot write metrics")
		return err
	}
	return nil
}

// openStore opens the result store selected by the global flags.
func openStore() (store.Store, error) {
	s, err := store.Open(*storeKind, *storeDSN)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("store", *storeKind).Msg("result store opened")
	return s, nil
}

// closeStore releases the resources of stores that hold a connection.
func closeStore(s store.Store) {
	if c, ok := s.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("cannot close result store")
		}
	}
}

// openCatalog loads the catalog file. A missing file is an empty catalog.
func openCatalog() (*backtest.Catalog, error) {
	return backtest.LoadCatalog(*catalogFile)
}
