package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/etnz/backtest"
	"github.com/etnz/backtest/date"
	"github.com/etnz/backtest/eodhd"
	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"
)

type fetchCmd struct {
	tickers    string
	start, end date.Date
	register   bool
	sector     string
	cache      string
	baseURL    string
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "download daily prices from EODHD into the dataset" }
func (*fetchCmd) Usage() string {
	return `btx fetch -tickers <T1,T2> [-start <date>] [-end <date>] [-register [-sector <sector>]]

  Downloads the daily prices of the tickers from EOD Historical Data into
  <data-dir>/prices/<ticker>.csv. The api key is read from EODHD_API_KEY.
  Tickers without an exchange are looked up on the US exchange.

  With -register, fetched tickers are added to the catalog with their name.

`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	def := backtest.DefaultRunConfig()
	f.StringVar(&c.tickers, "tickers", "", "Comma separated tickers")
	f.TextVar(&c.start, "start", def.Start, "First day to download")
	f.TextVar(&c.end, "end", date.Today(), "Last day to download")
	f.BoolVar(&c.register, "register", false, "Register fetched tickers in the catalog")
	f.StringVar(&c.sector, "sector", "", "Sector of the registered tickers")
	f.StringVar(&c.cache, "cache", filepath.Join(os.TempDir(), "btx-eodhd"), "Response cache directory, empty to disable")
	f.StringVar(&c.baseURL, "eodhd-url", eodhd.DefaultBaseURL, "EODHD api root")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	tickers := splitTickers(c.tickers)
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "fetch requires -tickers")
		return subcommands.ExitUsageError
	}
	key := os.Getenv("EODHD_API_KEY")
	if key == "" {
		key = "demo"
		log.Warn().Msg("EODHD_API_KEY is not set, using the demo key")
	}
	client := eodhd.New(key, c.cache)
	client.BaseURL = c.baseURL

	var catalog *backtest.Catalog
	if c.register {
		var err error
		if catalog, err = openCatalog(); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading catalog %q: %v\n", *catalogFile, err)
			return subcommands.ExitFailure
		}
	}

	r := date.Range{From: c.start, To: c.end}
	failed := 0
	for _, ticker := range tickers {
		ticker = strings.ToUpper(ticker)
		prices, err := client.Prices(ctx, ticker, r)
		if err != nil {
			log.Error().Err(err).Str("ticker", ticker).Msg("cannot fetch prices")
			failed++
			continue
		}
		path := filepath.Join(*dataDir, "prices", ticker+".csv")
		if err := writePrices(path, prices); err != nil {
			log.Error().Err(err).Str("file", path).Msg("cannot write prices")
			failed++
			continue
		}
		log.Info().Str("ticker", ticker).Int("days", prices.Len()).Str("file", path).Msg("prices fetched")

		if catalog != nil {
			m := backtest.Metadata{Sector: c.sector}
			if found, ok, err := client.Lookup(ctx, ticker); err != nil {
				log.Warn().Err(err).Str("ticker", ticker).Msg("cannot look up name")
			} else if ok {
				m.Name = found.Name
			}
			catalog.Register(ticker, m)
		}
	}

	if catalog != nil {
		if err := catalog.Save(*catalogFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving catalog %q: %v\n", *catalogFile, err)
			return subcommands.ExitFailure
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d tickers failed\n", failed, len(tickers))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writePrices(path string, prices *backtest.Prices) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := backtest.WritePrices(out, prices); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
