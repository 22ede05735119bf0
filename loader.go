package backtest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/etnz/backtest/date"
)

// ErrNoData is returned when no price can be found for the requested tickers.
var ErrNoData = errors.New("no price data")

// Loader provides the prices and sentiment of a ticker over a date range.
//
// Load returns an error wrapping ErrNoData when the ticker has no price in
// the range.
type Loader interface {
	Load(ctx context.Context, ticker string, r date.Range) (Asset, error)
}

// CSVLoader reads datasets from a directory laid out as:
//
//	<Dir>/prices/<TICKER>.csv       Date,Open,High,Low,Close,Volume
//	<Dir>/sentiment/<TICKER>.csv    Date,sentiment_score
//
// Extra sentiment sources may be stored as <TICKER>.<source>.csv. They are
// read in lexical order after the main file, and for a given date the last
// source read wins.
type CSVLoader struct {
	Dir string
}

func (l CSVLoader) Load(ctx context.Context, ticker string, r date.Range) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}
	ticker = normalize(ticker)
	prices, err := readPrices(filepath.Join(l.Dir, "prices", ticker+".csv"))
	if errors.Is(err, os.ErrNotExist) {
		return Asset{}, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("%s: %w", ticker, err)
	}
	prices = prices.Between(r)
	if prices.Len() == 0 {
		return Asset{}, fmt.Errorf("%s in %v: %w", ticker, r, ErrNoData)
	}

	sentiment := new(Sentiment)
	sources := []string{filepath.Join(l.Dir, "sentiment", ticker+".csv")}
	extra, _ := filepath.Glob(filepath.Join(l.Dir, "sentiment", ticker+".*.csv"))
	slices.Sort(extra)
	for _, path := range append(sources, extra...) {
		if err := readSentiment(path, sentiment); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Asset{}, fmt.Errorf("%s: %w", ticker, err)
		}
	}
	return Asset{Ticker: ticker, Prices: prices, Sentiment: sentiment.Between(r)}, nil
}

// readTable reads a csv file with a header and calls row for every record,
// with a lookup of cells by lower case column name.
func readTable(path string, row func(cell func(name string) string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		cell := func(name string) string {
			if i, ok := columns[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		if err := row(cell); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
}

// parseFloat parses a decimal cell. Empty cells are NaN.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseDay accepts plain dates and timestamps like "2023-01-03 00:00:00-05:00".
func parseDay(s string) (date.Date, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return date.Parse(s)
}

func readPrices(path string) (*Prices, error) {
	prices := new(Prices)
	err := readTable(path, func(cell func(string) string) error {
		day, err := parseDay(cell("date"))
		if err != nil {
			return err
		}
		var bar Bar
		for _, f := range []struct {
			name string
			dst  *float64
		}{{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low}, {"close", &bar.Close}, {"volume", &bar.Volume}} {
			if *f.dst, err = parseFloat(cell(f.name)); err != nil {
				return fmt.Errorf("invalid %s: %w", f.name, err)
			}
		}
		if math.IsNaN(bar.Close) {
			// rows without close are not trading days.
			return nil
		}
		if math.IsNaN(bar.Open) {
			bar.Open = 0
		}
		prices.Append(day, bar)
		return nil
	})
	return prices, err
}

func readSentiment(path string, into *Sentiment) error {
	return readTable(path, func(cell func(string) string) error {
		day, err := parseDay(cell("date"))
		if err != nil {
			return err
		}
		v := cell("sentiment_score")
		if v == "" {
			v = cell("score")
		}
		score, err := parseFloat(v)
		if err != nil {
			return fmt.Errorf("invalid sentiment score: %w", err)
		}
		into.Append(day, score)
		return nil
	})
}

// WritePrices writes p in the price csv layout read by CSVLoader.
func WritePrices(w io.Writer, p *Prices) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return err
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for day, bar := range p.Values() {
		if err := cw.Write([]string{day.String(), format(bar.Open), format(bar.High), format(bar.Low), format(bar.Close), format(bar.Volume)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
