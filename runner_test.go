package backtest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/etnz/backtest/date"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLoader serves assets from memory.
type memLoader map[string]Asset

func (m memLoader) Load(_ context.Context, ticker string, r date.Range) (Asset, error) {
	a, ok := m[ticker]
	if !ok {
		return Asset{}, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	return Asset{Ticker: ticker, Prices: a.Prices.Between(r), Sentiment: a.Sentiment}, nil
}

// memSaver records saved payloads.
type memSaver struct {
	saved map[string]Payload
	err   error
}

func (m *memSaver) Save(_ context.Context, runID string, p Payload) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if runID == "" {
		runID = fmt.Sprintf("run_%d", len(m.saved)+1)
	}
	if m.saved == nil {
		m.saved = map[string]Payload{}
	}
	m.saved[runID] = p
	return runID, nil
}

func testRunner(store Saver) *Runner {
	walk := randomWalk("AAPL", "MSFT", "XOM", "SPY")
	loader := memLoader{}
	for _, a := range walk {
		loader[a.Ticker] = a
	}
	return &Runner{
		Catalog: NewCatalog(
			Metadata{Ticker: "AAPL", Sector: "Technology"},
			Metadata{Ticker: "MSFT", Sector: "Technology"},
			Metadata{Ticker: "XOM", Sector: "Energy"},
		),
		Loader: loader,
		Store:  store,
	}
}

func testRunConfig() RunConfig {
	cfg := DefaultRunConfig()
	cfg.Start, cfg.End = day0, day0.Add(200)
	return cfg
}

func TestRunnerRun(t *testing.T) {
	store := &memSaver{}
	r := testRunner(store)
	reg := prometheus.NewRegistry()
	r.Telemetry = NewTelemetry(reg)

	cfg := testRunConfig()
	cfg.Tickers = []string{"aapl", "GOOG", "xom", "AAPL"}
	run, err := r.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "XOM"}, run.Result.Tickers())
	assert.Equal(t, []string{"GOOG"}, run.Skipped)
	assert.Equal(t, "run_1", run.RunID)
	assert.Equal(t, run.Result.Payload(), store.saved["run_1"])
	assert.NotNil(t, run.Result.Summary().Relative, "SPY benchmark was loaded")

	m, ok := r.Catalog.Lookup("GOOG")
	require.True(t, ok)
	assert.Equal(t, UnknownSector, m.Sector)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Telemetry.Runs.WithLabelValues("SentimentThreshold")))
	var trades float64
	for _, a := range []Action{Buy, Sell, Short} {
		trades += testutil.ToFloat64(r.Telemetry.Trades.WithLabelValues(string(a)))
	}
	assert.Equal(t, float64(len(run.Result.Trades())), trades)
}

func TestRunnerSector(t *testing.T) {
	r := testRunner(nil)
	cfg := testRunConfig()
	cfg.Sector = "Technology"
	run, err := r.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, run.Result.Tickers())
	assert.Empty(t, run.RunID)

	cfg.Sector = ""
	run, err = r.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "XOM"}, run.Result.Tickers(), "no ticker nor sector runs the whole catalog")
}

func TestRunnerSavesWithRunID(t *testing.T) {
	store := &memSaver{}
	cfg := testRunConfig()
	cfg.Tickers = []string{"MSFT"}
	cfg.RunID = "msft_2024"
	run, err := testRunner(store).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "msft_2024", run.RunID)
	assert.Contains(t, store.saved, "msft_2024")

	cfg.Save = false
	run, err = testRunner(store).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, run.RunID)
}

func TestRunnerErrors(t *testing.T) {
	testCases := []struct {
		name   string
		runner func() *Runner
		config func(*RunConfig)
		want   error
	}{
		{
			name:   "unknown sector",
			runner: func() *Runner { return testRunner(nil) },
			config: func(c *RunConfig) { c.Sector = "Utilities" },
			want:   ErrUnknownSector,
		},
		{
			name:   "empty universe",
			runner: func() *Runner { r := testRunner(nil); r.Catalog = NewCatalog(); return r },
			config: func(c *RunConfig) {},
			want:   ErrNoTickers,
		},
		{
			name:   "no data",
			runner: func() *Runner { return testRunner(nil) },
			config: func(c *RunConfig) { c.Tickers = []string{"NOPE", "NADA"} },
			want:   ErrNoData,
		},
		{
			name:   "no data in range",
			runner: func() *Runner { return testRunner(nil) },
			config: func(c *RunConfig) {
				c.Tickers = []string{"AAPL"}
				c.Start, c.End = date.New(1990, 1, 1), date.New(1990, 12, 31)
			},
			want: ErrNoData,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testRunConfig()
			tc.config(&cfg)
			_, err := tc.runner().Run(context.Background(), cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "Run() error = %v, want %v", err, tc.want)
		})
	}
}

func TestRunnerInvalidConfig(t *testing.T) {
	cfg := testRunConfig()
	cfg.Strategy.BuyThreshold, cfg.Strategy.SellThreshold = -0.5, 0.5
	_, err := testRunner(nil).Run(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRunnerSaveError(t *testing.T) {
	store := &memSaver{err: errors.New("disk full")}
	r := testRunner(store)
	r.Telemetry = NewTelemetry(nil)
	_, err := r.Run(context.Background(), testRunConfig())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Telemetry.Failures.WithLabelValues("save")))
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testRunner(nil).Run(ctx, testRunConfig())
	assert.True(t, errors.Is(err, context.Canceled))
}
