package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/etnz/backtest/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tickers: [AAPL, tsla]
start: 2023-01-01
end: 2024-6-30
benchmark: QQQ
strategy:
  variant: blend
  risk_level: High
  max_position_pct: 0.1
engine:
  initial_capital: 50000
  allow_shorts: true
  rebalance_freq: weekly
`), 0o644))

	got, err := LoadRunConfig(path)
	require.NoError(t, err)

	want := DefaultRunConfig()
	want.Tickers = []string{"AAPL", "tsla"}
	want.Start = date.New(2023, 1, 1)
	want.End = date.New(2024, 6, 30)
	want.Benchmark = "QQQ"
	want.Strategy.Variant = MomentumBlend
	want.Strategy.RiskLevel = High
	want.Strategy.MaxPositionPct = 0.1
	want.Engine.InitialCapital = 50000
	want.Engine.AllowShorts = true
	want.Engine.Rebalance = date.Weekly
	assert.Equal(t, want, got)
	assert.NoError(t, got.Validate())
}

func TestLoadRunConfigErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadRunConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy:\n  variant: random\n"), 0o644))
	_, err = LoadRunConfig(path)
	assert.Error(t, err)
}

func TestRunConfigValidate(t *testing.T) {
	c := DefaultRunConfig()
	require.NoError(t, c.Validate())

	c.Start, c.End = c.End, c.Start
	assert.Error(t, c.Validate())

	c = DefaultRunConfig()
	c.Engine.InitialCapital = 0
	assert.Error(t, c.Validate())
}
