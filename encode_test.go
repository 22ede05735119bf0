package backtest

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult(t *testing.T) *Result {
	t.Helper()
	e := testEngine()
	res, err := e.Run(Dataset{
		{Ticker: "AAA", Prices: bars(100, 100.123, 101, 99, 102), Sentiment: scores(1, 0, 0, -1, 0)},
		{Ticker: "BBB", Prices: bars(10, 11, 12, 11, 10), Sentiment: scores(0, 0.5, 0, 0, 0)},
	}, nil)
	require.NoError(t, err)
	return res
}

func TestPayload(t *testing.T) {
	res := testResult(t)
	p := res.Payload()

	assert.Equal(t, []string{"AAA", "BBB"}, p.Tickers)
	assert.Equal(t, day0, p.Start)
	assert.Equal(t, day0.Add(4), p.End)
	assert.Equal(t, "SentimentThreshold", p.Strategy)
	assert.Equal(t, "5.0%", p.Config.MaxPosition)
	assert.Equal(t, len(res.Trades()), p.Trades)
	require.Len(t, p.EquityCurve, 5)
	for i, pt := range p.EquityCurve {
		assert.Equal(t, round(res.Equity()[i].Value, 2), pt.Value)
	}
}

func TestPayloadJSON(t *testing.T) {
	data, err := json.Marshal(testResult(t).Payload())
	require.NoError(t, err)
	s := string(data)

	keys := []string{`"tickers"`, `"start"`, `"end"`, `"strategy"`, `"strategy_config"`, `"summary"`, `"per_ticker"`, `"equity_curve"`, `"n_trades"`}
	last := -1
	for _, k := range keys {
		i := strings.Index(s, k)
		require.GreaterOrEqual(t, i, 0, "missing key %s in %s", k, s)
		assert.Greater(t, i, last, "key %s out of order", k)
		last = i
	}
	assert.Contains(t, s, `"equity_curve":{"2024-01-01":`)
	assert.Contains(t, s, `"max_position":"5.0%"`)
	assert.NotContains(t, s, `"alpha_ann"`)
}

func TestRecordRoundTrip(t *testing.T) {
	saved := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	want := Record{Payload: testResult(t).Payload(), RunID: "run_x", SavedAt: saved}

	data, err := json.Marshal(want)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), `"_run_id":"run_x","_saved_at":"2025-03-04T05:06:07Z"}`), "got %s", data)

	var got Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want.RunID, got.RunID)
	assert.True(t, want.SavedAt.Equal(got.SavedAt))
	assert.Equal(t, want.Summary, got.Summary)
	assert.Equal(t, want.PerTicker, got.PerTicker)
	assert.Equal(t, want.EquityCurve, got.EquityCurve)
	assert.Equal(t, want.Payload, got.Payload)
}

func TestResultIsImmutable(t *testing.T) {
	res := testResult(t)
	trades := res.Trades()
	require.NotEmpty(t, trades)
	trades[0].Shares = -1
	assert.NotEqual(t, int64(-1), res.Trades()[0].Shares)

	tickers := res.Tickers()
	tickers[0] = "ZZZ"
	assert.Equal(t, "AAA", res.Tickers()[0])
}
