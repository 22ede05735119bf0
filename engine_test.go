package backtest

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/etnz/backtest/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatHoldKeepsCapital(t *testing.T) {
	e := testEngine()
	res, err := e.Run(Dataset{{Ticker: "AAA", Prices: flat(10, 100), Sentiment: scores(0, 0, 0, 0, 0, 0, 0, 0, 0, 0)}}, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Trades())
	equity := res.Equity()
	require.Len(t, equity, 10)
	for _, p := range equity {
		assert.Equal(t, 100000.0, p.Value, "equity on %v", p.Date)
	}
	for _, p := range res.Returns() {
		assert.Equal(t, 0.0, p.Value)
	}
}

func TestBuyFillsAtNextOpenWithSlippage(t *testing.T) {
	e := testEngine()
	prices := bars(100, 100)
	res, err := e.Run(Dataset{{Ticker: "AAA", Prices: prices, Sentiment: scores(1, 0)}}, nil)
	require.NoError(t, err)

	trades := res.Trades()
	require.Len(t, trades, 1)
	want := Trade{Date: day0, Ticker: "AAA", Action: Buy, Shares: 49, Price: 100, Value: 4900}
	assert.Equal(t, want, trades[0])

	cash := res.Cash()
	require.Len(t, cash, 2)
	assert.InDelta(t, 100000-49*100.05, cash[0].Value, 1e-6)
	assert.InDelta(t, 100000-49*100.05+49*100, res.Equity()[0].Value, 1e-6)
}

func TestBuyUsesNextDayOpen(t *testing.T) {
	prices := new(Prices)
	prices.Append(day0, Bar{Open: 99, Close: 100})
	prices.Append(day0.Add(1), Bar{Open: 105, Close: 104})
	res, err := testEngine().Run(Dataset{{Ticker: "AAA", Prices: prices, Sentiment: scores(1, 0)}}, nil)
	require.NoError(t, err)
	require.Len(t, res.Trades(), 1)
	assert.Equal(t, 105.0, res.Trades()[0].Price)
}

func TestFillFallsBackToClose(t *testing.T) {
	prices := new(Prices)
	prices.Append(day0, Bar{Open: 100, Close: 100})
	prices.Append(day0.Add(1), Bar{Open: 108, Close: 110})
	res, err := testEngine().Run(Dataset{{Ticker: "AAA", Prices: prices, Sentiment: scores(0, 1)}}, nil)
	require.NoError(t, err)
	require.Len(t, res.Trades(), 1)
	got := res.Trades()[0]
	assert.Equal(t, 110.0, got.Price)
	assert.Equal(t, day0.Add(1), got.Date)
}

func TestSellWithoutShortsIsNoop(t *testing.T) {
	res, err := testEngine().Run(Dataset{{Ticker: "AAA", Prices: flat(5, 100), Sentiment: scores(-1, -1, -1, -1, -1)}}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Trades())
	for _, p := range res.Cash() {
		assert.Equal(t, 100000.0, p.Value)
	}
}

func TestSellOpensShort(t *testing.T) {
	e := testEngine()
	e.Config.AllowShorts = true
	res, err := e.Run(Dataset{{Ticker: "AAA", Prices: flat(3, 100), Sentiment: scores(-1, -1, 0)}}, nil)
	require.NoError(t, err)

	trades := res.Trades()
	require.Len(t, trades, 1, "a second SELL on a short position is a no-op")
	assert.Equal(t, Short, trades[0].Action)
	assert.Equal(t, int64(50), trades[0].Shares)
	assert.InDelta(t, 100000+50*100*(1-0.0005), res.Cash()[0].Value, 1e-6)
	assert.InDelta(t, 100000+50*100*(1-0.0005)-5000, res.Equity()[0].Value, 1e-6)
}

func TestSellClosesLong(t *testing.T) {
	e := testEngine()
	e.Config.Commission = 1
	res, err := e.Run(Dataset{{Ticker: "AAA", Prices: bars(100, 100, 120, 120), Sentiment: scores(1, 0, -1, 0)}}, nil)
	require.NoError(t, err)

	trades := res.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, Buy, trades[0].Action)
	assert.Equal(t, Sell, trades[1].Action)
	assert.Equal(t, trades[0].Shares, trades[1].Shares)

	n := float64(trades[0].Shares)
	want := 100000 - (n*100.05 + 1) + (n*120*(1-0.0005) - 1)
	assert.InDelta(t, want, res.Cash()[3].Value, 1e-6)
	assert.InDelta(t, want, res.Equity()[3].Value, 1e-6)
}

func TestOpenPositionCap(t *testing.T) {
	e := testEngine()
	e.Config.MaxOpenPositions = 1
	data := Dataset{
		{Ticker: "AAA", Prices: flat(3, 100), Sentiment: scores(1, 1, 1)},
		{Ticker: "BBB", Prices: flat(3, 50), Sentiment: scores(1, 1, 1)},
	}
	res, err := e.Run(data, nil)
	require.NoError(t, err)
	for _, tr := range res.Trades() {
		assert.Equal(t, "AAA", tr.Ticker)
	}

	e.Config.MaxOpenPositions = 0
	res, err = e.Run(data, nil)
	require.NoError(t, err)
	tickers := map[string]bool{}
	for _, tr := range res.Trades() {
		tickers[tr.Ticker] = true
	}
	assert.Equal(t, map[string]bool{"AAA": true, "BBB": true}, tickers)

	t.Run("shorts", func(t *testing.T) {
		e := testEngine()
		e.Config.AllowShorts = true
		e.Config.MaxOpenPositions = 1
		res, err := e.Run(Dataset{
			{Ticker: "AAA", Prices: flat(3, 100), Sentiment: scores(-1, -1, -1)},
			{Ticker: "BBB", Prices: flat(3, 50), Sentiment: scores(-1, -1, -1)},
			{Ticker: "CCC", Prices: flat(3, 20), Sentiment: scores(-1, -1, -1)},
		}, nil)
		require.NoError(t, err)
		require.Len(t, res.Trades(), 1)
		assert.Equal(t, "AAA", res.Trades()[0].Ticker)
		assert.Equal(t, Short, res.Trades()[0].Action)
	})

	t.Run("long blocks a short", func(t *testing.T) {
		e := testEngine()
		e.Config.AllowShorts = true
		e.Config.MaxOpenPositions = 1
		res, err := e.Run(Dataset{
			{Ticker: "AAA", Prices: flat(3, 100), Sentiment: scores(1, 1, 1)},
			{Ticker: "BBB", Prices: flat(3, 50), Sentiment: scores(-1, -1, -1)},
		}, nil)
		require.NoError(t, err)
		for _, tr := range res.Trades() {
			assert.Equal(t, "AAA", tr.Ticker)
			assert.Equal(t, Buy, tr.Action)
		}
	})
}

func TestBuyIsBoundedByCash(t *testing.T) {
	e := testEngine()
	e.Strategy.MaxPositionPct = 1
	e.Config.Commission = 5
	res, err := e.Run(Dataset{
		{Ticker: "AAA", Prices: flat(3, 100), Sentiment: scores(1, 0, 0)},
		{Ticker: "BBB", Prices: flat(3, 33), Sentiment: scores(1, 0, 0)},
	}, nil)
	require.NoError(t, err)
	for _, p := range res.Cash() {
		assert.GreaterOrEqual(t, p.Value, 0.0)
	}
	require.Len(t, res.Trades(), 2)
	// AAA consumed almost everything: BBB only gets what is left.
	assert.Equal(t, int64(999), res.Trades()[0].Shares)
}

func TestRebalancePeriod(t *testing.T) {
	sentiment := scores(1, -1, 1, -1, 1, -1, 1, -1, 1, -1)
	data := Dataset{{Ticker: "AAA", Prices: flat(10, 100), Sentiment: sentiment}}

	e := testEngine()
	res, err := e.Run(data, nil)
	require.NoError(t, err)
	assert.Len(t, res.Trades(), 10)

	e.Config.Rebalance = date.Weekly
	res, err = e.Run(data, nil)
	require.NoError(t, err)
	var days []date.Date
	for _, tr := range res.Trades() {
		days = append(days, tr.Date)
	}
	assert.Equal(t, []date.Date{day0, day0.Add(7)}, days)
}

func TestAssetAttribution(t *testing.T) {
	data := Dataset{
		{Ticker: "AAA", Prices: bars(100, 110, 121), Sentiment: scores(1, 0, 0)},
		{Ticker: "BBB", Prices: bars(10, 20, 40), Sentiment: scores(0, 0, 0)},
	}
	res, err := testEngine().Run(data, nil)
	require.NoError(t, err)

	aaa := res.AssetReturns("AAA")
	require.Len(t, aaa, 2)
	assert.InDelta(t, 0.1, aaa[0].Value, 1e-12)
	assert.InDelta(t, 0.1, aaa[1].Value, 1e-12)
	for _, p := range res.AssetReturns("BBB") {
		assert.Equal(t, 0.0, p.Value)
	}
	require.Len(t, res.PerTicker(), 2)
	assert.Equal(t, "AAA", res.PerTicker()[0].Label)
}

func TestRiskFreeAccrual(t *testing.T) {
	e := testEngine()
	e.Config.ApplyRFOnCash = true
	res, err := e.Run(Dataset{{Ticker: "AAA", Prices: flat(3, 100)}}, nil)
	require.NoError(t, err)
	equity := res.Equity()
	assert.InDelta(t, 100000*math.Pow(1+RiskFreeDaily, 3), equity[2].Value, 1e-6)
}

// randomWalk returns a deterministic pseudo random dataset.
func randomWalk(tickers ...string) Dataset {
	var data Dataset
	seed := uint32(7)
	next := func() float64 {
		seed = seed*1664525 + 1013904223
		return float64(seed)/math.MaxUint32*2 - 1
	}
	for i, t := range tickers {
		prices, sentiment := new(Prices), new(Sentiment)
		price := 20.0 + 30*float64(i)
		for d := 0; d < 120; d++ {
			day := day0.Add(d + i) // calendars are shifted per asset.
			open := price * (1 + 0.01*next())
			price = open * (1 + 0.03*next())
			prices.Append(day, Bar{Open: open, Close: price})
			sentiment.Append(day, next())
		}
		data = append(data, Asset{Ticker: t, Prices: prices, Sentiment: sentiment})
	}
	return data
}

func TestCashNeverNegativeAndValueReconciles(t *testing.T) {
	data := randomWalk("AAA", "BBB", "CCC", "DDD")
	for _, shorts := range []bool{false, true} {
		e := NewEngine(DefaultStrategy(), DefaultEngine())
		e.Strategy.MaxPositionPct = 0.6
		e.Config.AllowShorts = shorts
		e.Config.Commission = 2
		res, err := e.Run(data, nil)
		require.NoError(t, err)
		require.NotEmpty(t, res.Trades())

		// replay the trade log to rebuild positions.
		trades := res.Trades()
		shares := map[string]int64{}
		marks := map[string]float64{}
		cash := res.Cash()
		for i, p := range res.Equity() {
			assert.GreaterOrEqual(t, cash[i].Value, 0.0, "cash on %v", p.Date)
			for len(trades) > 0 && trades[0].Date == p.Date {
				switch trades[0].Action {
				case Buy:
					shares[trades[0].Ticker] += trades[0].Shares
				case Sell:
					shares[trades[0].Ticker] -= trades[0].Shares
				case Short:
					shares[trades[0].Ticker] -= trades[0].Shares
				}
				trades = trades[1:]
			}
			want := cash[i].Value
			for _, a := range data {
				if bar, ok := a.Prices.Get(p.Date); ok {
					marks[a.Ticker] = bar.Close
				}
				want += float64(shares[a.Ticker]) * marks[a.Ticker]
			}
			assert.InDelta(t, want, p.Value, 1e-6, "value on %v", p.Date)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	data := randomWalk("AAA", "BBB", "CCC")
	bench := randomWalk("SPY")[0].Prices
	run := func() []byte {
		e := NewEngine(DefaultStrategy(), DefaultEngine())
		e.Strategy.Variant = MomentumBlend
		res, err := e.Run(data, bench)
		require.NoError(t, err)
		b, err := json.Marshal(res.Payload())
		require.NoError(t, err)
		return b
	}
	first := run()
	for range 5 {
		assert.Equal(t, string(first), string(run()))
	}
}

func TestRunErrors(t *testing.T) {
	e := testEngine()
	_, err := e.Run(nil, nil)
	assert.True(t, errors.Is(err, ErrEmptyDataset), "Run(nil) error = %v", err)

	_, err = e.Run(Dataset{{Ticker: "AAA", Prices: new(Prices)}}, nil)
	assert.True(t, errors.Is(err, ErrNoTradingDates), "Run(no rows) error = %v", err)

	e.Strategy.BuyThreshold, e.Strategy.SellThreshold = -1, 1
	_, err = e.Run(Dataset{{Ticker: "AAA", Prices: flat(2, 1)}}, nil)
	assert.Error(t, err)
}

func TestBenchmarkIsAligned(t *testing.T) {
	data := randomWalk("AAA")
	bench := bars(100, 101, 102) // only the first days are covered.
	res, err := NewEngine(DefaultStrategy(), DefaultEngine()).Run(data, bench)
	require.NoError(t, err)
	got := res.BenchmarkReturns()
	require.Len(t, got, len(res.Returns()))
	assert.InDelta(t, 0.01, got[0].Value, 1e-12)
	assert.Equal(t, 0.0, got[len(got)-1].Value)
	assert.NotNil(t, res.Summary().Relative)
}
