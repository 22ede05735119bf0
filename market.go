package backtest

import (
	"github.com/etnz/backtest/date"
)

// Bar is one trading day of an asset.
type Bar struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Prices is the daily OHLCV history of an asset, indexed by trading date.
type Prices = date.History[Bar]

// Sentiment is a daily sentiment score in [-1, 1], indexed by date.
type Sentiment = date.History[float64]

// Asset is everything the engine needs to simulate one ticker.
type Asset struct {
	Ticker    string
	Prices    *Prices
	Sentiment *Sentiment
}

// Dataset is the set of assets of a run. Its order is the order in which
// trades are executed on any given day.
type Dataset []Asset

// Tickers returns the tickers of the dataset, in order.
func (d Dataset) Tickers() []string {
	out := make([]string, len(d))
	for i, a := range d {
		out[i] = a.Ticker
	}
	return out
}

// Len returns the number of price rows of the asset.
func (a Asset) Len() int {
	if a.Prices == nil {
		return 0
	}
	return a.Prices.Len()
}

// returns computes the close to close percent change of prices, skipping the
// first row and any row whose previous close is not positive.
func returns(p *Prices) *date.History[float64] {
	out := new(date.History[float64])
	if p == nil {
		return out
	}
	for i := 1; i < p.Len(); i++ {
		_, prev := p.At(i - 1)
		day, bar := p.At(i)
		if prev.Close > 0 {
			out.Append(day, bar.Close/prev.Close-1)
		}
	}
	return out
}
