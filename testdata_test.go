package backtest

import (
	"github.com/etnz/backtest/date"
)

// day0 is a Monday.
var day0 = date.New(2024, 1, 1)

// bars returns prices on consecutive calendar days starting at day0 with
// open equal to close.
func bars(closes ...float64) *Prices {
	p := new(Prices)
	for i, c := range closes {
		p.Append(day0.Add(i), Bar{Open: c, High: c, Low: c, Close: c, Volume: 1000})
	}
	return p
}

// flat returns n days of a constant price.
func flat(n int, price float64) *Prices {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return bars(closes...)
}

// scores returns a sentiment series on consecutive days starting at day0.
func scores(values ...float64) *Sentiment {
	s := new(Sentiment)
	for i, v := range values {
		s.Append(day0.Add(i), v)
	}
	return s
}

// testEngine returns an engine without risk-free accrual nor conviction
// sizing so that trade sizes are easy to compute by hand.
func testEngine() *Engine {
	s := DefaultStrategy()
	s.ConvictionSizing = false
	c := DefaultEngine()
	c.ApplyRFOnCash = false
	return NewEngine(s, c)
}
