package backtest

import (
	"maps"
	"math"
	"slices"

	"github.com/etnz/backtest/date"
)

// Position is the holding of one asset. Negative shares are a short.
type Position struct {
	Ticker    string  `json:"ticker"`
	Shares    int64   `json:"shares"`
	CostBasis float64 `json:"cost_basis"`
}

// Trade is one executed order.
type Trade struct {
	Date   date.Date `json:"date"`
	Ticker string    `json:"ticker"`
	Action Action    `json:"action"`
	Shares int64     `json:"shares"`
	Price  float64   `json:"price"`
	Value  float64   `json:"value"`
}

// PortfolioState is the ledger of a simulation: cash, positions, trades and
// the daily value history. It belongs to a single engine run.
type PortfolioState struct {
	cash      float64
	positions map[string]*Position
	marks     map[string]float64 // last known close of every priced asset.
	trades    []Trade
	values    date.History[float64]
	cashes    date.History[float64]
	open      int
}

func newPortfolioState(capital float64) *PortfolioState {
	return &PortfolioState{
		cash:      capital,
		positions: make(map[string]*Position),
		marks:     make(map[string]float64),
	}
}

// Cash returns the cash balance.
func (s *PortfolioState) Cash() float64 { return s.cash }

// Shares returns the number of shares held of ticker.
func (s *PortfolioState) Shares(ticker string) int64 {
	if p, ok := s.positions[ticker]; ok {
		return p.Shares
	}
	return 0
}

// Position returns a copy of the position in ticker.
func (s *PortfolioState) Position(ticker string) (Position, bool) {
	p, ok := s.positions[ticker]
	if !ok || p.Shares == 0 {
		return Position{Ticker: ticker}, false
	}
	return *p, true
}

// OpenPositions returns the number of non zero positions.
func (s *PortfolioState) OpenPositions() int { return s.open }

// Tickers returns the sorted tickers with a non zero position.
func (s *PortfolioState) Tickers() []string {
	var out []string
	for _, t := range slices.Sorted(maps.Keys(s.positions)) {
		if s.positions[t].Shares != 0 {
			out = append(out, t)
		}
	}
	return out
}

// accrue grows cash by the daily rate.
func (s *PortfolioState) accrue(rate float64) { s.cash *= 1 + rate }

// mark records the latest known closes.
func (s *PortfolioState) mark(closes map[string]float64) {
	for t, c := range closes {
		s.marks[t] = c
	}
}

// Value returns cash plus every position valued at its latest mark.
func (s *PortfolioState) Value() float64 {
	v := s.cash
	for _, t := range slices.Sorted(maps.Keys(s.positions)) {
		p := s.positions[t]
		if p.Shares == 0 {
			continue
		}
		price, ok := s.marks[t]
		if !ok {
			price = p.CostBasis / math.Max(math.Abs(float64(p.Shares)), 1)
		}
		v += float64(p.Shares) * price
	}
	return v
}

// record appends the value of the day to the history.
func (s *PortfolioState) record(day date.Date) float64 {
	v := s.Value()
	s.values.Append(day, v)
	s.cashes.Append(day, s.cash)
	return v
}

// update sets the number of shares of ticker and keeps the open count.
func (s *PortfolioState) update(ticker string, shares int64, basis float64) {
	p, ok := s.positions[ticker]
	if !ok {
		p = &Position{Ticker: ticker}
		s.positions[ticker] = p
	}
	switch {
	case p.Shares == 0 && shares != 0:
		s.open++
	case p.Shares != 0 && shares == 0:
		s.open--
	}
	p.Shares, p.CostBasis = shares, basis
}

func (s *PortfolioState) log(t Trade) {
	t.Value = round(float64(t.Shares)*t.Price, 2)
	t.Price = round(t.Price, 4)
	s.trades = append(s.trades, t)
}
