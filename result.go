package backtest

import (
	"maps"
	"slices"
	"time"

	"github.com/etnz/backtest/date"
)

// Result is the immutable outcome of a simulation.
type Result struct {
	tickers   []string
	start     date.Date
	end       date.Date
	strategy  Descriptor
	returns   *date.History[float64]
	benchmark *date.History[float64] // nil without benchmark.
	equity    *date.History[float64]
	cash      *date.History[float64]
	perAsset  map[string]*date.History[float64]
	trades    []Trade
	summary   Metrics
	perTicker []Metrics
}

// Tickers returns the simulated tickers.
func (r *Result) Tickers() []string { return slices.Clone(r.tickers) }

// Range returns the first and last trading dates.
func (r *Result) Range() date.Range { return date.Range{From: r.start, To: r.end} }

// Strategy returns the strategy descriptor.
func (r *Result) Strategy() Descriptor { return r.strategy }

// Summary returns the portfolio metrics.
func (r *Result) Summary() Metrics { return cloneMetrics(r.summary) }

// PerTicker returns the per ticker metrics sorted by Sharpe ratio descending.
func (r *Result) PerTicker() []Metrics {
	out := make([]Metrics, len(r.perTicker))
	for i, m := range r.perTicker {
		out[i] = cloneMetrics(m)
	}
	return out
}

// Trades returns the trade log.
func (r *Result) Trades() []Trade { return slices.Clone(r.trades) }

// Returns returns the daily portfolio returns.
func (r *Result) Returns() []Point { return points(r.returns) }

// BenchmarkReturns returns the benchmark returns aligned on the portfolio
// return dates, or nil.
func (r *Result) BenchmarkReturns() []Point { return points(r.benchmark) }

// Equity returns the daily portfolio value.
func (r *Result) Equity() []Point { return points(r.equity) }

// Cash returns the daily cash balance, after trades.
func (r *Result) Cash() []Point { return points(r.cash) }

// AssetReturns returns the returns attributed to ticker.
func (r *Result) AssetReturns(ticker string) []Point { return points(r.perAsset[ticker]) }

// AttributedTickers returns the sorted tickers with attributed returns.
func (r *Result) AttributedTickers() []string { return slices.Sorted(maps.Keys(r.perAsset)) }

// Payload returns the serialisable form of the result.
func (r *Result) Payload() Payload {
	curve := make(EquityCurve, 0, r.equity.Len())
	for day, v := range r.equity.Values() {
		curve = append(curve, Point{Date: day, Value: round(v, 2)})
	}
	return Payload{
		Tickers:     r.Tickers(),
		Start:       r.start,
		End:         r.end,
		Strategy:    r.strategy.Name,
		Config:      r.strategy,
		Summary:     r.Summary(),
		PerTicker:   r.PerTicker(),
		EquityCurve: curve,
		Trades:      len(r.trades),
	}
}

// Point is a dated value.
type Point struct {
	Date  date.Date
	Value float64
}

func points(h *date.History[float64]) []Point {
	if h == nil {
		return nil
	}
	out := make([]Point, 0, h.Len())
	for day, v := range h.Values() {
		out = append(out, Point{day, v})
	}
	return out
}

func cloneMetrics(m Metrics) Metrics {
	if m.Relative != nil {
		rel := *m.Relative
		m.Relative = &rel
	}
	return m
}

// Payload is the serialisable summary of a result.
type Payload struct {
	Tickers     []string    `json:"tickers"`
	Start       date.Date   `json:"start"`
	End         date.Date   `json:"end"`
	Strategy    string      `json:"strategy"`
	Config      Descriptor  `json:"strategy_config"`
	Summary     Metrics     `json:"summary"`
	PerTicker   []Metrics   `json:"per_ticker"`
	EquityCurve EquityCurve `json:"equity_curve"`
	Trades      int         `json:"n_trades"`
}

// EquityCurve is a chronological series of portfolio values. It is encoded
// as a json object keyed by date.
type EquityCurve []Point

// Record is a persisted payload.
type Record struct {
	Payload
	RunID   string
	SavedAt time.Time
}
