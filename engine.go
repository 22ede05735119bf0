package backtest

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/etnz/backtest/date"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyDataset is returned when the engine is given no asset.
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrNoTradingDates is returned when no asset has a single price row.
	ErrNoTradingDates = errors.New("no valid trading dates found")
)

// Risk-free and annualisation constants.
const (
	TradingDaysPerYear = 252
	RiskFreeAnnual     = 0.05
	RiskFreeDaily      = RiskFreeAnnual / TradingDaysPerYear
)

// EngineConfig holds the simulation parameters.
type EngineConfig struct {
	InitialCapital   float64     `yaml:"initial_capital"`
	SlippageBps      float64     `yaml:"slippage_bps"`
	Commission       float64     `yaml:"commission"`
	AllowShorts      bool        `yaml:"allow_shorts"`
	ApplyRFOnCash    bool        `yaml:"apply_rf_on_cash"`
	MaxOpenPositions int         `yaml:"max_open_positions"` // 0 means unlimited.
	Rebalance        date.Period `yaml:"rebalance_freq"`
}

// DefaultEngine returns the default simulation parameters.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		InitialCapital:   100_000,
		SlippageBps:      5,
		ApplyRFOnCash:    true,
		MaxOpenPositions: 20,
		Rebalance:        date.Daily,
	}
}

// Validate checks the simulation parameters.
func (c EngineConfig) Validate() error {
	var errs []error
	if !(c.InitialCapital > 0) {
		errs = append(errs, fmt.Errorf("initial capital %v must be positive", c.InitialCapital))
	}
	if c.SlippageBps < 0 {
		errs = append(errs, fmt.Errorf("slippage %v bps must not be negative", c.SlippageBps))
	}
	if c.Commission < 0 {
		errs = append(errs, fmt.Errorf("commission %v must not be negative", c.Commission))
	}
	if c.MaxOpenPositions < 0 {
		errs = append(errs, fmt.Errorf("max open positions %d must not be negative", c.MaxOpenPositions))
	}
	return errors.Join(errs...)
}

func (c EngineConfig) slippage() float64 { return c.SlippageBps / 10_000 }

// Engine runs walk-forward simulations.
type Engine struct {
	Strategy  StrategyConfig
	Config    EngineConfig
	Log       zerolog.Logger
	Telemetry *Telemetry // optional
}

// NewEngine returns an engine with a silent logger.
func NewEngine(strategy StrategyConfig, config EngineConfig) *Engine {
	return &Engine{Strategy: strategy, Config: config, Log: zerolog.Nop()}
}

// asset is the per run view of an Asset.
type asset struct {
	Asset
	signals []Signal // aligned on price rows.
}

// Run simulates the strategy over data and returns the result.
//
// The benchmark is optional. Assets missing a price on a given day are left
// untouched that day.
func (e *Engine) Run(data Dataset, benchmark *Prices) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDataset
	}
	if err := errors.Join(e.Strategy.Validate(), e.Config.Validate()); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	assets := e.signals(data)

	calendar := make([][]date.Date, len(assets))
	for i, a := range assets {
		if a.Prices != nil {
			calendar[i] = a.Prices.Days()
		}
	}
	days := date.Union(calendar...)
	if len(days) == 0 {
		return nil, ErrNoTradingDates
	}
	e.Log.Info().Int("tickers", len(assets)).Stringer("from", days[0]).Stringer("to", days[len(days)-1]).Int("days", len(days)).Msg("trading window")

	state := newPortfolioState(e.Config.InitialCapital)
	attribution := make(map[string]*date.History[float64], len(assets))
	for _, a := range assets {
		attribution[a.Ticker] = new(date.History[float64])
	}

	closes := make(map[string]float64, len(assets))
	held := make(map[string]int64, len(assets))
	for i, day := range days {
		if e.Config.ApplyRFOnCash {
			state.accrue(RiskFreeDaily)
		}

		clear(closes)
		clear(held)
		for _, a := range assets {
			if _, bar, ok := a.row(day); ok {
				closes[a.Ticker] = bar.Close
			}
			held[a.Ticker] = state.Shares(a.Ticker)
		}
		state.mark(closes)

		if i == 0 || !date.SamePeriod(days[i-1], day, e.Config.Rebalance) {
			e.trade(state, assets, day)
		}

		state.record(day)

		for _, a := range assets {
			idx, bar, ok := a.row(day)
			if !ok || idx == 0 {
				continue
			}
			_, prev := a.Prices.At(idx - 1)
			if !(prev.Close > 0) {
				continue
			}
			var r float64
			switch shares := held[a.Ticker]; {
			case shares > 0:
				r = bar.Close/prev.Close - 1
			case shares < 0:
				r = -(bar.Close/prev.Close - 1)
			}
			attribution[a.Ticker].Append(day, r)
		}
	}
	e.Log.Info().Int("trades", len(state.trades)).Float64("final_value", state.Value()).Strs("open", state.Tickers()).Msg("simulation complete")

	return e.assemble(data, state, attribution, benchmark), nil
}

// signals computes the signals of every asset concurrently.
func (e *Engine) signals(data Dataset) []asset {
	assets := make([]asset, len(data))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, a := range data {
		g.Go(func() error {
			assets[i] = asset{Asset: a, signals: ComputeSignals(a.Ticker, a.Sentiment, a.Prices, e.Strategy)}
			return nil
		})
	}
	g.Wait() // signal computation never fails.
	return assets
}

// row returns the price row of the asset on day.
func (a asset) row(day date.Date) (int, Bar, bool) {
	if a.Prices == nil {
		return -1, Bar{}, false
	}
	idx := a.Prices.Index(day)
	if idx < 0 {
		return -1, Bar{}, false
	}
	_, bar := a.Prices.At(idx)
	return idx, bar, true
}

// fill returns the execution price of an order decided on row idx: the next
// row's open, or the same day close when there is no usable next open.
func (a asset) fill(idx int) float64 {
	_, bar := a.Prices.At(idx)
	if idx+1 < a.Prices.Len() {
		if _, next := a.Prices.At(idx + 1); next.Open > 0 {
			return next.Open
		}
	}
	return bar.Close
}

// trade executes the signals of the day, in dataset order.
func (e *Engine) trade(state *PortfolioState, assets []asset, day date.Date) {
	value := state.Value()
	for _, a := range assets {
		idx, _, ok := a.row(day)
		if !ok {
			continue
		}
		sig := a.signals[idx]
		price := a.fill(idx)
		if !(price > 0) {
			continue
		}
		var t *Trade
		switch sig.Action {
		case Buy:
			t = e.buy(state, a.Ticker, price, value*sig.Fraction)
		case Sell:
			t = e.sell(state, a.Ticker, price, value*sig.Fraction)
		}
		if t == nil {
			continue
		}
		t.Date = day
		state.log(*t)
		e.Telemetry.trade(t.Action)
		e.Log.Debug().Stringer("date", day).Str("ticker", t.Ticker).Str("action", string(t.Action)).Int64("shares", t.Shares).Float64("price", price).Msg("trade")
	}
}

// buy raises the position in ticker toward target, within the available cash.
func (e *Engine) buy(state *PortfolioState, ticker string, price, target float64) *Trade {
	current := state.Shares(ticker)
	if current == 0 && e.Config.MaxOpenPositions > 0 && state.OpenPositions() >= e.Config.MaxOpenPositions {
		return nil
	}
	fill := price * (1 + e.Config.slippage())
	delta := target - float64(current)*price
	if delta < fill {
		return nil
	}
	n := int64(math.Floor(delta / fill))
	cost := float64(n)*fill + e.Config.Commission
	if cost > state.cash {
		n = int64(math.Floor((state.cash - e.Config.Commission) / fill))
		cost = float64(n)*fill + e.Config.Commission
		for n > 0 && cost > state.cash {
			n--
			cost = float64(n)*fill + e.Config.Commission
		}
	}
	if n <= 0 {
		return nil
	}
	state.cash -= cost
	basis := float64(n) * fill
	if p, ok := state.Position(ticker); ok && p.Shares > 0 {
		basis += p.CostBasis
	}
	state.update(ticker, current+n, basis)
	return &Trade{Ticker: ticker, Action: Buy, Shares: n, Price: price}
}

// sell closes a long position in full, or opens a short when allowed.
func (e *Engine) sell(state *PortfolioState, ticker string, price, target float64) *Trade {
	current := state.Shares(ticker)
	switch {
	case current > 0:
		gross := float64(current) * price * (1 - e.Config.slippage())
		fee := math.Min(e.Config.Commission, state.cash+gross)
		state.cash += gross - fee
		state.update(ticker, 0, 0)
		return &Trade{Ticker: ticker, Action: Sell, Shares: current, Price: price}

	case current == 0 && e.Config.AllowShorts:
		if e.Config.MaxOpenPositions > 0 && state.OpenPositions() >= e.Config.MaxOpenPositions {
			return nil
		}
		n := int64(math.Floor(target / price))
		if n <= 0 {
			return nil
		}
		proceeds := float64(n)*price*(1-e.Config.slippage()) - e.Config.Commission
		if state.cash+proceeds < 0 {
			return nil
		}
		state.cash += proceeds
		state.update(ticker, -n, float64(n)*price)
		return &Trade{Ticker: ticker, Action: Short, Shares: n, Price: price}
	}
	return nil
}

// assemble turns the final state into a Result.
func (e *Engine) assemble(data Dataset, state *PortfolioState, attribution map[string]*date.History[float64], benchmark *Prices) *Result {
	equity := state.values.Between(date.Range{})
	portfolio := pctChange(equity)

	var bench *date.History[float64]
	if benchmark != nil {
		raw := returns(benchmark)
		bench = new(date.History[float64])
		for day := range portfolio.Values() {
			r, _ := raw.Get(day)
			bench.Append(day, r)
		}
	}

	var summary Metrics
	if bench != nil {
		summary = ComputeBenchmarkMetrics(portfolio, bench, "Strategy")
	} else {
		summary = ComputeMetrics(values(portfolio), "Strategy")
	}

	tickers := data.Tickers()
	perAsset := make(map[string]*date.History[float64], len(attribution))
	for t, h := range attribution {
		if h.Len() > 0 {
			perAsset[t] = h
		}
	}

	first, _ := equity.At(0)
	last, _ := equity.Latest()
	return &Result{
		tickers:   tickers,
		start:     first,
		end:       last,
		strategy:  e.Strategy.Describe(),
		returns:   portfolio,
		benchmark: bench,
		equity:    equity,
		cash:      state.cashes.Between(date.Range{}),
		perAsset:  perAsset,
		trades:    state.trades,
		summary:   summary,
		perTicker: PerTickerMetrics(tickers, perAsset),
	}
}

// pctChange returns the day over day percent change of a value history.
func pctChange(h *date.History[float64]) *date.History[float64] {
	out := new(date.History[float64])
	for i := 1; i < h.Len(); i++ {
		_, prev := h.At(i - 1)
		day, v := h.At(i)
		if prev != 0 {
			out.Append(day, v/prev-1)
		}
	}
	return out
}

// values returns the values of a history in chronological order.
func values(h *date.History[float64]) []float64 {
	if h == nil {
		return nil
	}
	out := make([]float64, 0, h.Len())
	for _, v := range h.Values() {
		out = append(out, v)
	}
	return out
}
