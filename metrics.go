package backtest

import (
	"cmp"
	"math"
	"slices"

	"github.com/etnz/backtest/date"
)

// profitFactorCap stands for an infinite profit factor: wins and no loss.
const profitFactorCap = 999.9

// zeroStd is the standard deviation below which a series is considered
// constant.
const zeroStd = 1e-12

// Metrics are the performance statistics of a daily return series.
//
// Ratios are rounded to 4 decimals, per day figures to 6.
type Metrics struct {
	Label         string  `json:"label"`
	Days          int     `json:"n_days"`
	CumReturn     float64 `json:"cum_return"`
	AnnReturn     float64 `json:"ann_return"`
	AnnVolatility float64 `json:"ann_volatility"`
	Sharpe        float64 `json:"sharpe_ratio"`
	Sortino       float64 `json:"sortino_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	Calmar        float64 `json:"calmar_ratio"`
	WinRate       float64 `json:"win_rate"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	BestDay       float64 `json:"best_day"`
	WorstDay      float64 `json:"worst_day"`
	VaR95         float64 `json:"var_95"`
	*Relative
}

// Relative are the statistics of a return series against a benchmark.
type Relative struct {
	Alpha         float64 `json:"alpha_ann"`
	Beta          float64 `json:"beta"`
	InfoRatio     float64 `json:"info_ratio"`
	TrackingError float64 `json:"tracking_error"`
	UpCapture     float64 `json:"up_capture"`
	DownCapture   float64 `json:"down_capture"`
}

// ComputeMetrics computes the statistics of daily returns r.
//
// NaN returns are ignored. With fewer than two returns every statistic is 0
// and Days is 0.
func ComputeMetrics(r []float64, label string) Metrics {
	r = slices.DeleteFunc(slices.Clone(r), math.IsNaN)
	n := len(r)
	if n < 2 {
		return Metrics{Label: label}
	}

	growth := 1.0
	for _, x := range r {
		growth *= 1 + x
	}
	cum := growth - 1
	ann := -1.0
	if 1+cum > 0 {
		ann = math.Pow(1+cum, float64(TradingDaysPerYear)/float64(n)) - 1
	}
	annualise := math.Sqrt(TradingDaysPerYear)

	excess := make([]float64, n)
	for i, x := range r {
		excess[i] = x - RiskFreeDaily
	}
	var sharpe float64
	if sd := stddev(excess); sd > zeroStd {
		sharpe = mean(excess) / sd * annualise
	}

	var downside []float64
	for _, x := range r {
		if x < RiskFreeDaily {
			downside = append(downside, x)
		}
	}
	downStd := 1e-9
	if len(downside) > 1 {
		downStd = stddev(downside) * annualise
	}
	var sortino float64
	if downStd > zeroStd {
		sortino = (ann - RiskFreeAnnual) / downStd
	}

	maxDD := maxDrawdown(r)
	var calmar float64
	if maxDD != 0 {
		calmar = ann / math.Abs(maxDD)
	}

	var wins, losses []float64
	for _, x := range r {
		switch {
		case x > 0:
			wins = append(wins, x)
		case x < 0:
			losses = append(losses, x)
		}
	}
	profit := 0.0
	if lossSum := sum(losses); lossSum != 0 {
		profit = round(sum(wins)/math.Abs(lossSum), 4)
	} else if len(wins) > 0 {
		profit = profitFactorCap
	}

	return Metrics{
		Label:         label,
		Days:          n,
		CumReturn:     round(cum, 4),
		AnnReturn:     round(ann, 4),
		AnnVolatility: round(stddev(r)*annualise, 4),
		Sharpe:        round(sharpe, 4),
		Sortino:       round(sortino, 4),
		MaxDrawdown:   round(maxDD, 4),
		Calmar:        round(calmar, 4),
		WinRate:       round(float64(len(wins))/float64(n), 4),
		AvgWin:        round(mean(wins), 6),
		AvgLoss:       round(mean(losses), 6),
		ProfitFactor:  profit,
		BestDay:       round(slices.Max(r), 6),
		WorstDay:      round(slices.Min(r), 6),
		VaR95:         round(percentile(r, 5), 6),
	}
}

// minAlignedDays is the number of days two series must share to be compared.
const minAlignedDays = 10

// minCaptureDays is the number of up (or down) benchmark days needed to
// compute a capture ratio.
const minCaptureDays = 5

// ComputeBenchmarkMetrics computes the statistics of strategy returns and,
// when enough dates are shared with the benchmark, its relative statistics.
func ComputeBenchmarkMetrics(strategy, benchmark *date.History[float64], label string) Metrics {
	m := ComputeMetrics(values(strategy), label)
	if strategy == nil || benchmark == nil {
		return m
	}

	var s, b []float64
	for day, x := range strategy.Values() {
		if y, ok := benchmark.Get(day); ok && !math.IsNaN(x) && !math.IsNaN(y) {
			s, b = append(s, x), append(b, y)
		}
	}
	if len(s) < minAlignedDays {
		return m
	}

	beta := 1.0
	if v := variance(b); v > 0 {
		beta = covariance(s, b) / v
	}
	alpha := (mean(s) - beta*mean(b)) * TradingDaysPerYear

	active := make([]float64, len(s))
	for i := range s {
		active[i] = s[i] - b[i]
	}
	te := stddev(active) * math.Sqrt(TradingDaysPerYear)
	var ir float64
	if te > zeroStd {
		ir = mean(active) * TradingDaysPerYear / te
	}

	m.Relative = &Relative{
		Alpha:         round(alpha, 4),
		Beta:          round(beta, 4),
		InfoRatio:     round(ir, 4),
		TrackingError: round(te, 4),
		UpCapture:     round(capture(s, b, func(x float64) bool { return x > 0 }), 4),
		DownCapture:   round(capture(s, b, func(x float64) bool { return x < 0 }), 4),
	}
	return m
}

// capture returns mean(s)/mean(b) over the days selected on b, or 1 when
// too few days are selected.
func capture(s, b []float64, selected func(float64) bool) float64 {
	var ss, bb []float64
	for i, y := range b {
		if selected(y) {
			ss, bb = append(ss, s[i]), append(bb, y)
		}
	}
	if len(bb) <= minCaptureDays {
		return 1
	}
	return mean(ss) / mean(bb)
}

// PerTickerMetrics computes the metrics of every ticker with returns, sorted
// by Sharpe ratio descending, then by ticker.
func PerTickerMetrics(tickers []string, returns map[string]*date.History[float64]) []Metrics {
	out := make([]Metrics, 0, len(returns))
	for _, t := range tickers {
		if h, ok := returns[t]; ok {
			out = append(out, ComputeMetrics(values(h), t))
		}
	}
	slices.SortFunc(out, func(a, b Metrics) int {
		return cmp.Or(cmp.Compare(b.Sharpe, a.Sharpe), cmp.Compare(a.Label, b.Label))
	})
	return out
}

// maxDrawdown returns the worst peak to trough loss of the compounded
// return curve, as a non positive fraction.
func maxDrawdown(r []float64) float64 {
	var curve, peak, worst float64 = 1, math.Inf(-1), 0
	for _, x := range r {
		curve *= 1 + x
		peak = math.Max(peak, curve)
		if dd := (curve - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

func sum(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return sum(x) / float64(len(x))
}

// covariance is the sample covariance of x and y.
func covariance(x, y []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	mx, my := mean(x), mean(y)
	var c float64
	for i := range x {
		c += (x[i] - mx) * (y[i] - my)
	}
	return c / float64(len(x)-1)
}

// variance is the sample variance of x.
func variance(x []float64) float64 { return covariance(x, x) }

// stddev is the sample standard deviation of x.
func stddev(x []float64) float64 { return math.Sqrt(variance(x)) }

// percentile returns the p-th percentile of x, linearly interpolated between
// the closest ranks.
func percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := slices.Sorted(slices.Values(x))
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}
