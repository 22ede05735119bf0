package renderer

import (
	"fmt"
	"strings"
	"time"

	"github.com/etnz/backtest"
)

// Row is a labelled value of a two columns table.
type Row struct {
	Label string
	Value string
}

// TickerRow is a line of the per ticker table.
type TickerRow struct {
	Ticker    string
	CumReturn string
	Sharpe    string
	MaxDD     string
	WinRate   string
	Days      int
}

// Report is the printable view of a run.
type Report struct {
	RunID        string
	SavedAt      string
	Tickers      string
	Start, End   string
	Strategy     backtest.Descriptor
	Trades       int
	Initial      string
	Final        string
	Summary      []Row
	HasBenchmark bool
	Benchmark    []Row
	PerTicker    []TickerRow
}

// NewReport builds the view of a saved run. Amounts are formatted in currency.
func NewReport(r *backtest.Record, currency string) *Report {
	rep := &Report{
		RunID:    r.RunID,
		Tickers:  strings.Join(r.Tickers, ", "),
		Start:    r.Start.String(),
		End:      r.End.String(),
		Strategy: r.Config,
		Trades:   r.Trades,
	}
	if !r.SavedAt.IsZero() {
		rep.SavedAt = r.SavedAt.UTC().Format(time.DateTime)
	}
	if n := len(r.EquityCurve); n > 0 {
		rep.Initial = formatMoney(r.EquityCurve[0].Value, currency)
		rep.Final = formatMoney(r.EquityCurve[n-1].Value, currency)
	}

	m := r.Summary
	rep.Summary = []Row{
		{"Trading days", fmt.Sprint(m.Days)},
		{"Cumulative return", signedPercent(m.CumReturn)},
		{"Annualised return", signedPercent(m.AnnReturn)},
		{"Annualised volatility", percent(m.AnnVolatility)},
		{"Sharpe ratio", ratio(m.Sharpe)},
		{"Sortino ratio", ratio(m.Sortino)},
		{"Max drawdown", percent(m.MaxDrawdown)},
		{"Calmar ratio", ratio(m.Calmar)},
		{"Win rate", fmt.Sprintf("%.1f%%", m.WinRate*100)},
		{"Avg win / loss", fmt.Sprintf("%s / %s", signedPercent(m.AvgWin), signedPercent(m.AvgLoss))},
		{"Profit factor", ratio(m.ProfitFactor)},
		{"Best / worst day", fmt.Sprintf("%s / %s", signedPercent(m.BestDay), signedPercent(m.WorstDay))},
		{"VaR (95%)", percent(m.VaR95)},
	}
	if rel := m.Relative; rel != nil {
		rep.HasBenchmark = true
		rep.Benchmark = []Row{
			{"Alpha (ann.)", signedPercent(rel.Alpha)},
			{"Beta", ratio(rel.Beta)},
			{"Information ratio", ratio(rel.InfoRatio)},
			{"Tracking error", percent(rel.TrackingError)},
			{"Up capture", ratio(rel.UpCapture)},
			{"Down capture", ratio(rel.DownCapture)},
		}
	}
	for _, t := range r.PerTicker {
		rep.PerTicker = append(rep.PerTicker, TickerRow{
			Ticker:    t.Label,
			CumReturn: signedPercent(t.CumReturn),
			Sharpe:    ratio(t.Sharpe),
			MaxDD:     percent(t.MaxDrawdown),
			WinRate:   fmt.Sprintf("%.1f%%", t.WinRate*100),
			Days:      t.Days,
		})
	}
	return rep
}
