package renderer

import (
	"time"

	"github.com/etnz/backtest/store"
)

// Comparison is the printable view of a store.Table.
type Comparison struct {
	Columns []string
	// Separator is the markdown alignment row matching Columns.
	Separator []string
	Rows      [][]string
}

// NewComparison builds the view of a comparison table.
func NewComparison(t store.Table) *Comparison {
	c := &Comparison{Columns: t.Columns, Rows: t.Rows}
	for i := range t.Columns {
		if i == 0 {
			c.Separator = append(c.Separator, ":---")
		} else {
			c.Separator = append(c.Separator, "---:")
		}
	}
	return c
}

// RunRow is a line of the list of saved runs.
type RunRow struct {
	RunID     string
	SavedAt   string
	Strategy  string
	Period    string
	Tickers   int
	CumReturn string
	Sharpe    string
	MaxDD     string
}

// Runs is the printable list of saved runs.
type Runs struct {
	Rows []RunRow
}

// NewRuns builds the view of saved runs, in the given order.
func NewRuns(list []store.Summary) *Runs {
	l := &Runs{}
	opt := func(v *float64, f func(float64) string) string {
		if v == nil {
			return store.Missing
		}
		return f(*v)
	}
	for _, s := range list {
		l.Rows = append(l.Rows, RunRow{
			RunID:     s.RunID,
			SavedAt:   s.SavedAt.UTC().Format(time.DateTime),
			Strategy:  s.Strategy,
			Period:    s.Start.String() + " → " + s.End.String(),
			Tickers:   s.Tickers,
			CumReturn: opt(s.CumReturn, signedPercent),
			Sharpe:    opt(s.Sharpe, ratio),
			MaxDD:     opt(s.MaxDD, percent),
		})
	}
	return l
}
