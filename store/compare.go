package store

import (
	"context"
	"errors"
	"fmt"
)

// Missing fills a comparison cell whose run or metric is not available.
const Missing = "—"

// Table is a side by side comparison of saved runs.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type compareKey struct {
	label string
	path  string
	fmt   func(float64) string
}

func percent(format string) func(float64) string {
	return func(v float64) string { return fmt.Sprintf(format, v*100) }
}

func ratio(v float64) string { return fmt.Sprintf("%.3f", v) }

var compareKeys = []compareKey{
	{"Cumulative Return", "$.summary.cum_return", percent("%+.2f%%")},
	{"Annualised Return", "$.summary.ann_return", percent("%+.2f%%")},
	{"Annualised Vol", "$.summary.ann_volatility", percent("%.2f%%")},
	{"Sharpe", "$.summary.sharpe_ratio", ratio},
	{"Sortino", "$.summary.sortino_ratio", ratio},
	{"Max Drawdown", "$.summary.max_drawdown", percent("%.2f%%")},
	{"Calmar", "$.summary.calmar_ratio", ratio},
	{"Win Rate", "$.summary.win_rate", percent("%.1f%%")},
	{"Profit Factor", "$.summary.profit_factor", ratio},
	{"VaR (95%)", "$.summary.var_95", percent("%.2f%%")},
	{"Alpha (ann.)", "$.summary.alpha_ann", percent("%+.2f%%")},
	{"Beta", "$.summary.beta", ratio},
	{"Info Ratio", "$.summary.info_ratio", ratio},
}

// Compare loads runIDs from s and tabulates their summary metrics. Unknown
// runs get a column of Missing cells; other load errors are returned.
func Compare(ctx context.Context, s Store, runIDs ...string) (Table, error) {
	docs := make([]any, len(runIDs))
	for i, id := range runIDs {
		r, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Table{}, err
		}
		if docs[i], err = document(r); err != nil {
			return Table{}, fmt.Errorf("cannot read run %q: %w", id, err)
		}
	}

	t := Table{Columns: append([]string{"Metric"}, runIDs...)}
	for _, k := range compareKeys {
		row := []string{k.label}
		for _, doc := range docs {
			if doc == nil {
				row = append(row, Missing)
				continue
			}
			v, ok := lookup(doc, k.path)
			if !ok {
				row = append(row, Missing)
				continue
			}
			row = append(row, k.fmt(v))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
