package renderer

import (
	"errors"
	"fmt"

	"github.com/etnz/backtest"
	"github.com/vicanso/go-charts/v2"
)

// ErrNoPoints is returned when charting an empty series.
var ErrNoPoints = errors.New("nothing to chart")

// EquityChart renders a PNG of the equity curve of a run, with the cash
// balance as a second series when not empty.
func EquityChart(title string, equity backtest.EquityCurve, cash []backtest.Point) ([]byte, error) {
	if len(equity) == 0 {
		return nil, ErrNoPoints
	}
	labels := make([]string, len(equity))
	values := make([]float64, len(equity))
	lo, hi := equity[0].Value, equity[0].Value
	for i, p := range equity {
		labels[i] = p.Date.Format("Jan 02 '06")
		values[i] = p.Value
		lo, hi = min(lo, p.Value), max(hi, p.Value)
	}
	series := [][]float64{values}
	names := []string{"Equity"}
	if len(cash) == len(equity) {
		c := make([]float64, len(cash))
		for i, p := range cash {
			c[i] = p.Value
			lo, hi = min(lo, p.Value), max(hi, p.Value)
		}
		series = append(series, c)
		names = append(names, "Cash")
	}

	padding := (hi - lo) * 0.05
	if padding == 0 {
		padding = hi * 0.05
	}
	yMin, yMax := lo-padding, hi+padding

	split := 6
	if len(labels) <= 30 {
		split = max(3, len(labels)/3)
	}

	p, err := charts.LineRender(
		series,
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			SplitNumber: split,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}
