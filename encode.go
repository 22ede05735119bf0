package backtest

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/etnz/backtest/date"
)

// MarshalJSON writes the payload fields in a stable order.
func (p Payload) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("tickers", nonNil(p.Tickers))
	w.Append("start", p.Start)
	w.Append("end", p.End)
	w.Append("strategy", p.Strategy)
	w.Append("strategy_config", p.Config)
	w.Append("summary", p.Summary)
	w.Append("per_ticker", nonNil(p.PerTicker))
	w.Append("equity_curve", p.EquityCurve)
	w.Append("n_trades", p.Trades)
	return w.MarshalJSON()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// MarshalJSON writes the curve as {"2006-01-02": value, ...} in date order.
func (c EquityCurve) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	for _, p := range c {
		w.Append(p.Date.String(), p.Value)
	}
	return w.MarshalJSON()
}

func (c *EquityCurve) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	curve := make(EquityCurve, 0, len(raw))
	for k, v := range raw {
		day, err := date.Parse(k)
		if err != nil {
			return fmt.Errorf("equity curve: %w", err)
		}
		curve = append(curve, Point{Date: day, Value: v})
	}
	slices.SortFunc(curve, func(a, b Point) int { return a.Date.Compare(b.Date) })
	*c = curve
	return nil
}

// MarshalJSON writes the payload followed by the record metadata.
func (r Record) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(r.Payload)
	w.Append("_run_id", r.RunID)
	w.Append("_saved_at", r.SavedAt.UTC().Format(time.RFC3339Nano))
	return w.MarshalJSON()
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var meta struct {
		RunID   string    `json:"_run_id"`
		SavedAt time.Time `json:"_saved_at"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &r.Payload); err != nil {
		return err
	}
	r.RunID, r.SavedAt = meta.RunID, meta.SavedAt
	return nil
}
