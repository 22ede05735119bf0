// Package store persists backtest results and compares saved runs.
//
// Three backends are available: a directory of json files, a SQL database
// (sqlite or postgres) and redis. They all store the same record: the result
// payload plus its run id and save time.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/backtest"
	"github.com/etnz/backtest/date"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Store persists backtest records keyed by run id.
type Store interface {
	// Save stores p under runID, or under a new run id when runID is empty,
	// and returns the run id.
	Save(ctx context.Context, runID string, p backtest.Payload) (string, error)
	// Load returns the record of runID or an error wrapping ErrNotFound.
	Load(ctx context.Context, runID string) (*backtest.Record, error)
	// List returns the summary of every run, newest first.
	List(ctx context.Context) ([]Summary, error)
	// Delete removes runID and reports whether it existed.
	Delete(ctx context.Context, runID string) (bool, error)
}

// Summary is the listing entry of a saved run.
type Summary struct {
	RunID     string    `json:"run_id"`
	Strategy  string    `json:"strategy"`
	Start     date.Date `json:"start"`
	End       date.Date `json:"end"`
	Tickers   int       `json:"n_tickers"`
	CumReturn *float64  `json:"cum_return"`
	Sharpe    *float64  `json:"sharpe"`
	MaxDD     *float64  `json:"max_dd"`
	SavedAt   time.Time `json:"saved_at"`
}

// NewRunID returns a run id like run_20240102_150405_a1b2c3.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return fmt.Sprintf("run_%s_%s", now.UTC().Format("20060102_150405"), suffix)
}

// checkRunID rejects ids that cannot be used as a file name or key.
func checkRunID(id string) error {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id || strings.ContainsAny(id, `/\:*?"<>|`) {
		return fmt.Errorf("invalid run id %q", id)
	}
	return nil
}

// record prepares the record to save: it picks the run id and the save time.
func record(runID string, p backtest.Payload, now func() time.Time) (backtest.Record, error) {
	t := time.Now
	if now != nil {
		t = now
	}
	at := t().UTC()
	if runID == "" {
		runID = NewRunID(at)
	}
	if err := checkRunID(runID); err != nil {
		return backtest.Record{}, err
	}
	return backtest.Record{Payload: p, RunID: runID, SavedAt: at}, nil
}

// document returns the generic json form of a record, as jsonpath expects it.
func document(r *backtest.Record) (any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// lookup returns the number at path in doc.
func lookup(doc any, path string) (float64, bool) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, false
	}
	if list, ok := v.([]any); ok {
		if len(list) != 1 {
			return 0, false
		}
		v = list[0]
	}
	f, ok := v.(float64)
	return f, ok
}

// summarize extracts the listing entry of a record.
func summarize(r *backtest.Record) Summary {
	s := Summary{
		RunID:    r.RunID,
		Strategy: r.Strategy,
		Start:    r.Start,
		End:      r.End,
		Tickers:  len(r.Tickers),
		SavedAt:  r.SavedAt,
	}
	doc, err := document(r)
	if err != nil {
		return s
	}
	ptr := func(path string) *float64 {
		if v, ok := lookup(doc, path); ok {
			return &v
		}
		return nil
	}
	s.CumReturn = ptr("$.summary.cum_return")
	s.Sharpe = ptr("$.summary.sharpe_ratio")
	s.MaxDD = ptr("$.summary.max_drawdown")
	return s
}

// newestFirst orders summaries by save time, most recent first.
func newestFirst(a, b Summary) int {
	if c := b.SavedAt.Compare(a.SavedAt); c != 0 {
		return c
	}
	return strings.Compare(b.RunID, a.RunID)
}
