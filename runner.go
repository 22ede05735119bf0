package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNoTickers is returned when a run resolves to an empty universe.
	ErrNoTickers = errors.New("no tickers to backtest")
	// ErrUnknownSector is returned when the requested sector has no ticker.
	ErrUnknownSector = errors.New("unknown sector")
)

// Saver persists payloads. It returns the run id actually used, generating
// one when runID is empty.
type Saver interface {
	Save(ctx context.Context, runID string, p Payload) (string, error)
}

// Runner resolves, loads, simulates and persists backtests.
type Runner struct {
	Catalog   *Catalog
	Loader    Loader
	Store     Saver // optional
	Log       zerolog.Logger
	Telemetry *Telemetry // optional
}

// Run is the outcome of Runner.Run.
type Run struct {
	Result  *Result
	RunID   string   // empty when the result was not saved.
	Skipped []string // tickers without data.
}

// Run executes one backtest. Every configuration and universe error is
// reported before the simulation starts.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Run, error) {
	begin := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tickers, err := r.universe(cfg)
	if err != nil {
		r.Telemetry.fail("resolve")
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		r.Telemetry.fail("resolve")
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	r.Log.Info().Int("tickers", len(tickers)).Stringer("from", cfg.Start).Stringer("to", cfg.End).Str("strategy", cfg.Strategy.Name()).Str("risk", string(cfg.Strategy.RiskLevel)).Msg("universe resolved")

	data, skipped, err := r.load(ctx, tickers, cfg)
	if err != nil {
		r.Telemetry.fail("load")
		return nil, err
	}
	var benchmark *Prices
	if cfg.Benchmark != "" {
		b, err := r.Loader.Load(ctx, cfg.Benchmark, cfg.Range())
		if err != nil {
			r.Log.Warn().Err(err).Str("benchmark", cfg.Benchmark).Msg("benchmark unavailable, relative metrics skipped")
		} else {
			benchmark = b.Prices
		}
	}

	engine := &Engine{Strategy: cfg.Strategy, Config: cfg.Engine, Log: r.Log, Telemetry: r.Telemetry}
	result, err := engine.Run(data, benchmark)
	if err != nil {
		r.Telemetry.fail("engine")
		return nil, err
	}
	run := &Run{Result: result, Skipped: skipped}

	if cfg.Save && r.Store != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := r.Store.Save(ctx, cfg.RunID, result.Payload())
		if err != nil {
			r.Telemetry.fail("save")
			return nil, fmt.Errorf("cannot save result: %w", err)
		}
		run.RunID = id
		r.Log.Info().Str("run_id", id).Msg("result saved")
	}
	r.Telemetry.run(result.Strategy().Name, time.Since(begin))
	return run, nil
}

// universe resolves the tickers of a run: explicit tickers first, then a
// sector of the catalog, then the whole catalog.
func (r *Runner) universe(cfg RunConfig) ([]string, error) {
	catalog := r.Catalog
	if catalog == nil {
		catalog = NewCatalog()
	}
	var tickers []string
	switch {
	case len(cfg.Tickers) > 0:
		tickers = catalog.Resolve(cfg.Tickers)
	case cfg.Sector != "":
		tickers = catalog.BySector(cfg.Sector)
		if len(tickers) == 0 {
			return nil, fmt.Errorf("%w %q, valid sectors are %q", ErrUnknownSector, cfg.Sector, catalog.Sectors())
		}
	default:
		tickers = catalog.Tickers()
	}
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}
	return tickers, nil
}

// load reads every ticker, skipping those without data.
func (r *Runner) load(ctx context.Context, tickers []string, cfg RunConfig) (Dataset, []string, error) {
	if r.Loader == nil {
		return nil, nil, errors.New("no data loader configured")
	}
	var (
		data    Dataset
		skipped []string
	)
	for _, t := range tickers {
		a, err := r.Loader.Load(ctx, t, cfg.Range())
		switch {
		case errors.Is(err, ErrNoData):
			skipped = append(skipped, t)
			continue
		case err != nil:
			return nil, nil, fmt.Errorf("cannot load %s: %w", t, err)
		case a.Len() == 0:
			skipped = append(skipped, t)
			continue
		}
		a.Ticker = t
		data = append(data, a)
	}
	if len(skipped) > 0 {
		r.Log.Warn().Int("count", len(skipped)).Strs("tickers", skipped).Msg("tickers skipped, no data")
	}
	if len(data) == 0 {
		return nil, skipped, fmt.Errorf("%w for %d tickers between %s and %s", ErrNoData, len(tickers), cfg.Start, cfg.End)
	}
	return data, skipped, nil
}
