package backtest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry holds the Prometheus metrics of backtest runs. A nil *Telemetry
// records nothing.
type Telemetry struct {
	Runs        *prometheus.CounterVec
	Failures    *prometheus.CounterVec
	Trades      *prometheus.CounterVec
	RunDuration prometheus.Histogram
}

// NewTelemetry creates the metrics and registers them on reg.
func NewTelemetry(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_runs_total",
				Help: "Total number of completed backtest runs by strategy",
			},
			[]string{"strategy"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_run_failures_total",
				Help: "Total number of failed backtest runs by stage",
			},
			[]string{"stage"},
		),
		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_trades_total",
				Help: "Total number of simulated trades by action",
			},
			[]string{"action"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backtest_run_duration_seconds",
				Help:    "Duration of a backtest run in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
	}
	if reg != nil {
		reg.MustRegister(t.Runs, t.Failures, t.Trades, t.RunDuration)
	}
	return t
}

func (t *Telemetry) trade(action Action) {
	if t == nil {
		return
	}
	t.Trades.WithLabelValues(string(action)).Inc()
}

func (t *Telemetry) run(strategy string, elapsed time.Duration) {
	if t == nil {
		return
	}
	t.Runs.WithLabelValues(strategy).Inc()
	t.RunDuration.Observe(elapsed.Seconds())
}

func (t *Telemetry) fail(stage string) {
	if t == nil {
		return
	}
	t.Failures.WithLabelValues(stage).Inc()
}
