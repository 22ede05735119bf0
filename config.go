package backtest

import (
	"errors"
	"fmt"
	"os"

	"github.com/etnz/backtest/date"
	"gopkg.in/yaml.v3"
)

// RunConfig is everything needed to run and persist one backtest.
type RunConfig struct {
	Tickers   []string       `yaml:"tickers"`
	Sector    string         `yaml:"sector"`
	Start     date.Date      `yaml:"start"`
	End       date.Date      `yaml:"end"`
	Benchmark string         `yaml:"benchmark"`
	Strategy  StrategyConfig `yaml:"strategy"`
	Engine    EngineConfig   `yaml:"engine"`
	Save      bool           `yaml:"save"`
	RunID     string         `yaml:"run_id"`
}

// DefaultRunConfig returns the configuration used when nothing is specified.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Start:     date.New(2022, 1, 1),
		End:       date.New(2024, 1, 1),
		Benchmark: "SPY",
		Strategy:  DefaultStrategy(),
		Engine:    DefaultEngine(),
		Save:      true,
	}
}

// Range returns the requested date range.
func (c RunConfig) Range() date.Range { return date.Range{From: c.Start, To: c.End} }

// Validate checks the whole configuration.
func (c RunConfig) Validate() error {
	return errors.Join(c.Range().Validate(), c.Strategy.Validate(), c.Engine.Validate())
}

// LoadRunConfig reads a yaml run configuration. Fields absent from the file
// keep their default value.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read run config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse run config %q: %w", path, err)
	}
	return cfg, nil
}
