package backtest

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/etnz/backtest/date"
)

// Action is what a signal or a trade does.
type Action string

const (
	Buy   Action = "BUY"
	Sell  Action = "SELL"
	Hold  Action = "HOLD"
	Short Action = "SHORT" // only in trade logs: a SELL that opened a short position.
)

// Variant selects how raw sentiment is blended into the score that drives
// signals.
type Variant int

const (
	// Threshold uses the raw sentiment score.
	Threshold Variant = iota
	// MomentumBlend mixes sentiment with five day price momentum.
	MomentumBlend
	// AdaptiveRisk uses the raw score with thresholds derived from the risk level.
	AdaptiveRisk
)

// String returns the strategy name of the variant.
func (v Variant) String() string {
	switch v {
	case Threshold:
		return "SentimentThreshold"
	case MomentumBlend:
		return "MomentumSentimentBlend"
	case AdaptiveRisk:
		return "AdaptiveRisk"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// key is the short configuration name of the variant.
func (v Variant) key() string {
	switch v {
	case MomentumBlend:
		return "blend"
	case AdaptiveRisk:
		return "adaptive"
	default:
		return "threshold"
	}
}

// ParseVariant parses "threshold", "blend" or "adaptive" (strategy names are
// accepted too).
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "threshold", "sentimentthreshold", "":
		return Threshold, nil
	case "blend", "momentum", "momentumsentimentblend":
		return MomentumBlend, nil
	case "adaptive", "adaptiverisk":
		return AdaptiveRisk, nil
	}
	return Threshold, fmt.Errorf("unknown strategy variant %q, want threshold, blend or adaptive", s)
}

func (v Variant) MarshalText() ([]byte, error) { return []byte(v.key()), nil }

func (v *Variant) UnmarshalText(text []byte) error {
	p, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// RiskLevel is the risk appetite of a strategy: "Low", "Medium" or "High".
type RiskLevel string

const (
	Low    RiskLevel = "Low"
	Medium RiskLevel = "Medium"
	High   RiskLevel = "High"
)

// thresholds returns the buy and sell thresholds of the risk level.
// Unknown levels behave as Medium.
func (r RiskLevel) thresholds() (buy, sell float64) {
	switch r {
	case Low:
		return 0.25, -0.25
	case High:
		return 0.05, -0.05
	default:
		return 0.10, -0.10
	}
}

// StrategyConfig holds every tunable parameter of the signal generator.
type StrategyConfig struct {
	Variant          Variant   `yaml:"variant"`
	BuyThreshold     float64   `yaml:"buy_threshold"`
	SellThreshold    float64   `yaml:"sell_threshold"`
	MaxPositionPct   float64   `yaml:"max_position_pct"`
	MinPositionPct   float64   `yaml:"min_position_pct"`
	ConvictionSizing bool      `yaml:"size_by_conviction"`
	RiskLevel        RiskLevel `yaml:"risk_level"`
	SentimentWeight  float64   `yaml:"sentiment_weight"`
	MomentumWeight   float64   `yaml:"momentum_weight"`
	ModelVariant     string    `yaml:"model_variant"`
}

// DefaultStrategy returns the default strategy configuration.
func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		Variant:          Threshold,
		BuyThreshold:     0.10,
		SellThreshold:    -0.10,
		MaxPositionPct:   0.05,
		MinPositionPct:   0.005,
		ConvictionSizing: true,
		RiskLevel:        Medium,
		SentimentWeight:  0.70,
		MomentumWeight:   0.30,
		ModelVariant:     "price_momentum",
	}
}

// Name returns the strategy name.
func (c StrategyConfig) Name() string { return c.Variant.String() }

// Thresholds returns the effective buy and sell thresholds. AdaptiveRisk
// replaces the configured ones by those of its risk level.
func (c StrategyConfig) Thresholds() (buy, sell float64) {
	if c.Variant == AdaptiveRisk {
		return c.RiskLevel.thresholds()
	}
	return c.BuyThreshold, c.SellThreshold
}

// Validate checks the configuration.
func (c StrategyConfig) Validate() error {
	var errs []error
	if buy, sell := c.Thresholds(); !(buy > sell) {
		errs = append(errs, fmt.Errorf("buy threshold %v must be greater than sell threshold %v", buy, sell))
	}
	if c.MaxPositionPct < 0 || c.MaxPositionPct > 1 {
		errs = append(errs, fmt.Errorf("max position %v must be in [0,1]", c.MaxPositionPct))
	}
	if c.MinPositionPct < 0 || c.MinPositionPct > c.MaxPositionPct {
		errs = append(errs, fmt.Errorf("min position %v must be in [0,%v]", c.MinPositionPct, c.MaxPositionPct))
	}
	if c.Variant < Threshold || c.Variant > AdaptiveRisk {
		errs = append(errs, fmt.Errorf("invalid strategy variant %d", c.Variant))
	}
	return errors.Join(errs...)
}

// Descriptor is the human readable summary of a strategy, as stored with
// results.
type Descriptor struct {
	Name          string    `json:"name"`
	BuyThreshold  float64   `json:"buy_threshold"`
	SellThreshold float64   `json:"sell_threshold"`
	MaxPosition   string    `json:"max_position"`
	RiskLevel     RiskLevel `json:"risk_level"`
	ModelVariant  string    `json:"model_variant"`
}

// Describe returns the descriptor of the strategy.
func (c StrategyConfig) Describe() Descriptor {
	buy, sell := c.Thresholds()
	return Descriptor{
		Name:          c.Name(),
		BuyThreshold:  buy,
		SellThreshold: sell,
		MaxPosition:   fmt.Sprintf("%.1f%%", c.MaxPositionPct*100),
		RiskLevel:     c.RiskLevel,
		ModelVariant:  c.ModelVariant,
	}
}

// Signal is the decision of the strategy for one asset on one day.
type Signal struct {
	Date     date.Date
	Ticker   string
	Action   Action
	Fraction float64 // fraction of portfolio value to allocate, in [0,1].
	Raw      float64 // sentiment aligned on the price date.
	Score    float64 // blended score the action was derived from.
}

// blender maps aligned sentiment and prices to scores.
type blender func(c StrategyConfig, sentiment []float64, prices *Prices) []float64

// blenders holds the blend function of every variant.
var blenders = map[Variant]blender{
	Threshold:     identity,
	MomentumBlend: momentumBlend,
	AdaptiveRisk:  identity,
}

func identity(_ StrategyConfig, sentiment []float64, _ *Prices) []float64 {
	return sentiment
}

// momentumLookback is the number of rows of the momentum percent change.
const momentumLookback = 5

func momentumBlend(c StrategyConfig, sentiment []float64, prices *Prices) []float64 {
	out := make([]float64, len(sentiment))
	for i := range sentiment {
		var momentum float64
		if i >= momentumLookback {
			_, prev := prices.At(i - momentumLookback)
			_, bar := prices.At(i)
			if prev.Close != 0 {
				if m := bar.Close/prev.Close - 1; !math.IsNaN(m) && !math.IsInf(m, 0) {
					momentum = clip(m, -0.5, 0.5) * 2
				}
			}
		}
		out[i] = clip(c.SentimentWeight*sentiment[i]+c.MomentumWeight*momentum, -1, 1)
	}
	return out
}

// ComputeSignals returns one signal per price date of the asset.
//
// Sentiment is aligned on the price dates: a date without sentiment, or with
// a NaN score, counts as a neutral 0.
func ComputeSignals(ticker string, sentiment *Sentiment, prices *Prices, c StrategyConfig) []Signal {
	if prices == nil || prices.Len() == 0 {
		return nil
	}
	aligned := make([]float64, prices.Len())
	for i := range aligned {
		day, _ := prices.At(i)
		if sentiment == nil {
			continue
		}
		if s, ok := sentiment.Get(day); ok && !math.IsNaN(s) {
			aligned[i] = s
		}
	}

	blend, ok := blenders[c.Variant]
	if !ok {
		blend = identity
	}
	scores := blend(c, aligned, prices)

	signals := make([]Signal, len(scores))
	for i, score := range scores {
		day, _ := prices.At(i)
		action := c.Classify(score)
		signals[i] = Signal{
			Date:     day,
			Ticker:   ticker,
			Action:   action,
			Fraction: c.Size(action, score),
			Raw:      aligned[i],
			Score:    score,
		}
	}
	return signals
}

// Classify maps a score to exactly one action.
func (c StrategyConfig) Classify(score float64) Action {
	buy, sell := c.Thresholds()
	switch {
	case score >= buy:
		return Buy
	case score <= sell:
		return Sell
	default:
		return Hold
	}
}

// Size returns the fraction of portfolio value to allocate for an action.
//
// With conviction sizing the fraction grows linearly from the minimum at the
// threshold to the maximum at a score of ±1.
func (c StrategyConfig) Size(action Action, score float64) float64 {
	if action == Hold {
		return 0
	}
	if !c.ConvictionSizing {
		return c.MaxPositionPct
	}
	buy, sell := c.Thresholds()
	var t float64
	if action == Buy {
		t = (score - buy) / math.Max(1-buy, 1e-9)
	} else {
		t = (math.Abs(score) - math.Abs(sell)) / math.Max(1-math.Abs(sell), 1e-9)
	}
	t = clip(t, 0, 1)
	return round(c.MinPositionPct+t*(c.MaxPositionPct-c.MinPositionPct), 6)
}
