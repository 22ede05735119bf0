// Package sentiment scores market texts and turns them into the daily
// sentiment series consumed by the backtester.
//
// Scorers are organised in tiers: a Chain tries each of them in order and
// returns the first successful score. The lexicon scorer works offline and
// is the usual last tier.
package sentiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Label is the coarse sentiment of a text.
type Label string

const (
	Bullish Label = "Bullish"
	Bearish Label = "Bearish"
	Neutral Label = "Neutral"
)

// LabelThreshold is the absolute score from which a text is not Neutral.
const LabelThreshold = 0.3

// LabelOf returns the label of a score in [-1,1].
func LabelOf(score float64) Label {
	switch {
	case score >= LabelThreshold:
		return Bullish
	case score <= -LabelThreshold:
		return Bearish
	}
	return Neutral
}

// Result is the score of one text.
type Result struct {
	Text   string  `json:"text"`
	Label  Label   `json:"sentiment"`
	Score  float64 `json:"score"`
	Method string  `json:"method"`
}

// Scorer scores a single text.
type Scorer interface {
	Name() string
	Score(ctx context.Context, text string) (Result, error)
}

// ErrNoScorer is returned by an empty Chain.
var ErrNoScorer = errors.New("no sentiment scorer")

// Chain is an ordered list of scorers.
type Chain []Scorer

func (c Chain) Name() string { return "chain" }

// Score returns the result of the first scorer that succeeds, or all the
// errors joined.
func (c Chain) Score(ctx context.Context, text string) (Result, error) {
	if len(c) == 0 {
		return Result{}, ErrNoScorer
	}
	var errs []error
	for _, s := range c {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		r, err := s.Score(ctx, text)
		if err == nil {
			return r, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return Result{}, errors.Join(errs...)
}

// Summary aggregates the results of several texts.
type Summary struct {
	Label   Label   `json:"overall_sentiment"`
	Score   float64 `json:"sentiment_score"`
	Total   int     `json:"total_analyzed"`
	Bullish int     `json:"bullish_count"`
	Bearish int     `json:"bearish_count"`
	Neutral int     `json:"neutral_count"`
}

// Aggregate averages the scores of results. An empty list is Neutral.
func Aggregate(results []Result) Summary {
	s := Summary{Label: Neutral, Total: len(results)}
	if len(results) == 0 {
		return s
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Score
		switch r.Label {
		case Bullish:
			s.Bullish++
		case Bearish:
			s.Bearish++
		case Neutral:
			s.Neutral++
		}
	}
	s.Score = round4(sum / float64(len(results)))
	s.Label = LabelOf(s.Score)
	return s
}

func round4(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return f
}

func clip(v float64) float64 { return max(-1, min(1, v)) }
