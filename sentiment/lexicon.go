package sentiment

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Lexicon is an offline scorer summing word valences, with negation and
// intensifiers, normalized to [-1,1].
type Lexicon struct {
	// Words maps lower case words to their valence, DefaultLexicon when nil.
	Words map[string]float64
}

// DefaultLexicon is a small vocabulary of market news.
var DefaultLexicon = map[string]float64{
	"beat": 2, "beats": 2, "bullish": 2.5, "buy": 1.5, "gain": 1.8, "gains": 1.8,
	"growth": 1.8, "high": 0.8, "higher": 1.2, "outperform": 2.2, "profit": 1.8,
	"profits": 1.8, "rally": 2.2, "rallies": 2.2, "record": 1.2, "rebound": 1.5,
	"rise": 1.5, "rises": 1.5, "soar": 2.5, "soars": 2.5, "strong": 1.8,
	"surge": 2.4, "surges": 2.4, "upgrade": 2, "upgraded": 2, "win": 1.5,
	"bearish": -2.5, "bankruptcy": -3, "crash": -3, "cut": -1.2, "cuts": -1.2,
	"decline": -1.8, "declines": -1.8, "default": -2.5, "downgrade": -2, "downgraded": -2,
	"drop": -1.6, "drops": -1.6, "fall": -1.6, "falls": -1.6, "fraud": -3,
	"layoffs": -2, "loss": -2, "losses": -2, "lawsuit": -1.8, "miss": -1.8, "misses": -1.8,
	"plunge": -2.6, "plunges": -2.6, "recession": -2.4, "risk": -0.8, "sell": -1.5,
	"selloff": -2.2, "slump": -2.2, "weak": -1.8, "warning": -1.5, "underperform": -2.2,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "without": true, "isn't": true,
	"wasn't": true, "doesn't": true, "didn't": true, "won't": true, "don't": true,
}

var boosters = map[string]float64{
	"very": 0.3, "strongly": 0.3, "sharply": 0.3, "significantly": 0.3, "slightly": -0.3,
}

// normalization constant of the compound score.
const alpha = 15

func (Lexicon) Name() string { return "lexicon" }

func (l Lexicon) Score(ctx context.Context, text string) (Result, error) {
	words := l.Words
	if words == nil {
		words = DefaultLexicon
	}
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	sum := 0.0
	for i, tok := range tokens {
		v, ok := words[tok]
		if !ok {
			continue
		}
		// look back up to three words for modifiers.
		for j := max(0, i-3); j < i; j++ {
			if b, ok := boosters[tokens[j]]; ok {
				if v > 0 {
					v += b
				} else {
					v -= b
				}
			}
			if negations[tokens[j]] {
				v *= -0.74
			}
		}
		sum += v
	}
	score := 0.0
	if sum != 0 {
		score = clip(sum / math.Sqrt(sum*sum+alpha))
	}
	score = round4(score)
	return Result{Text: text, Label: LabelOf(score), Score: score, Method: "lexicon"}, nil
}
