package sentiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// generator answers a canned text.
type generator struct {
	answer string
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (g *generator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.model, g.config = model, config
	if g.err != nil {
		return nil, g.err
	}
	if g.answer == "" {
		return &genai.GenerateContentResponse{}, nil
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: g.answer}}}}},
	}, nil
}

func TestGemini(t *testing.T) {
	ctx := context.Background()

	t.Run("json", func(t *testing.T) {
		gen := &generator{answer: `{"sentiment": "Bearish", "score": -0.65, "reasoning": "guidance cut"}`}
		got, err := (&Gemini{Models: gen}).Score(ctx, "guidance cut")
		require.NoError(t, err)
		assert.Equal(t, Result{Text: "guidance cut", Label: Bearish, Score: -0.65, Method: "gemini"}, got)
		assert.Equal(t, DefaultModel, gen.model)
		assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	})

	t.Run("code block and clipping", func(t *testing.T) {
		gen := &generator{answer: "```json\n{\"sentiment\": \"Bullish\", \"score\": 1.7}\n```"}
		got, err := (&Gemini{Models: gen, Model: "m"}).Score(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.Score)
		assert.Equal(t, "m", gen.model)
	})

	t.Run("errors", func(t *testing.T) {
		quota := errors.New("429")
		_, err := (&Gemini{Models: &generator{err: quota}}).Score(ctx, "x")
		assert.ErrorIs(t, err, quota)

		_, err = (&Gemini{Models: &generator{}}).Score(ctx, "x")
		assert.ErrorIs(t, err, ErrEmptyResponse)

		_, err = (&Gemini{Models: &generator{answer: "I think it is bullish"}}).Score(ctx, "x")
		assert.Error(t, err)

		_, err = (&Gemini{Models: &generator{answer: `{"sentiment": "Bullish"}`}}).Score(ctx, "x")
		assert.Error(t, err)
	})

	t.Run("falls back to lexicon", func(t *testing.T) {
		c := Chain{&Gemini{Models: &generator{err: errors.New("429")}}, Lexicon{}}
		got, err := c.Score(ctx, "shares surge")
		require.NoError(t, err)
		assert.Equal(t, "lexicon", got.Method)
	})
}
