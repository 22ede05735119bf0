package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is set.
const DefaultModel = "gemini-2.5-flash"

// Generator is the part of the genai client the Gemini scorer uses.
// *genai.Models implements it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini scores texts with a Gemini model.
type Gemini struct {
	Models Generator
	Model  string
	// Label distinguishes several Gemini tiers, one per api key.
	Label string
}

// NewGemini connects to the Gemini API with apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("cannot initialize Gemini's client: %w", err)
	}
	label := "gemini"
	if len(apiKey) > 4 {
		label += "..." + apiKey[len(apiKey)-4:]
	}
	return &Gemini{Models: client.Models, Model: model, Label: label}, nil
}

func (g *Gemini) Name() string {
	if g.Label != "" {
		return g.Label
	}
	return "gemini"
}

const prompt = `You are a quantitative financial analyst specializing in market sentiment analysis.

Analyze the following text and determine its market sentiment.

Text: %q

Respond with ONLY a JSON object:
{"sentiment": "Bullish" or "Bearish" or "Neutral", "score": <float between -1.0 and 1.0>, "reasoning": "<one sentence explanation>"}

Scoring guide:
- Strong Bullish: +0.7 to +1.0 (very positive outlook, strong buy signals)
- Bullish: +0.3 to +0.7 (positive outlook, growth expected)
- Neutral: -0.3 to +0.3 (no clear direction, mixed signals)
- Bearish: -0.7 to -0.3 (negative outlook, decline expected)
- Strong Bearish: -1.0 to -0.7 (very negative, crash/crisis signals)

Be precise and financially logical. Base your analysis only on the given text.`

// ErrEmptyResponse is returned when the model answers nothing.
var ErrEmptyResponse = errors.New("empty model response")

func (g *Gemini) Score(ctx context.Context, text string) (Result, error) {
	model := g.Model
	if model == "" {
		model = DefaultModel
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}
	resp, err := g.Models.GenerateContent(ctx, model, genai.Text(fmt.Sprintf(prompt, text)), cfg)
	if err != nil {
		return Result{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Result{}, ErrEmptyResponse
	}
	var answer strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		answer.WriteString(p.Text)
	}
	return parseAnswer(text, answer.String())
}

// parseAnswer decodes the json object of the model, possibly wrapped in a
// markdown code block.
func parseAnswer(text, answer string) (Result, error) {
	s := strings.TrimSpace(answer)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	var a struct {
		Sentiment string   `json:"sentiment"`
		Score     *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &a); err != nil {
		return Result{}, fmt.Errorf("invalid model response %q: %w", answer, err)
	}
	if a.Score == nil || math.IsNaN(*a.Score) {
		return Result{}, fmt.Errorf("model response without score: %q", answer)
	}
	score := round4(clip(*a.Score))
	return Result{Text: text, Label: LabelOf(score), Score: score, Method: "gemini"}, nil
}
