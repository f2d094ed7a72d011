package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"valuemetrix/internal/logger"
)

const maxAttempts = 3

// textModel abstracts the single model call the generator needs, so the
// retry and fallback logic can be tested without network access.
type textModel interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// geminiModel calls the Gemini API through google.golang.org/genai.
type geminiModel struct {
	client *genai.Client
	model  string
}

func (m *geminiModel) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", m.model)
	}
	return text, nil
}

// GeminiGenerator produces portfolio narratives via Gemini with bounded
// retry, degrading to the templated fallback when attempts exhaust.
type GeminiGenerator struct {
	model         textModel
	retryInterval time.Duration
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGenerator{
		model:         &geminiModel{client: client, model: model},
		retryInterval: time.Second,
	}, nil
}

// newGeneratorWithModel wires an arbitrary model, for tests.
func newGeneratorWithModel(m textModel) *GeminiGenerator {
	return &GeminiGenerator{model: m, retryInterval: time.Millisecond}
}

// Generate asks the model for a narrative, retrying up to three times
// with exponential backoff (1s, 2s). A response that is not valid JSON
// counts as a failed attempt. When all attempts fail the templated
// fallback is returned; this method never surfaces an upstream error.
func (g *GeminiGenerator) Generate(ctx context.Context, holdings []HoldingValue, cash decimal.Decimal) string {
	prompt := buildPrompt(holdings, cash)

	var narrative string
	operation := func() error {
		text, err := g.model.GenerateText(ctx, prompt)
		if err != nil {
			return err
		}

		cleaned := cleanModelOutput(text)
		var n Narrative
		if err := json.Unmarshal([]byte(cleaned), &n); err != nil {
			return fmt.Errorf("model returned invalid JSON: %w", err)
		}

		// Re-serialize so stored payloads have a canonical shape.
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		narrative = string(data)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.retryInterval
	policy.RandomizationFactor = 0
	policy.Multiplier = 2

	err := backoff.Retry(operation,
		backoff.WithMaxRetries(backoff.WithContext(policy, ctx), maxAttempts-1))
	if err != nil {
		logger.Get().Warnw("insight generation degraded to fallback", "error", err)
		return Fallback(holdings, cash)
	}
	return narrative
}
