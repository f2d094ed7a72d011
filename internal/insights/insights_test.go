package insights

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func sampleHoldings() []HoldingValue {
	return []HoldingValue{
		{Symbol: "AAPL", Name: "Apple Inc", Quantity: decimal.NewFromInt(10), Price: decimal.NewFromFloat(185.92), Value: decimal.NewFromFloat(1859.20)},
		{Symbol: "JPM", Name: "JPMorgan Chase", Quantity: decimal.NewFromInt(5), Price: decimal.NewFromFloat(204.79), Value: decimal.NewFromFloat(1023.95)},
	}
}

// failingModel always errors, driving the generator into its fallback.
type failingModel struct {
	calls int
}

func (m *failingModel) GenerateText(context.Context, string) (string, error) {
	m.calls++
	return "", errors.New("upstream unavailable")
}

// fencedModel returns valid JSON wrapped in a markdown fence.
type fencedModel struct{}

func (fencedModel) GenerateText(context.Context, string) (string, error) {
	return "```json\n{\"summary\":\"s\",\"diversification\":[\"a\",\"b\",\"c\"],\"investmentThesis\":\"t\",\"recommendation\":\"r\"}\n```", nil
}

// garbageModel returns non-JSON text on every attempt.
type garbageModel struct {
	calls int
}

func (m *garbageModel) GenerateText(context.Context, string) (string, error) {
	m.calls++
	return "I'm sorry, I cannot produce JSON today.", nil
}

func TestFallback_AlwaysParseable(t *testing.T) {
	raw := Fallback(sampleHoldings(), decimal.NewFromInt(1000))

	n, ok := Parse(raw)
	if !ok {
		t.Fatalf("fallback payload did not parse: %s", raw)
	}
	if n.Summary == "" || n.InvestmentThesis == "" || n.Recommendation == "" {
		t.Error("fallback narrative has empty fields")
	}
	if len(n.Diversification) != 3 {
		t.Errorf("expected 3 diversification observations, got %d", len(n.Diversification))
	}
}

func TestFallback_EmptyPortfolio(t *testing.T) {
	raw := Fallback(nil, decimal.Zero)
	if _, ok := Parse(raw); !ok {
		t.Fatalf("empty-portfolio fallback did not parse: %s", raw)
	}
}

func TestGenerate_FallsBackAfterRetries(t *testing.T) {
	model := &failingModel{}
	gen := newGeneratorWithModel(model)

	raw := gen.Generate(context.Background(), sampleHoldings(), decimal.NewFromInt(500))

	if model.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", model.calls)
	}
	if _, ok := Parse(raw); !ok {
		t.Fatalf("degraded result did not parse: %s", raw)
	}
}

func TestGenerate_InvalidJSONCountsAsFailure(t *testing.T) {
	model := &garbageModel{}
	gen := newGeneratorWithModel(model)

	raw := gen.Generate(context.Background(), sampleHoldings(), decimal.NewFromInt(500))

	if model.calls != 3 {
		t.Errorf("expected 3 attempts against a garbage model, got %d", model.calls)
	}
	if _, ok := Parse(raw); !ok {
		t.Fatalf("expected fallback payload, got: %s", raw)
	}
}

func TestGenerate_StripsMarkdownFences(t *testing.T) {
	gen := newGeneratorWithModel(fencedModel{})

	raw := gen.Generate(context.Background(), sampleHoldings(), decimal.NewFromInt(500))

	var n Narrative
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		t.Fatalf("stored payload is not canonical JSON: %v", err)
	}
	if n.Summary != "s" || len(n.Diversification) != 3 {
		t.Errorf("unexpected narrative: %+v", n)
	}
}

func TestParse_MalformedReadsAsAbsent(t *testing.T) {
	if _, ok := Parse("{not json"); ok {
		t.Error("malformed payload should read as absent")
	}
	if _, ok := Parse(""); ok {
		t.Error("empty payload should read as absent")
	}
}
