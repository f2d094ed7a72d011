// Package insights turns a priced set of holdings plus cash into a
// narrative analysis. The primary implementation calls Gemini; every
// implementation must degrade to a templated local summary rather than
// surface an upstream failure to the caller.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// HoldingValue is a holding enriched with its current price and value.
type HoldingValue struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

// Narrative is the structured insight payload stored on a portfolio.
type Narrative struct {
	Summary          string   `json:"summary"`
	Diversification  []string `json:"diversification"`
	InvestmentThesis string   `json:"investmentThesis"`
	Recommendation   string   `json:"recommendation"`
}

// Generator produces a serialized Narrative for a portfolio. The result
// is always parseable JSON; implementations swallow upstream failures.
type Generator interface {
	Generate(ctx context.Context, holdings []HoldingValue, cash decimal.Decimal) string
}

// FallbackGenerator always produces the templated narrative. Used when
// no model API key is configured.
type FallbackGenerator struct{}

// Generate implements Generator.
func (FallbackGenerator) Generate(_ context.Context, holdings []HoldingValue, cash decimal.Decimal) string {
	return Fallback(holdings, cash)
}

// Parse decodes a stored insight payload. Malformed content reads as
// absent rather than breaking the page.
func Parse(raw string) (*Narrative, bool) {
	if raw == "" {
		return nil, false
	}
	var n Narrative
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, false
	}
	return &n, true
}

// sectorMap is a simplified symbol-to-sector classification used by both
// the prompt and the fallback.
var sectorMap = map[string]string{
	"AAPL": "Technology", "MSFT": "Technology", "GOOGL": "Technology",
	"META": "Technology", "AMZN": "Consumer Cyclical", "TSLA": "Automotive",
	"JPM": "Financial", "BAC": "Financial", "WMT": "Consumer Defensive",
	"KO": "Consumer Defensive", "PEP": "Consumer Defensive",
	"JNJ": "Healthcare", "PFE": "Healthcare", "XOM": "Energy",
	"CVX": "Energy", "DIS": "Communication Services", "NFLX": "Communication Services",
}

func sectorFor(symbol string) string {
	if s, ok := sectorMap[strings.ToUpper(symbol)]; ok {
		return s
	}
	return "Other"
}

// portfolioStats aggregates the figures both prompt and fallback need.
type portfolioStats struct {
	holdingsValue decimal.Decimal
	totalValue    decimal.Decimal
	cashPct       decimal.Decimal
	topHoldings   []HoldingValue
	sectors       map[string]decimal.Decimal
	concentrated  bool
}

func computeStats(holdings []HoldingValue, cash decimal.Decimal) portfolioStats {
	stats := portfolioStats{sectors: make(map[string]decimal.Decimal)}

	for _, h := range holdings {
		stats.holdingsValue = stats.holdingsValue.Add(h.Value)
		sector := sectorFor(h.Symbol)
		stats.sectors[sector] = stats.sectors[sector].Add(h.Value)
	}
	stats.totalValue = stats.holdingsValue.Add(cash)

	if stats.totalValue.IsPositive() {
		stats.cashPct = cash.Div(stats.totalValue).Mul(decimal.NewFromInt(100)).Round(2)
	}

	if stats.holdingsValue.IsPositive() {
		quarter := stats.holdingsValue.Mul(decimal.NewFromFloat(0.25))
		for _, h := range holdings {
			if h.Value.GreaterThan(quarter) {
				stats.concentrated = true
				break
			}
		}
	}

	sorted := make([]HoldingValue, len(holdings))
	copy(sorted, holdings)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Value.GreaterThan(sorted[j].Value)
	})
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}
	stats.topHoldings = sorted

	return stats
}

func cashPositionLabel(cashPct decimal.Decimal) string {
	switch {
	case cashPct.GreaterThan(decimal.NewFromInt(15)):
		return "high"
	case cashPct.LessThan(decimal.NewFromInt(5)):
		return "low"
	default:
		return "moderate"
	}
}

// Fallback builds the deterministic templated narrative used when the
// upstream generator is unavailable or keeps returning garbage.
func Fallback(holdings []HoldingValue, cash decimal.Decimal) string {
	stats := computeStats(holdings, cash)

	topNames := make([]string, 0, 3)
	for i, h := range stats.topHoldings {
		if i == 3 {
			break
		}
		topNames = append(topNames, h.Name)
	}
	if len(topNames) == 0 {
		topNames = append(topNames, "cash")
	}

	n := Narrative{
		Summary: fmt.Sprintf("This portfolio has %d holdings with a total value of $%s, including $%s in cash (%s%%).",
			len(holdings), stats.totalValue.StringFixed(2), cash.StringFixed(2), stats.cashPct.StringFixed(2)),
		Diversification: []string{
			fmt.Sprintf("The portfolio has %d different holdings, providing some level of diversification.", len(holdings)),
			fmt.Sprintf("Cash position is %s at %s%% of total value.", cashPositionLabel(stats.cashPct), stats.cashPct.StringFixed(2)),
			fmt.Sprintf("Top holdings include %s.", strings.Join(topNames, ", ")),
		},
		InvestmentThesis: "This portfolio appears to be structured for long-term growth with some risk management.",
		Recommendation:   "Consider reviewing your portfolio allocation and consulting with a financial advisor for personalized advice.",
	}

	data, err := json.Marshal(n)
	if err != nil {
		// Narrative contains only strings; this cannot realistically fail.
		return "{}"
	}
	return string(data)
}

// buildPrompt assembles the analyst prompt sent to the model.
func buildPrompt(holdings []HoldingValue, cash decimal.Decimal) string {
	stats := computeStats(holdings, cash)

	var b strings.Builder
	b.WriteString("You are a professional portfolio analyst at ValueMetrix. Analyze this portfolio and provide insightful observations.\n\n")

	fmt.Fprintf(&b, "Portfolio Summary:\n")
	fmt.Fprintf(&b, "- Total Value: $%s\n", stats.totalValue.StringFixed(2))
	fmt.Fprintf(&b, "- Holdings Value: $%s\n", stats.holdingsValue.StringFixed(2))
	fmt.Fprintf(&b, "- Cash: $%s (%s%% of portfolio)\n", cash.StringFixed(2), stats.cashPct.StringFixed(2))
	fmt.Fprintf(&b, "- Number of Holdings: %d\n\n", len(holdings))

	b.WriteString("Top Holdings:\n")
	for i, h := range stats.topHoldings {
		pct := decimal.Zero
		if stats.totalValue.IsPositive() {
			pct = h.Value.Div(stats.totalValue).Mul(decimal.NewFromInt(100)).Round(2)
		}
		fmt.Fprintf(&b, "%d. %s (%s): $%s (%s%% of portfolio)\n", i+1, h.Name, h.Symbol, h.Value.StringFixed(2), pct.StringFixed(2))
	}

	b.WriteString("\nSector Exposure:\n")
	sectors := make([]string, 0, len(stats.sectors))
	for sector := range stats.sectors {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)
	for _, sector := range sectors {
		pct := decimal.Zero
		if stats.holdingsValue.IsPositive() {
			pct = stats.sectors[sector].Div(stats.holdingsValue).Mul(decimal.NewFromInt(100)).Round(2)
		}
		fmt.Fprintf(&b, "- %s: %s%%\n", sector, pct.StringFixed(2))
	}

	b.WriteString("\nRisk Indicators:\n")
	fmt.Fprintf(&b, "- High Concentration: %v\n", stats.concentrated)
	fmt.Fprintf(&b, "- Cash Position: %s\n\n", cashPositionLabel(stats.cashPct))

	b.WriteString(`Based on this data, provide:
1. A concise portfolio summary (2-3 sentences)
2. Three key observations about diversification and risk
3. A one-line investment thesis for this portfolio
4. One actionable recommendation

Return ONLY a valid JSON object with the following structure, no markdown formatting or additional text:
{
  "summary": "...",
  "diversification": ["...", "...", "..."],
  "investmentThesis": "...",
  "recommendation": "..."
}`)

	return b.String()
}

// cleanModelOutput strips markdown code fences the model sometimes wraps
// around its JSON despite instructions.
func cleanModelOutput(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
