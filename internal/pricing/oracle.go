// Package pricing defines the price oracle contract and a mock
// implementation used in place of a real market-data integration.
package pricing

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Oracle supplies current prices per symbol, batched. Implementations
// must tolerate unknown symbols: a best-effort non-zero price is
// preferred over failing the whole batch.
type Oracle interface {
	FetchBatchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// basePrices is the mock quote table. Unknown symbols fall through to a
// random price in the 50–150 band.
var basePrices = map[string]float64{
	"AAPL":  185.92,
	"MSFT":  416.78,
	"GOOGL": 175.09,
	"AMZN":  182.81,
	"META":  491.83,
	"TSLA":  175.34,
	"JPM":   204.79,
	"BAC":   40.27,
	"WMT":   68.10,
	"JNJ":   146.57,
	"PFE":   26.96,
	"XOM":   115.25,
	"CVX":   149.84,
	"KO":    63.47,
	"PEP":   170.62,
	"DIS":   111.99,
	"NFLX":  633.20,
}

// MockOracle serves prices from a fixed table with a small random
// fluctuation to simulate market movement.
type MockOracle struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockOracle creates a mock oracle with the given random seed.
// A fixed seed makes price sequences reproducible in tests.
func NewMockOracle(seed int64) *MockOracle {
	return &MockOracle{rng: rand.New(rand.NewSource(seed))}
}

var _ Oracle = (*MockOracle)(nil)

// FetchBatchPrices returns a price for every requested symbol.
// Known symbols fluctuate ±2% around their base quote; unknown symbols
// get a random price between $50 and $150 rather than an error.
func (o *MockOracle) FetchBatchPrices(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		if _, ok := prices[symbol]; ok {
			continue
		}
		prices[symbol] = o.price(symbol)
	}
	return prices, nil
}

func (o *MockOracle) price(symbol string) decimal.Decimal {
	if base, ok := basePrices[strings.ToUpper(symbol)]; ok {
		fluctuation := o.rng.Float64()*4 - 2 // -2% to +2%
		return decimal.NewFromFloat(base * (1 + fluctuation/100)).Round(2)
	}
	return decimal.NewFromFloat(o.rng.Float64()*100 + 50).Round(2)
}
