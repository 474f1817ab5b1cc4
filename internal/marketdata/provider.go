// Package marketdata defines the provider boundary the engine reads
// market context through, plus the caching, resilience and streaming
// adapters around it. The engine itself never fetches data.
package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/greeks"
)

// ErrNotFound reports that a provider has no data for the symbol.
var ErrNotFound = errors.New("marketdata: symbol not found")

// Quote is one underlying's market state at a point in time.
type Quote struct {
	Symbol        string                 `json:"symbol"`
	Spot          float64                `json:"spot"`
	ImpliedVol    float64                `json:"implied_vol"`    // 0 when no options chain was available
	HistoricalVol float64                `json:"historical_vol"` // 0 when unavailable
	Class         greeks.UnderlyingClass `json:"class"`
	AsOf          time.Time              `json:"as_of"`
}

// Underlying converts a quote into the aggregator's input shape.
func (q Quote) Underlying() greeks.Underlying {
	return greeks.Underlying{
		Spot:          q.Spot,
		ImpliedVol:    q.ImpliedVol,
		HistoricalVol: q.HistoricalVol,
		Class:         q.Class,
	}
}

// Provider serves the market context for evaluation ticks.
type Provider interface {
	// Quote returns the current quote for one underlying.
	Quote(ctx context.Context, symbol string) (Quote, error)
	// VIX returns the current volatility index level.
	VIX(ctx context.Context) (float64, error)
}

// HistVolSource computes realized volatility for one underlying. It is
// the one slow call in the data path, so it gets its own boundary and a
// resilience wrapper.
type HistVolSource interface {
	HistoricalVol(ctx context.Context, symbol string, window time.Duration) (float64, error)
}
