package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/greeks"
)

// DefaultHistVolWindow is the realized-vol lookback used when a quote
// carries no historical vol of its own.
const DefaultHistVolWindow = 30 * 24 * time.Hour

// SnapshotSource assembles the engine's per-tick market context from
// the provider boundary: quotes read through the cache, realized vol
// through the resilience wrapper.
type SnapshotSource struct {
	quotes  Provider
	histvol *HistVolProvider
	window  time.Duration
}

// NewSnapshotSource composes the read path. histvol may be nil when no
// realized-vol source is configured; a zero window gets
// DefaultHistVolWindow.
func NewSnapshotSource(quotes Provider, histvol *HistVolProvider, window time.Duration) *SnapshotSource {
	if window <= 0 {
		window = DefaultHistVolWindow
	}
	return &SnapshotSource{quotes: quotes, histvol: histvol, window: window}
}

// Underlyings resolves market context for each symbol. Symbols with no
// quote are left out of the map; the aggregator counts those positions
// as skipped rather than pricing them off nothing.
func (s *SnapshotSource) Underlyings(ctx context.Context, symbols []string) map[string]greeks.Underlying {
	out := make(map[string]greeks.Underlying, len(symbols))
	for _, sym := range symbols {
		q, err := s.quotes.Quote(ctx, sym)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("no quote for tick")
			continue
		}
		u := q.Underlying()
		if u.HistoricalVol <= 0 && s.histvol != nil {
			u.HistoricalVol, _ = s.histvol.HistoricalVol(ctx, sym, s.window)
		}
		out[sym] = u
	}
	return out
}

// VIX reads the index level off the quote path.
func (s *SnapshotSource) VIX(ctx context.Context) (float64, error) {
	return s.quotes.VIX(ctx)
}
