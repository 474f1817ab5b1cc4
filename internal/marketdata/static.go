package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StaticProvider serves quotes from an in-memory snapshot, typically
// the baseline file the evaluation loop starts from. The stream applies
// live updates into it, so it doubles as the fallback when the cache
// misses or no cache is deployed.
type StaticProvider struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	vix    float64
}

// NewStaticProvider seeds the provider with a starting quote set and
// VIX level.
func NewStaticProvider(quotes []Quote, vix float64) *StaticProvider {
	m := make(map[string]Quote, len(quotes))
	for _, q := range quotes {
		m[q.Symbol] = q
	}
	return &StaticProvider{quotes: m, vix: vix}
}

func (p *StaticProvider) Quote(_ context.Context, symbol string) (Quote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("quote %s: %w", symbol, ErrNotFound)
	}
	return q, nil
}

func (p *StaticProvider) VIX(context.Context) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vix, nil
}

// HistoricalVol serves the realized vol carried on the stored quote,
// satisfying HistVolSource. A quote without one errors so the
// resilience wrapper falls back degraded.
func (p *StaticProvider) HistoricalVol(_ context.Context, symbol string, _ time.Duration) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.quotes[symbol]
	if !ok {
		return 0, fmt.Errorf("histvol %s: %w", symbol, ErrNotFound)
	}
	if q.HistoricalVol <= 0 {
		return 0, fmt.Errorf("histvol %s: no realized vol on quote", symbol)
	}
	return q.HistoricalVol, nil
}

// Apply folds one stream update into the snapshot.
func (p *StaticProvider) Apply(u Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch u.Kind {
	case "quote":
		p.quotes[u.Quote.Symbol] = u.Quote
	case "vix":
		p.vix = u.VIX
	}
}
