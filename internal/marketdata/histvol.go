package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// HistVolConfig tunes the resilience wrapper around the realized-vol
// source.
type HistVolConfig struct {
	// ConsecutiveFailures before the breaker trips open.
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
	// RequestsPerSecond throttles the upstream; Burst bounds catch-up.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// StaticVol is what callers get when the source is down. Matches the
	// aggregator's own last-resort default for equity underlyings.
	StaticVol float64 `yaml:"static_vol"`
}

// DefaultHistVolConfig returns the production resilience settings.
func DefaultHistVolConfig() HistVolConfig {
	return HistVolConfig{
		ConsecutiveFailures: 3,
		OpenTimeout:         2 * time.Minute,
		RequestsPerSecond:   2,
		Burst:               4,
		StaticVol:           0.20,
	}
}

// HistVolProvider guards the slow realized-vol call with a rate limiter
// and a circuit breaker, falling back to a static level rather than
// erroring. Degraded data with a flag beats no data.
type HistVolProvider struct {
	source  HistVolSource
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	static  float64
}

// NewHistVolProvider wraps source with cfg's resilience settings.
func NewHistVolProvider(source HistVolSource, cfg HistVolConfig) *HistVolProvider {
	if cfg.ConsecutiveFailures == 0 {
		cfg = DefaultHistVolConfig()
	}
	settings := gobreaker.Settings{
		Name:    "histvol",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit state change")
		},
	}
	return &HistVolProvider{
		source:  source,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		static:  cfg.StaticVol,
	}
}

// HistoricalVol returns the realized vol for symbol over window. When
// the breaker is open, the limiter rejects, or the source errors, it
// returns the static fallback and degraded=true instead of an error.
func (p *HistVolProvider) HistoricalVol(ctx context.Context, symbol string, window time.Duration) (vol float64, degraded bool) {
	if err := p.limiter.Wait(ctx); err != nil {
		return p.static, true
	}

	v, err := p.breaker.Execute(func() (interface{}, error) {
		return p.sourceVol(ctx, symbol, window)
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("histvol fallback to static")
		return p.static, true
	}
	return v.(float64), false
}

func (p *HistVolProvider) sourceVol(ctx context.Context, symbol string, window time.Duration) (float64, error) {
	return p.source.HistoricalVol(ctx, symbol, window)
}
