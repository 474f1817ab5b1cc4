package greeks

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

// Underlying is the per-symbol market input the aggregator prices from.
// Zero-valued volatility fields mean "unavailable" and engage the
// fallback chain.
type Underlying struct {
	Spot          float64         `json:"spot"`
	ImpliedVol    float64         `json:"implied_vol"`
	HistoricalVol float64         `json:"historical_vol"`
	Class         UnderlyingClass `json:"class"`
}

// UnderlyingLookup resolves market data for a symbol. The second return
// reports whether anything was found.
type UnderlyingLookup func(symbol string) (Underlying, bool)

// PositionResult is the aggregate of one position's signed leg Greeks.
type PositionResult struct {
	PositionID string `json:"position_id"`
	Symbol     string `json:"symbol"`
	Greeks     Greeks `json:"greeks"`
	Degraded   bool   `json:"degraded"` // any leg priced off fallback volatility
	// LegSigmas records the resolved volatility per leg, in leg order;
	// moneyness adjustment makes them differ across strikes.
	LegSigmas []float64 `json:"leg_sigmas"`
}

// PortfolioResult sums position Greeks across all open positions.
type PortfolioResult struct {
	Greeks    Greeks           `json:"greeks"`
	Positions []PositionResult `json:"positions"`
	Degraded  bool             `json:"degraded"`
	Skipped   int              `json:"skipped"` // positions with no market data at all
}

// Aggregator computes position and portfolio Greeks from already-fetched
// market inputs. It holds no mutable state beyond configuration.
type Aggregator struct {
	riskFree float64
	session  Session
	vix      float64
}

// NewAggregator builds an aggregator for one evaluation tick. riskFree
// defaults to DefaultRiskFreeRate when non-positive.
func NewAggregator(riskFree, vix float64, session Session) *Aggregator {
	if riskFree <= 0 {
		riskFree = DefaultRiskFreeRate
	}
	return &Aggregator{riskFree: riskFree, session: session, vix: vix}
}

// PositionGreeks prices every leg and sums the signed contributions.
// Short legs carry negative quantities and negate naturally. A leg the
// model cannot price contributes the Zero sentinel.
func (a *Aggregator) PositionGreeks(p *position.Position, u Underlying, now time.Time) PositionResult {
	res := PositionResult{PositionID: p.ID, Symbol: p.Symbol}

	for _, leg := range p.Legs {
		t := yearsUntil(leg.Expiry, now)

		vol := ResolveVolatility(VolInputs{
			ImpliedVol:    u.ImpliedVol,
			VIX:           a.vix,
			HistoricalVol: u.HistoricalVol,
			Spot:          u.Spot,
			Strike:        leg.Strike,
			Class:         u.Class,
			Session:       a.session,
		})
		if vol.Degraded {
			res.Degraded = true
		}
		res.LegSigmas = append(res.LegSigmas, vol.Sigma)

		g := Compute(leg.Side, u.Spot, leg.Strike, t, vol.Sigma, a.riskFree)
		if g.IsZero() {
			log.Debug().
				Str("position", p.ID).
				Str("symbol", p.Symbol).
				Float64("spot", u.Spot).
				Float64("strike", leg.Strike).
				Msg("leg unpriceable, zero-Greeks sentinel used")
			res.Degraded = true
			continue
		}
		res.Greeks = res.Greeks.Add(g.Scale(float64(leg.Quantity)))
	}

	return res
}

// PortfolioGreeks aggregates all open positions. Positions whose symbol
// has no market data contribute nothing and are counted in Skipped; the
// tick keeps going on whatever can be priced.
func (a *Aggregator) PortfolioGreeks(positions []*position.Position, lookup UnderlyingLookup, now time.Time) PortfolioResult {
	out := PortfolioResult{}

	for _, p := range positions {
		if p.Status != position.StatusOpen {
			continue
		}
		u, ok := lookup(p.Symbol)
		if !ok || u.Spot <= 0 {
			log.Warn().Str("position", p.ID).Str("symbol", p.Symbol).
				Msg("no market data for open position, skipping Greeks")
			out.Skipped++
			out.Degraded = true
			continue
		}

		pr := a.PositionGreeks(p, u, now)
		if pr.Degraded {
			out.Degraded = true
		}
		out.Positions = append(out.Positions, pr)
		out.Greeks = out.Greeks.Add(pr.Greeks)

		p.Greeks = &position.GreeksSnapshot{
			Delta:      pr.Greeks.Delta,
			Gamma:      pr.Greeks.Gamma,
			Theta:      pr.Greeks.Theta,
			Vega:       pr.Greeks.Vega,
			ComputedAt: now,
			Degraded:   pr.Degraded,
		}
	}

	return out
}

// yearsUntil converts an expiry into Black-Scholes time, floored at one
// day.
func yearsUntil(expiry, now time.Time) float64 {
	t := expiry.Sub(now).Hours() / 24.0 / 365.0
	if t < MinTimeToExpiry {
		return MinTimeToExpiry
	}
	return t
}
