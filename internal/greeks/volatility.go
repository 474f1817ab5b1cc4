package greeks

import (
	"math"

	"github.com/rs/zerolog/log"
)

// Volatility bounds accepted by the pricing model. Anything resolved in
// this package lands inside this interval.
const (
	MinVolatility = 0.05
	MaxVolatility = 5.0
)

// VolSource identifies which rung of the fallback chain produced the
// volatility actually used for pricing.
type VolSource int

const (
	SourceImplied VolSource = iota
	SourceVIXDerived
	SourceHistorical
	SourceStaticDefault
)

func (s VolSource) String() string {
	switch s {
	case SourceImplied:
		return "implied"
	case SourceVIXDerived:
		return "vix_derived"
	case SourceHistorical:
		return "historical"
	case SourceStaticDefault:
		return "static_default"
	default:
		return "unknown"
	}
}

// UnderlyingClass adjusts VIX-derived estimates for the instrument type.
type UnderlyingClass int

const (
	IndexUnderlying UnderlyingClass = iota
	EquityUnderlying
	FuturesUnderlying
)

func (c UnderlyingClass) String() string {
	switch c {
	case IndexUnderlying:
		return "index"
	case EquityUnderlying:
		return "equity"
	case FuturesUnderlying:
		return "futures"
	default:
		return "unknown"
	}
}

// classFactor scales the index-level VIX reading to the underlying class.
// Single names run hotter than the index; futures products cooler.
func (c UnderlyingClass) classFactor() float64 {
	switch c {
	case EquityUnderlying:
		return 1.2
	case FuturesUnderlying:
		return 0.9
	default:
		return 1.0
	}
}

// Session selects the static-default volatility when every other rung of
// the chain has failed.
type Session int

const (
	RegularSession Session = iota
	ExtendedSession
)

// VolInputs carries the raw material for volatility resolution. Zero or
// negative fields mean "unavailable" and push resolution down the chain.
type VolInputs struct {
	ImpliedVol    float64
	VIX           float64
	HistoricalVol float64
	Spot          float64
	Strike        float64
	Class         UnderlyingClass
	Session       Session
}

// ResolvedVol is a volatility the pricing model can use, tagged with its
// provenance. Degraded is set whenever the value did not come from an
// observed implied volatility, so downstream consumers can flag reduced
// confidence.
type ResolvedVol struct {
	Sigma    float64
	Source   VolSource
	Degraded bool
}

// historicalRiskPremium widens historical-vol estimates; realized vol
// systematically understates the implied level sellers are paid.
const historicalRiskPremium = 1.20

// ResolveVolatility walks the fallback chain: observed IV, then a
// VIX-derived estimate adjusted for moneyness and underlying class, then
// historical volatility with a risk premium, then the static session
// default. It always succeeds; the caller learns how much to trust the
// answer from Source and Degraded.
func ResolveVolatility(in VolInputs) ResolvedVol {
	if v := clampVol(in.ImpliedVol); v > 0 {
		return ResolvedVol{Sigma: v, Source: SourceImplied}
	}

	if in.VIX > 0 {
		sigma := in.VIX / 100.0 * in.Class.classFactor() * moneynessAdjustment(in.Spot, in.Strike)
		if v := clampVol(sigma); v > 0 {
			return ResolvedVol{Sigma: v, Source: SourceVIXDerived, Degraded: true}
		}
	}

	if in.HistoricalVol > 0 {
		if v := clampVol(in.HistoricalVol * historicalRiskPremium); v > 0 {
			return ResolvedVol{Sigma: v, Source: SourceHistorical, Degraded: true}
		}
	}

	sigma := 0.20
	if in.Session == ExtendedSession {
		sigma = 0.25
	}
	log.Warn().
		Float64("implied", in.ImpliedVol).
		Float64("vix", in.VIX).
		Float64("historical", in.HistoricalVol).
		Float64("default", sigma).
		Msg("volatility chain exhausted, using static default")
	return ResolvedVol{Sigma: sigma, Source: SourceStaticDefault, Degraded: true}
}

// moneynessAdjustment widens the VIX-derived estimate away from the
// money, a crude stand-in for the volatility smile.
func moneynessAdjustment(spot, strike float64) float64 {
	if spot <= 0 || strike <= 0 {
		return 1.0
	}
	return 1.0 + 0.5*math.Abs(math.Log(spot/strike))
}

// clampVol validates a candidate into [MinVolatility, MaxVolatility].
// Non-finite or non-positive candidates return 0 (meaning: unusable).
func clampVol(sigma float64) float64 {
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= 0 {
		return 0
	}
	if sigma < MinVolatility {
		return MinVolatility
	}
	if sigma > MaxVolatility {
		return MaxVolatility
	}
	return sigma
}
