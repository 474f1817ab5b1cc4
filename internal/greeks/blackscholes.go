// Package greeks derives option sensitivities from the Black-Scholes
// closed form and aggregates them to position and portfolio level.
//
// Unit conventions, applied everywhere in this package:
//   - Delta, Gamma: per-contract sensitivities summed across contracts
//     (a short 0.16-delta contract contributes -0.16).
//   - Theta: dollars per day, using the 100-share contract multiplier.
//   - Vega: dollars per one volatility point (1%), 100-share multiplier.
package greeks

import (
	"math"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

const (
	// ContractMultiplier is the standard equity-option share multiplier.
	ContractMultiplier = 100.0

	// MinTimeToExpiry floors T at one calendar day so expiring contracts
	// keep finite sensitivities.
	MinTimeToExpiry = 1.0 / 365.0

	// DefaultRiskFreeRate is used when the integrator supplies none.
	DefaultRiskFreeRate = 0.05
)

// Greeks holds the four first-order sensitivities plus the model price.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Price float64 `json:"price"`
}

// Zero is the documented sentinel returned when the closed form cannot be
// evaluated (σ√T ≤ 0 or degenerate spot/strike). Callers treat it as "no
// sensitivity information", never as an error.
var Zero = Greeks{}

// normCDF is the standard normal cumulative distribution.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// Compute evaluates Black-Scholes Greeks for a single contract.
//
// T is floored at MinTimeToExpiry. Invalid inputs (non-positive spot,
// strike or volatility, non-finite anything) return the Zero sentinel:
// per the engine's error design, a bad pricing input degrades the Greeks
// contribution to nothing rather than propagating a failure mid-tick.
func Compute(side position.OptionSide, spot, strike, t, sigma, r float64) Greeks {
	if !finite(spot) || !finite(strike) || !finite(t) || !finite(sigma) || !finite(r) {
		return Zero
	}
	if spot <= 0 || strike <= 0 || sigma <= 0 {
		return Zero
	}
	if t < MinTimeToExpiry {
		t = MinTimeToExpiry
	}

	sqrtT := math.Sqrt(t)
	volT := sigma * sqrtT
	if volT <= 0 {
		return Zero
	}

	d1 := (math.Log(spot/strike) + (r+0.5*sigma*sigma)*t) / volT
	d2 := d1 - volT

	pdfD1 := normPDF(d1)
	discount := strike * math.Exp(-r*t)

	g := Greeks{
		Gamma: pdfD1 / (spot * volT),
		Vega:  spot * pdfD1 * sqrtT, // dollars per 1.00 vol; scaled below
	}
	// Per vol-point, with contract multiplier.
	g.Vega = g.Vega / 100.0 * ContractMultiplier

	thetaCommon := -(spot * pdfD1 * sigma) / (2 * sqrtT)

	switch side {
	case position.Call:
		g.Delta = normCDF(d1)
		g.Price = spot*normCDF(d1) - discount*normCDF(d2)
		g.Theta = (thetaCommon - r*discount*normCDF(d2)) / 365.0 * ContractMultiplier
	case position.Put:
		g.Delta = normCDF(d1) - 1
		g.Price = discount*normCDF(-d2) - spot*normCDF(-d1)
		g.Theta = (thetaCommon + r*discount*normCDF(-d2)) / 365.0 * ContractMultiplier
	default:
		return Zero
	}

	return g
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Add returns the component-wise sum.
func (g Greeks) Add(o Greeks) Greeks {
	return Greeks{
		Delta: g.Delta + o.Delta,
		Gamma: g.Gamma + o.Gamma,
		Theta: g.Theta + o.Theta,
		Vega:  g.Vega + o.Vega,
		Price: g.Price + o.Price,
	}
}

// Scale multiplies every component by the signed quantity. Short legs
// pass a negative quantity and so negate their contribution.
func (g Greeks) Scale(qty float64) Greeks {
	return Greeks{
		Delta: g.Delta * qty,
		Gamma: g.Gamma * qty,
		Theta: g.Theta * qty,
		Vega:  g.Vega * qty,
		Price: g.Price * qty,
	}
}

// IsZero reports whether g is the sentinel (or a true all-zero result,
// which callers treat the same way).
func (g Greeks) IsZero() bool {
	return g == Zero
}
