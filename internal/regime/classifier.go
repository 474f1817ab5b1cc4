// Package regime classifies the volatility index into discrete deployment
// regimes that drive capital allocation and concentration limits.
package regime

import (
	"math"
)

// Regime represents a discrete volatility-level bucket
type Regime int

const (
	ExtremelyLow Regime = iota
	Low
	Normal
	Elevated
	High
	Extreme
)

func (r Regime) String() string {
	switch r {
	case ExtremelyLow:
		return "extremely_low"
	case Low:
		return "low"
	case Normal:
		return "normal"
	case Elevated:
		return "elevated"
	case High:
		return "high"
	case Extreme:
		return "extreme"
	default:
		return "unknown"
	}
}

// Band is a half-open VIX interval [Lo, Hi) with its buying-power
// deployment range expressed as account fractions.
type Band struct {
	Lo    float64 `yaml:"lo"`
	Hi    float64 `yaml:"hi"` // +Inf for the top band
	MinBP float64 `yaml:"min_bp"`
	MaxBP float64 `yaml:"max_bp"`
}

// bands partition [0, +Inf); boundary values belong to the higher regime.
var bands = map[Regime]Band{
	ExtremelyLow: {Lo: 0, Hi: 12, MinBP: 0.30, MaxBP: 0.45},
	Low:          {Lo: 12, Hi: 16, MinBP: 0.50, MaxBP: 0.65},
	Normal:       {Lo: 16, Hi: 20, MinBP: 0.55, MaxBP: 0.75},
	Elevated:     {Lo: 20, Hi: 25, MinBP: 0.40, MaxBP: 0.60},
	High:         {Lo: 25, Hi: 35, MinBP: 0.25, MaxBP: 0.40},
	Extreme:      {Lo: 35, Hi: math.Inf(1), MinBP: 0.10, MaxBP: 0.25},
}

// Band returns the VIX interval and deployment range for the regime.
func (r Regime) Band() Band {
	if b, ok := bands[r]; ok {
		return b
	}
	return bands[ExtremelyLow]
}

// Classify maps a VIX level onto exactly one regime. Negative or NaN
// input clamps to ExtremelyLow so a bad feed fails toward the least
// deployment-hungry bucket instead of blowing up the tick.
func Classify(vix float64) Regime {
	if math.IsNaN(vix) || vix < 0 {
		return ExtremelyLow
	}
	switch {
	case vix < 12:
		return ExtremelyLow
	case vix < 16:
		return Low
	case vix < 20:
		return Normal
	case vix < 25:
		return Elevated
	case vix < 35:
		return High
	default:
		return Extreme
	}
}

// SpikeConfig bounds the extra capital that may chase an extreme
// volatility spike.
type SpikeConfig struct {
	CashCap float64 `yaml:"cash_cap"` // absolute dollar ceiling
	Pct     float64 `yaml:"pct"`      // fraction of account value
}

// DefaultSpikeConfig returns the production spike-deployment bounds.
func DefaultSpikeConfig() SpikeConfig {
	return SpikeConfig{
		CashCap: 25000.0,
		Pct:     0.10,
	}
}

// SpikeDeploymentCap returns the bounded deployment cap available during
// an Extreme-regime volatility spike. Zero for every other regime.
func SpikeDeploymentCap(r Regime, accountValue float64, cfg SpikeConfig) float64 {
	if r != Extreme || accountValue <= 0 {
		return 0
	}
	return math.Min(cfg.CashCap, accountValue*cfg.Pct)
}
