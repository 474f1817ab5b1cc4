// Package sizing turns regime, account phase and edge statistics into a
// recommended contract count.
package sizing

import (
	"math"
)

const (
	// kellyConservativeFactor scales raw Kelly down to quarter-Kelly.
	kellyConservativeFactor = 0.25

	// KellyFloor and KellyCeiling clamp the final fraction.
	KellyFloor   = 0.05
	KellyCeiling = 0.25
)

// KellyFraction estimates the capital fraction to risk from win rate and
// payoff statistics, scaled to quarter-Kelly and clamped to
// [KellyFloor, KellyCeiling].
//
// avgLoss must be negative (it is a loss magnitude with its sign); any
// input that breaks the arithmetic — non-finite values, zero payoff
// ratio, avgLoss >= 0 — returns the floor rather than failing, because a
// broken edge estimate should shrink deployment, not halt it.
func KellyFraction(winRate, avgWin, avgLoss float64) float64 {
	if !finite(winRate) || !finite(avgWin) || !finite(avgLoss) {
		return KellyFloor
	}
	if avgLoss >= 0 || avgWin <= 0 || winRate < 0 || winRate > 1 {
		return KellyFloor
	}

	b := avgWin / math.Abs(avgLoss)
	if b == 0 || !finite(b) {
		return KellyFloor
	}

	kelly := winRate - (1-winRate)/b
	scaled := kelly * kellyConservativeFactor

	if !finite(scaled) || scaled < KellyFloor {
		return KellyFloor
	}
	if scaled > KellyCeiling {
		return KellyCeiling
	}
	return scaled
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
