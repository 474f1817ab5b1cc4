package defense

import (
	"math"
	"time"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

// StrikeCandidate is a strike with its current model delta, supplied by
// the option-chain layer.
type StrikeCandidate struct {
	Strike float64 `json:"strike"`
	Delta  float64 `json:"delta"`
}

// RollTarget is the expiration and per-leg strikes chosen for a roll.
type RollTarget struct {
	Expiry  time.Time         `json:"expiry"`
	DTE     int               `json:"dte"`
	Strikes []StrikeCandidate `json:"strikes"`
}

// SelectRollExpiry picks the available expiration inside
// [MinRollDTE, MaxRollDTE] whose DTE is closest to the strategy's
// preferred DTE. Returns false when no expiration fits the window.
func (s *Scheduler) SelectRollExpiry(available []time.Time, now time.Time, strategy position.StrategyKind) (time.Time, bool) {
	preferred := position.DefaultStrategyParams(strategy).PreferredDTE

	var best time.Time
	bestDist := math.MaxInt32
	found := false

	for _, exp := range available {
		dte := int(exp.Sub(now).Hours() / 24)
		if dte < s.config.MinRollDTE || dte > s.config.MaxRollDTE {
			continue
		}
		dist := abs(dte - preferred)
		if !found || dist < bestDist {
			best = exp
			bestDist = dist
			found = true
		}
	}
	return best, found
}

// SelectRollStrike picks the candidate whose |delta| is nearest the
// strategy's per-leg target. Returns false on an empty chain.
func (s *Scheduler) SelectRollStrike(candidates []StrikeCandidate, strategy position.StrategyKind) (StrikeCandidate, bool) {
	target := position.DefaultStrategyParams(strategy).TargetLegDelta

	var best StrikeCandidate
	bestDist := math.Inf(1)
	found := false

	for _, c := range candidates {
		dist := math.Abs(math.Abs(c.Delta) - target)
		if dist < bestDist {
			best = c
			bestDist = dist
			found = true
		}
	}
	return best, found
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
