package sizing

import (
	"math"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/regime"
)

// Phase is the account-growth tier. Higher phases unlock more concurrent
// positions and a wider buying-power band.
type Phase int

const (
	Phase1 Phase = iota + 1
	Phase2
	Phase3
	Phase4
)

func (p Phase) String() string {
	switch p {
	case Phase1:
		return "phase1"
	case Phase2:
		return "phase2"
	case Phase3:
		return "phase3"
	case Phase4:
		return "phase4"
	default:
		return "unknown"
	}
}

// PhaseParams carries the per-tier limits.
type PhaseParams struct {
	MinAccountValue float64 `yaml:"min_account_value"`
	MaxPositions    int     `yaml:"max_positions"`
	BaseBP          float64 `yaml:"base_bp"`
	MaxBP           float64 `yaml:"max_bp"`
}

var phaseParams = map[Phase]PhaseParams{
	Phase1: {MinAccountValue: 0, MaxPositions: 3, BaseBP: 0.35, MaxBP: 0.50},
	Phase2: {MinAccountValue: 40000, MaxPositions: 5, BaseBP: 0.45, MaxBP: 0.60},
	Phase3: {MinAccountValue: 75000, MaxPositions: 7, BaseBP: 0.50, MaxBP: 0.70},
	Phase4: {MinAccountValue: 150000, MaxPositions: 10, BaseBP: 0.55, MaxBP: 0.80},
}

// Params returns the tier limits, falling back to Phase1 (the most
// restrictive tier) for anything outside the closed set.
func (p Phase) Params() PhaseParams {
	if params, ok := phaseParams[p]; ok {
		return params
	}
	return phaseParams[Phase1]
}

// PhaseForAccountValue maps an account value onto its tier. Negative or
// NaN values clamp to Phase1.
func PhaseForAccountValue(accountValue float64) Phase {
	if math.IsNaN(accountValue) || accountValue < 0 {
		return Phase1
	}
	switch {
	case accountValue >= phaseParams[Phase4].MinAccountValue:
		return Phase4
	case accountValue >= phaseParams[Phase3].MinAccountValue:
		return Phase3
	case accountValue >= phaseParams[Phase2].MinAccountValue:
		return Phase2
	default:
		return Phase1
	}
}

// MaxBP is the deployable buying-power fraction: the tighter of the
// regime band and the phase band.
func MaxBP(r regime.Regime, p Phase) float64 {
	return math.Min(r.Band().MaxBP, p.Params().MaxBP)
}

// ConservativeBP is the floor deployment used when the engine wants the
// most cautious read of both bands.
func ConservativeBP(r regime.Regime, p Phase) float64 {
	return math.Min(r.Band().MinBP, p.Params().BaseBP)
}
