package sizing

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/regime"
)

// Constraint names the bound that actually limited a sizing answer.
type Constraint int

const (
	ConstraintBPBudget Constraint = iota
	ConstraintPhaseSlots
	ConstraintKellyBudget
	ConstraintHardCeiling
	ConstraintFloor
	// ConstraintSpikeCap is applied by the admission layer during an
	// Extreme-regime spike, outside the four core bounds.
	ConstraintSpikeCap
)

func (c Constraint) String() string {
	switch c {
	case ConstraintBPBudget:
		return "bp_budget"
	case ConstraintPhaseSlots:
		return "phase_slots"
	case ConstraintKellyBudget:
		return "kelly_budget"
	case ConstraintHardCeiling:
		return "hard_ceiling"
	case ConstraintFloor:
		return "floor"
	case ConstraintSpikeCap:
		return "spike_cap"
	default:
		return "unknown"
	}
}

// SizeRequest carries everything PositionSize needs for one answer.
type SizeRequest struct {
	Strategy      position.StrategyKind
	AccountValue  float64
	Regime        regime.Regime
	Phase         Phase
	Kelly         float64 // output of KellyFraction
	BPPerContract float64 // margin requirement per contract, dollars
}

// SizeResult is a recommended contract count plus which constraint bound
// it, so callers (and tests) can see why the number is what it is.
type SizeResult struct {
	Contracts  int        `json:"contracts"`
	BoundBy    Constraint `json:"bound_by"`
	BPBudget   int        `json:"bp_budget_bound"`
	PhaseSlots int        `json:"phase_slot_bound"`
	KellyBound int        `json:"kelly_bound"`
	HardCap    int        `json:"hard_cap"`
}

// PositionSize computes the recommended contract count as the minimum of
// four explicit bounds, floored at one contract:
//
//  1. BP budget: deployable capital under the tighter of the regime and
//     phase bands, divided by per-contract margin.
//  2. Phase slots: the same capital split evenly across the phase's
//     concurrent-position allowance, so one position cannot consume the
//     whole budget.
//  3. Kelly budget: account value times the Kelly fraction, divided by
//     per-contract margin.
//  4. Hard ceiling: the strategy's absolute contract cap.
//
// A non-positive per-contract margin makes the budget arithmetic
// meaningless; the sizer degrades to the one-contract floor instead of
// guessing.
func PositionSize(req SizeRequest) SizeResult {
	hardCap := position.DefaultStrategyParams(req.Strategy).HardContractCap

	if req.BPPerContract <= 0 || req.AccountValue <= 0 {
		log.Warn().
			Float64("bp_per_contract", req.BPPerContract).
			Float64("account_value", req.AccountValue).
			Msg("unusable sizing inputs, degrading to one-contract floor")
		return SizeResult{Contracts: 1, BoundBy: ConstraintFloor, HardCap: hardCap}
	}

	params := req.Phase.Params()
	deployable := req.AccountValue * MaxBP(req.Regime, req.Phase)

	bpBound := int(math.Floor(deployable / req.BPPerContract))
	slotBound := int(math.Floor(deployable / float64(params.MaxPositions) / req.BPPerContract))
	kellyBound := int(math.Floor(req.AccountValue * req.Kelly / req.BPPerContract))

	res := SizeResult{
		BPBudget:   bpBound,
		PhaseSlots: slotBound,
		KellyBound: kellyBound,
		HardCap:    hardCap,
	}

	res.Contracts, res.BoundBy = minBound(bpBound, slotBound, kellyBound, hardCap)

	if res.Contracts < 1 {
		res.Contracts = 1
		res.BoundBy = ConstraintFloor
	}
	return res
}

// minBound returns the smallest of the four bounds and its identity.
// Ties resolve to the first in constraint order, which is also the order
// the bounds are documented in.
func minBound(bp, slots, kelly, hard int) (int, Constraint) {
	best, by := bp, ConstraintBPBudget
	if slots < best {
		best, by = slots, ConstraintPhaseSlots
	}
	if kelly < best {
		best, by = kelly, ConstraintKellyBudget
	}
	if hard < best {
		best, by = hard, ConstraintHardCeiling
	}
	return best, by
}
