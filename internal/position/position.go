// Package position defines the tracked option-position model shared by the
// sizing, concentration and defensive layers.
package position

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StrategyKind is the closed set of premium-selling structures the engine
// sizes and manages. Anything outside this set is rejected at the
// boundary, not dispatched on ad hoc strings.
type StrategyKind int

const (
	Strangle StrategyKind = iota
	IronCondor
	PutCreditSpread
	NakedPut
	RatioSpread
	CoveredCall
)

func (k StrategyKind) String() string {
	switch k {
	case Strangle:
		return "strangle"
	case IronCondor:
		return "iron_condor"
	case PutCreditSpread:
		return "put_credit_spread"
	case NakedPut:
		return "naked_put"
	case RatioSpread:
		return "ratio_spread"
	case CoveredCall:
		return "covered_call"
	default:
		return "unknown"
	}
}

// Valid reports whether k is a member of the closed strategy set.
func (k StrategyKind) Valid() bool {
	return k >= Strangle && k <= CoveredCall
}

// ParseStrategyKind maps a config/CLI label onto the closed set. Unknown
// labels fall back to the most defensive template (PutCreditSpread, the
// defined-risk structure) and report the miss to the caller.
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch s {
	case "strangle":
		return Strangle, nil
	case "iron_condor":
		return IronCondor, nil
	case "put_credit_spread":
		return PutCreditSpread, nil
	case "naked_put":
		return NakedPut, nil
	case "ratio_spread":
		return RatioSpread, nil
	case "covered_call":
		return CoveredCall, nil
	default:
		return PutCreditSpread, fmt.Errorf("unknown strategy kind %q", s)
	}
}

// StrategyParams carries per-strategy management parameters supplied by
// the integrator.
type StrategyParams struct {
	PreferredDTE    int     `yaml:"preferred_dte"`     // roll target days to expiration
	TargetLegDelta  float64 `yaml:"target_leg_delta"`  // |delta| aimed at per short leg
	HardContractCap int     `yaml:"hard_contract_cap"` // absolute sizing ceiling
}

// DefaultStrategyParams returns the management template for each strategy
// kind. Unknown kinds get the PutCreditSpread template, the most
// conservative defined-risk shape.
func DefaultStrategyParams(k StrategyKind) StrategyParams {
	switch k {
	case Strangle:
		return StrategyParams{PreferredDTE: 45, TargetLegDelta: 0.16, HardContractCap: 10}
	case IronCondor:
		return StrategyParams{PreferredDTE: 45, TargetLegDelta: 0.20, HardContractCap: 15}
	case NakedPut:
		return StrategyParams{PreferredDTE: 45, TargetLegDelta: 0.30, HardContractCap: 8}
	case RatioSpread:
		return StrategyParams{PreferredDTE: 30, TargetLegDelta: 0.25, HardContractCap: 5}
	case CoveredCall:
		return StrategyParams{PreferredDTE: 30, TargetLegDelta: 0.30, HardContractCap: 20}
	default:
		return StrategyParams{PreferredDTE: 45, TargetLegDelta: 0.20, HardContractCap: 10}
	}
}

// Status is the persistence lifecycle of a position.
type Status int

const (
	StatusOpen Status = iota
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// OptionSide distinguishes calls from puts for Greeks sign conventions.
type OptionSide int

const (
	Call OptionSide = iota
	Put
)

func (s OptionSide) String() string {
	if s == Put {
		return "put"
	}
	return "call"
}

// Leg is one option contract within a position. Quantity is signed:
// negative for short legs.
type Leg struct {
	Side     OptionSide `json:"side"`
	Strike   float64    `json:"strike"`
	Quantity int        `json:"quantity"`
	Expiry   time.Time  `json:"expiry"`
}

// GreeksSnapshot is the last computed aggregate sensitivities for a
// position. Ephemeral: recomputed every tick, never persisted.
type GreeksSnapshot struct {
	Delta      float64   `json:"delta"`
	Gamma      float64   `json:"gamma"`
	Theta      float64   `json:"theta"`
	Vega       float64   `json:"vega"`
	ComputedAt time.Time `json:"computed_at"`
	// Degraded marks Greeks derived from fallback volatility rather
	// than an observed IV.
	Degraded bool `json:"degraded"`
}

// Position is one tracked premium-selling position. Each position belongs
// to exactly one correlation group.
type Position struct {
	ID          string       `json:"id" db:"id"`
	Symbol      string       `json:"symbol" db:"symbol"`
	Strategy    StrategyKind `json:"strategy" db:"strategy"`
	Group       string       `json:"correlation_group" db:"correlation_group"`
	Legs        []Leg        `json:"legs"`
	EntryTime   time.Time    `json:"entry_time" db:"entry_time"`
	EntryCredit float64      `json:"entry_credit" db:"entry_credit"` // negative for debit structures
	Status      Status       `json:"status" db:"status"`

	// Greeks is the ephemeral per-tick snapshot; not written to the store.
	Greeks *GreeksSnapshot `json:"greeks,omitempty" db:"-"`
}

// New creates an open position with a fresh identifier.
func New(symbol string, strategy StrategyKind, group string, legs []Leg, entryCredit float64, now time.Time) *Position {
	return &Position{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Strategy:    strategy,
		Group:       group,
		Legs:        legs,
		EntryTime:   now,
		EntryCredit: entryCredit,
		Status:      StatusOpen,
	}
}

// EarliestExpiry returns the nearest leg expiration. Defensive-exit rules
// key off the leg that runs out of road first.
func (p *Position) EarliestExpiry() time.Time {
	var earliest time.Time
	for _, leg := range p.Legs {
		if earliest.IsZero() || leg.Expiry.Before(earliest) {
			earliest = leg.Expiry
		}
	}
	return earliest
}

// DaysToExpiry returns whole calendar days until the earliest leg expiry,
// clamped at zero.
func (p *Position) DaysToExpiry(now time.Time) int {
	exp := p.EarliestExpiry()
	if exp.IsZero() || !exp.After(now) {
		return 0
	}
	return int(exp.Sub(now).Hours() / 24)
}

// Strikes returns the distinct strikes across all legs.
func (p *Position) Strikes() []float64 {
	seen := make(map[float64]bool, len(p.Legs))
	out := make([]float64, 0, len(p.Legs))
	for _, leg := range p.Legs {
		if !seen[leg.Strike] {
			seen[leg.Strike] = true
			out = append(out, leg.Strike)
		}
	}
	return out
}
