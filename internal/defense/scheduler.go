// Package defense evaluates open positions each tick and decides which
// must be closed, rolled, or merely watched.
package defense

import (
	"fmt"
	"math"

	"time"

	"github.com/rs/zerolog/log"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

// Verdict is the per-position management decision.
type Verdict int

const (
	Monitor Verdict = iota
	RollPending
	MustClose
)

func (v Verdict) String() string {
	switch v {
	case Monitor:
		return "MONITOR"
	case RollPending:
		return "ROLL_PENDING"
	case MustClose:
		return "MUST_CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Priority orders defensive actions for the facade's tick output.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityUrgent:
		return "URGENT"
	default:
		return "UNKNOWN"
	}
}

// Action is one position's verdict with its trigger and priority.
type Action struct {
	PositionID  string   `json:"position_id"`
	Symbol      string   `json:"symbol"`
	Verdict     Verdict  `json:"verdict"`
	Priority    Priority `json:"priority"`
	Reason      string   `json:"reason"`
	TriggeredBy string   `json:"triggered_by"`
	// Flags carries advisories that do not change the verdict, such as
	// defensive-adjustment-needed on strike proximity.
	Flags  []string `json:"flags,omitempty"`
	PnLPct float64  `json:"pnl_pct"`
	DTE    int      `json:"dte"`
}

// Config holds the defensive thresholds.
type Config struct {
	// ManagementDTE is the absolute time-based exit threshold in days.
	ManagementDTE int `yaml:"management_dte"` // default 21

	ProfitTargetPct    float64 `yaml:"profit_target_pct"`    // default 0.50 of credit
	LossMultiple       float64 `yaml:"loss_multiple"`        // default 2.0x credit
	VolSpikeThreshold  float64 `yaml:"vol_spike_threshold"`  // default VIX 25
	StrikeProximityPct float64 `yaml:"strike_proximity_pct"` // default 0.03

	MinRollDTE int `yaml:"min_roll_dte"` // default 30
	MaxRollDTE int `yaml:"max_roll_dte"` // default 60
}

// DefaultConfig returns the production defensive thresholds.
func DefaultConfig() Config {
	return Config{
		ManagementDTE:      21,
		ProfitTargetPct:    0.50,
		LossMultiple:       2.0,
		VolSpikeThreshold:  25.0,
		StrikeProximityPct: 0.03,
		MinRollDTE:         30,
		MaxRollDTE:         60,
	}
}

// Scheduler runs the per-position defensive state machine
// OPEN -> {MONITOR, ROLL_PENDING, MUST_CLOSE} -> CLOSED.
type Scheduler struct {
	config Config
}

// NewScheduler creates a scheduler; a zero ManagementDTE gets the
// default configuration.
func NewScheduler(config Config) *Scheduler {
	if config.ManagementDTE <= 0 {
		config = DefaultConfig()
	}
	return &Scheduler{config: config}
}

// Inputs is the market context for one position's evaluation.
type Inputs struct {
	Now  time.Time
	Spot float64
	VIX  float64
	// CurrentCost is what closing the position costs right now (debit to
	// buy back). PnL on a credit structure is EntryCredit - CurrentCost.
	// NaN marks a position that could not be priced this tick; the
	// percent-of-credit rules are skipped for it rather than acting on a
	// made-up value.
	CurrentCost float64
}

// Evaluate decides the verdict for one open position.
//
// The days-to-expiration rule is absolute and runs before everything
// else: at or under the management threshold the position is closed, no
// matter how profitable or underwater it is. Do not add P&L conditions
// to that branch; the unconditional semantics are the contract, and the
// regression test in this package will fail any attempt to weaken it.
func (s *Scheduler) Evaluate(p *position.Position, in Inputs) Action {
	dte := p.DaysToExpiry(in.Now)
	priced := !math.IsNaN(in.CurrentCost)
	pnlPct := 0.0
	if priced {
		pnlPct = pnlPercent(p.EntryCredit, in.CurrentCost)
	}

	action := Action{
		PositionID: p.ID,
		Symbol:     p.Symbol,
		PnLPct:     pnlPct,
		DTE:        dte,
	}

	// Absolute rule: time-based exit, unconditional.
	if dte <= s.config.ManagementDTE {
		action.Verdict = MustClose
		action.Priority = PriorityUrgent
		action.Reason = "dte_management"
		action.TriggeredBy = fmt.Sprintf("%d DTE <= %d day management threshold", dte, s.config.ManagementDTE)
		return action
	}

	// Secondary rules, evaluated only past the absolute check. The
	// percent-of-credit rules need a real closing cost; an unpriced
	// position falls through to the cost-free rules below.
	if priced && p.EntryCredit > 0 && pnlPct >= s.config.ProfitTargetPct {
		action.Verdict = MustClose
		action.Priority = PriorityHigh
		action.Reason = "profit_target"
		action.TriggeredBy = fmt.Sprintf("P&L %.0f%% >= %.0f%% of credit", pnlPct*100, s.config.ProfitTargetPct*100)
		return action
	}

	if priced && p.EntryCredit > 0 && pnlPct <= -s.config.LossMultiple {
		action.Verdict = MustClose
		action.Priority = PriorityUrgent
		action.Reason = "loss_limit"
		action.TriggeredBy = fmt.Sprintf("loss %.0f%% of credit breached %.0f%% limit", -pnlPct*100, s.config.LossMultiple*100)
		return action
	}

	if in.VIX > s.config.VolSpikeThreshold {
		action.Verdict = RollPending
		action.Priority = PriorityMedium
		action.Reason = "vol_spike"
		action.TriggeredBy = fmt.Sprintf("VIX %.1f above %.1f spike threshold", in.VIX, s.config.VolSpikeThreshold)
		return action
	}

	action.Verdict = Monitor
	action.Priority = PriorityLow
	action.Reason = "healthy"

	if strike, dist, near := s.nearestThreatenedStrike(p, in.Spot); near {
		action.Flags = append(action.Flags, "defensive-adjustment-needed")
		action.Priority = PriorityMedium
		action.TriggeredBy = fmt.Sprintf("spot %.2f within %.1f%% of strike %.2f", in.Spot, dist*100, strike)
		log.Debug().Str("position", p.ID).Float64("strike", strike).
			Float64("distance_pct", dist*100).Msg("strike challenged")
	}

	return action
}

// EvaluateAll runs the scheduler over every open position. resolve
// supplies each position's market context, since spot and closing cost
// are per-instrument.
func (s *Scheduler) EvaluateAll(positions []*position.Position, resolve func(*position.Position) Inputs) []Action {
	actions := make([]Action, 0, len(positions))
	for _, p := range positions {
		if p.Status != position.StatusOpen {
			continue
		}
		actions = append(actions, s.Evaluate(p, resolve(p)))
	}
	return actions
}

// nearestThreatenedStrike reports the closest strike within the
// proximity window of spot.
func (s *Scheduler) nearestThreatenedStrike(p *position.Position, spot float64) (strike, distance float64, near bool) {
	if spot <= 0 {
		return 0, 0, false
	}
	best := math.Inf(1)
	for _, k := range p.Strikes() {
		if k <= 0 {
			continue
		}
		d := math.Abs(spot-k) / k
		if d <= s.config.StrikeProximityPct && d < best {
			best = d
			strike = k
			near = true
		}
	}
	return strike, best, near
}

// pnlPercent expresses P&L as a fraction of the entry credit. Positive
// means the short premium has decayed in the seller's favor. Debit or
// zero-credit structures return 0: percent-of-credit rules don't apply.
func pnlPercent(entryCredit, currentCost float64) float64 {
	if entryCredit <= 0 {
		return 0
	}
	return (entryCredit - currentCost) / entryCredit
}
