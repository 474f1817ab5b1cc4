package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/concentration"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/defense"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/greeks"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/metrics"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/regime"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/sizing"
)

// ActionSource identifies which subsystem produced a tick action.
type ActionSource int

const (
	SourceDefense ActionSource = iota
	SourceConcentration
	SourceRiskLimit
)

func (s ActionSource) String() string {
	switch s {
	case SourceDefense:
		return "defense"
	case SourceConcentration:
		return "concentration"
	case SourceRiskLimit:
		return "risk_limit"
	default:
		return "unknown"
	}
}

// TickAction is one required action from an evaluation tick, ready to
// hand to the execution layer in priority order.
type TickAction struct {
	Source      ActionSource     `json:"source"`
	Priority    defense.Priority `json:"priority"`
	Description string           `json:"description"`

	// Exactly one of the payloads below is set, matching Source.
	Defense       *defense.Action                    `json:"defense,omitempty"`
	Violation     *greeks.LimitViolation             `json:"violation,omitempty"`
	Concentration *concentration.ConcentrationReport `json:"concentration,omitempty"`
}

// TickResult is everything one evaluation produced.
type TickResult struct {
	Time          string                            `json:"time"`
	Regime        regime.Regime                     `json:"regime"`
	Actions       []TickAction                      `json:"actions"`
	Portfolio     greeks.PortfolioResult            `json:"portfolio"`
	Violations    []greeks.LimitViolation           `json:"violations"`
	Concentration concentration.ConcentrationReport `json:"concentration"`
	Emergency     sizing.EmergencyDecision          `json:"emergency"`
}

// Tick evaluates every open position and the portfolio as a whole,
// returning the ordered list of required actions: defensive verdicts
// needing an order, concentration alerts, and Greeks limit violations,
// sorted URGENT > HIGH > MEDIUM > LOW.
//
// The tick is synchronous and single-threaded by contract; the position
// set must not be mutated while it runs.
func (e *Engine) Tick(open []*position.Position, snap Snapshot) TickResult {
	var timer *metrics.TickTimer
	if e.metrics != nil {
		timer = e.metrics.StartTick()
	}

	e.limiter.SyncOpen(open)
	r := regime.Classify(snap.VIX)

	result := TickResult{
		Time:   snap.Time.Format("2006-01-02T15:04:05Z07:00"),
		Regime: r,
	}

	// Portfolio Greeks first: the defensive pass reuses the per-position
	// model prices as closing costs.
	agg := greeks.NewAggregator(e.cfg.RiskFreeRate, snap.VIX, snap.Session)
	result.Portfolio = agg.PortfolioGreeks(open, e.lookup(snap), snap.Time)

	costByID := make(map[string]float64, len(result.Portfolio.Positions))
	for _, pr := range result.Portfolio.Positions {
		// A short book carries negative model value; closing it costs
		// the sign-flipped amount.
		costByID[pr.PositionID] = -pr.Greeks.Price
	}

	verdicts := e.scheduler.EvaluateAll(open, func(p *position.Position) defense.Inputs {
		u := snap.Underlyings[p.Symbol]
		cost, priced := costByID[p.ID]
		if !priced {
			// No model price this tick; NaN tells the scheduler to skip
			// the percent-of-credit rules instead of treating the book
			// as fully decayed.
			cost = math.NaN()
		}
		return defense.Inputs{
			Now:         snap.Time,
			Spot:        u.Spot,
			VIX:         snap.VIX,
			CurrentCost: cost,
		}
	})
	for i := range verdicts {
		v := &verdicts[i]
		if v.Verdict == defense.Monitor && len(v.Flags) == 0 {
			continue // healthy positions produce no required action
		}
		desc := v.Reason
		if len(v.Flags) > 0 {
			desc = strings.Join(v.Flags, ",")
		}
		result.Actions = append(result.Actions, TickAction{
			Source:      SourceDefense,
			Priority:    v.Priority,
			Description: fmt.Sprintf("%s %s: %s", v.Verdict, v.Symbol, desc),
			Defense:     v,
		})
		if e.metrics != nil {
			e.metrics.DefensiveActions.WithLabelValues(v.Verdict.String(), v.Priority.String()).Inc()
		}
	}

	result.Violations = greeks.CheckRiskLimits(result.Portfolio.Greeks, e.cfg.Limits)
	for i := range result.Violations {
		v := &result.Violations[i]
		result.Actions = append(result.Actions, TickAction{
			Source:      SourceRiskLimit,
			Priority:    severityPriority(v.Severity),
			Description: fmt.Sprintf("portfolio %s", v),
			Violation:   v,
		})
		if e.metrics != nil {
			e.metrics.LimitViolations.WithLabelValues(v.Kind, v.Severity.String()).Inc()
		}
	}

	result.Concentration = e.limiter.MonitorConcentration(open, snap.VIX)
	if result.Concentration.Risk >= concentration.ModerateRisk {
		report := result.Concentration
		result.Actions = append(result.Actions, TickAction{
			Source:        SourceConcentration,
			Priority:      concentrationPriority(report.Risk),
			Description:   report.Summary(),
			Concentration: &report,
		})
	}

	result.Emergency = sizing.EmergencySizing(r, snap.BPUsage)

	sortActions(result.Actions)

	e.updateGauges(r, result, open)
	if timer != nil {
		timer.Stop("ok")
	}

	log.Info().
		Str("regime", r.String()).
		Int("open_positions", openCount(open)).
		Int("actions", len(result.Actions)).
		Int("violations", len(result.Violations)).
		Str("concentration", result.Concentration.Risk.String()).
		Msg("tick evaluated")

	return result
}

func openCount(positions []*position.Position) int {
	n := 0
	for _, p := range positions {
		if p.Status == position.StatusOpen {
			n++
		}
	}
	return n
}

func severityPriority(s greeks.Severity) defense.Priority {
	switch s {
	case greeks.SeverityHigh:
		return defense.PriorityHigh
	case greeks.SeverityMedium:
		return defense.PriorityMedium
	default:
		return defense.PriorityLow
	}
}

func concentrationPriority(r concentration.DisasterRisk) defense.Priority {
	switch r {
	case concentration.ExtremeRisk:
		return defense.PriorityUrgent
	case concentration.HighRisk:
		return defense.PriorityHigh
	default:
		return defense.PriorityMedium
	}
}

func (e *Engine) updateGauges(r regime.Regime, result TickResult, open []*position.Position) {
	if e.metrics == nil {
		return
	}
	e.metrics.ActiveRegime.Set(float64(r))
	e.metrics.PortfolioDelta.Set(result.Portfolio.Greeks.Delta)
	e.metrics.PortfolioTheta.Set(result.Portfolio.Greeks.Theta)
	e.metrics.OpenPositions.Set(float64(openCount(open)))
	e.metrics.ConcentrationRisk.Set(float64(result.Concentration.Risk))
}
