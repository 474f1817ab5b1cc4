// Package engine composes the regime classifier, Greeks aggregator,
// sizer, concentration limiter and defensive scheduler into the two
// operations callers actually use: "can I enter this?" and "what must
// happen to existing positions now?".
package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/concentration"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/config"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/defense"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/greeks"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/metrics"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/regime"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/sizing"
)

// Snapshot is the already-fetched market context for one evaluation
// tick. The engine never reaches out for data itself.
type Snapshot struct {
	Time         time.Time
	VIX          float64
	AccountValue float64
	BPUsage      float64 // current buying-power usage fraction
	Session      greeks.Session

	Underlyings       map[string]greeks.Underlying
	MarginPerContract map[string]float64 // per-contract BP requirement by symbol
}

// Engine holds all configuration and mutable state explicitly; there
// are no package-level singletons.
type Engine struct {
	cfg       *config.Config
	limiter   *concentration.Limiter
	scheduler *defense.Scheduler
	metrics   *metrics.Registry // optional
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches a Prometheus registry to the engine.
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

// New builds an engine from configuration. A nil config gets defaults.
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:       cfg,
		limiter:   concentration.NewLimiter(cfg.Groups),
		scheduler: defense.NewScheduler(cfg.Defense),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limiter exposes the concentration limiter for the execution layer's
// open/close notifications.
func (e *Engine) Limiter() *concentration.Limiter { return e.limiter }

// EntryRequest asks whether a new position may be opened.
type EntryRequest struct {
	Symbol       string
	Strategy     position.StrategyKind
	RequestedQty int
}

// EntryDecision is the admission verdict. When denied, Reason carries
// the most restrictive failing check; when allowed, SuggestedSize may be
// smaller than the requested quantity.
type EntryDecision struct {
	Allowed       bool              `json:"allowed"`
	Reason        string            `json:"reason"`
	SuggestedSize int               `json:"suggested_size"`
	BoundBy       sizing.Constraint `json:"bound_by"`
	Regime        regime.Regime     `json:"regime"`
	Phase         sizing.Phase      `json:"phase"`
}

// CanEnter runs the admission pipeline: request validation, a what-if
// portfolio-Greeks check, the concentration cap, then sizing. Checks are
// ordered most restrictive first, so the reason reported for a denial is
// the one hardest to argue with.
func (e *Engine) CanEnter(req EntryRequest, open []*position.Position, snap Snapshot) EntryDecision {
	r := regime.Classify(snap.VIX)
	phase := sizing.PhaseForAccountValue(snap.AccountValue)
	decision := EntryDecision{Regime: r, Phase: phase}

	defer func() {
		e.recordAdmission(decision)
	}()

	if req.RequestedQty <= 0 {
		decision.Reason = "invalid_request: quantity must be positive"
		return decision
	}
	if !req.Strategy.Valid() {
		decision.Reason = fmt.Sprintf("invalid_request: unknown strategy %d", req.Strategy)
		return decision
	}

	e.limiter.SyncOpen(open)

	// What-if check: a book already in delta breach admits nothing new.
	agg := greeks.NewAggregator(e.cfg.RiskFreeRate, snap.VIX, snap.Session)
	portfolio := agg.PortfolioGreeks(open, e.lookup(snap), snap.Time)
	for _, v := range greeks.CheckRiskLimits(portfolio.Greeks, e.cfg.Limits) {
		if v.Suggested == greeks.BlockNewPositions {
			decision.Reason = fmt.Sprintf("risk_limit: %s", v)
			return decision
		}
	}

	if !e.limiter.CanAdd(req.Symbol, phase, snap.VIX) {
		group := e.limiter.GroupFor(req.Symbol)
		decision.Reason = fmt.Sprintf("concentration_cap: group %s at %d/%d",
			group, e.limiter.OpenCount(group), e.limiter.Cap(group, phase, snap.VIX))
		return decision
	}

	edge := e.cfg.EdgeFor(req.Strategy)
	kelly := sizing.KellyFraction(edge.WinRate, edge.AvgWin, edge.AvgLoss)
	size := sizing.PositionSize(sizing.SizeRequest{
		Strategy:      req.Strategy,
		AccountValue:  snap.AccountValue,
		Regime:        r,
		Phase:         phase,
		Kelly:         kelly,
		BPPerContract: snap.MarginPerContract[req.Symbol],
	})

	decision.Allowed = true
	decision.BoundBy = size.BoundBy
	decision.SuggestedSize = size.Contracts

	// During an Extreme-regime spike, new deployment is additionally
	// bounded by the spike cash cap.
	if spikeCap := regime.SpikeDeploymentCap(r, snap.AccountValue, e.cfg.Spike); spikeCap > 0 && snap.MarginPerContract[req.Symbol] > 0 {
		if n := int(spikeCap / snap.MarginPerContract[req.Symbol]); n < decision.SuggestedSize {
			decision.SuggestedSize = n
			decision.BoundBy = sizing.ConstraintSpikeCap
		}
	}

	if req.RequestedQty < decision.SuggestedSize {
		decision.SuggestedSize = req.RequestedQty
	}
	decision.Reason = fmt.Sprintf("sized_by_%s", decision.BoundBy)

	log.Info().
		Str("symbol", req.Symbol).
		Str("strategy", req.Strategy.String()).
		Int("requested", req.RequestedQty).
		Int("suggested", decision.SuggestedSize).
		Str("bound_by", decision.BoundBy.String()).
		Str("regime", r.String()).
		Msg("entry admitted")
	return decision
}

func (e *Engine) lookup(snap Snapshot) greeks.UnderlyingLookup {
	return func(symbol string) (greeks.Underlying, bool) {
		u, ok := snap.Underlyings[symbol]
		return u, ok
	}
}

func (e *Engine) recordAdmission(d EntryDecision) {
	if e.metrics == nil {
		return
	}
	outcome := "denied"
	if d.Allowed {
		outcome = "allowed"
	}
	reason := d.Reason
	if i := strings.IndexByte(reason, ':'); i > 0 {
		reason = reason[:i]
	}
	e.metrics.Admissions.WithLabelValues(outcome, reason).Inc()
}

// sortActions orders by priority URGENT > HIGH > MEDIUM > LOW, keeping
// the source order of equal-priority actions stable.
func sortActions(actions []TickAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority > actions[j].Priority
	})
}
