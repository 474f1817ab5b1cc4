package defense

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

var testNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

// strangleAt builds an open short strangle expiring dte days out for a
// 5.00 entry credit.
func strangleAt(dte int) *position.Position {
	expiry := testNow.AddDate(0, 0, dte)
	return position.New("SPY", position.Strangle, "equity-index", []position.Leg{
		{Side: position.Put, Strike: 95, Quantity: -1, Expiry: expiry},
		{Side: position.Call, Strike: 105, Quantity: -1, Expiry: expiry},
	}, 5.00, testNow.AddDate(0, 0, -30))
}

// costFor returns the CurrentCost that produces the given P&L percent of
// credit on a 5.00-credit position.
func costFor(pnlPct float64) float64 {
	return 5.00 * (1 - pnlPct)
}

func TestEvaluate_AbsoluteDTERule(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	a := s.Evaluate(strangleAt(21), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: 4.00})
	assert.Equal(t, MustClose, a.Verdict)
	assert.Equal(t, PriorityUrgent, a.Priority)
	assert.Equal(t, "dte_management", a.Reason)

	under := s.Evaluate(strangleAt(5), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: 4.00})
	assert.Equal(t, MustClose, under.Verdict)
}

// Regression: the time-based exit is unconditional. A position at the
// threshold with a massive profit still closes — the rule must never be
// gated on P&L.
func TestEvaluate_DTERuleIgnoresProfit(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	a := s.Evaluate(strangleAt(21), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: costFor(5.0)})
	require.Equal(t, MustClose, a.Verdict)
	assert.Equal(t, "dte_management", a.Reason)

	// Equally unconditional for a deep loss.
	b := s.Evaluate(strangleAt(21), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: costFor(-5.0)})
	require.Equal(t, MustClose, b.Verdict)
	assert.Equal(t, "dte_management", b.Reason)
}

func TestEvaluate_JustPastThresholdMonitors(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	// 22 DTE with 10% profit (below the 50% target): keep watching.
	a := s.Evaluate(strangleAt(22), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: costFor(0.10)})
	assert.Equal(t, Monitor, a.Verdict)
	assert.Equal(t, PriorityLow, a.Priority)
	assert.Equal(t, 22, a.DTE)
}

func TestEvaluate_ProfitTarget(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	a := s.Evaluate(strangleAt(40), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: costFor(0.50)})
	assert.Equal(t, MustClose, a.Verdict)
	assert.Equal(t, PriorityHigh, a.Priority)
	assert.Equal(t, "profit_target", a.Reason)
}

// Regression: a position that could not be priced this tick reports a
// NaN closing cost. The percent-of-credit rules must not fire off it —
// a zero cost would look like a 100% win — while the time-based exit
// still applies.
func TestEvaluate_UnpricedSkipsCreditRules(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	a := s.Evaluate(strangleAt(45), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: math.NaN()})
	assert.Equal(t, Monitor, a.Verdict)
	assert.Equal(t, "healthy", a.Reason)
	assert.Zero(t, a.PnLPct)

	b := s.Evaluate(strangleAt(21), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: math.NaN()})
	assert.Equal(t, MustClose, b.Verdict)
	assert.Equal(t, "dte_management", b.Reason)
}

func TestEvaluate_LossLimit(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	a := s.Evaluate(strangleAt(40), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: costFor(-2.0)})
	assert.Equal(t, MustClose, a.Verdict)
	assert.Equal(t, PriorityUrgent, a.Priority)
	assert.Equal(t, "loss_limit", a.Reason)

	// A smaller loss keeps monitoring.
	b := s.Evaluate(strangleAt(40), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: costFor(-1.5)})
	assert.Equal(t, Monitor, b.Verdict)
}

func TestEvaluate_VolSpikeRollsNotForced(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	a := s.Evaluate(strangleAt(40), Inputs{Now: testNow, Spot: 100, VIX: 28, CurrentCost: costFor(0.10)})
	assert.Equal(t, RollPending, a.Verdict)
	assert.Equal(t, PriorityMedium, a.Priority)
	assert.Equal(t, "vol_spike", a.Reason)
}

func TestEvaluate_StrikeProximityFlagsOnly(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	// Spot at 104: within 3% of the 105 call strike.
	a := s.Evaluate(strangleAt(40), Inputs{Now: testNow, Spot: 104, VIX: 15, CurrentCost: costFor(0.10)})
	assert.Equal(t, Monitor, a.Verdict)
	assert.Contains(t, a.Flags, "defensive-adjustment-needed")
	assert.Equal(t, PriorityMedium, a.Priority)

	// Spot far from both strikes: clean monitor.
	b := s.Evaluate(strangleAt(40), Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: costFor(0.10)})
	assert.Empty(t, b.Flags)
	assert.Equal(t, PriorityLow, b.Priority)
}

func TestEvaluate_RuleOrderDTEBeatsEverything(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	// At 21 DTE with a vol spike, a threatened strike and a profit all at
	// once, the time rule still owns the verdict.
	a := s.Evaluate(strangleAt(21), Inputs{Now: testNow, Spot: 104.5, VIX: 40, CurrentCost: costFor(0.60)})
	assert.Equal(t, MustClose, a.Verdict)
	assert.Equal(t, "dte_management", a.Reason)
}

func TestEvaluate_DebitStructuresSkipCreditRules(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	p := strangleAt(40)
	p.EntryCredit = -1.50 // net debit

	a := s.Evaluate(p, Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: 0})
	assert.Equal(t, Monitor, a.Verdict)
	assert.Zero(t, a.PnLPct)
}

func TestEvaluateAll_SkipsClosed(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	open := strangleAt(40)
	closed := strangleAt(40)
	closed.Status = position.StatusClosed

	actions := s.EvaluateAll([]*position.Position{open, closed}, func(*position.Position) Inputs {
		return Inputs{Now: testNow, Spot: 100, VIX: 15, CurrentCost: 4}
	})
	require.Len(t, actions, 1)
	assert.Equal(t, open.ID, actions[0].PositionID)
}

func TestSelectRollExpiry(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	available := []time.Time{
		testNow.AddDate(0, 0, 14), // below min roll window
		testNow.AddDate(0, 0, 35),
		testNow.AddDate(0, 0, 47),
		testNow.AddDate(0, 0, 58),
		testNow.AddDate(0, 0, 90), // above max roll window
	}

	// Strangle prefers 45 DTE: 47 is the closest in-window candidate.
	exp, ok := s.SelectRollExpiry(available, testNow, position.Strangle)
	require.True(t, ok)
	assert.Equal(t, testNow.AddDate(0, 0, 47), exp)

	// Ratio spread prefers 30 DTE: 35 wins.
	exp, ok = s.SelectRollExpiry(available, testNow, position.RatioSpread)
	require.True(t, ok)
	assert.Equal(t, testNow.AddDate(0, 0, 35), exp)

	// Nothing inside the window.
	_, ok = s.SelectRollExpiry([]time.Time{testNow.AddDate(0, 0, 7)}, testNow, position.Strangle)
	assert.False(t, ok)
}

func TestSelectRollStrike(t *testing.T) {
	s := NewScheduler(DefaultConfig())

	chain := []StrikeCandidate{
		{Strike: 90, Delta: -0.10},
		{Strike: 95, Delta: -0.17},
		{Strike: 100, Delta: -0.30},
		{Strike: 105, Delta: -0.45},
	}

	// Strangle targets 0.16 per leg.
	best, ok := s.SelectRollStrike(chain, position.Strangle)
	require.True(t, ok)
	assert.InDelta(t, 95.0, best.Strike, 1e-12)

	// Naked put targets 0.30.
	best, ok = s.SelectRollStrike(chain, position.NakedPut)
	require.True(t, ok)
	assert.InDelta(t, 100.0, best.Strike, 1e-12)

	_, ok = s.SelectRollStrike(nil, position.Strangle)
	assert.False(t, ok)
}
