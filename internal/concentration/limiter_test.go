package concentration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/sizing"
)

var testNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func openPosition(symbol, group string) *position.Position {
	return position.New(symbol, position.Strangle, group, []position.Leg{
		{Side: position.Put, Strike: 95, Quantity: -1, Expiry: testNow.AddDate(0, 0, 45)},
	}, 2.0, testNow)
}

func TestRegimeAdjustment(t *testing.T) {
	assert.InDelta(t, 1.0, RegimeAdjustment(15), 1e-12)
	assert.InDelta(t, 1.0, RegimeAdjustment(24.9), 1e-12)
	assert.InDelta(t, 0.6, RegimeAdjustment(25), 1e-12)
	assert.InDelta(t, 0.6, RegimeAdjustment(34.9), 1e-12)
	assert.InDelta(t, 0.4, RegimeAdjustment(35), 1e-12)
	assert.InDelta(t, 0.4, RegimeAdjustment(80), 1e-12)
}

func TestCap_ShrinksWithVIX(t *testing.T) {
	groups := []GroupConfig{{
		Name:       "equity-index",
		Symbols:    []string{"SPY"},
		EquityLike: true,
		BaseLimits: map[int]int{3: 3},
	}}
	l := NewLimiter(groups)

	// Spec scenario: base cap 3 shrinks to floor(3*0.4) = 1 at VIX 35.
	assert.Equal(t, 3, l.Cap("equity-index", sizing.Phase3, 15))
	assert.Equal(t, 1, l.Cap("equity-index", sizing.Phase3, 27))
	assert.Equal(t, 1, l.Cap("equity-index", sizing.Phase3, 35))
}

func TestCanAdd_RegimeShrinkRejectsSecondPosition(t *testing.T) {
	groups := []GroupConfig{{
		Name:       "equity-index",
		Symbols:    []string{"SPY", "QQQ"},
		EquityLike: true,
		BaseLimits: map[int]int{3: 3},
	}}
	l := NewLimiter(groups)
	l.Track(openPosition("SPY", "equity-index"))

	// At VIX 15 the second addition fits under the base cap of 3.
	assert.True(t, l.CanAdd("QQQ", sizing.Phase3, 15))
	// At VIX 35 the cap is 1 and the group is full.
	assert.False(t, l.CanAdd("QQQ", sizing.Phase3, 35))
}

func TestCanAdd_AtCap(t *testing.T) {
	l := NewLimiter(DefaultGroups())

	// Phase2 equity-index base cap is 2.
	l.Track(openPosition("SPY", "equity-index"))
	assert.True(t, l.CanAdd("QQQ", sizing.Phase2, 18))
	l.Track(openPosition("QQQ", "equity-index"))
	assert.False(t, l.CanAdd("IWM", sizing.Phase2, 18))

	// Other groups are unaffected.
	assert.True(t, l.CanAdd("GC", sizing.Phase2, 18))
}

func TestTrackUntrack(t *testing.T) {
	l := NewLimiter(DefaultGroups())
	p := openPosition("SPY", "equity-index")

	l.Track(p)
	assert.Equal(t, 1, l.OpenCount("equity-index"))
	l.Untrack(p)
	assert.Zero(t, l.OpenCount("equity-index"))
}

func TestUngroupedSymbolsGetTightestCap(t *testing.T) {
	l := NewLimiter(DefaultGroups())

	assert.Equal(t, "ungrouped", l.GroupFor("WEIRD"))
	// One slot at calm VIX, zero once the adjustment bites.
	assert.True(t, l.CanAdd("WEIRD", sizing.Phase4, 15))
	l.Track(openPosition("WEIRD", ""))
	assert.False(t, l.CanAdd("WEIRD2", sizing.Phase4, 15))
}

func TestMonitorConcentration_EmptyBook(t *testing.T) {
	l := NewLimiter(DefaultGroups())
	report := l.MonitorConcentration(nil, 20)
	assert.Equal(t, NoRisk, report.Risk)
	assert.Zero(t, report.TotalPositions)
}

func TestMonitorConcentration_CrashScenario(t *testing.T) {
	// Spec scenario: VIX 65.7, six positions all in one equity group.
	l := NewLimiter(DefaultGroups())
	var book []*position.Position
	for _, sym := range []string{"SPY", "QQQ", "IWM", "ES", "NQ", "MES"} {
		p := openPosition(sym, "equity-index")
		l.Track(p)
		book = append(book, p)
	}

	report := l.MonitorConcentration(book, 65.7)
	require.Equal(t, ExtremeRisk, report.Risk)
	assert.Equal(t, 6, report.EquityLikePositions)
	assert.InDelta(t, 1.0, report.EquityConcentration, 1e-12)

	// And the seventh same-group addition is blocked: cap floor(n*0.4).
	assert.False(t, l.CanAdd("MNQ", sizing.Phase4, 65.7))
}

func TestMonitorConcentration_Tiers(t *testing.T) {
	l := NewLimiter(DefaultGroups())

	mixed := func(equity, other int) []*position.Position {
		var book []*position.Position
		for i := 0; i < equity; i++ {
			book = append(book, openPosition("SPY", "equity-index"))
		}
		for i := 0; i < other; i++ {
			book = append(book, openPosition("GC", "metals"))
		}
		return book
	}

	// 80% equity at calm VIX: HIGH on concentration alone.
	assert.Equal(t, HighRisk, l.MonitorConcentration(mixed(4, 1), 18).Risk)
	// 60% equity: MODERATE.
	assert.Equal(t, ModerateRisk, l.MonitorConcentration(mixed(3, 2), 18).Risk)
	// 40% equity: LOW.
	assert.Equal(t, LowRisk, l.MonitorConcentration(mixed(2, 3), 18).Risk)
	// 66% equity but VIX above 30: EXTREME.
	assert.Equal(t, ExtremeRisk, l.MonitorConcentration(mixed(4, 2), 32).Risk)

	// Closed positions don't count.
	book := mixed(4, 1)
	for _, p := range book {
		p.Status = position.StatusClosed
	}
	assert.Equal(t, NoRisk, l.MonitorConcentration(book, 18).Risk)
}
