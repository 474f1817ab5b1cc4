package greeks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveVolatility_ImpliedWins(t *testing.T) {
	v := ResolveVolatility(VolInputs{ImpliedVol: 0.32, VIX: 20, HistoricalVol: 0.18})
	assert.Equal(t, SourceImplied, v.Source)
	assert.False(t, v.Degraded)
	assert.InDelta(t, 0.32, v.Sigma, 1e-12)
}

func TestResolveVolatility_ImpliedClamped(t *testing.T) {
	low := ResolveVolatility(VolInputs{ImpliedVol: 0.01})
	assert.Equal(t, MinVolatility, low.Sigma)
	assert.Equal(t, SourceImplied, low.Source)

	high := ResolveVolatility(VolInputs{ImpliedVol: 9.0})
	assert.Equal(t, MaxVolatility, high.Sigma)
}

func TestResolveVolatility_VIXDerived(t *testing.T) {
	v := ResolveVolatility(VolInputs{VIX: 20, Spot: 100, Strike: 100, Class: IndexUnderlying})
	assert.Equal(t, SourceVIXDerived, v.Source)
	assert.True(t, v.Degraded)
	assert.InDelta(t, 0.20, v.Sigma, 1e-12) // ATM index: no adjustments

	// OTM strikes pick up the smile adjustment.
	otm := ResolveVolatility(VolInputs{VIX: 20, Spot: 100, Strike: 80, Class: IndexUnderlying})
	assert.Greater(t, otm.Sigma, v.Sigma)

	// Single names run hotter than the index.
	eq := ResolveVolatility(VolInputs{VIX: 20, Spot: 100, Strike: 100, Class: EquityUnderlying})
	assert.InDelta(t, 0.24, eq.Sigma, 1e-12)

	// Futures products run cooler.
	fut := ResolveVolatility(VolInputs{VIX: 20, Spot: 100, Strike: 100, Class: FuturesUnderlying})
	assert.InDelta(t, 0.18, fut.Sigma, 1e-12)
}

func TestResolveVolatility_HistoricalWithPremium(t *testing.T) {
	v := ResolveVolatility(VolInputs{HistoricalVol: 0.25})
	assert.Equal(t, SourceHistorical, v.Source)
	assert.True(t, v.Degraded)
	assert.InDelta(t, 0.30, v.Sigma, 1e-12) // 0.25 * 1.20
}

func TestResolveVolatility_StaticDefault(t *testing.T) {
	reg := ResolveVolatility(VolInputs{Session: RegularSession})
	assert.Equal(t, SourceStaticDefault, reg.Source)
	assert.True(t, reg.Degraded)
	assert.InDelta(t, 0.20, reg.Sigma, 1e-12)

	ext := ResolveVolatility(VolInputs{Session: ExtendedSession})
	assert.InDelta(t, 0.25, ext.Sigma, 1e-12)
}

func TestResolveVolatility_GarbageInputsNeverEscape(t *testing.T) {
	inputs := []VolInputs{
		{ImpliedVol: math.NaN(), VIX: math.NaN(), HistoricalVol: math.NaN()},
		{ImpliedVol: -1, VIX: -5, HistoricalVol: -2},
		{ImpliedVol: math.Inf(1)},
	}
	for _, in := range inputs {
		v := ResolveVolatility(in)
		assert.GreaterOrEqual(t, v.Sigma, MinVolatility)
		assert.LessOrEqual(t, v.Sigma, MaxVolatility)
		assert.False(t, math.IsNaN(v.Sigma))
	}
}
