package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistVol struct {
	vol   float64
	err   error
	calls int
}

func (f *fakeHistVol) HistoricalVol(ctx context.Context, symbol string, window time.Duration) (float64, error) {
	f.calls++
	return f.vol, f.err
}

func TestHistVol_PassThroughWhenHealthy(t *testing.T) {
	src := &fakeHistVol{vol: 0.17}
	p := NewHistVolProvider(src, DefaultHistVolConfig())

	vol, degraded := p.HistoricalVol(context.Background(), "SPY", 30*24*time.Hour)
	assert.InDelta(t, 0.17, vol, 1e-9)
	assert.False(t, degraded)
	assert.Equal(t, 1, src.calls)
}

func TestHistVol_SourceErrorFallsBackDegraded(t *testing.T) {
	src := &fakeHistVol{err: errors.New("upstream down")}
	p := NewHistVolProvider(src, DefaultHistVolConfig())

	vol, degraded := p.HistoricalVol(context.Background(), "SPY", 30*24*time.Hour)
	assert.InDelta(t, 0.20, vol, 1e-9)
	assert.True(t, degraded)
}

func TestHistVol_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	src := &fakeHistVol{err: errors.New("upstream down")}
	cfg := DefaultHistVolConfig()
	cfg.ConsecutiveFailures = 2
	cfg.RequestsPerSecond = 1000 // keep the limiter out of the way
	cfg.Burst = 1000
	p := NewHistVolProvider(src, cfg)

	for i := 0; i < 5; i++ {
		vol, degraded := p.HistoricalVol(context.Background(), "SPY", 30*24*time.Hour)
		assert.InDelta(t, cfg.StaticVol, vol, 1e-9)
		assert.True(t, degraded)
	}
	// Once open, the source stops being hit.
	assert.Equal(t, 2, src.calls)
}

func TestHistVol_CancelledContextDegrades(t *testing.T) {
	src := &fakeHistVol{vol: 0.17}
	cfg := DefaultHistVolConfig()
	cfg.RequestsPerSecond = 0.0001 // force the limiter to block
	cfg.Burst = 0
	p := NewHistVolProvider(src, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	vol, degraded := p.HistoricalVol(ctx, "SPY", 30*24*time.Hour)
	require.True(t, degraded)
	assert.InDelta(t, cfg.StaticVol, vol, 1e-9)
	assert.Equal(t, 0, src.calls)
}

func TestHistVol_ZeroConfigGetsDefaults(t *testing.T) {
	src := &fakeHistVol{vol: 0.12}
	p := NewHistVolProvider(src, HistVolConfig{})

	vol, degraded := p.HistoricalVol(context.Background(), "GLD", 30*24*time.Hour)
	assert.InDelta(t, 0.12, vol, 1e-9)
	assert.False(t, degraded)
}
