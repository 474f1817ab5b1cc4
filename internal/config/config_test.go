package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.InDelta(t, 0.05, cfg.RiskFreeRate, 1e-9)
	assert.Equal(t, 21, cfg.Defense.ManagementDTE)
	assert.InDelta(t, 50.0, cfg.Limits.MaxAbsDelta, 1e-9)
	assert.NotEmpty(t, cfg.Groups)
	assert.Contains(t, cfg.Edge, "strangle")
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
risk_free_rate: 0.03
defense:
  management_dte: 21
  profit_target_pct: 0.60
  loss_multiple: 2
  vol_spike_threshold: 25
  strike_proximity_pct: 0.03
  min_roll_dte: 30
  max_roll_dte: 60
edge:
  strangle:
    win_rate: 0.80
    avg_win: 250
    avg_loss: -400
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.03, cfg.RiskFreeRate, 1e-9)
	assert.InDelta(t, 0.60, cfg.Defense.ProfitTargetPct, 1e-9)
	assert.InDelta(t, 0.80, cfg.Edge["strangle"].WinRate, 1e-9)

	// Untouched sections keep production defaults.
	assert.InDelta(t, 50.0, cfg.Limits.MaxAbsDelta, 1e-9)
	assert.NotEmpty(t, cfg.Groups)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read engine config")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defense: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse engine config")
}

func TestEdgeFor(t *testing.T) {
	cfg := Default()

	edge := cfg.EdgeFor(position.Strangle)
	assert.InDelta(t, 0.78, edge.WinRate, 1e-9)

	// Strategies with no history degrade to the coin-flip profile.
	cfg.Edge = map[string]EdgeStats{}
	edge = cfg.EdgeFor(position.Strangle)
	assert.InDelta(t, 0.50, edge.WinRate, 1e-9)
	assert.InDelta(t, -100.0, edge.AvgLoss, 1e-9)
}
