// Package config loads and defaults the engine's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/concentration"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/defense"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/greeks"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/regime"
)

// EdgeStats is the historical win/loss profile the Kelly estimate runs
// on, keyed per strategy.
type EdgeStats struct {
	WinRate float64 `yaml:"win_rate"`
	AvgWin  float64 `yaml:"avg_win"`
	AvgLoss float64 `yaml:"avg_loss"` // negative: loss magnitude keeps its sign
}

// Config is the complete engine configuration tree.
type Config struct {
	RiskFreeRate float64                     `yaml:"risk_free_rate"`
	Defense      defense.Config              `yaml:"defense"`
	Limits       greeks.RiskLimits           `yaml:"risk_limits"`
	Spike        regime.SpikeConfig          `yaml:"spike"`
	Groups       []concentration.GroupConfig `yaml:"correlation_groups"`
	Edge         map[string]EdgeStats        `yaml:"edge"` // strategy label -> stats
}

// Default returns the production configuration.
func Default() *Config {
	return &Config{
		RiskFreeRate: greeks.DefaultRiskFreeRate,
		Defense:      defense.DefaultConfig(),
		Limits:       greeks.DefaultRiskLimits(),
		Spike:        regime.DefaultSpikeConfig(),
		Groups:       concentration.DefaultGroups(),
		Edge: map[string]EdgeStats{
			"strangle":          {WinRate: 0.78, AvgWin: 220, AvgLoss: -410},
			"iron_condor":       {WinRate: 0.72, AvgWin: 180, AvgLoss: -320},
			"put_credit_spread": {WinRate: 0.70, AvgWin: 120, AvgLoss: -240},
			"naked_put":         {WinRate: 0.75, AvgWin: 260, AvgLoss: -520},
			"ratio_spread":      {WinRate: 0.68, AvgWin: 300, AvgLoss: -450},
			"covered_call":      {WinRate: 0.80, AvgWin: 150, AvgLoss: -280},
		},
	}
}

// Load reads a YAML config file over the defaults, so a partial file
// only overrides what it names.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse engine config YAML: %w", err)
	}
	return cfg, nil
}

// conservativeEdge backs unknown strategies: a coin-flip profile that
// resolves to the Kelly floor.
var conservativeEdge = EdgeStats{WinRate: 0.50, AvgWin: 100, AvgLoss: -100}

// EdgeFor returns the edge profile for a strategy, degrading to the
// conservative default when the strategy has no configured history.
func (c *Config) EdgeFor(k position.StrategyKind) EdgeStats {
	if e, ok := c.Edge[k.String()]; ok {
		return e
	}
	return conservativeEdge
}
