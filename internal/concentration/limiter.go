// Package concentration enforces per-correlation-group position caps and
// watches for a single correlated bet masquerading as diversification.
package concentration

import (
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/sizing"
)

// GroupConfig describes one correlation group: which symbols belong to
// it, the per-phase base position limit, and whether the instruments are
// equity-like for the disaster-risk monitor.
type GroupConfig struct {
	Name       string        `yaml:"name"`
	Symbols    []string      `yaml:"symbols"`
	EquityLike bool          `yaml:"equity_like"`
	BaseLimits map[int]int   `yaml:"base_limits"` // phase number -> base cap
}

// DefaultGroups returns the production correlation-group map.
func DefaultGroups() []GroupConfig {
	return []GroupConfig{
		{
			Name:       "equity-index",
			Symbols:    []string{"SPY", "QQQ", "IWM", "ES", "MES", "NQ", "MNQ"},
			EquityLike: true,
			BaseLimits: map[int]int{1: 1, 2: 2, 3: 3, 4: 4},
		},
		{
			Name:       "metals",
			Symbols:    []string{"GC", "MGC", "GLD", "SI", "SLV"},
			EquityLike: false,
			BaseLimits: map[int]int{1: 1, 2: 1, 3: 2, 4: 3},
		},
		{
			Name:       "energy",
			Symbols:    []string{"CL", "MCL", "USO", "NG"},
			EquityLike: false,
			BaseLimits: map[int]int{1: 1, 2: 1, 3: 2, 4: 2},
		},
		{
			Name:       "bonds",
			Symbols:    []string{"ZB", "ZN", "TLT"},
			EquityLike: false,
			BaseLimits: map[int]int{1: 1, 2: 2, 3: 2, 4: 3},
		},
		{
			Name:       "currencies",
			Symbols:    []string{"6E", "6B", "6A", "FXE"},
			EquityLike: false,
			BaseLimits: map[int]int{1: 1, 2: 1, 3: 2, 4: 2},
		},
	}
}

// RegimeAdjustment shrinks group caps as volatility rises: correlations
// go to one in a crash, so nominally separate groups stop diversifying.
func RegimeAdjustment(vix float64) float64 {
	switch {
	case vix >= 35:
		return 0.4
	case vix >= 25:
		return 0.6
	default:
		return 1.0
	}
}

// Limiter tracks open positions per correlation group. Safe for
// concurrent reads; the engine mutates it only within a tick.
type Limiter struct {
	mu       sync.RWMutex
	groups   map[string]GroupConfig // group name -> config
	bySymbol map[string]string      // symbol -> group name
	open     map[string]map[string]bool // group name -> set of position IDs
}

// NewLimiter builds a limiter over the given correlation groups.
func NewLimiter(groups []GroupConfig) *Limiter {
	l := &Limiter{
		groups:   make(map[string]GroupConfig, len(groups)),
		bySymbol: make(map[string]string),
		open:     make(map[string]map[string]bool),
	}
	for _, g := range groups {
		l.groups[g.Name] = g
		l.open[g.Name] = make(map[string]bool)
		for _, sym := range g.Symbols {
			l.bySymbol[sym] = g.Name
		}
	}
	return l
}

// ungroupedName is the catch-all group for symbols outside every
// configured group. It gets the tightest cap: unknown correlation is
// treated as concentrated, not as free diversification.
const ungroupedName = "ungrouped"

// GroupFor returns the correlation group a symbol belongs to.
func (l *Limiter) GroupFor(symbol string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if g, ok := l.bySymbol[symbol]; ok {
		return g
	}
	return ungroupedName
}

// Cap returns the regime-adjusted position cap for a group. The base cap
// comes from the phase table; the adjustment shrinks it as VIX rises.
// Groups without a configured limit for the phase fall back to one slot.
func (l *Limiter) Cap(group string, phase sizing.Phase, vix float64) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.capLocked(group, phase, vix)
}

func (l *Limiter) capLocked(group string, phase sizing.Phase, vix float64) int {
	base := 1
	if g, ok := l.groups[group]; ok {
		if b, ok := g.BaseLimits[int(phase)]; ok {
			base = b
		}
	}
	return int(math.Floor(float64(base) * RegimeAdjustment(vix)))
}

// CanAdd reports whether a new position in symbol's group fits under the
// regime-adjusted cap. The check runs at admission time only; existing
// overages are surfaced by MonitorConcentration, never force-closed.
func (l *Limiter) CanAdd(symbol string, phase sizing.Phase, vix float64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	group := ungroupedName
	if g, ok := l.bySymbol[symbol]; ok {
		group = g
	}
	count := len(l.open[group])
	return count < l.capLocked(group, phase, vix)
}

// Track registers an open position with its group. Positions whose
// symbol is ungrouped land in the catch-all bucket.
func (l *Limiter) Track(p *position.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()

	group := p.Group
	if group == "" {
		if g, ok := l.bySymbol[p.Symbol]; ok {
			group = g
		} else {
			group = ungroupedName
		}
	}
	if l.open[group] == nil {
		l.open[group] = make(map[string]bool)
		if _, known := l.groups[group]; !known && group != ungroupedName {
			log.Warn().Str("group", group).Str("position", p.ID).
				Msg("tracking position in unconfigured correlation group")
		}
	}
	l.open[group][p.ID] = true
}

// Untrack removes a closed position from its group.
func (l *Limiter) Untrack(p *position.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ids := range l.open {
		delete(ids, p.ID)
	}
}

// SyncOpen rebuilds the tracked sets from the authoritative open
// position list. The engine reconciles once per tick so the limiter
// cannot drift from the execution layer's view.
func (l *Limiter) SyncOpen(positions []*position.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for name := range l.open {
		l.open[name] = make(map[string]bool)
	}
	for _, p := range positions {
		if p.Status != position.StatusOpen {
			continue
		}
		group := p.Group
		if group == "" {
			if g, ok := l.bySymbol[p.Symbol]; ok {
				group = g
			} else {
				group = ungroupedName
			}
		}
		if l.open[group] == nil {
			l.open[group] = make(map[string]bool)
		}
		l.open[group][p.ID] = true
	}
}

// OpenCount returns the number of tracked open positions in a group.
func (l *Limiter) OpenCount(group string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.open[group])
}

// Groups returns the configured group names in sorted order.
func (l *Limiter) Groups() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.groups))
	for name := range l.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// equityLike reports whether a group holds equity-correlated
// instruments.
func (l *Limiter) equityLike(group string) bool {
	g, ok := l.groups[group]
	return ok && g.EquityLike
}
