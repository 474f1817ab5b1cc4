package concentration

import (
	"fmt"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

// DisasterRisk classifies how exposed the whole book is to one
// correlated equity move. The August 5 failure mode this guards against:
// six "diversified" positions that were all the same short-vol equity
// bet.
type DisasterRisk int

const (
	NoRisk DisasterRisk = iota
	LowRisk
	ModerateRisk
	HighRisk
	ExtremeRisk
)

func (r DisasterRisk) String() string {
	switch r {
	case NoRisk:
		return "NO_RISK"
	case LowRisk:
		return "LOW"
	case ModerateRisk:
		return "MODERATE"
	case HighRisk:
		return "HIGH"
	case ExtremeRisk:
		return "EXTREME"
	default:
		return "UNKNOWN"
	}
}

// ConcentrationReport is the monitor's per-tick output.
type ConcentrationReport struct {
	Risk                DisasterRisk   `json:"risk"`
	TotalPositions      int            `json:"total_positions"`
	EquityLikePositions int            `json:"equity_like_positions"`
	EquityConcentration float64        `json:"equity_concentration"`
	GroupCounts         map[string]int `json:"group_counts"`
	VIX                 float64        `json:"vix"`
}

func (r ConcentrationReport) Summary() string {
	return fmt.Sprintf("concentration %s: %d/%d equity-like (%.0f%%) at VIX %.1f",
		r.Risk, r.EquityLikePositions, r.TotalPositions, r.EquityConcentration*100, r.VIX)
}

// MonitorConcentration measures how much of the open book sits in
// correlated equity-like groups and classifies the disaster risk:
// EXTREME when VIX is above 30 and more than 60% of positions are one
// equity bet, HIGH above 75% concentration regardless of VIX, MODERATE
// above 50%, otherwise LOW. An empty book carries no risk.
func (l *Limiter) MonitorConcentration(positions []*position.Position, vix float64) ConcentrationReport {
	l.mu.RLock()
	defer l.mu.RUnlock()

	report := ConcentrationReport{
		GroupCounts: make(map[string]int),
		VIX:         vix,
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
		report.TotalPositions++
		report.GroupCounts[group]++
		if l.equityLike(group) {
			report.EquityLikePositions++
		}
	}

	if report.TotalPositions == 0 {
		report.Risk = NoRisk
		return report
	}

	report.EquityConcentration = float64(report.EquityLikePositions) / float64(report.TotalPositions)

	switch {
	case vix > 30 && report.EquityConcentration > 0.60:
		report.Risk = ExtremeRisk
	case report.EquityConcentration > 0.75:
		report.Risk = HighRisk
	case report.EquityConcentration > 0.50:
		report.Risk = ModerateRisk
	default:
		report.Risk = LowRisk
	}
	return report
}
