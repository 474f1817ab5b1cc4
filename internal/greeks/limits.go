package greeks

import (
	"fmt"
	"math"
)

// Severity ranks how urgently a limit violation needs attention.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// SuggestedAction is the response recommended for a violation.
type SuggestedAction int

const (
	FlagOnly SuggestedAction = iota
	BlockNewPositions
	ReducePositionSize
	LimitShortPositions
)

func (a SuggestedAction) String() string {
	switch a {
	case FlagOnly:
		return "flag_only"
	case BlockNewPositions:
		return "block_new_positions"
	case ReducePositionSize:
		return "reduce_position_size"
	case LimitShortPositions:
		return "limit_short_positions"
	default:
		return "unknown"
	}
}

// RiskLimits are the static portfolio-Greeks thresholds.
type RiskLimits struct {
	MaxAbsDelta    float64 `yaml:"max_abs_delta"`     // default 50
	MaxAbsGamma    float64 `yaml:"max_abs_gamma"`     // default 5
	MaxThetaPerDay float64 `yaml:"max_theta_per_day"` // default -500 (most negative allowed)
	MaxAbsVega     float64 `yaml:"max_abs_vega"`      // default 1000
}

// DefaultRiskLimits returns the production thresholds.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxAbsDelta:    50.0,
		MaxAbsGamma:    5.0,
		MaxThetaPerDay: -500.0,
		MaxAbsVega:     1000.0,
	}
}

// LimitViolation describes one breached threshold.
type LimitViolation struct {
	Kind      string          `json:"kind"`
	Current   float64         `json:"current"`
	Limit     float64         `json:"limit"`
	Severity  Severity        `json:"severity"`
	Suggested SuggestedAction `json:"suggested_action"`
}

func (v LimitViolation) String() string {
	return fmt.Sprintf("%s %.2f vs limit %.2f (%s, %s)",
		v.Kind, v.Current, v.Limit, v.Severity, v.Suggested)
}

// CheckRiskLimits compares portfolio Greeks against the limits and
// returns every violation found. An empty slice means the book is inside
// all thresholds.
func CheckRiskLimits(portfolio Greeks, limits RiskLimits) []LimitViolation {
	var violations []LimitViolation

	if math.Abs(portfolio.Delta) > limits.MaxAbsDelta {
		violations = append(violations, LimitViolation{
			Kind:      "delta",
			Current:   portfolio.Delta,
			Limit:     limits.MaxAbsDelta,
			Severity:  SeverityHigh,
			Suggested: BlockNewPositions,
		})
	}
	if math.Abs(portfolio.Gamma) > limits.MaxAbsGamma {
		violations = append(violations, LimitViolation{
			Kind:      "gamma",
			Current:   portfolio.Gamma,
			Limit:     limits.MaxAbsGamma,
			Severity:  SeverityMedium,
			Suggested: ReducePositionSize,
		})
	}
	if portfolio.Theta < limits.MaxThetaPerDay {
		violations = append(violations, LimitViolation{
			Kind:      "theta",
			Current:   portfolio.Theta,
			Limit:     limits.MaxThetaPerDay,
			Severity:  SeverityMedium,
			Suggested: LimitShortPositions,
		})
	}
	if math.Abs(portfolio.Vega) > limits.MaxAbsVega {
		violations = append(violations, LimitViolation{
			Kind:      "vega",
			Current:   portfolio.Vega,
			Limit:     limits.MaxAbsVega,
			Severity:  SeverityLow,
			Suggested: FlagOnly,
		})
	}

	return violations
}
