package sizing

import (
	"github.com/KaidenAngle/TomKingTrading-sub003/internal/regime"
)

// EmergencyAction is the deployment stance recommended for the current
// regime and buying-power usage.
type EmergencyAction int

const (
	MaintainCurrent EmergencyAction = iota
	DeployAggressively
	SelectiveDeployment
	ReduceExposure
)

func (a EmergencyAction) String() string {
	switch a {
	case MaintainCurrent:
		return "maintain_current"
	case DeployAggressively:
		return "deploy_aggressively"
	case SelectiveDeployment:
		return "selective_deployment"
	case ReduceExposure:
		return "reduce_exposure"
	default:
		return "unknown"
	}
}

// EmergencyDecision pairs the stance with the buying-power usage it
// should steer toward.
type EmergencyDecision struct {
	Action      EmergencyAction `json:"action"`
	TargetUsage float64         `json:"target_usage"`
}

// EmergencySizing maps (regime, current BP usage) onto a deployment
// stance. Extreme volatility with a mostly-idle book is the spike
// opportunity; a crowded book in any regime gets pulled back.
func EmergencySizing(r regime.Regime, bpUsage float64) EmergencyDecision {
	switch {
	case r == regime.Extreme && bpUsage < 0.35:
		return EmergencyDecision{Action: DeployAggressively, TargetUsage: 0.85}
	case r == regime.High:
		return EmergencyDecision{Action: SelectiveDeployment, TargetUsage: 0.70}
	case bpUsage > 0.75:
		return EmergencyDecision{Action: ReduceExposure, TargetUsage: 0.60}
	default:
		return EmergencyDecision{Action: MaintainCurrent, TargetUsage: bpUsage}
	}
}
