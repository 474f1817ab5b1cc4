// Package metrics exposes the risk engine's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Registry holds every metric the engine emits.
type Registry struct {
	TickDuration *prometheus.HistogramVec

	Admissions       *prometheus.CounterVec
	DefensiveActions *prometheus.CounterVec
	LimitViolations  *prometheus.CounterVec

	ActiveRegime      prometheus.Gauge
	PortfolioDelta    prometheus.Gauge
	PortfolioTheta    prometheus.Gauge
	OpenPositions     prometheus.Gauge
	ConcentrationRisk prometheus.Gauge
}

// NewRegistry creates and registers the engine metrics against reg.
// Passing prometheus.DefaultRegisterer gives the usual process-global
// behavior; tests pass their own registry.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		TickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskengine_tick_duration_seconds",
				Help:    "Duration of each evaluation tick in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"result"},
		),

		Admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskengine_admissions_total",
				Help: "Entry decisions by outcome and reason",
			},
			[]string{"outcome", "reason"},
		),

		DefensiveActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskengine_defensive_actions_total",
				Help: "Defensive verdicts by verdict and priority",
			},
			[]string{"verdict", "priority"},
		),

		LimitViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskengine_limit_violations_total",
				Help: "Portfolio Greeks limit violations by kind",
			},
			[]string{"kind", "severity"},
		),

		ActiveRegime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "riskengine_active_regime",
				Help: "Current volatility regime (0=extremely_low .. 5=extreme)",
			},
		),

		PortfolioDelta: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "riskengine_portfolio_delta",
				Help: "Aggregate portfolio delta",
			},
		),

		PortfolioTheta: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "riskengine_portfolio_theta",
				Help: "Aggregate portfolio theta in dollars per day",
			},
		),

		OpenPositions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "riskengine_open_positions",
				Help: "Number of tracked open positions",
			},
		),

		ConcentrationRisk: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "riskengine_concentration_risk",
				Help: "Disaster concentration classification (0=none .. 4=extreme)",
			},
		),
	}

	reg.MustRegister(
		r.TickDuration,
		r.Admissions,
		r.DefensiveActions,
		r.LimitViolations,
		r.ActiveRegime,
		r.PortfolioDelta,
		r.PortfolioTheta,
		r.OpenPositions,
		r.ConcentrationRisk,
	)
	return r
}

// TickTimer times one evaluation tick.
type TickTimer struct {
	registry *Registry
	start    time.Time
}

// StartTick begins timing an evaluation tick.
func (r *Registry) StartTick() *TickTimer {
	return &TickTimer{registry: r, start: time.Now()}
}

// Stop records the tick duration under the given result label.
func (t *TickTimer) Stop(result string) {
	d := time.Since(t.start)
	t.registry.TickDuration.WithLabelValues(result).Observe(d.Seconds())
	log.Debug().Str("result", result).Dur("duration", d).Msg("tick completed")
}
