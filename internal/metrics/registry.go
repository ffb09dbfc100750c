// Package metrics exposes Prometheus instrumentation for the learning
// engine. All Registry methods are nil-receiver safe so instrumentation can
// be disabled by wiring a nil registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus metrics for the engine.
type Registry struct {
	CyclesTotal      *prometheus.CounterVec
	InsightsPerCycle prometheus.Histogram
	CycleDuration    prometheus.Histogram
	RegimeSwitches   *prometheus.CounterVec
	BeliefVersion    *prometheus.GaugeVec
	DecisionsTotal   *prometheus.CounterVec
	EpisodesClosed   prometheus.Counter
}

// NewRegistry creates the metric set and registers it with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_cvrf_cycles_total",
				Help: "Learning cycles run, by outcome (signal or no_signal)",
			},
			[]string{"outcome"},
		),
		InsightsPerCycle: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "frontier_cvrf_insights_per_cycle",
				Help:    "Extracted insight count per cycle",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
			},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "frontier_cvrf_cycle_duration_seconds",
				Help:    "End-to-end cycle duration including the commit round-trip",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
		),
		RegimeSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_regime_switches_total",
				Help: "Regime transitions observed across committed cycles",
			},
			[]string{"from", "to"},
		),
		BeliefVersion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "frontier_belief_version",
				Help: "Current belief state version per user",
			},
			[]string{"user"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_decisions_recorded_total",
				Help: "Decisions appended to active episodes, by action",
			},
			[]string{"action"},
		),
		EpisodesClosed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "frontier_episodes_closed_total",
				Help: "Episodes transitioned to completed",
			},
		),
	}

	reg.MustRegister(
		r.CyclesTotal, r.InsightsPerCycle, r.CycleDuration,
		r.RegimeSwitches, r.BeliefVersion, r.DecisionsTotal, r.EpisodesClosed,
	)
	return r
}

// ObserveCycle records a committed cycle.
func (r *Registry) ObserveCycle(userID string, signal bool, insightCount int, version int64, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := "no_signal"
	if signal {
		outcome = "signal"
	}
	r.CyclesTotal.WithLabelValues(outcome).Inc()
	r.InsightsPerCycle.Observe(float64(insightCount))
	r.CycleDuration.Observe(elapsed.Seconds())
	r.BeliefVersion.WithLabelValues(userID).Set(float64(version))
}

// RegimeSwitch records a regime transition.
func (r *Registry) RegimeSwitch(from, to string) {
	if r == nil {
		return
	}
	r.RegimeSwitches.WithLabelValues(from, to).Inc()
}

// ObserveDecision records an appended decision.
func (r *Registry) ObserveDecision(action string) {
	if r == nil {
		return
	}
	r.DecisionsTotal.WithLabelValues(action).Inc()
}

// ObserveEpisodeClose records a completed episode.
func (r *Registry) ObserveEpisodeClose() {
	if r == nil {
		return
	}
	r.EpisodesClosed.Inc()
}
