// Package metrics exposes the monitor's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/perpsignal/crashwatch/internal/engine"
)

// Set bundles the collectors the monitor updates each cycle.
type Set struct {
	registry *prometheus.Registry

	EvaluationsTotal *prometheus.CounterVec
	EvaluationErrors *prometheus.CounterVec
	AlertsSent       prometheus.Counter
	CrashProbability *prometheus.GaugeVec
	PositionSize     *prometheus.GaugeVec
	RegimeState      *prometheus.GaugeVec
	CycleDuration    prometheus.Histogram
}

// New builds and registers the collector set on its own registry.
func New() *Set {
	s := &Set{
		registry: prometheus.NewRegistry(),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashwatch_evaluations_total",
			Help: "Completed engine evaluations per symbol.",
		}, []string{"symbol"}),
		EvaluationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashwatch_evaluation_errors_total",
			Help: "Failed engine evaluations per symbol.",
		}, []string{"symbol"}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashwatch_alerts_sent_total",
			Help: "Alert messages delivered.",
		}),
		CrashProbability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crashwatch_crash_probability",
			Help: "Latest smoothed crash probability per symbol.",
		}, []string{"symbol"}),
		PositionSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crashwatch_position_size",
			Help: "Latest recommended position size per symbol.",
		}, []string{"symbol"}),
		RegimeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crashwatch_regime",
			Help: "Current regime per symbol, 1 on the active regime label.",
		}, []string{"symbol", "regime"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crashwatch_cycle_duration_seconds",
			Help:    "Wall time of one full monitoring cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	s.registry.MustRegister(
		s.EvaluationsTotal, s.EvaluationErrors, s.AlertsSent,
		s.CrashProbability, s.PositionSize, s.RegimeState, s.CycleDuration,
	)
	return s
}

// Registry returns the backing registry for the /metrics handler.
func (s *Set) Registry() *prometheus.Registry { return s.registry }

// ObserveSnapshot records the per-symbol gauges from one snapshot. The
// regime gauge is one-hot: the active regime reads 1, the rest 0.
func (s *Set) ObserveSnapshot(snap engine.Snapshot) {
	s.EvaluationsTotal.WithLabelValues(snap.Symbol).Inc()
	s.CrashProbability.WithLabelValues(snap.Symbol).Set(snap.CrashProbability)
	s.PositionSize.WithLabelValues(snap.Symbol).Set(snap.PositionSize)
	for _, r := range []string{"BULL", "BEAR", "CONSOLIDATION", "CRASH"} {
		v := 0.0
		if string(snap.Regime) == r {
			v = 1
		}
		s.RegimeState.WithLabelValues(snap.Symbol, r).Set(v)
	}
}
