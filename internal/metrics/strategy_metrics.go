// Package metrics defines strategy-specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Strategy-specific counter vectors
var (
	SignalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "strategy_signals_total",
		Help:      "Total number of actionable strategy signals by type",
	}, []string{"strategy_name", "signal_type"})
)

// Strategy-specific histogram vectors
var (
	SignalConfidence = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "strategy_signal_confidence",
		Help:      "Confidence of actionable strategy signals",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	}, []string{"strategy_name"})
)

// RecordSignal records an actionable signal and its confidence.
func RecordSignal(strategyName, signalType string, confidence float64) {
	SignalsTotal.WithLabelValues(strategyName, signalType).Inc()
	SignalConfidence.WithLabelValues(strategyName).Observe(confidence)
}
