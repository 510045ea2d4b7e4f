// Package metrics provides centralized Prometheus metrics registry for the backtester.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quantlab"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Data loading metrics
var (
	DataLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "data_loads_total",
		Help:      "Total number of historical data loads by source and status",
	}, []string{"source", "status"})
	DataCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "data_cache_hits_total",
		Help:      "Total number of historical data requests served from cache",
	})
	DataCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "data_cache_misses_total",
		Help:      "Total number of historical data requests that missed the cache",
	})
	InvalidBarsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invalid_bars_total",
		Help:      "Total number of price bars dropped by sanity checks",
	})
	BarsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bars_ingested_total",
		Help:      "Total number of bars processed by ingestion by outcome",
	}, []string{"outcome"})
	DataLoadLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "data_load_latency_seconds",
		Help:      "Latency of historical data loads in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})
)

// Simulation metrics
var (
	TradesClosedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_closed_total",
		Help:      "Total number of simulated trades closed by outcome",
	}, []string{"strategy_name", "outcome"})
	SignalsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signals_skipped_total",
		Help:      "Total number of actionable signals that could not be filled",
	}, []string{"reason"})
	FinalEquity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "final_equity",
		Help:      "Final portfolio value of the most recent run per strategy and symbol",
	}, []string{"strategy_name", "symbol"})
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(DataLoadsTotal)
		registry.MustRegister(DataCacheHitsTotal)
		registry.MustRegister(DataCacheMissesTotal)
		registry.MustRegister(InvalidBarsTotal)
		registry.MustRegister(DataLoadLatency)
		registry.MustRegister(BarsIngestedTotal)

		registry.MustRegister(TradesClosedTotal)
		registry.MustRegister(SignalsSkippedTotal)
		registry.MustRegister(FinalEquity)
		registry.MustRegister(BacktestDuration)

		// Register strategy metrics
		registry.MustRegister(SignalsTotal)
		registry.MustRegister(SignalConfidence)

		// Register backtest metrics
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BacktestCompositeScore)
		registry.MustRegister(OptimizerTrialsTotal)
		registry.MustRegister(OptimizerBestScore)
		registry.MustRegister(WalkForwardPeriodsTotal)
		registry.MustRegister(ScheduledJobRunsTotal)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordDataLoad records a historical data load and its latency.
func RecordDataLoad(source, status string, durationSeconds float64) {
	DataLoadsTotal.WithLabelValues(source, status).Inc()
	DataLoadLatency.WithLabelValues(source).Observe(durationSeconds)
}

// RecordCacheHit records a cache hit for historical data.
func RecordCacheHit() {
	DataCacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss for historical data.
func RecordCacheMiss() {
	DataCacheMissesTotal.Inc()
}

// RecordInvalidBars records bars dropped before simulation.
func RecordInvalidBars(count int) {
	InvalidBarsTotal.Add(float64(count))
}

// RecordBarsIngested records bars handled by an ingestion run.
// outcome should be one of: "stored", "duplicate", "invalid"
func RecordBarsIngested(outcome string, count int) {
	BarsIngestedTotal.WithLabelValues(outcome).Add(float64(count))
}

// RecordTradeClosed records a realized trade as a win or a loss.
func RecordTradeClosed(strategyName string, pnl float64) {
	outcome := "loss"
	if pnl > 0 {
		outcome = "win"
	}
	TradesClosedTotal.WithLabelValues(strategyName, outcome).Inc()
}

// RecordSignalSkipped records an actionable signal that was not filled.
func RecordSignalSkipped(reason string) {
	SignalsSkippedTotal.WithLabelValues(reason).Inc()
}

// UpdateFinalEquity sets the final equity gauge for a run.
func UpdateFinalEquity(strategyName, symbol string, value float64) {
	FinalEquity.WithLabelValues(strategyName, symbol).Set(value)
}

// RecordBacktestDuration records backtest duration.
func RecordBacktestDuration(durationSeconds float64) {
	BacktestDuration.Observe(durationSeconds)
}
