// Package metrics defines backtesting-specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by method and status",
	}, []string{"method", "status"})
	OptimizerTrialsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "optimizer_trials_total",
		Help:      "Total number of optimizer trials by strategy type and status",
	}, []string{"strategy_type", "status"})
	WalkForwardPeriodsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "walk_forward_periods_total",
		Help:      "Total number of walk-forward periods by outcome",
	}, []string{"outcome"})
	ScheduledJobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_job_runs_total",
		Help:      "Total number of scheduled job runs by job and status",
	}, []string{"job", "status"})
)

// Backtest histogram vectors
var (
	BacktestCompositeScore = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_composite_score",
		Help:      "Composite scores from backtest runs by strategy and method",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	}, []string{"strategy_name", "method"})
)

// Backtest gauge vectors
var (
	OptimizerBestScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "optimizer_best_score",
		Help:      "Best score of the most recent optimization per strategy type and metric",
	}, []string{"strategy_type", "metric"})
)

// RecordBacktestRun records a backtest run event.
// method should be one of: "historical_replay", "optimization", "walk_forward", "monte_carlo"
// status should be one of: "success", "failure", "cancelled"
func RecordBacktestRun(method, status string) {
	BacktestRunsTotal.WithLabelValues(method, status).Inc()
}

// RecordCompositeScore records a composite score from a backtest run.
func RecordCompositeScore(strategyName, method string, score float64) {
	BacktestCompositeScore.WithLabelValues(strategyName, method).Observe(score)
}

// RecordOptimizerTrial records one optimizer trial.
func RecordOptimizerTrial(strategyType, status string) {
	OptimizerTrialsTotal.WithLabelValues(strategyType, status).Inc()
}

// UpdateOptimizerBestScore sets the best score of an optimization.
func UpdateOptimizerBestScore(strategyType, metric string, score float64) {
	OptimizerBestScore.WithLabelValues(strategyType, metric).Set(score)
}

// RecordWalkForwardPeriod records one walk-forward period as profitable or not.
func RecordWalkForwardPeriod(profitable bool) {
	outcome := "unprofitable"
	if profitable {
		outcome = "profitable"
	}
	WalkForwardPeriodsTotal.WithLabelValues(outcome).Inc()
}

// RecordScheduledJob records a scheduled job run.
func RecordScheduledJob(job, status string) {
	ScheduledJobRunsTotal.WithLabelValues(job, status).Inc()
}
