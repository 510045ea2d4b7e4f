// Package service wires the backtesting engine to configuration, storage and scheduling.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quantlab/internal/backtest"
	"github.com/yourusername/quantlab/internal/config"
	"github.com/yourusername/quantlab/internal/datasource"
	"github.com/yourusername/quantlab/internal/logger"
	"github.com/yourusername/quantlab/internal/metrics"
	"github.com/yourusername/quantlab/internal/repository"
	"github.com/yourusername/quantlab/internal/strategy"
)

// Method labels used for metrics and persisted rows
const (
	MethodHistoricalReplay = "historical_replay"
	MethodOptimization     = "optimization"
	MethodWalkForward      = "walk_forward"
	MethodMonteCarlo       = "monte_carlo"
)

// Scheduled job modes
const (
	JobModeRun         = "run"
	JobModeOptimize    = "optimize"
	JobModeWalkForward = "walk_forward"
)

// BacktestService runs configured backtests and records their outcomes
type BacktestService struct {
	cfg       *config.Config
	engine    *backtest.Engine
	optimizer *backtest.Optimizer
	results   repository.BacktestResultRepository
	audit     *logger.AuditLogger
	logger    *logrus.Logger
	now       func() time.Time
}

// NewBacktestService creates a new backtest service. results may be nil,
// in which case nothing is persisted.
func NewBacktestService(
	cfg *config.Config,
	provider datasource.Provider,
	results repository.BacktestResultRepository,
	log *logrus.Logger,
) (*BacktestService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	log = logger.OrDefault(log)

	btCfg, err := backtest.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	engine, err := backtest.NewEngine(btCfg, provider, log)
	if err != nil {
		return nil, err
	}
	optimizer, err := backtest.NewOptimizer(engine, cfg.Optimizer.Workers)
	if err != nil {
		return nil, err
	}

	return &BacktestService{
		cfg:       cfg,
		engine:    engine,
		optimizer: optimizer,
		results:   results,
		audit:     logger.NewAuditLogger(log),
		logger:    log,
		now:       time.Now,
	}, nil
}

// Window returns the configured backtest date range
func (s *BacktestService) Window() (time.Time, time.Time) {
	cfg := s.engine.Config()
	return cfg.StartDate, cfg.EndDate
}

// Run replays the configured strategy over [start, end]
func (s *BacktestService) Run(ctx context.Context, start, end time.Time) (*backtest.Result, error) {
	strat, err := strategy.New(s.cfg.Strategy.Type, s.cfg.Strategy.StrategyConfig)
	if err != nil {
		return nil, err
	}

	capital := s.engine.Config().InitialCapital
	result, err := s.engine.RunBacktest(ctx, strat, s.cfg.Backtest.Symbol, start, end, capital)
	recordRun(MethodHistoricalReplay, err)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, result, MethodHistoricalReplay); err != nil {
		return result, err
	}
	return result, nil
}

// Optimize grid-searches the configured parameter ranges over [start, end]
func (s *BacktestService) Optimize(ctx context.Context, start, end time.Time) ([]backtest.OptimizationResult, error) {
	metric := s.metric()
	ranges := backtest.RangesFromConfig(s.cfg.Optimizer.ParameterRanges)

	results, err := s.optimizer.OptimizeStrategy(ctx, s.cfg.Strategy.Type, s.cfg.Strategy.StrategyConfig,
		ranges, s.cfg.Backtest.Symbol, start, end, metric)
	recordRun(MethodOptimization, err)
	if err != nil {
		return nil, err
	}

	best := results[0]
	s.audit.LogBestParameters(best.Result.StrategyName, metric, best.Parameters, best.Score)
	if err := s.persist(ctx, best.Result, MethodOptimization); err != nil {
		return results, err
	}
	return results, nil
}

// WalkForward runs walk-forward analysis of the configured strategy over [start, end]
func (s *BacktestService) WalkForward(ctx context.Context, start, end time.Time) (*backtest.WalkForwardResult, error) {
	wfCfg := backtest.WalkForwardConfigFrom(s.cfg)

	result, err := s.optimizer.WalkForwardAnalysis(ctx, s.cfg.Strategy.Type, s.cfg.Strategy.StrategyConfig,
		s.cfg.Backtest.Symbol, start, end, wfCfg)
	recordRun(MethodWalkForward, err)
	if err != nil {
		return nil, err
	}

	for _, period := range result.Periods {
		if err := s.persist(ctx, period.TestResult, MethodWalkForward); err != nil {
			return result, err
		}
	}
	return result, nil
}

// MonteCarlo bootstraps the completed trades of result
func (s *BacktestService) MonteCarlo(ctx context.Context, result *backtest.Result) (*backtest.MonteCarloResult, error) {
	mc, err := backtest.RunMonteCarlo(ctx, result.Trades, backtest.MonteCarloConfig{
		Iterations:     s.cfg.MonteCarlo.Iterations,
		Seed:           s.cfg.MonteCarlo.Seed,
		InitialCapital: result.InitialCapital,
	})
	recordRun(MethodMonteCarlo, err)
	if err != nil {
		return nil, err
	}
	return &mc, nil
}

// Evaluate runs the replay plus Monte Carlo (when enabled) and walk-forward
// analysis, and combines them into a scored recommendation. A range too short
// for walk-forward is evaluated without it.
func (s *BacktestService) Evaluate(ctx context.Context, start, end time.Time) (*backtest.AggregatedResult, *backtest.Result, error) {
	historical, err := s.Run(ctx, start, end)
	if err != nil {
		return nil, nil, err
	}

	var mc *backtest.MonteCarloResult
	if s.cfg.MonteCarlo.Enabled {
		if mc, err = s.MonteCarlo(ctx, historical); err != nil {
			return nil, historical, err
		}
	}

	wf, err := s.WalkForward(ctx, start, end)
	if errors.Is(err, backtest.ErrWindowTooShort) {
		s.logger.WithError(err).Warn("Skipping walk-forward analysis")
		wf, err = nil, nil
	}
	if err != nil {
		return nil, historical, err
	}

	agg := backtest.AggregateResults(historical, mc, wf, backtest.DefaultAggregationWeights())
	metrics.RecordCompositeScore(agg.StrategyName, MethodHistoricalReplay, agg.CompositeScore)
	s.logger.WithFields(logrus.Fields{
		"strategy_name":   agg.StrategyName,
		"symbol":          agg.Symbol,
		"composite_score": agg.CompositeScore,
		"recommendation":  agg.Recommendation,
	}).Info("Strategy evaluation complete")
	return &agg, historical, nil
}

// RunJob executes a scheduled job over its trailing lookback window ending today
func (s *BacktestService) RunJob(ctx context.Context, job config.JobConfig) error {
	began := time.Now()
	end := s.now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -job.LookbackDays)

	var err error
	switch job.Mode {
	case JobModeRun:
		_, err = s.Run(ctx, start, end)
	case JobModeOptimize:
		_, err = s.Optimize(ctx, start, end)
	case JobModeWalkForward:
		_, err = s.WalkForward(ctx, start, end)
	default:
		err = fmt.Errorf("unknown job mode: %s", job.Mode)
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.RecordScheduledJob(job.Name, status)
	s.audit.LogJobRun(job.Name, job.Mode, time.Since(began), err)
	return err
}

func (s *BacktestService) metric() string {
	if s.cfg.Optimizer.Metric == "" {
		return backtest.MetricSharpeRatio
	}
	return s.cfg.Optimizer.Metric
}

func (s *BacktestService) persist(ctx context.Context, result *backtest.Result, method string) error {
	if s.results == nil || !s.cfg.Backtest.PersistResults || result == nil {
		return nil
	}
	row, err := result.ToDB(method, s.now().UTC())
	if err != nil {
		return err
	}
	if err := s.results.SaveResult(ctx, row); err != nil {
		return fmt.Errorf("failed to persist %s result: %w", method, err)
	}
	s.audit.LogResultPersisted(row.ID.String(), row.StrategyName, row.Symbol, method, row.RunDate)
	return nil
}

func recordRun(method string, err error) {
	switch {
	case err == nil:
		metrics.RecordBacktestRun(method, "success")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.RecordBacktestRun(method, "cancelled")
	default:
		metrics.RecordBacktestRun(method, "failure")
	}
}
