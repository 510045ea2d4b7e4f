package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/quantlab/internal/config"
	"github.com/yourusername/quantlab/internal/metrics"
	"github.com/yourusername/quantlab/internal/models"
	"github.com/yourusername/quantlab/internal/strategy"
)

// Walk-forward defaults in calendar days
const (
	DefaultTrainPeriodDays = 252
	DefaultTestPeriodDays  = 63
)

// ErrWindowTooShort is returned when not even one full train/test period fits
var ErrWindowTooShort = errors.New("date range too short for a walk-forward period")

// WalkForwardConfig configures walk-forward analysis.
// StepDays defaults to train+test so successive periods never overlap.
// When ParameterRanges is set each period is optimized on its train window.
type WalkForwardConfig struct {
	TrainPeriodDays int
	TestPeriodDays  int
	StepDays        int
	ParameterRanges []ParameterRange
	Metric          string
}

// WalkForwardConfigFrom builds the analysis config from app config
func WalkForwardConfigFrom(cfg *config.Config) WalkForwardConfig {
	wf := WalkForwardConfig{
		TrainPeriodDays: cfg.WalkForward.TrainPeriodDays,
		TestPeriodDays:  cfg.WalkForward.TestPeriodDays,
		StepDays:        cfg.WalkForward.StepDays,
		Metric:          cfg.Optimizer.Metric,
	}
	if cfg.WalkForward.Optimize {
		wf.ParameterRanges = RangesFromConfig(cfg.Optimizer.ParameterRanges)
	}
	return wf
}

func (c WalkForwardConfig) withDefaults() WalkForwardConfig {
	if c.TrainPeriodDays <= 0 {
		c.TrainPeriodDays = DefaultTrainPeriodDays
	}
	if c.TestPeriodDays <= 0 {
		c.TestPeriodDays = DefaultTestPeriodDays
	}
	if c.StepDays <= 0 {
		c.StepDays = c.TrainPeriodDays + c.TestPeriodDays
	}
	if c.Metric == "" {
		c.Metric = MetricSharpeRatio
	}
	return c
}

// WalkForwardWindow is one train/test split. Both windows are half-open.
type WalkForwardWindow struct {
	Period     int       `json:"period"`
	TrainStart time.Time `json:"train_start"`
	TrainEnd   time.Time `json:"train_end"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`
}

// WalkForwardPeriod holds the results of one window
type WalkForwardPeriod struct {
	WalkForwardWindow
	Parameters  map[string]interface{} `json:"parameters"`
	TrainResult *Result                `json:"train_result"`
	TestResult  *Result                `json:"test_result"`
}

// WalkForwardResult represents walk-forward analysis result
type WalkForwardResult struct {
	Periods            []WalkForwardPeriod `json:"periods"`
	AverageReturn      float64             `json:"average_return"`
	AverageSharpe      float64             `json:"average_sharpe"`
	ProfitableFraction float64             `json:"profitable_fraction"`
	OverfitScore       float64             `json:"overfit_score"`
}

// GenerateWindows lays out train/test windows from start, stopping before
// any test window that would end after end
func GenerateWindows(start, end time.Time, cfg WalkForwardConfig) []WalkForwardWindow {
	cfg = cfg.withDefaults()
	windows := []WalkForwardWindow{}
	for cursor := start; ; cursor = cursor.AddDate(0, 0, cfg.StepDays) {
		trainEnd := cursor.AddDate(0, 0, cfg.TrainPeriodDays)
		testEnd := trainEnd.AddDate(0, 0, cfg.TestPeriodDays)
		if testEnd.After(end) {
			break
		}
		windows = append(windows, WalkForwardWindow{
			Period:     len(windows) + 1,
			TrainStart: cursor,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
		})
	}
	return windows
}

// WalkForwardAnalysis backtests each out-of-sample test window and aggregates
// the results. Any failing period aborts the analysis.
func (o *Optimizer) WalkForwardAnalysis(ctx context.Context, strategyType string, cfg models.StrategyConfig, symbol string, start, end time.Time, wfCfg WalkForwardConfig) (*WalkForwardResult, error) {
	wfCfg = wfCfg.withDefaults()
	if err := validateMetric(wfCfg.Metric); err != nil {
		return nil, err
	}
	combos, err := GenerateCombinations(wfCfg.ParameterRanges)
	if err != nil {
		return nil, err
	}
	// Construction errors surface before any data is loaded
	if _, err := buildStrategies(strategyType, cfg, combos); err != nil {
		return nil, err
	}

	windows := GenerateWindows(start, end, wfCfg)
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: %s to %s with train %d and test %d days", ErrWindowTooShort,
			start.Format(config.DateLayout), end.Format(config.DateLayout), wfCfg.TrainPeriodDays, wfCfg.TestPeriodDays)
	}

	bars, err := o.engine.LoadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	periods := make([]WalkForwardPeriod, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, w := range windows {
		g.Go(func() error {
			period, err := o.runPeriod(gctx, strategyType, cfg, combos, symbol, bars, w, wfCfg)
			if err != nil {
				return fmt.Errorf("walk-forward period %d: %w", w.Period, err)
			}
			profitable := period.TestResult.Metrics.TotalReturn > 0
			metrics.RecordWalkForwardPeriod(profitable)
			o.btLogger.LogWalkForwardPeriod(w.Period, w.TestStart, w.TestEnd,
				period.TestResult.Metrics.TotalReturn, period.TestResult.Metrics.SharpeRatio)
			periods[i] = period
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return aggregateWalkForward(periods), nil
}

func (o *Optimizer) runPeriod(ctx context.Context, strategyType string, cfg models.StrategyConfig, combos []map[string]interface{}, symbol string, bars []models.PricePoint, w WalkForwardWindow, wfCfg WalkForwardConfig) (WalkForwardPeriod, error) {
	period := WalkForwardPeriod{WalkForwardWindow: w}
	capital := o.engine.config.InitialCapital

	trainBars := barsBetween(bars, w.TrainStart, w.TrainEnd)
	testBars := barsBetween(bars, w.TestStart, w.TestEnd)

	params := map[string]interface{}{}
	if len(wfCfg.ParameterRanges) > 0 {
		strategies, err := buildStrategies(strategyType, cfg, combos)
		if err != nil {
			return period, err
		}
		// Periods already run in parallel, so the inner search is sequential
		ranked, err := o.runTrials(ctx, strategyType, strategies, combos, symbol, trainBars, w.TrainStart, w.TrainEnd, wfCfg.Metric, 1)
		if err != nil {
			return period, err
		}
		params = ranked[0].Parameters
		period.TrainResult = ranked[0].Result
	}

	strat, err := strategy.New(strategyType, cfg.WithParameters(params))
	if err != nil {
		return period, err
	}
	if period.TrainResult == nil {
		// An empty train window only loses the in-sample comparison
		trainResult, err := o.engine.Simulate(ctx, strat, symbol, trainBars, w.TrainStart, w.TrainEnd, capital)
		if err != nil && !errors.Is(err, ErrNoData) {
			return period, err
		}
		period.TrainResult = trainResult
	}

	testResult, err := o.engine.Simulate(ctx, strat, symbol, testBars, w.TestStart, w.TestEnd, capital)
	if err != nil {
		return period, err
	}
	period.TestResult = testResult
	period.Parameters = strat.GetParameters()
	return period, nil
}

// barsBetween returns bars with from <= timestamp < to
func barsBetween(bars []models.PricePoint, from, to time.Time) []models.PricePoint {
	out := make([]models.PricePoint, 0)
	for _, bar := range bars {
		if bar.Timestamp.Before(from) || !bar.Timestamp.Before(to) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

// CalculateConsistency calculates the fraction of profitable test periods
func CalculateConsistency(periods []WalkForwardPeriod) float64 {
	if len(periods) == 0 {
		return 0
	}
	profitable := 0
	for _, p := range periods {
		if p.TestResult != nil && p.TestResult.Metrics.TotalReturn > 0 {
			profitable++
		}
	}
	return float64(profitable) / float64(len(periods))
}

// calculateOverfitScore compares in-sample and out-of-sample returns.
// 0 means the test windows kept all of the train performance.
func calculateOverfitScore(periods []WalkForwardPeriod) float64 {
	if len(periods) == 0 {
		return 0
	}
	trainReturn := 0.0
	testReturn := 0.0
	for _, p := range periods {
		if p.TrainResult == nil || p.TestResult == nil {
			continue
		}
		trainReturn += p.TrainResult.Metrics.TotalReturn
		testReturn += p.TestResult.Metrics.TotalReturn
	}
	if trainReturn == 0 {
		return 0
	}
	return (trainReturn - testReturn) / trainReturn
}

func aggregateWalkForward(periods []WalkForwardPeriod) *WalkForwardResult {
	result := &WalkForwardResult{Periods: periods}
	if len(periods) == 0 {
		return result
	}
	for _, p := range periods {
		result.AverageReturn += p.TestResult.Metrics.TotalReturn
		result.AverageSharpe += p.TestResult.Metrics.SharpeRatio
	}
	result.AverageReturn /= float64(len(periods))
	result.AverageSharpe /= float64(len(periods))
	result.ProfitableFraction = CalculateConsistency(periods)
	result.OverfitScore = calculateOverfitScore(periods)
	return result
}

// ToJSON exports the walk-forward result
func (w *WalkForwardResult) ToJSON() string {
	data, _ := json.Marshal(w)
	return string(data)
}
