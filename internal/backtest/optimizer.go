package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/quantlab/internal/config"
	"github.com/yourusername/quantlab/internal/logger"
	"github.com/yourusername/quantlab/internal/metrics"
	"github.com/yourusername/quantlab/internal/models"
	"github.com/yourusername/quantlab/internal/strategy"
)

// Optimizer errors
var (
	ErrUnknownMetric = errors.New("unknown optimization metric")
	ErrInvalidRange  = errors.New("invalid parameter range")
)

// rangeEpsilon absorbs float error when the last step lands on Max;
// enumerated values are rounded to rangeScale
const (
	rangeEpsilon = 1e-9
	rangeScale   = 1e9
)

// ParameterRange is an inclusive {min, max, step} sweep of one parameter
type ParameterRange struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// MaxCombinations bounds both a single range and the full grid
const MaxCombinations = 1_000_000

// Values enumerates the range without accumulating float error
func (r ParameterRange) Values() ([]float64, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	steps := math.Floor((r.Max-r.Min)/r.Step + rangeEpsilon)
	if math.IsNaN(steps) || math.IsInf(steps, 0) || steps+1 > MaxCombinations {
		return nil, fmt.Errorf("%w: %s enumerates more than %d values", ErrInvalidRange, r.Name, MaxCombinations)
	}
	values := make([]float64, int(steps)+1)
	for i := range values {
		values[i] = math.Round((r.Min+float64(i)*r.Step)*rangeScale) / rangeScale
	}
	return values, nil
}

func (r ParameterRange) validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRange)
	case math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsNaN(r.Step):
		return fmt.Errorf("%w: %s has NaN bounds", ErrInvalidRange, r.Name)
	case r.Step <= 0:
		return fmt.Errorf("%w: %s step must be positive, got %v", ErrInvalidRange, r.Name, r.Step)
	case r.Max < r.Min:
		return fmt.Errorf("%w: %s max %v is below min %v", ErrInvalidRange, r.Name, r.Max, r.Min)
	}
	return nil
}

// RangesFromConfig converts configured sweeps
func RangesFromConfig(ranges []config.ParameterRange) []ParameterRange {
	out := make([]ParameterRange, len(ranges))
	for i, r := range ranges {
		out[i] = ParameterRange{Name: r.Name, Min: r.Min, Max: r.Max, Step: r.Step}
	}
	return out
}

// GenerateCombinations returns the Cartesian product of the ranges in slice
// order with the last range varying fastest. No ranges yields one empty
// combination so the base config is still evaluated.
func GenerateCombinations(ranges []ParameterRange) ([]map[string]interface{}, error) {
	seen := make(map[string]bool, len(ranges))
	axes := make([][]float64, len(ranges))
	total := 1
	for i, r := range ranges {
		if seen[r.Name] {
			return nil, fmt.Errorf("%w: duplicate parameter %s", ErrInvalidRange, r.Name)
		}
		seen[r.Name] = true
		values, err := r.Values()
		if err != nil {
			return nil, err
		}
		if total > MaxCombinations/len(values) {
			return nil, fmt.Errorf("%w: grid exceeds %d combinations", ErrInvalidRange, MaxCombinations)
		}
		axes[i] = values
		total *= len(values)
	}

	combos := make([]map[string]interface{}, 0, total)
	odometer := make([]int, len(ranges))
	for {
		combo := make(map[string]interface{}, len(ranges))
		for i, r := range ranges {
			combo[r.Name] = axes[i][odometer[i]]
		}
		combos = append(combos, combo)

		pos := len(odometer) - 1
		for pos >= 0 {
			odometer[pos]++
			if odometer[pos] < len(axes[pos]) {
				break
			}
			odometer[pos] = 0
			pos--
		}
		if pos < 0 {
			return combos, nil
		}
	}
}

// OptimizationResult is one scored parameter combination
type OptimizationResult struct {
	Parameters map[string]interface{} `json:"parameters"`
	Result     *Result                `json:"result"`
	Score      float64                `json:"score"`
}

// Optimizer grid-searches strategy parameters on top of an Engine
type Optimizer struct {
	engine   *Engine
	workers  int
	btLogger *logger.BacktestLogger
}

// NewOptimizer creates an optimizer. workers <= 0 uses the engine config.
func NewOptimizer(engine *Engine, workers int) (*Optimizer, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if workers <= 0 {
		workers = engine.config.Workers
	}
	return &Optimizer{engine: engine, workers: workers, btLogger: engine.btLogger}, nil
}

// Engine returns the underlying engine
func (o *Optimizer) Engine() *Engine {
	return o.engine
}

// OptimizeStrategy evaluates every combination of ranges over [start, end]
// and returns results sorted by metric, best first. Any failing trial
// aborts the whole optimization.
func (o *Optimizer) OptimizeStrategy(ctx context.Context, strategyType string, base models.StrategyConfig, ranges []ParameterRange, symbol string, start, end time.Time, metric string) ([]OptimizationResult, error) {
	if err := validateMetric(metric); err != nil {
		return nil, err
	}
	combos, err := GenerateCombinations(ranges)
	if err != nil {
		return nil, err
	}
	strategies, err := buildStrategies(strategyType, base, combos)
	if err != nil {
		return nil, err
	}

	bars, err := o.engine.LoadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	results, err := o.runTrials(ctx, strategyType, strategies, combos, symbol, bars, start, end, metric, o.workers)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		metrics.UpdateOptimizerBestScore(strategyType, metric, results[0].Score)
	}
	return results, nil
}

func (o *Optimizer) runTrials(ctx context.Context, strategyType string, strategies []strategy.Strategy, combos []map[string]interface{}, symbol string, bars []models.PricePoint, start, end time.Time, metric string, workers int) ([]OptimizationResult, error) {
	results := make([]OptimizationResult, len(strategies))
	capital := o.engine.config.InitialCapital

	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, strat := range strategies {
		g.Go(func() error {
			res, err := o.engine.Simulate(gctx, strat, symbol, bars, start, end, capital)
			if err != nil {
				metrics.RecordOptimizerTrial(strategyType, "failure")
				return fmt.Errorf("trial %d %v: %w", i, combos[i], err)
			}
			score, err := res.Metrics.Value(metric)
			if err != nil {
				return err
			}
			metrics.RecordOptimizerTrial(strategyType, "success")
			o.btLogger.LogOptimizerTrial(strategyType, i, combos[i], metric, score)
			results[i] = OptimizationResult{Parameters: combos[i], Result: res, Score: score}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortResults(results)
	return results, nil
}

// SortResults orders results by descending score, keeping enumeration order
// for ties. NaN scores sort last.
func SortResults(results []OptimizationResult) {
	sort.SliceStable(results, func(a, b int) bool {
		sa, sb := results[a].Score, results[b].Score
		if math.IsNaN(sa) {
			return false
		}
		return math.IsNaN(sb) || sa > sb
	})
}

// TopK returns at most k best results
func TopK(results []OptimizationResult, k int) []OptimizationResult {
	if k <= 0 || k >= len(results) {
		return results
	}
	return results[:k]
}

func validateMetric(metric string) error {
	_, err := Metrics{}.Value(metric)
	return err
}

// buildStrategies constructs every trial up front so configuration errors
// surface before any simulation work
func buildStrategies(strategyType string, base models.StrategyConfig, combos []map[string]interface{}) ([]strategy.Strategy, error) {
	strategies := make([]strategy.Strategy, len(combos))
	for i, combo := range combos {
		strat, err := strategy.New(strategyType, base.WithParameters(combo))
		if err != nil {
			return nil, fmt.Errorf("failed to build trial %d %v: %w", i, combo, err)
		}
		strategies[i] = strat
	}
	return strategies, nil
}
