package backtest

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yourusername/quantlab/internal/datasource"
	"github.com/yourusername/quantlab/internal/models"
	"github.com/yourusername/quantlab/internal/strategy"
)

func maConfig() models.StrategyConfig {
	return models.StrategyConfig{
		Name:           "ma",
		Parameters:     map[string]interface{}{"shortPeriod": 10, "longPeriod": 30},
		RiskManagement: models.RiskManagement{MaxPositionSize: 1},
	}
}

func mustStrategy(t *testing.T, cfg models.StrategyConfig) strategy.Strategy {
	t.Helper()
	strat, err := strategy.New(strategy.MACrossoverType, cfg)
	if err != nil {
		t.Fatalf("strategy.New failed: %v", err)
	}
	return strat
}

func gridRanges() []ParameterRange {
	return []ParameterRange{
		{Name: "shortPeriod", Min: 5, Max: 10, Step: 5},
		{Name: "longPeriod", Min: 20, Max: 30, Step: 10},
	}
}

type countingProvider struct {
	bars  []models.PricePoint
	loads atomic.Int32
}

func (p *countingProvider) LoadHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	p.loads.Add(1)
	return staticProvider(p.bars).LoadHistoricalData(ctx, symbol, start, end, interval)
}

func buildTestOptimizer(t *testing.T, provider datasource.Provider, capital float64) *Optimizer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.InitialCapital = capital
	engine, err := NewEngine(cfg, provider, quietLogger())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	opt, err := NewOptimizer(engine, 2)
	if err != nil {
		t.Fatalf("NewOptimizer failed: %v", err)
	}
	return opt
}

func TestGenerateCombinationsOrder(t *testing.T) {
	combos, err := GenerateCombinations(gridRanges())
	if err != nil {
		t.Fatalf("GenerateCombinations failed: %v", err)
	}
	want := [][2]float64{{5, 20}, {5, 30}, {10, 20}, {10, 30}}
	if len(combos) != len(want) {
		t.Fatalf("expected %d combinations, got %d", len(want), len(combos))
	}
	for i, w := range want {
		if combos[i]["shortPeriod"] != w[0] || combos[i]["longPeriod"] != w[1] {
			t.Fatalf("combination %d: expected %v, got %v", i, w, combos[i])
		}
	}
}

func TestGenerateCombinationsFractionalSteps(t *testing.T) {
	combos, err := GenerateCombinations([]ParameterRange{{Name: "x", Min: 0.1, Max: 0.3, Step: 0.1}})
	if err != nil {
		t.Fatalf("GenerateCombinations failed: %v", err)
	}
	if len(combos) != 3 || combos[2]["x"] != 0.3 {
		t.Fatalf("expected inclusive upper bound 0.3, got %v", combos)
	}

	none, err := GenerateCombinations(nil)
	if err != nil || len(none) != 1 || len(none[0]) != 0 {
		t.Fatalf("expected single empty combination, got %v (%v)", none, err)
	}
}

func TestGenerateCombinationsInvalid(t *testing.T) {
	cases := map[string][]ParameterRange{
		"zero step":  {{Name: "x", Min: 1, Max: 2, Step: 0}},
		"inverted":   {{Name: "x", Min: 3, Max: 2, Step: 1}},
		"no name":    {{Min: 1, Max: 2, Step: 1}},
		"duplicate":  {{Name: "x", Min: 1, Max: 2, Step: 1}, {Name: "x", Min: 1, Max: 2, Step: 1}},
		"nan bounds": {{Name: "x", Min: math.NaN(), Max: 2, Step: 1}},
		"huge axis":  {{Name: "x", Min: 0, Max: 1e300, Step: 1e-300}},
		"inf bounds": {{Name: "x", Min: math.Inf(-1), Max: math.Inf(1), Step: 1}},
		"huge grid": {
			{Name: "a", Min: 1, Max: 1000, Step: 1},
			{Name: "b", Min: 1, Max: 1000, Step: 1},
			{Name: "c", Min: 1, Max: 1000, Step: 1},
		},
	}
	for name, ranges := range cases {
		if _, err := GenerateCombinations(ranges); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("%s: expected ErrInvalidRange, got %v", name, err)
		}
	}
}

func TestOptimizeStrategyRanksAllCombinations(t *testing.T) {
	bars := waveBars(150)
	provider := &countingProvider{bars: bars}
	opt := buildTestOptimizer(t, provider, 1000)

	results, err := opt.OptimizeStrategy(context.Background(), strategy.MACrossoverType, maConfig(), gridRanges(),
		"TEST", testStart, lastDay(bars), MetricTotalReturn)
	if err != nil {
		t.Fatalf("OptimizeStrategy failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if provider.loads.Load() != 1 {
		t.Fatalf("expected bars loaded once, got %d", provider.loads.Load())
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted descending at %d", i)
		}
	}
	seen := map[[2]float64]bool{}
	for _, r := range results {
		key := [2]float64{r.Parameters["shortPeriod"].(float64), r.Parameters["longPeriod"].(float64)}
		seen[key] = true
		if r.Result.Parameters["shortPeriod"] != int(key[0]) {
			t.Fatalf("result parameters do not match combination %v", r.Parameters)
		}
		if r.Score != r.Result.Metrics.TotalReturn {
			t.Fatalf("score must equal the chosen metric")
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 distinct combinations, got %v", seen)
	}
	if len(TopK(results, 2)) != 2 || len(TopK(results, 10)) != 4 {
		t.Fatalf("unexpected TopK lengths")
	}
}

func TestOptimizeStrategyRejectsBeforeSimulating(t *testing.T) {
	provider := &countingProvider{bars: waveBars(60)}
	opt := buildTestOptimizer(t, provider, 1000)
	ctx := context.Background()

	_, err := opt.OptimizeStrategy(ctx, strategy.MACrossoverType, maConfig(), gridRanges(), "TEST", testStart, testStart.AddDate(0, 3, 0), "alpha")
	if !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}

	_, err = opt.OptimizeStrategy(ctx, "martingale", maConfig(), gridRanges(), "TEST", testStart, testStart.AddDate(0, 3, 0), MetricSharpeRatio)
	if !errors.Is(err, strategy.ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}

	// shortPeriod 40 is not below longPeriod 30
	bad := []ParameterRange{{Name: "shortPeriod", Min: 10, Max: 40, Step: 30}}
	_, err = opt.OptimizeStrategy(ctx, strategy.MACrossoverType, maConfig(), bad, "TEST", testStart, testStart.AddDate(0, 3, 0), MetricSharpeRatio)
	if !errors.Is(err, strategy.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}

	if provider.loads.Load() != 0 {
		t.Fatalf("expected no data loads before validation passes, got %d", provider.loads.Load())
	}
}

func TestOptimizeStrategyFailsFast(t *testing.T) {
	bars := waveBars(60)
	opt := buildTestOptimizer(t, staticProvider(bars), 0)

	results, err := opt.OptimizeStrategy(context.Background(), strategy.MACrossoverType, maConfig(), gridRanges(),
		"TEST", testStart, lastDay(bars), MetricSharpeRatio)
	if err == nil {
		t.Fatalf("expected trial failure to abort optimization")
	}
	if results != nil {
		t.Fatalf("expected no partial ranking, got %d results", len(results))
	}
}

func TestSortResultsStableWithNaNLast(t *testing.T) {
	results := []OptimizationResult{
		{Score: 1, Parameters: map[string]interface{}{"i": 0}},
		{Score: math.NaN(), Parameters: map[string]interface{}{"i": 1}},
		{Score: 2, Parameters: map[string]interface{}{"i": 2}},
		{Score: 1, Parameters: map[string]interface{}{"i": 3}},
	}
	SortResults(results)
	order := []int{2, 0, 3, 1}
	for i, want := range order {
		if results[i].Parameters["i"] != want {
			t.Fatalf("position %d: expected trial %d, got %v", i, want, results[i].Parameters["i"])
		}
	}
}
