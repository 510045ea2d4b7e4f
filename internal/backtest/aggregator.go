package backtest

import (
	"encoding/json"
	"math"
)

// Recommendations produced by GenerateRecommendation
const (
	RecommendationAccept      = "ACCEPT"
	RecommendationReject      = "REJECT"
	RecommendationNeedsReview = "NEEDS_REVIEW"
)

// AggregatedResult represents combined backtest outcomes
type AggregatedResult struct {
	StrategyName      string             `json:"strategy_name"`
	Symbol            string             `json:"symbol"`
	Historical        Metrics            `json:"historical"`
	MonteCarloResult  *MonteCarloResult  `json:"monte_carlo_result,omitempty"`
	WalkForwardResult *WalkForwardResult `json:"walk_forward_result,omitempty"`
	CompositeScore    float64            `json:"composite_score"`
	Weights           AggregationWeights `json:"weights"`
	Recommendation    string             `json:"recommendation"`
}

// AggregationWeights define weighting per method
type AggregationWeights struct {
	HistoricalReplay float64 `json:"historical_replay"`
	MonteCarlo       float64 `json:"monte_carlo"`
	WalkForward      float64 `json:"walk_forward"`
}

// DefaultAggregationWeights favours the full-period replay
func DefaultAggregationWeights() AggregationWeights {
	return AggregationWeights{HistoricalReplay: 0.5, MonteCarlo: 0.25, WalkForward: 0.25}
}

// AggregateResults combines the replay with optional Monte Carlo and
// walk-forward results. Weights of missing methods are redistributed.
func AggregateResults(historical *Result, monteCarlo *MonteCarloResult, walkForward *WalkForwardResult, weights AggregationWeights) AggregatedResult {
	agg := AggregatedResult{
		MonteCarloResult:  monteCarlo,
		WalkForwardResult: walkForward,
	}
	if historical != nil {
		agg.StrategyName = historical.StrategyName
		agg.Symbol = historical.Symbol
		agg.Historical = historical.Metrics
	}

	if monteCarlo == nil {
		weights.MonteCarlo = 0
	}
	if walkForward == nil {
		weights.WalkForward = 0
	}
	total := weights.HistoricalReplay + weights.MonteCarlo + weights.WalkForward
	if total <= 0 {
		weights = AggregationWeights{HistoricalReplay: 1}
		total = 1
	}
	weights.HistoricalReplay /= total
	weights.MonteCarlo /= total
	weights.WalkForward /= total
	agg.Weights = weights

	composite := CalculateCompositeScore(agg.Historical) * weights.HistoricalReplay
	if monteCarlo != nil {
		composite += normalize(monteCarlo.MeanReturn, -0.5, 1.0) * weights.MonteCarlo
	}
	if walkForward != nil {
		composite += normalize(walkForward.AverageReturn, -0.5, 1.0) * weights.WalkForward
	}
	agg.CompositeScore = composite
	agg.Recommendation = GenerateRecommendation(composite, agg.Historical.TotalReturn, walkForward)
	return agg
}

// CalculateCompositeScore calculates a weighted [0,1] score from metrics
func CalculateCompositeScore(metrics Metrics) float64 {
	sharpeScore := normalize(metrics.SharpeRatio, -2, 3)
	roiScore := normalize(metrics.TotalReturn, -0.5, 1.0)
	profitFactorScore := normalize(metrics.ProfitFactor, 0, 3)
	drawdownPenalty := 1.0 - normalize(metrics.MaxDrawdown, 0, 0.5)
	winRateScore := normalize(metrics.WinRate, 0, 1)

	weighted := 0.0
	weighted += sharpeScore * 0.30
	weighted += roiScore * 0.20
	weighted += profitFactorScore * 0.20
	weighted += drawdownPenalty * 0.15
	weighted += winRateScore * 0.15
	return weighted
}

// GenerateRecommendation determines if strategy is acceptable.
// Without walk-forward evidence a strategy is at best NEEDS_REVIEW.
func GenerateRecommendation(score float64, historicalReturn float64, walkForward *WalkForwardResult) string {
	if walkForward == nil {
		if score < 0.4 || historicalReturn < 0 {
			return RecommendationReject
		}
		return RecommendationNeedsReview
	}

	consistency := walkForward.ProfitableFraction
	wfReturn := walkForward.AverageReturn
	if score > 0.7 && historicalReturn > 0 && wfReturn > 0 && consistency > 0.6 {
		return RecommendationAccept
	}
	if score < 0.4 || historicalReturn < 0 || wfReturn < 0 || consistency < 0.4 {
		return RecommendationReject
	}
	return RecommendationNeedsReview
}

// ToJSON exports the aggregated result
func (a AggregatedResult) ToJSON() string {
	data, _ := json.Marshal(a)
	return string(data)
}

func normalize(value, min, max float64) float64 {
	if max-min == 0 || math.IsNaN(value) {
		return 0
	}
	v := (value - min) / (max - min)
	return math.Max(0, math.Min(1, v))
}
