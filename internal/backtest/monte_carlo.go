package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/yourusername/quantlab/internal/models"
)

// DefaultMonteCarloIterations is used when the iteration count is unset
const DefaultMonteCarloIterations = 1000

// MonteCarloConfig configures the trade bootstrap.
// A zero Seed draws one from the clock.
type MonteCarloConfig struct {
	Iterations     int
	Seed           int64
	InitialCapital float64
}

// MonteCarloResult represents monte carlo outcomes
type MonteCarloResult struct {
	Iterations          int                `json:"iterations"`
	Seed                int64              `json:"seed"`
	SampledTrades       int                `json:"sampled_trades"`
	MeanReturn          float64            `json:"mean_return"`
	StdReturn           float64            `json:"std_return"`
	VaR95               float64            `json:"var_95"`
	VaR99               float64            `json:"var_99"`
	ProbabilityOfProfit float64            `json:"probability_of_profit"`
	ProbabilityOfRuin   float64            `json:"probability_of_ruin"`
	ConfidenceIntervals map[string]float64 `json:"confidence_intervals"`
	Distribution        []float64          `json:"distribution,omitempty"`
}

// RunMonteCarlo resamples completed-trade P&L with replacement. Each
// iteration draws as many trades as were completed and adds them to
// the initial capital; an iteration that reaches zero equity is ruined.
func RunMonteCarlo(ctx context.Context, trades []models.Trade, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if cfg.InitialCapital <= 0 {
		return MonteCarloResult{}, fmt.Errorf("initial capital must be positive")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultMonteCarloIterations
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	pnls := completedPnL(trades)
	rng := rand.New(rand.NewSource(seed))
	distribution := make([]float64, cfg.Iterations)

	for i := 0; i < cfg.Iterations; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return MonteCarloResult{}, err
			}
		}
		equity := cfg.InitialCapital
		for range pnls {
			equity += pnls[rng.Intn(len(pnls))]
			if equity <= 0 {
				equity = 0
				break
			}
		}
		distribution[i] = equity
	}

	mean, std := meanStd(distribution)
	var95 := percentile(distribution, 0.05)
	var99 := percentile(distribution, 0.01)

	result := MonteCarloResult{
		Iterations:          cfg.Iterations,
		Seed:                seed,
		SampledTrades:       len(pnls),
		MeanReturn:          (mean - cfg.InitialCapital) / cfg.InitialCapital,
		StdReturn:           std / cfg.InitialCapital,
		VaR95:               (var95 - cfg.InitialCapital) / cfg.InitialCapital,
		VaR99:               (var99 - cfg.InitialCapital) / cfg.InitialCapital,
		ProbabilityOfProfit: probabilityAbove(distribution, cfg.InitialCapital),
		ProbabilityOfRuin:   probabilityAtOrBelow(distribution, 0),
		ConfidenceIntervals: CalculateConfidenceIntervals(distribution, []float64{0.9, 0.95, 0.99}),
		Distribution:        distribution,
	}

	return result, nil
}

func completedPnL(trades []models.Trade) []float64 {
	pnls := []float64{}
	for i := range trades {
		if trades[i].IsCompleted() {
			pnls = append(pnls, *trades[i].PnL)
		}
	}
	return pnls
}

// CalculateConfidenceIntervals computes the width of central intervals of distribution
func CalculateConfidenceIntervals(distribution []float64, levels []float64) map[string]float64 {
	results := make(map[string]float64)
	for _, level := range levels {
		p := (1.0 - level) / 2.0
		low := percentile(distribution, p)
		high := percentile(distribution, 1.0-p)
		results[formatPercent(level)] = high - low
	}
	return results
}

// ToJSON exports monte carlo result
func (m MonteCarloResult) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func meanStd(values []float64) (float64, float64) {
	return average(values), stddev(values)
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	valuesCopy := append([]float64{}, values...)
	sort.Float64s(valuesCopy)
	idx := int(math.Floor(p * float64(len(valuesCopy)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(valuesCopy) {
		idx = len(valuesCopy) - 1
	}
	return valuesCopy[idx]
}

func probabilityAbove(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func probabilityAtOrBelow(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v <= threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func formatPercent(level float64) string {
	return fmt.Sprintf("%.0f%%", level*100)
}
