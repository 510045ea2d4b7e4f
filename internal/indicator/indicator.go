// Package indicator provides pure technical indicators over price series.
package indicator

import "math"

// DefaultRSIPeriod is the conventional RSI lookback
const DefaultRSIPeriod = 14

// MovingAverage returns the trailing simple moving average aligned to the input.
// Indices without a full window are NaN.
func MovingAverage(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	if period <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	for i := range series {
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		// summed per window; a running sum drifts and can go negative on zero runs
		sum := 0.0
		for _, v := range series[i-period+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(period)
	}
	return out
}

// ExponentialMovingAverage seeds with the first value and smooths with 2/(period+1)
func ExponentialMovingAverage(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = (series[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// RSI computes the relative strength index using simple-average smoothing of
// gains and losses. Values without a defined average loss are 50.
func RSI(series []float64, period int) []float64 {
	gains := make([]float64, len(series))
	losses := make([]float64, len(series))
	for i := 1; i < len(series); i++ {
		change := series[i] - series[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain := MovingAverage(gains, period)
	avgLoss := MovingAverage(losses, period)

	out := make([]float64, len(series))
	for i := range series {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) || l == 0 {
			out[i] = 50
			continue
		}
		out[i] = 100 - 100/(1+g/l)
	}
	return out
}
