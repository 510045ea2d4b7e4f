package indicator

import (
	"math"
	"math/rand"
	"testing"
)

func naiveMean(series []float64, end, period int) float64 {
	sum := 0.0
	for _, v := range series[end-period+1 : end+1] {
		sum += v
	}
	return sum / float64(period)
}

func TestMovingAverageMatchesNaiveMean(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	series := make([]float64, 200)
	for i := range series {
		series[i] = 100 + rng.NormFloat64()*5
	}

	for _, period := range []int{1, 3, 14, 50} {
		ma := MovingAverage(series, period)
		if len(ma) != len(series) {
			t.Fatalf("period %d: expected length %d, got %d", period, len(series), len(ma))
		}
		for i := range series {
			if i < period-1 {
				if !math.IsNaN(ma[i]) {
					t.Fatalf("period %d: expected NaN at %d, got %f", period, i, ma[i])
				}
				continue
			}
			if want := naiveMean(series, i, period); ma[i] != want {
				t.Fatalf("period %d index %d: expected %v, got %v", period, i, want, ma[i])
			}
		}
	}
}

func TestMovingAverageShortSeries(t *testing.T) {
	ma := MovingAverage([]float64{1, 2}, 5)
	if len(ma) != 2 || !math.IsNaN(ma[0]) || !math.IsNaN(ma[1]) {
		t.Fatalf("expected two NaN values, got %v", ma)
	}
	if got := MovingAverage(nil, 3); len(got) != 0 {
		t.Fatalf("expected empty output, got %v", got)
	}
}

func TestExponentialMovingAverage(t *testing.T) {
	series := []float64{10, 11, 12, 13}
	ema := ExponentialMovingAverage(series, 3)
	k := 2.0 / 4.0
	want := []float64{10}
	for i := 1; i < len(series); i++ {
		want = append(want, (series[i]-want[i-1])*k+want[i-1])
	}
	for i := range want {
		if ema[i] != want[i] {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], ema[i])
		}
	}
}

func TestRSIBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	series := make([]float64, 500)
	price := 50.0
	for i := range series {
		price += rng.NormFloat64()
		series[i] = price
	}
	for i, v := range RSI(series, DefaultRSIPeriod) {
		if v < 0 || v > 100 || math.IsNaN(v) {
			t.Fatalf("rsi out of range at %d: %f", i, v)
		}
	}
}

func TestRSINeutralCases(t *testing.T) {
	flat := []float64{5, 5, 5, 5, 5, 5}
	for i, v := range RSI(flat, 3) {
		if v != 50 {
			t.Fatalf("expected neutral rsi at %d, got %f", i, v)
		}
	}

	rising := []float64{1, 2, 3, 4, 5, 6}
	rsi := RSI(rising, 3)
	if rsi[1] != 50 {
		t.Fatalf("expected 50 during warm-up, got %f", rsi[1])
	}
	// no losses in the window: average loss is zero
	if rsi[5] != 50 {
		t.Fatalf("expected 50 with zero average loss, got %f", rsi[5])
	}

	mixed := []float64{10, 12, 11, 13}
	got := RSI(mixed, 3)[3]
	// gains 2,0,2 losses 0,1,0 -> rs = (4/3)/(1/3) = 4
	if want := 100 - 100/(1+4.0); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}
