package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/yourusername/quantlab/internal/models"
)

func barsFromCloses(closes ...float64) []models.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		bars[i] = models.PricePoint{
			Timestamp: start.AddDate(0, 0, i),
			Symbol:    "TEST",
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func crossoverConfig(short, long any) models.StrategyConfig {
	return models.StrategyConfig{
		Name:           "crossover",
		Parameters:     map[string]any{"shortPeriod": short, "longPeriod": long},
		RiskManagement: models.RiskManagement{MaxPositionSize: 10},
		Commission:     1,
	}
}

func TestMACrossoverSignals(t *testing.T) {
	strat, err := NewMACrossoverStrategy(crossoverConfig(2, 3))
	if err != nil {
		t.Fatalf("NewMACrossoverStrategy failed: %v", err)
	}
	bars := barsFromCloses(10, 10, 10, 10, 20, 5, 5)

	for i := 0; i < 3; i++ {
		sig := strat.GenerateSignal(bars[:i+1], i)
		if sig.Type != models.SignalHold || sig.Quantity != 0 {
			t.Fatalf("index %d: expected HOLD before long period, got %+v", i, sig)
		}
	}

	buy := strat.GenerateSignal(bars[:5], 4)
	if buy.Type != models.SignalBuy {
		t.Fatalf("expected BUY at index 4, got %s", buy.Type)
	}
	if buy.Quantity != 10 || buy.Confidence != 0.8 || buy.Price != 20 {
		t.Fatalf("unexpected buy signal: %+v", buy)
	}

	if hold := strat.GenerateSignal(bars[:6], 5); hold.Type != models.SignalHold || hold.Confidence != 0 {
		t.Fatalf("expected HOLD at index 5, got %+v", hold)
	}

	sell := strat.GenerateSignal(bars, 6)
	if sell.Type != models.SignalSell || sell.Quantity != 10 {
		t.Fatalf("expected SELL at index 6, got %+v", sell)
	}
}

func TestMACrossoverFirstEligibleIndex(t *testing.T) {
	strat, err := NewMACrossoverStrategy(crossoverConfig(2, 5))
	if err != nil {
		t.Fatalf("NewMACrossoverStrategy failed: %v", err)
	}
	bars := barsFromCloses(1, 1, 1, 1, 1, 50)
	if sig := strat.GenerateSignal(bars, 4); sig.Type != models.SignalHold {
		t.Fatalf("expected HOLD before longPeriod bars of history, got %s", sig.Type)
	}
	// both averages at index 4 cover full windows, so index 5 can cross
	if sig := strat.GenerateSignal(bars, 5); sig.Type != models.SignalBuy {
		t.Fatalf("expected BUY at index == longPeriod, got %s", sig.Type)
	}
}

func TestCrossDirectionUndefinedAverageIsHold(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name      string
		prevShort float64
		prevLong  float64
		currShort float64
		currLong  float64
		want      models.SignalType
	}{
		{"cross up", 1, 1, 2, 1, models.SignalBuy},
		{"cross down", 1, 1, 1, 2, models.SignalSell},
		{"NaN previous long", 1, nan, 2, 1, models.SignalHold},
		{"NaN previous short", nan, 1, 1, 2, models.SignalHold},
		{"NaN current long", 1, 1, 2, nan, models.SignalHold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := crossDirection(tt.prevShort, tt.prevLong, tt.currShort, tt.currLong); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMACrossoverNaNCloseIsHold(t *testing.T) {
	strat, err := NewMACrossoverStrategy(crossoverConfig(2, 5))
	if err != nil {
		t.Fatalf("NewMACrossoverStrategy failed: %v", err)
	}
	bars := barsFromCloses(1, 1, 1, 1, 1, 50)
	bars[4].Close = math.NaN()
	if sig := strat.GenerateSignal(bars, 5); sig.Type != models.SignalHold {
		t.Fatalf("expected HOLD when the averages are undefined, got %s", sig.Type)
	}
}

func TestMACrossoverParameterCoercion(t *testing.T) {
	for _, tc := range []struct {
		name        string
		short, long any
		wantErr     bool
	}{
		{"ints", 5, 20, false},
		{"floats", 5.0, 20.0, false},
		{"strings", "5", "20", false},
		{"fractional", 5.5, 20, true},
		{"garbage", "abc", 20, true},
		{"long not above short", 20, 20, true},
		{"zero short", 0, 20, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			strat, err := NewMACrossoverStrategy(crossoverConfig(tc.short, tc.long))
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("expected ErrInvalidParameter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strat.ShortPeriod != 5 || strat.LongPeriod != 20 {
				t.Fatalf("unexpected periods %d/%d", strat.ShortPeriod, strat.LongPeriod)
			}
		})
	}
}

func TestRSIReversionSignals(t *testing.T) {
	cfg := models.StrategyConfig{
		Name:           "rsi",
		Parameters:     map[string]any{"period": 2, "oversold": 30, "overbought": 70},
		RiskManagement: models.RiskManagement{MaxPositionSize: 1},
	}
	strat, err := NewRSIReversionStrategy(cfg)
	if err != nil {
		t.Fatalf("NewRSIReversionStrategy failed: %v", err)
	}

	// losses drive RSI to 0, a rally lifts it back, a sharp jump overshoots 70
	bars := barsFromCloses(10, 9, 8, 9, 10, 9, 13, 12, 11)
	var types []models.SignalType
	for i := range bars {
		types = append(types, strat.GenerateSignal(bars[:i+1], i).Type)
	}
	if types[3] != models.SignalBuy {
		t.Fatalf("expected BUY at index 3, got %v", types)
	}
	if types[8] != models.SignalSell {
		t.Fatalf("expected SELL at index 8, got %v", types)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New("does_not_exist", crossoverConfig(5, 20))
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := crossoverConfig(5, 20)
	cfg.RiskManagement.MaxPositionSize = 0
	if _, err := New(MACrossoverType, cfg); err == nil {
		t.Fatalf("expected validation error for zero position size")
	}

	cfg = crossoverConfig(5, 20)
	cfg.Name = ""
	if _, err := New(MACrossoverType, cfg); err == nil {
		t.Fatalf("expected validation error for missing name")
	}
}

func TestTypesSorted(t *testing.T) {
	types := Types()
	if len(types) != 2 || types[0] != MACrossoverType || types[1] != RSIReversionType {
		t.Fatalf("unexpected types %v", types)
	}
}

func TestParametersLookupIgnoresCase(t *testing.T) {
	cfg := models.StrategyConfig{
		Name:           "lowercased",
		Parameters:     map[string]any{"shortperiod": 3, "longperiod": 8},
		RiskManagement: models.RiskManagement{MaxPositionSize: 1},
	}
	strat, err := NewMACrossoverStrategy(cfg)
	if err != nil {
		t.Fatalf("NewMACrossoverStrategy failed: %v", err)
	}
	if strat.ShortPeriod != 3 || strat.LongPeriod != 8 {
		t.Fatalf("expected 3/8, got %d/%d", strat.ShortPeriod, strat.LongPeriod)
	}

	override := cfg.WithParameters(map[string]any{"shortPeriod": 5})
	if _, ok := override.Parameters["shortperiod"]; ok {
		t.Fatalf("expected lowercased duplicate to be replaced")
	}
	if cfg.Parameters["shortperiod"] != 3 {
		t.Fatalf("expected base config to be left untouched")
	}
}
