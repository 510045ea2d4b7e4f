package strategy

import (
	"fmt"
	"math"

	"github.com/yourusername/quantlab/internal/indicator"
	"github.com/yourusername/quantlab/internal/models"
)

// RSIReversionType is the registry key of the RSI mean-reversion strategy
const RSIReversionType = "rsi_reversion"

// RSIReversionStrategy buys when RSI recovers through the oversold level and
// sells when it falls back through the overbought level
type RSIReversionStrategy struct {
	BaseStrategy
	Period     int
	Oversold   float64
	Overbought float64
}

// NewRSIReversionStrategy creates an RSI strategy from config parameters
// period (default 14), oversold (default 30) and overbought (default 70)
func NewRSIReversionStrategy(cfg models.StrategyConfig) (*RSIReversionStrategy, error) {
	base, err := newBaseStrategy(cfg)
	if err != nil {
		return nil, err
	}
	period, err := base.IntParameter("period", indicator.DefaultRSIPeriod)
	if err != nil {
		return nil, err
	}
	oversold, err := base.FloatParameter("oversold", 30)
	if err != nil {
		return nil, err
	}
	overbought, err := base.FloatParameter("overbought", 70)
	if err != nil {
		return nil, err
	}
	if period < 1 {
		return nil, fmt.Errorf("%w: period must be at least 1, got %d", ErrInvalidParameter, period)
	}
	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return nil, fmt.Errorf("%w: need 0 < oversold < overbought < 100, got %v/%v", ErrInvalidParameter, oversold, overbought)
	}
	return &RSIReversionStrategy{
		BaseStrategy: base,
		Period:       period,
		Oversold:     oversold,
		Overbought:   overbought,
	}, nil
}

// GenerateSignal emits BUY/SELL when RSI crosses a threshold at index
func (s *RSIReversionStrategy) GenerateSignal(history []models.PricePoint, index int) models.Signal {
	if index < 0 || index >= len(history) {
		return models.Signal{Type: models.SignalHold}
	}
	bar := history[index]
	if index < s.Period {
		return models.HoldSignal(bar)
	}

	rsi := indicator.RSI(models.Closes(history[:index+1]), s.Period)
	prev, curr := rsi[index-1], rsi[index]
	confidence := math.Abs(curr-50) / 50

	switch {
	case prev <= s.Oversold && curr > s.Oversold:
		return s.signal(models.SignalBuy, bar, confidence, "rsi recovered from oversold")
	case prev >= s.Overbought && curr < s.Overbought:
		return s.signal(models.SignalSell, bar, confidence, "rsi fell from overbought")
	default:
		return models.HoldSignal(bar)
	}
}

// GetParameters returns strategy parameters for export
func (s *RSIReversionStrategy) GetParameters() map[string]interface{} {
	return map[string]interface{}{
		"period":     s.Period,
		"oversold":   s.Oversold,
		"overbought": s.Overbought,
	}
}
