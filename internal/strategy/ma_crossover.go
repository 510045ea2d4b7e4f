package strategy

import (
	"fmt"

	"github.com/yourusername/quantlab/internal/indicator"
	"github.com/yourusername/quantlab/internal/models"
)

// MACrossoverType is the registry key of the moving-average crossover strategy
const MACrossoverType = "ma_crossover"

const crossoverConfidence = 0.8

// MACrossoverStrategy buys when the short moving average crosses above the long
// one and sells on the opposite cross
type MACrossoverStrategy struct {
	BaseStrategy
	ShortPeriod int
	LongPeriod  int
}

// NewMACrossoverStrategy creates a crossover strategy from config parameters
// shortPeriod (default 10) and longPeriod (default 30)
func NewMACrossoverStrategy(cfg models.StrategyConfig) (*MACrossoverStrategy, error) {
	base, err := newBaseStrategy(cfg)
	if err != nil {
		return nil, err
	}
	short, err := base.IntParameter("shortPeriod", 10)
	if err != nil {
		return nil, err
	}
	long, err := base.IntParameter("longPeriod", 30)
	if err != nil {
		return nil, err
	}
	if short < 1 {
		return nil, fmt.Errorf("%w: shortPeriod must be at least 1, got %d", ErrInvalidParameter, short)
	}
	if long <= short {
		return nil, fmt.Errorf("%w: longPeriod (%d) must exceed shortPeriod (%d)", ErrInvalidParameter, long, short)
	}
	return &MACrossoverStrategy{BaseStrategy: base, ShortPeriod: short, LongPeriod: long}, nil
}

// GenerateSignal emits BUY/SELL on a crossover at index, HOLD otherwise
func (s *MACrossoverStrategy) GenerateSignal(history []models.PricePoint, index int) models.Signal {
	if index < 0 || index >= len(history) {
		return models.Signal{Type: models.SignalHold}
	}
	bar := history[index]
	if index < s.LongPeriod {
		return models.HoldSignal(bar)
	}

	closes := models.Closes(history[:index+1])
	shortMA := indicator.MovingAverage(closes, s.ShortPeriod)
	longMA := indicator.MovingAverage(closes, s.LongPeriod)

	prevShort, prevLong := shortMA[index-1], longMA[index-1]
	currShort, currLong := shortMA[index], longMA[index]

	switch crossDirection(prevShort, prevLong, currShort, currLong) {
	case models.SignalBuy:
		return s.signal(models.SignalBuy, bar, crossoverConfidence, "short average crossed above long average")
	case models.SignalSell:
		return s.signal(models.SignalSell, bar, crossoverConfidence, "short average crossed below long average")
	default:
		return models.HoldSignal(bar)
	}
}

// crossDirection classifies a pair of consecutive average readings.
// NaN comparisons are false, so an undefined average always yields HOLD.
func crossDirection(prevShort, prevLong, currShort, currLong float64) models.SignalType {
	switch {
	case prevShort <= prevLong && currShort > currLong:
		return models.SignalBuy
	case prevShort >= prevLong && currShort < currLong:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}

// GetParameters returns strategy parameters for export
func (s *MACrossoverStrategy) GetParameters() map[string]interface{} {
	return map[string]interface{}{
		"shortPeriod": s.ShortPeriod,
		"longPeriod":  s.LongPeriod,
	}
}
