package strategy

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"github.com/yourusername/quantlab/internal/models"
)

// Construction errors
var (
	ErrUnknownStrategy  = errors.New("unknown strategy type")
	ErrInvalidParameter = errors.New("invalid strategy parameter")
)

var configValidator = validator.New()

// BaseStrategy provides shared functionality for strategies
type BaseStrategy struct {
	config models.StrategyConfig
}

func newBaseStrategy(cfg models.StrategyConfig) (BaseStrategy, error) {
	if err := configValidator.Struct(cfg); err != nil {
		return BaseStrategy{}, fmt.Errorf("invalid strategy config %q: %w", cfg.Name, err)
	}
	return BaseStrategy{config: cfg}, nil
}

// Name returns the configured strategy name
func (b *BaseStrategy) Name() string {
	return b.config.Name
}

// Config returns the strategy configuration
func (b *BaseStrategy) Config() models.StrategyConfig {
	return b.config
}

// OrderQuantity is the quantity attached to BUY and SELL signals
func (b *BaseStrategy) OrderQuantity() float64 {
	return b.config.RiskManagement.MaxPositionSize
}

// parameter looks a key up exactly, then case-insensitively since viper
// lowercases map keys read from YAML
func (b *BaseStrategy) parameter(key string) (interface{}, bool) {
	if raw, ok := b.config.Parameters[key]; ok {
		return raw, raw != nil
	}
	for k, raw := range b.config.Parameters {
		if strings.EqualFold(k, key) {
			return raw, raw != nil
		}
	}
	return nil, false
}

// IntParameter reads an integer parameter, falling back to def when absent
func (b *BaseStrategy) IntParameter(key string, def int) (int, error) {
	raw, ok := b.parameter(key)
	if !ok {
		return def, nil
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, key, err)
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidParameter, key, raw)
	}
	return int(f), nil
}

// FloatParameter reads a numeric parameter, falling back to def when absent
func (b *BaseStrategy) FloatParameter(key string, def float64) (float64, error) {
	raw, ok := b.parameter(key)
	if !ok {
		return def, nil
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, key, err)
	}
	return f, nil
}

func (b *BaseStrategy) signal(kind models.SignalType, bar models.PricePoint, confidence float64, reason string) models.Signal {
	return models.Signal{
		Type:       kind,
		Timestamp:  bar.Timestamp,
		Price:      bar.Close,
		Quantity:   b.OrderQuantity(),
		Confidence: clampConfidence(confidence),
		Reason:     reason,
	}
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
