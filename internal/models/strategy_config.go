package models

import "strings"

// RiskManagement holds per-run risk limits
type RiskManagement struct {
	MaxPositionSize float64 `mapstructure:"max_position_size" json:"max_position_size" validate:"gt=0"`
	StopLoss        float64 `mapstructure:"stop_loss" json:"stop_loss,omitempty" validate:"gte=0,lt=1"`
	TakeProfit      float64 `mapstructure:"take_profit" json:"take_profit,omitempty" validate:"gte=0"`
	MaxDrawdown     float64 `mapstructure:"max_drawdown" json:"max_drawdown,omitempty" validate:"gte=0,lte=1"`
}

// StrategyConfig configures one strategy instance for a backtest run
type StrategyConfig struct {
	Name           string         `mapstructure:"name" json:"name" validate:"required"`
	Parameters     map[string]any `mapstructure:"parameters" json:"parameters"`
	RiskManagement RiskManagement `mapstructure:"risk_management" json:"risk_management"`
	Commission     float64        `mapstructure:"commission" json:"commission" validate:"gte=0"`
}

// WithParameters returns a copy of the config with the given parameters overridden
func (c StrategyConfig) WithParameters(overrides map[string]any) StrategyConfig {
	params := make(map[string]any, len(c.Parameters)+len(overrides))
	for k, v := range c.Parameters {
		params[k] = v
	}
	for k, v := range overrides {
		for existing := range params {
			if existing != k && strings.EqualFold(existing, k) {
				delete(params, existing)
			}
		}
		params[k] = v
	}
	c.Parameters = params
	return c
}
