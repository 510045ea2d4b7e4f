package strategy

import (
	"github.com/yourusername/quantlab/internal/models"
)

// Strategy defines the interface for backtesting strategies.
// GenerateSignal receives only the bars up to and including index.
type Strategy interface {
	Name() string
	Config() models.StrategyConfig
	GenerateSignal(history []models.PricePoint, index int) models.Signal
	GetParameters() map[string]interface{}
}

// StrategyMetadata describes a strategy for tracking and export
type StrategyMetadata struct {
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Describe builds metadata for a strategy instance
func Describe(strategyType string, s Strategy) StrategyMetadata {
	return StrategyMetadata{
		Name:       s.Name(),
		Type:       strategyType,
		Parameters: s.GetParameters(),
	}
}
