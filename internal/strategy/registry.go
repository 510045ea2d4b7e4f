package strategy

import (
	"fmt"
	"sort"

	"github.com/yourusername/quantlab/internal/models"
)

// Constructor builds a strategy from its configuration
type Constructor func(cfg models.StrategyConfig) (Strategy, error)

var constructors = map[string]Constructor{
	MACrossoverType: func(cfg models.StrategyConfig) (Strategy, error) {
		return NewMACrossoverStrategy(cfg)
	},
	RSIReversionType: func(cfg models.StrategyConfig) (Strategy, error) {
		return NewRSIReversionStrategy(cfg)
	},
}

// New constructs a strategy of the given type
func New(strategyType string, cfg models.StrategyConfig) (Strategy, error) {
	build, ok := constructors[strategyType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategyType)
	}
	return build(cfg)
}

// Types lists registered strategy types in sorted order
func Types() []string {
	types := make([]string, 0, len(constructors))
	for name := range constructors {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
