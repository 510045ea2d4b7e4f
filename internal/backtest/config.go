package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/yourusername/quantlab/internal/config"
)

// Defaults applied when a field is left at its zero value
const (
	DefaultRiskFreeRate       = 0.03
	DefaultTradingDaysPerYear = 252
	DefaultInterval           = "1d"
	DefaultWorkers            = 4
)

// BacktestConfig extends core config with engine-specific settings.
// A nil RiskFreeRate means DefaultRiskFreeRate; an explicit 0 is kept.
type BacktestConfig struct {
	Symbol               string
	StartDate            time.Time
	EndDate              time.Time
	InitialCapital       float64
	RiskFreeRate         *float64
	TradingDaysPerYear   int
	Interval             string
	Workers              int
	OutputPath           string
	MonteCarloIterations int
	MonteCarloSeed       int64
}

// DefaultConfig returns an engine config with the standard annualization constants
func DefaultConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:     10000,
		RiskFreeRate:       Rate(DefaultRiskFreeRate),
		TradingDaysPerYear: DefaultTradingDaysPerYear,
		Interval:           DefaultInterval,
		Workers:            DefaultWorkers,
	}
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.Config) (BacktestConfig, error) {
	if cfg == nil {
		return BacktestConfig{}, fmt.Errorf("backtest config is required")
	}
	start, end, err := cfg.BacktestWindow()
	if err != nil {
		return BacktestConfig{}, err
	}

	bt := BacktestConfig{
		Symbol:               cfg.Backtest.Symbol,
		StartDate:            start,
		EndDate:              end,
		InitialCapital:       cfg.Backtest.InitialCapital,
		RiskFreeRate:         Rate(cfg.Backtest.RiskFreeRate),
		TradingDaysPerYear:   cfg.Backtest.TradingDaysPerYear,
		Interval:             cfg.DataSource.Interval,
		Workers:              cfg.Optimizer.Workers,
		OutputPath:           cfg.Backtest.OutputPath,
		MonteCarloIterations: cfg.MonteCarlo.Iterations,
		MonteCarloSeed:       cfg.MonteCarlo.Seed,
	}

	bt = bt.withDefaults()
	return bt, bt.Validate()
}

// Rate returns a pointer for the optional rate fields of BacktestConfig
func Rate(v float64) *float64 {
	return &v
}

// RiskFree returns the configured annual risk-free rate or the default
func (b BacktestConfig) RiskFree() float64 {
	if b.RiskFreeRate == nil {
		return DefaultRiskFreeRate
	}
	return *b.RiskFreeRate
}

func (b BacktestConfig) withDefaults() BacktestConfig {
	if b.RiskFreeRate == nil {
		b.RiskFreeRate = Rate(DefaultRiskFreeRate)
	}
	if b.TradingDaysPerYear <= 0 {
		b.TradingDaysPerYear = DefaultTradingDaysPerYear
	}
	if b.Interval == "" {
		b.Interval = DefaultInterval
	}
	if b.Workers <= 0 {
		b.Workers = DefaultWorkers
	}
	return b
}

// Validate validates backtest config parameters
func (b BacktestConfig) Validate() error {
	if !b.StartDate.IsZero() && !b.EndDate.IsZero() && b.StartDate.After(b.EndDate) {
		return fmt.Errorf("start date must be before end date")
	}
	if b.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	if rf := b.RiskFree(); rf < 0 || rf > 1 || math.IsNaN(rf) {
		return fmt.Errorf("risk free rate must be between 0 and 1")
	}
	if b.TradingDaysPerYear <= 0 {
		return fmt.Errorf("trading days per year must be positive")
	}
	if b.MonteCarloIterations < 0 {
		return fmt.Errorf("monte carlo iterations cannot be negative")
	}
	return nil
}
