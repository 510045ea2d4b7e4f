package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/quantlab/internal/datasource"
	"github.com/yourusername/quantlab/internal/logger"
	"github.com/yourusername/quantlab/internal/metrics"
	"github.com/yourusername/quantlab/internal/models"
	"github.com/yourusername/quantlab/internal/strategy"
)

// ErrNoData is returned when no valid bars remain for the requested window
var ErrNoData = errors.New("no valid historical data")

// Reasons an actionable signal was not filled
const (
	skipInsufficientCash = "insufficient_cash"
	skipNoPosition       = "no_position"
	skipMaxDrawdown      = "max_drawdown"
)

// Engine orchestrates backtesting runs
type Engine struct {
	config   BacktestConfig
	provider datasource.Provider
	logger   *logrus.Logger
	btLogger *logger.BacktestLogger
}

// NewEngine creates a new backtesting engine
func NewEngine(cfg BacktestConfig, provider datasource.Provider, log *logrus.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("data provider is required")
	}
	log = logger.OrDefault(log)
	cfg = cfg.withDefaults()

	return &Engine{
		config:   cfg,
		provider: provider,
		logger:   log,
		btLogger: logger.NewBacktestLogger(log),
	}, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() BacktestConfig {
	return e.config
}

// Logger returns the engine logger
func (e *Engine) Logger() *logrus.Logger {
	return e.logger
}

// RunBacktest loads bars for [start, end] once and replays them through strat
func (e *Engine) RunBacktest(ctx context.Context, strat strategy.Strategy, symbol string, start, end time.Time, initialCapital float64) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("strategy is required")
	}
	bars, err := e.LoadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	return e.Simulate(ctx, strat, symbol, bars, start, end, initialCapital)
}

// LoadBars fetches, windows and cleans historical bars
func (e *Engine) LoadBars(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	raw, err := e.provider.LoadHistoricalData(ctx, symbol, start, end, e.config.Interval)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", symbol, err)
	}

	bars := make([]models.PricePoint, 0, len(raw))
	invalid := 0
	for _, bar := range raw {
		if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
			continue
		}
		if !bar.IsValid() {
			invalid++
			continue
		}
		bars = append(bars, bar)
	}
	if invalid > 0 {
		metrics.RecordInvalidBars(invalid)
		e.btLogger.WithFields(logrus.Fields{
			"symbol":  symbol,
			"dropped": invalid,
		}).Debug("Dropped invalid bars")
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s between %s and %s", ErrNoData, symbol,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return bars, nil
}

// Simulate replays cleaned bars through strat. It is safe to call
// concurrently with distinct strategies since each call owns its portfolio.
func (e *Engine) Simulate(ctx context.Context, strat strategy.Strategy, symbol string, bars []models.PricePoint, start, end time.Time, initialCapital float64) (*Result, error) {
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %v", initialCapital)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	began := time.Now()
	name := strat.Name()
	cfg := strat.Config()
	e.btLogger.LogRunStarted(name, symbol, start, end, len(bars), initialCapital)

	runKey := fmt.Sprintf("%s:%s:%s:%s", name, symbol, HashParameters(strat.GetParameters()), bars[0].Timestamp.Format(time.RFC3339Nano))
	portfolio := NewPortfolio(runKey, initialCapital)
	curve := make(EquityCurve, 0, len(bars))

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decision := strat.GenerateSignal(bars[:i+1], i)
		signal, reason := applyRiskLimits(decision, cfg.RiskManagement, portfolio, symbol, bar, curve.CurrentDrawdown())
		if decision.IsActionable() && !signal.IsActionable() {
			e.skip(symbol, decision, bar, skipMaxDrawdown)
		}
		if signal.IsActionable() {
			metrics.RecordSignal(name, string(signal.Type), signal.Confidence)
			e.execute(portfolio, name, symbol, signal, bar, cfg.Commission, reason)
		}

		curve = curve.Append(bar.Timestamp, portfolio.TotalValue(map[string]float64{symbol: bar.Close}))
	}

	trades := portfolio.Ledger()
	result := &Result{
		StrategyName:   name,
		Symbol:         symbol,
		Parameters:     strat.GetParameters(),
		StartDate:      start,
		EndDate:        end,
		InitialCapital: initialCapital,
		FinalValue:     curve[len(curve)-1].Value,
		Metrics: CalculateMetrics(curve, trades, initialCapital, AnalysisConfig{
			RiskFreeRate:       e.config.RiskFree(),
			TradingDaysPerYear: e.config.TradingDaysPerYear,
		}),
		Trades:      trades,
		EquityCurve: curve,
	}

	duration := time.Since(began)
	metrics.RecordBacktestDuration(duration.Seconds())
	metrics.UpdateFinalEquity(name, symbol, result.FinalValue)
	e.btLogger.LogRunCompleted(name, symbol, result.Metrics.TotalReturn, result.Metrics.SharpeRatio,
		result.Metrics.MaxDrawdown, result.Metrics.TotalTrades, duration)

	return result, nil
}

// execute applies one actionable signal to the portfolio
func (e *Engine) execute(p *Portfolio, strategyName, symbol string, signal models.Signal, bar models.PricePoint, commission float64, exitReason string) {
	price := signal.Price
	if price <= 0 || math.IsNaN(price) {
		price = bar.Close
	}

	switch signal.Type {
	case models.SignalBuy:
		if p.Buy(symbol, price, signal.Quantity, commission, bar.Timestamp) == nil {
			e.skip(symbol, signal, bar, skipInsufficientCash)
		}
	case models.SignalSell:
		closed := p.Sell(symbol, price, signal.Quantity, commission, bar.Timestamp, exitReason)
		if len(closed) == 0 {
			e.skip(symbol, signal, bar, skipNoPosition)
			return
		}
		for _, t := range closed {
			metrics.RecordTradeClosed(strategyName, *t.PnL)
			e.btLogger.LogTradeClosed(t.ID.String(), symbol, t.Quantity, t.EntryPrice, *t.ExitPrice, *t.PnL, t.ExitReason)
		}
	}
}

func (e *Engine) skip(symbol string, signal models.Signal, bar models.PricePoint, reason string) {
	metrics.RecordSignalSkipped(reason)
	e.btLogger.LogSignalSkipped(symbol, string(signal.Type), bar.Timestamp, reason)
}

// applyRiskLimits overrides the strategy signal when a configured limit is hit.
// Stop-loss and take-profit are measured against the oldest open lot and
// liquidate the whole position. BUYs are suppressed while the drawdown is at
// or beyond MaxDrawdown. The returned reason labels any resulting exit.
func applyRiskLimits(signal models.Signal, rm models.RiskManagement, p *Portfolio, symbol string, bar models.PricePoint, drawdown float64) (models.Signal, string) {
	if lot := p.OldestOpen(symbol); lot != nil {
		held := p.Position(symbol)
		if rm.StopLoss > 0 && bar.Close <= lot.EntryPrice*(1-rm.StopLoss) {
			return liquidate(bar, held, "stop-loss level reached"), ExitReasonStopLoss
		}
		if rm.TakeProfit > 0 && bar.Close >= lot.EntryPrice*(1+rm.TakeProfit) {
			return liquidate(bar, held, "take-profit level reached"), ExitReasonTakeProfit
		}
	}

	if signal.Type == models.SignalBuy && rm.MaxDrawdown > 0 && drawdown >= rm.MaxDrawdown {
		hold := models.HoldSignal(bar)
		hold.Reason = skipMaxDrawdown
		return hold, ExitReasonSignal
	}
	return signal, ExitReasonSignal
}

func liquidate(bar models.PricePoint, quantity float64, reason string) models.Signal {
	return models.Signal{
		Type:       models.SignalSell,
		Timestamp:  bar.Timestamp,
		Price:      bar.Close,
		Quantity:   quantity,
		Confidence: 1,
		Reason:     reason,
	}
}
