// Package logger provides backtest-specific logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BacktestLogger provides dedicated logging for simulation runs.
type BacktestLogger struct {
	*logrus.Entry
}

// NewBacktestLogger creates a new backtest logger.
func NewBacktestLogger(baseLogger *logrus.Logger) *BacktestLogger {
	return &BacktestLogger{
		Entry: OrDefault(baseLogger).WithField("component", "backtest"),
	}
}

// LogRunStarted logs the start of a single backtest run.
func (bl *BacktestLogger) LogRunStarted(strategyName, symbol string, start, end time.Time, bars int, initialCapital float64) {
	bl.WithFields(logrus.Fields{
		"strategy_name":   strategyName,
		"symbol":          symbol,
		"start":           start.Format(time.RFC3339),
		"end":             end.Format(time.RFC3339),
		"bars":            bars,
		"initial_capital": initialCapital,
	}).Debug("Backtest run started")
}

// LogRunCompleted logs the headline metrics of a finished run.
func (bl *BacktestLogger) LogRunCompleted(strategyName, symbol string, totalReturn, sharpe, maxDrawdown float64, trades int, duration time.Duration) {
	bl.WithFields(logrus.Fields{
		"strategy_name": strategyName,
		"symbol":        symbol,
		"total_return":  totalReturn,
		"sharpe_ratio":  sharpe,
		"max_drawdown":  maxDrawdown,
		"total_trades":  trades,
		"duration_ms":   duration.Milliseconds(),
	}).Info("Backtest run completed")
}

// LogTradeClosed logs a realized round trip.
func (bl *BacktestLogger) LogTradeClosed(tradeID, symbol string, quantity, entryPrice, exitPrice, pnl float64, reason string) {
	bl.WithFields(logrus.Fields{
		"trade_id":    tradeID,
		"symbol":      symbol,
		"quantity":    quantity,
		"entry_price": entryPrice,
		"exit_price":  exitPrice,
		"pnl":         pnl,
		"exit_reason": reason,
	}).Debug("Trade closed")
}

// LogSignalSkipped logs an actionable signal that could not be filled.
func (bl *BacktestLogger) LogSignalSkipped(symbol, signalType string, at time.Time, reason string) {
	bl.WithFields(logrus.Fields{
		"symbol":      symbol,
		"signal_type": signalType,
		"timestamp":   at.Format(time.RFC3339),
		"reason":      reason,
	}).Debug("Signal skipped")
}

// LogOptimizerTrial logs the score of one parameter combination.
func (bl *BacktestLogger) LogOptimizerTrial(strategyType string, index int, params map[string]interface{}, metric string, score float64) {
	bl.WithFields(logrus.Fields{
		"strategy_type": strategyType,
		"trial":         index,
		"parameters":    params,
		"metric":        metric,
		"score":         score,
	}).Debug("Optimizer trial completed")
}

// LogWalkForwardPeriod logs one out-of-sample period.
func (bl *BacktestLogger) LogWalkForwardPeriod(period int, testStart, testEnd time.Time, totalReturn, sharpe float64) {
	bl.WithFields(logrus.Fields{
		"period":       period,
		"test_start":   testStart.Format(time.RFC3339),
		"test_end":     testEnd.Format(time.RFC3339),
		"total_return": totalReturn,
		"sharpe_ratio": sharpe,
	}).Info("Walk-forward period completed")
}
