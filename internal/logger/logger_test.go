package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newLogger(buf, "debug", "production")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = newLogger(buf, "nonsense", "development")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestOrDefault(t *testing.T) {
	assert.NotNil(t, OrDefault(nil))
	log, _ := setupTestLogger()
	assert.Same(t, log, OrDefault(log))
}

func TestBacktestLoggerRunCompleted(t *testing.T) {
	log, buf := setupTestLogger()
	backtestLogger := NewBacktestLogger(log)

	backtestLogger.LogRunCompleted("ma_crossover", "AAPL", 0.12, 1.4, 0.08, 7, 1500*time.Millisecond)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "backtest", logEntry["component"])
	assert.Equal(t, "AAPL", logEntry["symbol"])
	assert.Equal(t, 0.12, logEntry["total_return"])
	assert.Equal(t, float64(7), logEntry["total_trades"])
	assert.Equal(t, float64(1500), logEntry["duration_ms"])
}

func TestBacktestLoggerTradeClosed(t *testing.T) {
	log, buf := setupTestLogger()
	backtestLogger := NewBacktestLogger(log)

	backtestLogger.LogTradeClosed("trade-1", "AAPL", 10, 100, 110, 98, "signal")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "trade-1", logEntry["trade_id"])
	assert.Equal(t, float64(98), logEntry["pnl"])
	assert.Equal(t, "debug", logEntry["level"])
}

func TestBacktestLoggerWalkForwardPeriod(t *testing.T) {
	log, buf := setupTestLogger()
	backtestLogger := NewBacktestLogger(log)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	backtestLogger.LogWalkForwardPeriod(2, start, start.AddDate(0, 0, 5), 0.01, 0.5)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, float64(2), logEntry["period"])
	assert.Equal(t, "2024-01-01T00:00:00Z", logEntry["test_start"])
}

func TestBacktestLoggerRespectsLevel(t *testing.T) {
	log, buf := setupTestLogger()
	log.SetLevel(logrus.InfoLevel)
	backtestLogger := NewBacktestLogger(log)

	backtestLogger.LogSignalSkipped("AAPL", "BUY", time.Now(), "insufficient cash")
	assert.Zero(t, buf.Len())
}

func TestAuditLoggerJobRun(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogJobRun("nightly", "run", time.Second, errors.New("boom"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, "error", logEntry["level"])
	assert.Equal(t, "boom", logEntry["error"])
}

func TestAuditLoggerResultPersisted(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	runDate := time.Unix(1700000000, 0)
	auditLogger.LogResultPersisted("id-1", "rsi", "MSFT", "walk_forward", runDate)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "walk_forward", logEntry["method"])
	assert.Equal(t, float64(1700000000), logEntry["run_date"])
}
