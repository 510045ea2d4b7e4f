// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger records persisted results and scheduled job activity.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: OrDefault(baseLogger).WithField("component", "audit"),
	}
}

// LogResultPersisted logs a backtest result written to storage.
func (al *AuditLogger) LogResultPersisted(resultID, strategyName, symbol, method string, runDate time.Time) {
	al.WithFields(logrus.Fields{
		"result_id":     resultID,
		"strategy_name": strategyName,
		"symbol":        symbol,
		"method":        method,
		"run_date":      runDate.Unix(),
	}).Info("Backtest result persisted")
}

// LogBestParameters logs the winning combination of an optimization.
func (al *AuditLogger) LogBestParameters(strategyName, metric string, params map[string]interface{}, score float64) {
	al.WithFields(logrus.Fields{
		"strategy_name": strategyName,
		"metric":        metric,
		"parameters":    params,
		"score":         score,
	}).Info("Best parameters selected")
}

// LogJobRun logs the outcome of a scheduled job.
func (al *AuditLogger) LogJobRun(jobName, mode string, duration time.Duration, err error) {
	entry := al.WithFields(logrus.Fields{
		"job_name":    jobName,
		"mode":        mode,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("Scheduled job failed")
		return
	}
	entry.Info("Scheduled job completed")
}
