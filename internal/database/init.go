package database

import (
	"context"
	"fmt"

	"github.com/yourusername/quantlab/internal/config"
)

// schema creates the tables used by the bar and result repositories
var schema = []string{
	`CREATE TABLE IF NOT EXISTS price_bars (
		time        TIMESTAMPTZ      NOT NULL,
		symbol      TEXT             NOT NULL,
		bar_interval TEXT            NOT NULL DEFAULT '1d',
		open        DOUBLE PRECISION NOT NULL,
		high        DOUBLE PRECISION NOT NULL,
		low         DOUBLE PRECISION NOT NULL,
		close       DOUBLE PRECISION NOT NULL,
		volume      DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (symbol, bar_interval, time)
	)`,
	`CREATE TABLE IF NOT EXISTS backtest_results (
		id                UUID PRIMARY KEY,
		strategy_id       UUID             NOT NULL,
		strategy_name     TEXT             NOT NULL,
		symbol            TEXT             NOT NULL,
		run_date          TIMESTAMPTZ      NOT NULL,
		start_date        TIMESTAMPTZ      NOT NULL,
		end_date          TIMESTAMPTZ      NOT NULL,
		initial_capital   DOUBLE PRECISION NOT NULL,
		final_capital     DOUBLE PRECISION NOT NULL,
		total_return      DOUBLE PRECISION NOT NULL,
		annualized_return DOUBLE PRECISION NOT NULL,
		sharpe_ratio      DOUBLE PRECISION NOT NULL,
		max_drawdown      DOUBLE PRECISION NOT NULL,
		total_trades      INTEGER          NOT NULL,
		win_rate          DOUBLE PRECISION NOT NULL,
		profit_factor     DOUBLE PRECISION NOT NULL,
		calmar_ratio      DOUBLE PRECISION NOT NULL,
		method            TEXT             NOT NULL,
		parameters        JSONB,
		full_results      JSONB,
		created_at        TIMESTAMPTZ      NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS backtest_results_strategy_idx ON backtest_results (strategy_id, run_date DESC)`,
}

// Initialize creates a database connection pool and ensures the schema exists
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// EnsureSchema applies the idempotent table definitions
func EnsureSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
