package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yourusername/quantlab/internal/database"
	"github.com/yourusername/quantlab/internal/models"
)

const (
	errScanBacktestResult = "failed to scan backtest result: %w"

	selectBacktestResult = `
		SELECT id, strategy_id, strategy_name, symbol, run_date, start_date, end_date,
			initial_capital, final_capital, total_return, annualized_return, sharpe_ratio,
			max_drawdown, total_trades, win_rate, profit_factor, calmar_ratio, method,
			parameters, full_results, created_at
		FROM backtest_results`

	uniqueViolation = "23505"
)

// PostgresBacktestResultRepository implements BacktestResultRepository for PostgreSQL
type PostgresBacktestResultRepository struct {
	db *database.DB
}

// NewPostgresBacktestResultRepository creates a new backtest result repository
func NewPostgresBacktestResultRepository(db *database.DB) BacktestResultRepository {
	return &PostgresBacktestResultRepository{db: db}
}

// SaveResult inserts a backtest result
func (r *PostgresBacktestResultRepository) SaveResult(ctx context.Context, result *models.BacktestResult) error {
	query := `
		INSERT INTO backtest_results (
			id, strategy_id, strategy_name, symbol, run_date, start_date, end_date,
			initial_capital, final_capital, total_return, annualized_return, sharpe_ratio,
			max_drawdown, total_trades, win_rate, profit_factor, calmar_ratio, method,
			parameters, full_results, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		result.ID, result.StrategyID, result.StrategyName, result.Symbol, result.RunDate, result.StartDate, result.EndDate,
		result.InitialCapital, result.FinalCapital, result.TotalReturn, result.AnnualizedReturn, result.SharpeRatio,
		result.MaxDrawdown, result.TotalTrades, result.WinRate, result.ProfitFactor, result.CalmarRatio, result.Method,
		result.Parameters, result.FullResults, result.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("backtest result %s: %w", result.ID, models.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to save backtest result: %w", err)
	}
	return nil
}

// GetByID retrieves one backtest result
func (r *PostgresBacktestResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestResult, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, selectBacktestResult+` WHERE id = $1`, id)
	result, err := scanBacktestResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf(errScanBacktestResult, err)
	}
	return result, nil
}

// GetByStrategyID retrieves backtest results by strategy ID
func (r *PostgresBacktestResultRepository) GetByStrategyID(ctx context.Context, strategyID uuid.UUID) ([]*models.BacktestResult, error) {
	return r.list(ctx, selectBacktestResult+` WHERE strategy_id = $1 ORDER BY run_date DESC`, strategyID)
}

// GetLatest retrieves latest backtest results
func (r *PostgresBacktestResultRepository) GetLatest(ctx context.Context, limit int) ([]*models.BacktestResult, error) {
	return r.list(ctx, selectBacktestResult+` ORDER BY run_date DESC LIMIT $1`, limit)
}

// GetByDateRange retrieves backtest results within a date range
func (r *PostgresBacktestResultRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.BacktestResult, error) {
	return r.list(ctx, selectBacktestResult+` WHERE run_date >= $1 AND run_date <= $2 ORDER BY run_date DESC`, start, end)
}

func (r *PostgresBacktestResultRepository) list(ctx context.Context, query string, args ...any) ([]*models.BacktestResult, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest results: %w", err)
	}
	defer rows.Close()

	var results []*models.BacktestResult
	for rows.Next() {
		result, err := scanBacktestResult(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanBacktestResult, err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func scanBacktestResult(row pgx.Row) (*models.BacktestResult, error) {
	result := &models.BacktestResult{}
	err := row.Scan(
		&result.ID, &result.StrategyID, &result.StrategyName, &result.Symbol, &result.RunDate, &result.StartDate, &result.EndDate,
		&result.InitialCapital, &result.FinalCapital, &result.TotalReturn, &result.AnnualizedReturn, &result.SharpeRatio,
		&result.MaxDrawdown, &result.TotalTrades, &result.WinRate, &result.ProfitFactor, &result.CalmarRatio, &result.Method,
		&result.Parameters, &result.FullResults, &result.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}
