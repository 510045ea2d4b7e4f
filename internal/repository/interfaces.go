package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/quantlab/internal/models"
)

// PriceBarRepository defines the interface for bar storage.
// It doubles as a datasource.Provider through LoadHistoricalData.
type PriceBarRepository interface {
	InsertBatch(ctx context.Context, interval string, bars []models.PricePoint) error
	GetRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.PricePoint, error)
	LoadHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.PricePoint, error)
	ListSymbols(ctx context.Context) ([]string, error)
}

// BacktestResultRepository defines the interface for persisted backtest results
type BacktestResultRepository interface {
	SaveResult(ctx context.Context, result *models.BacktestResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestResult, error)
	GetByStrategyID(ctx context.Context, strategyID uuid.UUID) ([]*models.BacktestResult, error)
	GetLatest(ctx context.Context, limit int) ([]*models.BacktestResult, error)
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.BacktestResult, error)
}
