package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/quantlab/internal/database"
	"github.com/yourusername/quantlab/internal/models"
)

const defaultInterval = "1d"

// PostgresPriceBarRepository implements PriceBarRepository for PostgreSQL
type PostgresPriceBarRepository struct {
	db *database.DB
}

// NewPostgresPriceBarRepository creates a new price bar repository
func NewPostgresPriceBarRepository(db *database.DB) *PostgresPriceBarRepository {
	return &PostgresPriceBarRepository{db: db}
}

// InsertBatch bulk loads bars with COPY
func (r *PostgresPriceBarRepository) InsertBatch(ctx context.Context, interval string, bars []models.PricePoint) error {
	if len(bars) == 0 {
		return nil
	}
	if interval == "" {
		interval = defaultInterval
	}

	columns := []string{"time", "symbol", "bar_interval", "open", "high", "low", "close", "volume"}
	rows := make([][]interface{}, len(bars))
	for i, b := range bars {
		rows[i] = []interface{}{b.Timestamp, b.Symbol, interval, b.Open, b.High, b.Low, b.Close, b.Volume}
	}

	count, err := r.db.Querier(ctx).CopyFrom(ctx, pgx.Identifier{"price_bars"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to batch insert price bars: %w", err)
	}
	if count != int64(len(bars)) {
		return fmt.Errorf("inserted %d rows, expected %d", count, len(bars))
	}
	return nil
}

// GetRange retrieves bars for a symbol within [start, end] in time order
func (r *PostgresPriceBarRepository) GetRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.PricePoint, error) {
	if interval == "" {
		interval = defaultInterval
	}
	query := `
		SELECT time, symbol, open, high, low, close, volume
		FROM price_bars
		WHERE symbol = $1 AND bar_interval = $2 AND time >= $3 AND time <= $4
		ORDER BY time ASC
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, symbol, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}
	defer rows.Close()

	var bars []models.PricePoint
	for rows.Next() {
		var b models.PricePoint
		if err := rows.Scan(&b.Timestamp, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LoadHistoricalData implements datasource.Provider
func (r *PostgresPriceBarRepository) LoadHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	return r.GetRange(ctx, symbol, interval, start, end)
}

// ListSymbols returns every symbol with stored bars
func (r *PostgresPriceBarRepository) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT DISTINCT symbol FROM price_bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
