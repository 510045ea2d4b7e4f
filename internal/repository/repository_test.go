package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/quantlab/internal/database"
	"github.com/yourusername/quantlab/internal/models"
)

func TestNewRepositoriesRequiresDB(t *testing.T) {
	if _, err := NewRepositories(nil); err == nil {
		t.Fatal("expected error for nil database")
	}
}

func TestPriceBarRepositoryRoundTrip(t *testing.T) {
	db := database.SetupTestDB(t)
	defer database.TeardownTestDB(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repos, err := NewRepositories(db)
	if err != nil {
		t.Fatalf("failed to create repositories: %v", err)
	}

	symbol := "TEST-" + uuid.NewString()[:8]
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PricePoint, 5)
	for i := range bars {
		bars[i] = models.PricePoint{
			Timestamp: start.AddDate(0, 0, i),
			Symbol:    symbol,
			Open:      100, High: 101, Low: 99, Close: 100 + float64(i), Volume: 1000,
		}
	}

	if err := repos.PriceBars.InsertBatch(ctx, "1d", bars); err != nil {
		t.Fatalf("failed to insert bars: %v", err)
	}

	got, err := repos.PriceBars.LoadHistoricalData(ctx, symbol, start.AddDate(0, 0, 1), start.AddDate(0, 0, 3), "1d")
	if err != nil {
		t.Fatalf("failed to load bars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	if got[0].Close != 101 || got[2].Close != 103 {
		t.Errorf("unexpected closes %v and %v", got[0].Close, got[2].Close)
	}
}

func TestBacktestResultRepositoryRoundTrip(t *testing.T) {
	db := database.SetupTestDB(t)
	defer database.TeardownTestDB(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := NewPostgresBacktestResultRepository(db)
	now := time.Now().UTC().Truncate(time.Second)
	result := &models.BacktestResult{
		ID:           uuid.New(),
		StrategyID:   uuid.New(),
		StrategyName: "ma_crossover",
		Symbol:       "AAPL",
		RunDate:      now,
		StartDate:    now.AddDate(-1, 0, 0),
		EndDate:      now,
		TotalReturn:  0.1,
		Method:       "historical_replay",
		Parameters:   json.RawMessage(`{"shortPeriod":10}`),
		FullResults:  json.RawMessage(`{}`),
		CreatedAt:    now,
	}

	if err := repo.SaveResult(ctx, result); err != nil {
		t.Fatalf("failed to save result: %v", err)
	}
	if err := repo.SaveResult(ctx, result); !errors.Is(err, models.ErrDuplicateKey) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}

	byStrategy, err := repo.GetByStrategyID(ctx, result.StrategyID)
	if err != nil {
		t.Fatalf("failed to query by strategy: %v", err)
	}
	if len(byStrategy) != 1 || byStrategy[0].ID != result.ID {
		t.Fatalf("expected the saved result, got %+v", byStrategy)
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
