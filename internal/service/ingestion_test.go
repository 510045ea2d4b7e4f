package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quantlab/internal/datasource"
	"github.com/yourusername/quantlab/internal/models"
)

type memoryBarStore struct {
	bars      []models.PricePoint
	failAfter int
	inserts   int
}

func (s *memoryBarStore) GetRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.PricePoint, error) {
	out := []models.PricePoint{}
	for _, b := range s.bars {
		if b.Symbol == symbol && !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memoryBarStore) InsertBatch(ctx context.Context, interval string, bars []models.PricePoint) error {
	s.inserts++
	if s.failAfter > 0 && s.inserts > s.failAfter {
		return errors.New("copy failed")
	}
	s.bars = append(s.bars, bars...)
	return nil
}

func fixedSource(bars ...models.PricePoint) datasource.Provider {
	return datasource.ProviderFunc(func(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.PricePoint, error) {
		return bars, nil
	})
}

func newTestIngestion(source datasource.Provider, store BarStore, batchSize int) *IngestionService {
	return NewIngestionService(source, store, newTestValidator(), NewDataNormalizer(quietLogger(), nil), quietLogger(), "1d", batchSize)
}

func TestIngestHistoricalData(t *testing.T) {
	invalid := validBar(windowStart.AddDate(0, 0, 2))
	invalid.Volume = 0
	source := fixedSource(
		validBar(windowStart),
		validBar(windowStart.AddDate(0, 0, 1)),
		validBar(windowStart.AddDate(0, 0, 1)),
		invalid,
		validBar(windowStart.AddDate(0, 0, 3)),
	)
	store := &memoryBarStore{bars: []models.PricePoint{validBar(windowStart)}}

	summary, err := newTestIngestion(source, store, 1).IngestHistoricalData(context.Background(), "test", windowStart, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalBars)
	assert.Equal(t, 2, summary.StoredBars)
	assert.Equal(t, 2, summary.Duplicates, "one repeated in the feed and one already stored")
	assert.Equal(t, 1, summary.ValidationErrors)
	assert.Equal(t, 2, store.inserts)
	assert.Len(t, store.bars, 3)
}

func TestIngestHistoricalDataBatchFailures(t *testing.T) {
	source := fixedSource(validBar(windowStart), validBar(windowStart.AddDate(0, 0, 1)), validBar(windowStart.AddDate(0, 0, 2)))

	partial := &memoryBarStore{failAfter: 1}
	summary, err := newTestIngestion(source, partial, 2).IngestHistoricalData(context.Background(), "TEST", windowStart, windowEnd)
	require.NoError(t, err, "a failing batch should not stop the others")
	assert.Equal(t, 2, summary.StoredBars)
	assert.Equal(t, 1, summary.Errors)

	_, err = newTestIngestion(source, &failingStore{}, 2).IngestHistoricalData(context.Background(), "TEST", windowStart, windowEnd)
	assert.Error(t, err)
}

func TestIngestHistoricalDataSourceError(t *testing.T) {
	source := datasource.ProviderFunc(func(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.PricePoint, error) {
		return nil, datasource.ErrRateLimitExceeded
	})
	summary, err := newTestIngestion(source, &memoryBarStore{}, 10).IngestHistoricalData(context.Background(), "TEST", windowStart, windowEnd)
	assert.ErrorIs(t, err, datasource.ErrRateLimitExceeded)
	assert.Equal(t, 1, summary.Errors)
}

type failingStore struct {
	memoryBarStore
}

func (s *failingStore) InsertBatch(ctx context.Context, interval string, bars []models.PricePoint) error {
	return errors.New("database unavailable")
}
