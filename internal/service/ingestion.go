package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quantlab/internal/datasource"
	"github.com/yourusername/quantlab/internal/logger"
	"github.com/yourusername/quantlab/internal/metrics"
	"github.com/yourusername/quantlab/internal/models"
)

// BarStore is the subset of the price bar repository ingestion writes to
type BarStore interface {
	GetRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.PricePoint, error)
	InsertBatch(ctx context.Context, interval string, bars []models.PricePoint) error
}

// IngestionService copies bars from a remote provider into the bar store
type IngestionService struct {
	source     datasource.Provider
	store      BarStore
	validator  *DataValidator
	normalizer *DataNormalizer
	metrics    *IngestionMetrics
	logger     *logrus.Logger
	interval   string
	batchSize  int
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	source datasource.Provider,
	store BarStore,
	validator *DataValidator,
	normalizer *DataNormalizer,
	log *logrus.Logger,
	interval string,
	batchSize int,
) *IngestionService {
	if batchSize <= 0 {
		batchSize = 500
	}
	if interval == "" {
		interval = "1d"
	}

	return &IngestionService{
		source:     source,
		store:      store,
		validator:  validator,
		normalizer: normalizer,
		metrics:    NewIngestionMetrics(),
		logger:     logger.OrDefault(log),
		interval:   interval,
		batchSize:  batchSize,
	}
}

// IngestHistoricalData fetches bars for symbol over [startDate, endDate] and
// stores the ones that are valid and not already present
func (s *IngestionService) IngestHistoricalData(ctx context.Context, symbol string, startDate, endDate time.Time) (IngestionSummary, error) {
	s.metrics.Reset()
	summary := func() IngestionSummary {
		s.metrics.Finish()
		return s.metrics.Snapshot()
	}

	log := s.logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"interval": s.interval,
		"start":    startDate.Format("2006-01-02"),
		"end":      endDate.Format("2006-01-02"),
	})
	log.Info("Starting historical bar ingestion")

	fetched, err := s.source.LoadHistoricalData(ctx, symbol, startDate, endDate, s.interval)
	if err != nil {
		s.metrics.RecordError()
		return summary(), fmt.Errorf("failed to fetch bars: %w", err)
	}
	s.metrics.RecordFetched(len(fetched))

	bars, duplicates := s.normalizer.NormalizeBars(fetched)
	s.metrics.RecordDuplicates(duplicates)

	existing, err := s.store.GetRange(ctx, s.normalizer.NormalizeSymbol(symbol), s.interval, startDate, endDate)
	if err != nil {
		s.metrics.RecordError()
		return summary(), fmt.Errorf("failed to read stored bars: %w", err)
	}
	stored := make(map[int64]bool, len(existing))
	for _, bar := range existing {
		stored[bar.Timestamp.UTC().UnixNano()] = true
	}

	pending := make([]models.PricePoint, 0, len(bars))
	invalid := 0
	for _, bar := range bars {
		if problems := s.validator.ValidateBar(bar); len(problems) > 0 {
			s.metrics.RecordValidationError()
			invalid++
			log.WithFields(logrus.Fields{
				"time":     bar.Timestamp,
				"problems": problems,
			}).Debug("Bar validation failed")
			continue
		}
		if stored[bar.Timestamp.UnixNano()] {
			s.metrics.RecordDuplicates(1)
			duplicates++
			continue
		}
		pending = append(pending, bar)
	}

	failedBatches := 0
	batches := 0
	written := 0
	for i := 0; i < len(pending); i += s.batchSize {
		end := i + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batches++

		if err := s.store.InsertBatch(ctx, s.interval, pending[i:end]); err != nil {
			s.metrics.RecordError()
			failedBatches++
			log.WithError(err).WithField("batch_start", i).Error("Error storing bar batch")
			// Continue processing other batches
			continue
		}
		s.metrics.RecordStored(end - i)
		written += end - i
	}

	metrics.RecordBarsIngested("stored", written)
	metrics.RecordBarsIngested("duplicate", duplicates)
	metrics.RecordBarsIngested("invalid", invalid)

	s.metrics.Finish()
	log.WithField("summary", s.metrics.String()).Info("Historical bar ingestion complete")

	if batches > 0 && failedBatches == batches {
		return summary(), fmt.Errorf("all %d bar batches failed to store", batches)
	}
	return summary(), nil
}

// GetMetrics returns current ingestion metrics
func (s *IngestionService) GetMetrics() *IngestionMetrics {
	return s.metrics
}
