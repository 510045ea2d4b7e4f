package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quantlab/internal/config"
	"github.com/yourusername/quantlab/internal/metrics"
	"github.com/yourusername/quantlab/internal/models"
)

// SourceType represents the type of data source
type SourceType string

const (
	// CSV file data source type
	CSVSourceType SourceType = "csv"
	// Remote JSON API data source type
	HTTPSourceType SourceType = "http"
	// PostgreSQL price_bars table data source type
	PostgresSourceType SourceType = "postgres"
)

// Factory creates Provider implementations based on configuration
type Factory struct {
	logger   *logrus.Logger
	config   config.DataSourceConfig
	barStore Provider
}

// NewFactory creates a new data source factory
func NewFactory(cfg config.DataSourceConfig, logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}
	return &Factory{
		logger: logger,
		config: cfg,
	}
}

// WithBarStore sets the database-backed provider used for the postgres source type
func (f *Factory) WithBarStore(store Provider) *Factory {
	f.barStore = store
	return f
}

// NewProvider builds the configured provider, metered and optionally cached
func (f *Factory) NewProvider() (Provider, error) {
	sourceType := SourceType(f.config.Type)

	var provider Provider
	switch sourceType {
	case CSVSourceType:
		provider = NewCSVProvider(f.config.CSVDir)
	case HTTPSourceType:
		if f.config.HTTP.BaseURL == "" {
			return nil, fmt.Errorf("http data source requires a base_url")
		}
		client := NewRateLimitedHTTPClient(HTTPClientConfigFrom(f.config.HTTP), f.logger)
		provider = NewHTTPProvider(client, f.config.HTTP.BaseURL, f.config.HTTP.APIKey, f.logger)
	case PostgresSourceType:
		if f.barStore == nil {
			return nil, fmt.Errorf("postgres data source requires a database connection")
		}
		provider = f.barStore
	default:
		return nil, fmt.Errorf("unknown data source type: %s", f.config.Type)
	}

	provider = NewMeteredProvider(string(sourceType), provider)

	if f.config.CacheEnabled {
		ttl := time.Duration(f.config.CacheTTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		provider = NewCachedProvider(provider, ttl)
	}

	f.logger.WithFields(logrus.Fields{
		"source":        sourceType,
		"cache_enabled": f.config.CacheEnabled,
	}).Info("Created data source")

	return provider, nil
}

// ListAvailableSources returns the supported source types
func ListAvailableSources() []SourceType {
	return []SourceType{CSVSourceType, HTTPSourceType, PostgresSourceType}
}

// MeteredProvider records load counts and latency for another provider
type MeteredProvider struct {
	source string
	next   Provider
}

// NewMeteredProvider wraps next with Prometheus instrumentation
func NewMeteredProvider(source string, next Provider) *MeteredProvider {
	return &MeteredProvider{source: source, next: next}
}

// LoadHistoricalData delegates to the wrapped provider
func (p *MeteredProvider) LoadHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	began := time.Now()
	bars, err := p.next.LoadHistoricalData(ctx, symbol, start, end, interval)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.RecordDataLoad(p.source, status, time.Since(began).Seconds())
	return bars, err
}
