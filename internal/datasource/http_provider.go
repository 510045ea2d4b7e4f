package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/quantlab/internal/models"
)

const httpSourceName = "http"

// HTTPProvider loads bars from a remote JSON price API
type HTTPProvider struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	logger     *logrus.Entry
}

// barsResponse is the payload returned by GET {base}/bars
type barsResponse struct {
	Symbol string    `json:"symbol"`
	Bars   []httpBar `json:"bars"`
}

// httpBar carries prices as decimal strings or numbers
type httpBar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// NewHTTPProvider creates a provider for the API at baseURL
func NewHTTPProvider(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, logger *logrus.Logger) *HTTPProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPProvider{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger.WithField("component", "http_provider"),
	}
}

// LoadHistoricalData fetches bars for symbol in [start, end]
func (p *HTTPProvider) LoadHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("start", start.UTC().Format(time.RFC3339))
	query.Set("end", end.UTC().Format(time.RFC3339))
	if interval != "" {
		query.Set("interval", interval)
	}
	endpoint := p.baseURL + "/bars?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewDataSourceError(httpSourceName, ErrCodeNetworkError, "failed to create request", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(ctx, req)
	if err != nil {
		return nil, NewDataSourceError(httpSourceName, ErrCodeNetworkError, "failed to fetch bars", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, NewDataSourceError(httpSourceName, ErrCodeAuthenticationFailed, "invalid API key", nil)
	case http.StatusNotFound:
		return nil, NewDataSourceError(httpSourceName, ErrCodeNotFound, "unknown symbol "+symbol, nil)
	case http.StatusTooManyRequests:
		return nil, NewDataSourceError(httpSourceName, ErrCodeRateLimitExceeded, "rate limit exceeded", nil)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, NewDataSourceError(httpSourceName, ErrCodeServerError, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var payload barsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewDataSourceError(httpSourceName, ErrCodeInvalidData, "failed to parse response", err)
	}

	points := make([]models.PricePoint, 0, len(payload.Bars))
	for _, bar := range payload.Bars {
		if !inWindow(bar.Timestamp, start, end) {
			continue
		}
		points = append(points, models.PricePoint{
			Timestamp: bar.Timestamp,
			Symbol:    symbol,
			Open:      bar.Open.InexactFloat64(),
			High:      bar.High.InexactFloat64(),
			Low:       bar.Low.InexactFloat64(),
			Close:     bar.Close.InexactFloat64(),
			Volume:    bar.Volume.InexactFloat64(),
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	p.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"bars":   len(points),
	}).Debug("Fetched historical bars")

	return points, nil
}
