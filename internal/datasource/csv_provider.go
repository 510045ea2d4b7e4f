package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/quantlab/internal/models"
)

const csvSourceName = "csv"

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CSVProvider reads bars from <dir>/<SYMBOL>_<interval>.csv or <dir>/<SYMBOL>.csv.
// Files carry a timestamp,open,high,low,close,volume header.
type CSVProvider struct {
	dir string
}

// NewCSVProvider creates a provider rooted at dir
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

// LoadHistoricalData parses the symbol's file and returns bars in [start, end].
// Unparseable prices become NaN so the bar fails validation downstream.
func (p *CSVProvider) LoadHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	path, err := p.resolve(symbol, interval)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, NewDataSourceError(csvSourceName, ErrCodeUnknown, "failed to open "+path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, NewDataSourceError(csvSourceName, ErrCodeInvalidData, "missing header in "+path, err)
	}
	columns, err := columnIndex(header)
	if err != nil {
		return nil, NewDataSourceError(csvSourceName, ErrCodeInvalidData, path, err)
	}

	var points []models.PricePoint
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, NewDataSourceError(csvSourceName, ErrCodeInvalidData, fmt.Sprintf("%s line %d", path, line), err)
		}

		ts, err := parseTimestamp(record[columns["timestamp"]])
		if err != nil {
			return nil, NewDataSourceError(csvSourceName, ErrCodeInvalidData, fmt.Sprintf("%s line %d", path, line), err)
		}
		if !inWindow(ts, start, end) {
			continue
		}

		points = append(points, models.PricePoint{
			Timestamp: ts,
			Symbol:    symbol,
			Open:      parsePrice(record[columns["open"]]),
			High:      parsePrice(record[columns["high"]]),
			Low:       parsePrice(record[columns["low"]]),
			Close:     parsePrice(record[columns["close"]]),
			Volume:    parsePrice(record[columns["volume"]]),
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func (p *CSVProvider) resolve(symbol, interval string) (string, error) {
	candidates := []string{filepath.Join(p.dir, symbol+".csv")}
	if interval != "" {
		candidates = append([]string{filepath.Join(p.dir, symbol+"_"+interval+".csv")}, candidates...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", NewDataSourceError(csvSourceName, ErrCodeNotFound, "no data file for "+symbol+" in "+p.dir, nil)
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := index["timestamp"]; !ok {
		if i, ok := index["date"]; ok {
			index["timestamp"] = i
		}
	}
	for _, required := range []string{"timestamp", "open", "high", "low", "close", "volume"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	return index, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

func parsePrice(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
