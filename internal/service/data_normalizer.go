package service

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/quantlab/internal/models"
)

// DefaultPricePrecision is the number of decimal places kept on prices
const DefaultPricePrecision = 6

// DataNormalizer normalizes bars from various sources to a standard format
type DataNormalizer struct {
	symbolAliases map[string]string // Maps provider tickers to canonical symbols
	precision     int32
	logger        *logrus.Logger
}

// NewDataNormalizer creates a new data normalizer
func NewDataNormalizer(logger *logrus.Logger, aliases map[string]string) *DataNormalizer {
	canonical := make(map[string]string, len(aliases))
	for from, to := range aliases {
		canonical[strings.ToUpper(strings.TrimSpace(from))] = strings.ToUpper(strings.TrimSpace(to))
	}
	return &DataNormalizer{
		symbolAliases: canonical,
		precision:     DefaultPricePrecision,
		logger:        logger,
	}
}

// NormalizeSymbol converts a provider ticker to canonical format
func (n *DataNormalizer) NormalizeSymbol(symbol string) string {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if canonical, ok := n.symbolAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// NormalizeBars returns bars with canonical symbols, UTC timestamps and
// rounded prices, sorted by time. Later duplicates of a timestamp win;
// the second return value counts the duplicates dropped.
func (n *DataNormalizer) NormalizeBars(bars []models.PricePoint) ([]models.PricePoint, int) {
	byTime := make(map[int64]int, len(bars))
	out := make([]models.PricePoint, 0, len(bars))
	duplicates := 0

	for _, bar := range bars {
		bar.Symbol = n.NormalizeSymbol(bar.Symbol)
		bar.Timestamp = bar.Timestamp.UTC()
		bar.Open = n.roundPrice(bar.Open)
		bar.High = n.roundPrice(bar.High)
		bar.Low = n.roundPrice(bar.Low)
		bar.Close = n.roundPrice(bar.Close)

		key := bar.Timestamp.UnixNano()
		if idx, ok := byTime[key]; ok {
			out[idx] = bar
			duplicates++
			continue
		}
		byTime[key] = len(out)
		out = append(out, bar)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if duplicates > 0 && n.logger != nil {
		n.logger.WithField("duplicates", duplicates).Debug("Dropped duplicate bars during normalization")
	}
	return out, duplicates
}

// roundPrice rounds through decimal so repeated ingestion stores identical values
func (n *DataNormalizer) roundPrice(price float64) float64 {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return price
	}
	rounded, _ := decimal.NewFromFloat(price).Round(n.precision).Float64()
	return rounded
}
