package service

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quantlab/internal/models"
)

// DataValidator validates price bars before they are stored
type DataValidator struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewDataValidator creates a new data validator
func NewDataValidator(logger *logrus.Logger) *DataValidator {
	return &DataValidator{logger: logger, now: time.Now}
}

// ValidateBar validates bar data for required fields and OHLCV constraints
func (v *DataValidator) ValidateBar(bar models.PricePoint) []string {
	var errors []string

	if bar.Symbol == "" {
		errors = append(errors, "symbol is required")
	}

	if bar.Timestamp.IsZero() {
		errors = append(errors, "timestamp is required")
	} else if bar.Timestamp.After(v.now().Add(24 * time.Hour)) {
		errors = append(errors, fmt.Sprintf("timestamp %s is in the future", bar.Timestamp.Format(time.RFC3339)))
	}

	fields := map[string]float64{"open": bar.Open, "high": bar.High, "low": bar.Low, "close": bar.Close, "volume": bar.Volume}
	for _, name := range []string{"open", "high", "low", "close", "volume"} {
		value := fields[name]
		if math.IsNaN(value) || math.IsInf(value, 0) {
			errors = append(errors, fmt.Sprintf("%s must be finite", name))
			continue
		}
		if value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got %v", name, value))
		}
	}

	if bar.High < math.Max(bar.Open, bar.Close) {
		errors = append(errors, fmt.Sprintf("high %v is below open/close", bar.High))
	}

	if bar.Low > math.Min(bar.Open, bar.Close) {
		errors = append(errors, fmt.Sprintf("low %v is above open/close", bar.Low))
	}

	return errors
}

// ValidateSeries checks that bars are strictly increasing in time
func (v *DataValidator) ValidateSeries(bars []models.PricePoint) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d at %s is not after %s", i,
				bars[i].Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
