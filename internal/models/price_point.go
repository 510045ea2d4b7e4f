package models

import (
	"math"
	"time"
)

// PricePoint represents one OHLCV bar for a symbol
type PricePoint struct {
	Timestamp time.Time `db:"time" json:"timestamp" validate:"required"`
	Symbol    string    `db:"symbol" json:"symbol" validate:"required"`
	Open      float64   `db:"open" json:"open"`
	High      float64   `db:"high" json:"high"`
	Low       float64   `db:"low" json:"low"`
	Close     float64   `db:"close" json:"close"`
	Volume    float64   `db:"volume" json:"volume"`
}

// IsValid reports whether the bar passes OHLCV sanity checks
func (p PricePoint) IsValid() bool {
	for _, v := range []float64{p.Open, p.High, p.Low, p.Close, p.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if p.Volume <= 0 {
		return false
	}
	if p.High < math.Max(p.Open, p.Close) {
		return false
	}
	if p.Low > math.Min(p.Open, p.Close) {
		return false
	}
	return true
}

// Closes extracts closing prices in order
func Closes(points []PricePoint) []float64 {
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	return closes
}
