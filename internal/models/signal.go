package models

import "time"

// SignalType is the action a strategy asks for on one bar
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Signal represents a strategy decision for exactly one bar
type Signal struct {
	Type       SignalType `json:"type"`
	Timestamp  time.Time  `json:"timestamp"`
	Price      float64    `json:"price"`
	Quantity   float64    `json:"quantity"`
	Confidence float64    `json:"confidence"`
	Reason     string     `json:"reason,omitempty"`
}

// HoldSignal builds a zero-quantity HOLD for the given bar
func HoldSignal(bar PricePoint) Signal {
	return Signal{
		Type:      SignalHold,
		Timestamp: bar.Timestamp,
		Price:     bar.Close,
	}
}

// IsActionable reports whether the signal can change the portfolio
func (s Signal) IsActionable() bool {
	return s.Type != SignalHold && s.Quantity > 0
}
