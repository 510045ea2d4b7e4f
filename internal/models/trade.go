package models

import (
	"time"

	"github.com/google/uuid"
)

// TradeSide represents the side of the opening fill
type TradeSide string

const (
	TradeSideLong TradeSide = "LONG"
)

// Trade represents one round trip opened by a BUY fill
type Trade struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Symbol     string     `db:"symbol" json:"symbol"`
	Side       TradeSide  `db:"side" json:"side"`
	Quantity   float64    `db:"quantity" json:"quantity"`
	EntryPrice float64    `db:"entry_price" json:"entry_price"`
	EntryTime  time.Time  `db:"entry_time" json:"entry_time"`
	ExitPrice  *float64   `db:"exit_price" json:"exit_price,omitempty"`
	ExitTime   *time.Time `db:"exit_time" json:"exit_time,omitempty"`
	PnL        *float64   `db:"pnl" json:"pnl,omitempty"`
	Commission float64    `db:"commission" json:"commission"`
	ExitReason string     `db:"exit_reason" json:"exit_reason,omitempty"`
}

// IsOpen reports whether the trade has not been closed yet
func (t *Trade) IsOpen() bool {
	return t.ExitTime == nil
}

// IsCompleted reports whether the trade has a realized P&L
func (t *Trade) IsCompleted() bool {
	return t.PnL != nil
}

// Close sets exit fields and realizes P&L net of entry and exit commission
func (t *Trade) Close(price float64, at time.Time, exitCommission float64, reason string) {
	pnl := (price-t.EntryPrice)*t.Quantity - (t.Commission + exitCommission)
	exitPrice := price
	exitTime := at
	t.ExitPrice = &exitPrice
	t.ExitTime = &exitTime
	t.PnL = &pnl
	t.Commission += exitCommission
	t.ExitReason = reason
}
