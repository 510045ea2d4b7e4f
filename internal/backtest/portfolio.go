package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/quantlab/internal/models"
)

// Exit reasons recorded on closed trades
const (
	ExitReasonSignal     = "signal"
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonTakeProfit = "take_profit"
)

// quantityTolerance is the share of a sell below which leftover quantity is dust
const quantityTolerance = 1e-9

// tradeNamespace seeds deterministic trade IDs so identical runs produce identical ledgers
var tradeNamespace = uuid.MustParse("8f6b0c7e-3d2a-5b1f-9c4e-2a7d6e1f0b3c")

// Portfolio tracks cash, open lots and the trade ledger of one run.
// Positions are always the sum of the open lots for a symbol.
type Portfolio struct {
	Cash   float64
	Trades []*models.Trade

	open      map[string][]*models.Trade
	namespace uuid.UUID
	seq       int
}

// NewPortfolio initializes a portfolio. runKey scopes the generated trade IDs.
func NewPortfolio(runKey string, initialCapital float64) *Portfolio {
	return &Portfolio{
		Cash:      initialCapital,
		Trades:    []*models.Trade{},
		open:      make(map[string][]*models.Trade),
		namespace: uuid.NewSHA1(tradeNamespace, []byte(runKey)),
	}
}

// Position returns the held quantity for a symbol
func (p *Portfolio) Position(symbol string) float64 {
	qty := 0.0
	for _, t := range p.open[symbol] {
		qty += t.Quantity
	}
	return qty
}

// OldestOpen returns the earliest open lot for a symbol or nil
func (p *Portfolio) OldestOpen(symbol string) *models.Trade {
	lots := p.open[symbol]
	if len(lots) == 0 {
		return nil
	}
	return lots[0]
}

// OpenTrades returns the number of open lots across all symbols
func (p *Portfolio) OpenTrades() int {
	n := 0
	for _, lots := range p.open {
		n += len(lots)
	}
	return n
}

// TotalValue marks positions to the given prices
func (p *Portfolio) TotalValue(prices map[string]float64) float64 {
	value := p.Cash
	for symbol, lots := range p.open {
		price := prices[symbol]
		for _, t := range lots {
			value += t.Quantity * price
		}
	}
	return value
}

// Buy opens a lot when cash covers price*quantity plus commission.
// It returns nil without side effects when the fill is not affordable.
func (p *Portfolio) Buy(symbol string, price, quantity, commission float64, at time.Time) *models.Trade {
	if quantity <= 0 || price <= 0 {
		return nil
	}
	required := price*quantity + commission
	if p.Cash < required {
		return nil
	}
	p.Cash -= required

	trade := &models.Trade{
		ID:         p.nextID(symbol),
		Symbol:     symbol,
		Side:       models.TradeSideLong,
		Quantity:   quantity,
		EntryPrice: price,
		EntryTime:  at,
		Commission: commission,
	}
	p.Trades = append(p.Trades, trade)
	p.open[symbol] = append(p.open[symbol], trade)
	return trade
}

// Sell reduces the position by up to quantity, closing lots oldest first.
// A lot larger than the remaining quantity is split: the original trade closes
// for the sold part and a new open trade carries the remainder. The exit
// commission is allocated across closed lots in proportion to quantity.
func (p *Portfolio) Sell(symbol string, price, quantity, commission float64, at time.Time, reason string) []*models.Trade {
	held := p.Position(symbol)
	sold := quantity
	if sold > held {
		sold = held
	}
	if sold <= 0 {
		return nil
	}
	p.Cash += price*sold - commission

	// Quantities within tolerance of each other are equal, so float drift
	// never leaves a dust lot behind
	tolerance := sold * quantityTolerance
	closed := []*models.Trade{}
	remaining := sold
	for remaining > tolerance && len(p.open[symbol]) > 0 {
		lot := p.open[symbol][0]
		take := lot.Quantity
		if take > remaining+tolerance {
			take = remaining
			p.splitLot(symbol, lot, take)
		} else {
			p.open[symbol] = p.open[symbol][1:]
		}
		lot.Close(price, at, commission*take/sold, reason)
		closed = append(closed, lot)
		remaining -= take
	}
	if len(p.open[symbol]) == 0 {
		delete(p.open, symbol)
	}
	return closed
}

// splitLot shrinks lot to qty and inserts the remainder as a new open trade
// directly after it in the ledger.
func (p *Portfolio) splitLot(symbol string, lot *models.Trade, qty float64) {
	restQty := lot.Quantity - qty
	restCommission := lot.Commission * restQty / lot.Quantity

	rest := &models.Trade{
		ID:         p.nextID(symbol),
		Symbol:     lot.Symbol,
		Side:       lot.Side,
		Quantity:   restQty,
		EntryPrice: lot.EntryPrice,
		EntryTime:  lot.EntryTime,
		Commission: restCommission,
	}
	lot.Quantity = qty
	lot.Commission -= restCommission

	p.open[symbol][0] = rest
	for i, t := range p.Trades {
		if t == lot {
			p.Trades = append(p.Trades[:i+1], append([]*models.Trade{rest}, p.Trades[i+1:]...)...)
			break
		}
	}
}

func (p *Portfolio) nextID(symbol string) uuid.UUID {
	p.seq++
	return uuid.NewSHA1(p.namespace, []byte(fmt.Sprintf("%s:%d", symbol, p.seq)))
}

// Ledger returns value copies of all trades in entry order
func (p *Portfolio) Ledger() []models.Trade {
	ledger := make([]models.Trade, len(p.Trades))
	for i, t := range p.Trades {
		ledger[i] = *t
	}
	return ledger
}
