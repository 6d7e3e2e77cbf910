// Package portfolio tracks the bot's profit and loss over a single
// futures contract. The position is signed: negative means short.
package portfolio

import (
	"sync"
	"time"
)

// Trade is one fill applied to the tracker.
type Trade struct {
	OrderID   string    `json:"order_id"`
	Qty       int64     `json:"qty"` // signed: negative sells
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker accumulates realized and unrealized P&L from fills.
// All money amounts are in paise.
type Tracker struct {
	mu     sync.RWMutex
	trades []Trade

	position int64 // signed contracts
	avgEntry int64 // average entry price of the open position
	realized int64
	mark     int64 // last marked price
}

// NewTracker creates an empty P&L tracker.
func NewTracker() *Tracker {
	return &Tracker{trades: make([]Trade, 0, 256)}
}

// Mark records the latest reference price for unrealized P&L.
func (t *Tracker) Mark(price int64) {
	t.mu.Lock()
	t.mark = price
	t.mu.Unlock()
}

// RecordFill applies a signed fill and returns the P&L realized by it.
// A fill against the open position realizes P&L for the closed portion;
// any excess opens a position the other way at the fill price.
func (t *Tracker) RecordFill(orderID string, qty, price int64, ts time.Time) int64 {
	if qty == 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.trades = append(t.trades, Trade{OrderID: orderID, Qty: qty, Price: price, Timestamp: ts})

	var realized int64
	switch {
	case t.position == 0 || sameSign(t.position, qty):
		// Opening or adding: weighted average entry.
		total := t.avgEntry*abs(t.position) + price*abs(qty)
		t.position += qty
		t.avgEntry = total / abs(t.position)
	default:
		closed := min64(abs(qty), abs(t.position))
		if t.position > 0 {
			realized = (price - t.avgEntry) * closed
		} else {
			realized = (t.avgEntry - price) * closed
		}
		t.realized += realized
		t.position += qty
		if t.position == 0 {
			t.avgEntry = 0
		} else if !sameSign(t.position, t.position-qty) {
			// Flipped through flat: the remainder opens at the fill price.
			t.avgEntry = price
		}
	}
	return realized
}

// Realized returns total realized P&L.
func (t *Tracker) Realized() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.realized
}

// Unrealized returns open-position P&L against the last marked price.
func (t *Tracker) Unrealized() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.unrealizedLocked()
}

func (t *Tracker) unrealizedLocked() int64 {
	if t.position == 0 || t.mark == 0 {
		return 0
	}
	if t.position > 0 {
		return (t.mark - t.avgEntry) * t.position
	}
	return (t.avgEntry - t.mark) * -t.position
}

// Trades returns a snapshot of all recorded fills.
func (t *Tracker) Trades() []Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cp := make([]Trade, len(t.trades))
	copy(cp, t.trades)
	return cp
}

// Summary is a point-in-time P&L snapshot.
type Summary struct {
	Position      int64 `json:"position"`
	AvgEntry      int64 `json:"avg_entry"`
	RealizedPnL   int64 `json:"realized_pnl"`
	UnrealizedPnL int64 `json:"unrealized_pnl"`
	TotalPnL      int64 `json:"total_pnl"`
	TotalTrades   int   `json:"total_trades"`
}

// GetSummary returns the current P&L summary.
func (t *Tracker) GetSummary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u := t.unrealizedLocked()
	return Summary{
		Position:      t.position,
		AvgEntry:      t.avgEntry,
		RealizedPnL:   t.realized,
		UnrealizedPnL: u,
		TotalPnL:      t.realized + u,
		TotalTrades:   len(t.trades),
	}
}

func sameSign(a, b int64) bool { return (a > 0) == (b > 0) }

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
