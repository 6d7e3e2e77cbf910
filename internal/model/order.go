package model

import "time"

// OrderAction is the side of a market order.
type OrderAction string

const (
	ActionBuy  OrderAction = "BUY"
	ActionSell OrderAction = "SELL"
)

// OrderStatus is the terminal (or pending) state of a submitted order.
type OrderStatus string

const (
	OrderPending  OrderStatus = "PENDING"
	OrderFilled   OrderStatus = "FILLED"
	OrderRejected OrderStatus = "REJECTED"
	OrderTimedOut OrderStatus = "TIMED_OUT"
)

// OrderHandle identifies a submitted order at the gateway.
type OrderHandle struct {
	OrderID     string      `json:"order_id"`
	Action      OrderAction `json:"action"`
	Qty         int64       `json:"qty"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// OrderResult is the terminal outcome of an order as reported by the gateway.
// FilledQty may be less than the requested quantity on a partial fill; the
// reconciler applies only what actually filled.
type OrderResult struct {
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
	FilledQty int64       `json:"filled_qty"`
	AvgPrice  int64       `json:"avg_price"` // fill average in paise (0 if unknown)
	Reason    string      `json:"reason"`    // rejection reason, if any
}

// SignedQty returns the position delta this result applies: positive for
// buys, negative for sells.
func (r *OrderResult) SignedQty(action OrderAction) int64 {
	if action == ActionSell {
		return -r.FilledQty
	}
	return r.FilledQty
}
