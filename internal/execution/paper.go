// Package execution provides order gateways and the trade journal.
//
// The paper gateway simulates execution without real broker calls so the
// whole decision loop can run offline against a simulated feed.
package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"futures-botv1/internal/model"
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID   string            `json:"order_id"`
	Action    model.OrderAction `json:"action"`
	Qty       int64             `json:"qty"`
	FillPrice int64             `json:"fill_price"` // in paise
	FilledAt  time.Time         `json:"filled_at"`
	Slippage  int64             `json:"slippage"` // simulated slippage in paise
}

// PaperGateway simulates order execution against the last marked price.
// Orders fill fully after a small configurable delay.
type PaperGateway struct {
	mu       sync.Mutex
	fills    []Fill
	pending  map[string]chan model.OrderResult
	orderSeq int64
	mark     int64 // last marked price in paise

	// Simulation parameters
	slippageBps int64         // basis points of slippage (e.g., 5 = 0.05%)
	fillDelay   time.Duration // delay before the simulated fill lands
}

// NewPaperGateway creates a paper trading gateway.
// slippageBps controls simulated slippage in basis points.
func NewPaperGateway(slippageBps int64, fillDelay time.Duration) *PaperGateway {
	return &PaperGateway{
		fills:       make([]Fill, 0, 1000),
		pending:     make(map[string]chan model.OrderResult),
		slippageBps: slippageBps,
		fillDelay:   fillDelay,
	}
}

// MarkPrice sets the reference price (paise) used for subsequent fills.
// The bot marks every bar close through here.
func (p *PaperGateway) MarkPrice(paise int64) {
	p.mu.Lock()
	p.mark = paise
	p.mu.Unlock()
}

// Fills returns a snapshot of all fills.
func (p *PaperGateway) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Submit places a simulated market order. The fill is produced
// asynchronously after the configured delay.
func (p *PaperGateway) Submit(ctx context.Context, action model.OrderAction, qty int64) (model.OrderHandle, error) {
	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)
	mark := p.mark
	resCh := make(chan model.OrderResult, 1)
	p.pending[orderID] = resCh
	p.mu.Unlock()

	handle := model.OrderHandle{
		OrderID:     orderID,
		Action:      action,
		Qty:         qty,
		SubmittedAt: time.Now(),
	}

	delay := p.fillDelay
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		p.settle(handle, mark, resCh)
	}()

	return handle, nil
}

// AwaitTerminal waits for the simulated fill or the timeout.
func (p *PaperGateway) AwaitTerminal(ctx context.Context, handle model.OrderHandle, timeout time.Duration) model.OrderResult {
	p.mu.Lock()
	resCh, ok := p.pending[handle.OrderID]
	p.mu.Unlock()
	if !ok {
		return model.OrderResult{
			OrderID: handle.OrderID,
			Status:  model.OrderRejected,
			Reason:  "unknown order",
		}
	}

	select {
	case res := <-resCh:
		return res
	case <-time.After(timeout):
		return model.OrderResult{OrderID: handle.OrderID, Status: model.OrderTimedOut}
	case <-ctx.Done():
		return model.OrderResult{OrderID: handle.OrderID, Status: model.OrderTimedOut}
	}
}

func (p *PaperGateway) settle(handle model.OrderHandle, mark int64, resCh chan model.OrderResult) {
	fillPrice := mark
	slippage := int64(0)
	if fillPrice > 0 && p.slippageBps > 0 {
		slippage = fillPrice * p.slippageBps / 10000
		if handle.Action == model.ActionBuy {
			fillPrice += slippage // buy higher
		} else {
			fillPrice -= slippage // sell lower
		}
	}

	fill := Fill{
		OrderID:   handle.OrderID,
		Action:    handle.Action,
		Qty:       handle.Qty,
		FillPrice: fillPrice,
		FilledAt:  time.Now(),
		Slippage:  slippage,
	}

	p.mu.Lock()
	p.fills = append(p.fills, fill)
	delete(p.pending, handle.OrderID)
	p.mu.Unlock()

	log.Printf("[paper] %s qty=%d price=%d (slip=%d) order=%s",
		handle.Action, handle.Qty, fillPrice, slippage, handle.OrderID)

	resCh <- model.OrderResult{
		OrderID:   handle.OrderID,
		Status:    model.OrderFilled,
		FilledQty: handle.Qty,
		AvgPrice:  fillPrice,
	}
}
