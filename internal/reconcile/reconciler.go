// Package reconcile converts a desired directional signal into the minimal
// order that moves the tracked position to a risk-bounded target.
//
// The reconciler is a two-state machine: Idle (no order outstanding) and
// OrderInFlight (exactly one order submitted, awaiting terminal status).
// Reconciliation cycles arriving while an order is in flight are skipped,
// never double-submitted; skipping is safe because the decision is a pure
// function of the current signal and confirmed position, so the next bar
// recomputes it fresh.
//
// The confirmed position is mutated only on fill confirmation, never
// optimistically on submission. A rejected or timed-out order leaves the
// position unchanged; the positional delta reappears on the next cycle,
// which is the retry mechanism.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"futures-botv1/internal/indicator"
	"futures-botv1/internal/model"
)

// State is the reconciler lifecycle state.
type State int

const (
	Idle State = iota
	OrderInFlight
)

func (s State) String() string {
	if s == OrderInFlight {
		return "ORDER_IN_FLIGHT"
	}
	return "IDLE"
}

// Action is the corrective action for one reconciliation cycle.
type Action int

const (
	ActionNone Action = iota
	ActionBuy
	ActionSell
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	}
	return "NONE"
}

// OrderAction maps the decision action to the gateway order side.
// Only valid for ActionBuy and ActionSell.
func (a Action) OrderAction() model.OrderAction {
	if a == ActionSell {
		return model.ActionSell
	}
	return model.ActionBuy
}

// Decision is the ephemeral outcome of one reconciliation cycle.
type Decision struct {
	Desired int64  // target position after clipping to risk bounds
	Delta   int64  // desired minus confirmed
	Action  Action // corrective order side, or none
	Qty     int64  // |Delta|
	Skipped bool   // cycle arrived while an order was in flight
}

// Reconciler owns the confirmed position and serializes order submission.
type Reconciler struct {
	gw           model.OrderGateway
	orderSize    int64
	maxPosition  int64
	awaitTimeout time.Duration

	mu           sync.Mutex
	state        State
	confirmed    int64
	inflightDone chan struct{}

	// OnFill is called after a fill updates the confirmed position.
	// Invoked outside the reconciler lock.
	OnFill func(handle model.OrderHandle, res model.OrderResult, position int64)

	// OnOrderError is called on rejection or await timeout.
	OnOrderError func(handle model.OrderHandle, res model.OrderResult)
}

// New creates a reconciler submitting through the given gateway.
func New(gw model.OrderGateway, orderSize, maxPosition int64, awaitTimeout time.Duration) *Reconciler {
	return &Reconciler{
		gw:           gw,
		orderSize:    orderSize,
		maxPosition:  maxPosition,
		awaitTimeout: awaitTimeout,
		state:        Idle,
	}
}

// Position returns the confirmed position (signed contracts).
func (r *Reconciler) Position() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.confirmed
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Plan computes the decision for a signal against a confirmed position.
// Pure: no state is touched.
func Plan(sig indicator.Signal, confirmed, orderSize, maxPosition int64) Decision {
	desired := clip(sig.AsInt()*orderSize, -maxPosition, maxPosition)
	delta := desired - confirmed

	d := Decision{Desired: desired, Delta: delta}
	switch {
	case delta > 0:
		d.Action = ActionBuy
		d.Qty = delta
	case delta < 0:
		d.Action = ActionSell
		d.Qty = -delta
	}
	return d
}

// Reconcile runs one cycle: plan the corrective order for the signal and
// submit it unless one is already in flight or no change is required.
// At most one order is submitted per call, and never while OrderInFlight.
func (r *Reconciler) Reconcile(ctx context.Context, sig indicator.Signal) (Decision, error) {
	r.mu.Lock()

	d := Plan(sig, r.confirmed, r.orderSize, r.maxPosition)
	if r.state == OrderInFlight {
		d.Skipped = true
		r.mu.Unlock()
		return d, nil
	}
	if d.Action == ActionNone {
		r.mu.Unlock()
		return d, nil
	}

	// Claim the in-flight slot before releasing the lock for network I/O,
	// so a concurrent cycle cannot submit a second order.
	done := make(chan struct{})
	r.state = OrderInFlight
	r.inflightDone = done
	r.mu.Unlock()

	handle, err := r.gw.Submit(ctx, d.Action.OrderAction(), d.Qty)
	if err != nil {
		r.mu.Lock()
		r.state = Idle
		r.inflightDone = nil
		r.mu.Unlock()
		close(done)
		return d, fmt.Errorf("submit %s %d: %w", d.Action, d.Qty, err)
	}

	go r.awaitTerminal(handle, done)
	return d, nil
}

// awaitTerminal waits for the order's terminal status and applies the fill.
// Runs in its own goroutine so bar ingestion is never blocked; uses a
// background context so a shutdown can still observe the terminal status
// (bounded by the await timeout).
func (r *Reconciler) awaitTerminal(handle model.OrderHandle, done chan struct{}) {
	res := r.gw.AwaitTerminal(context.Background(), handle, r.awaitTimeout)

	r.mu.Lock()
	var position int64
	filled := res.Status == model.OrderFilled && res.FilledQty > 0
	if filled {
		// Apply what actually filled; a partial fill leaves a residual
		// delta that the next cycle corrects.
		r.confirmed += res.SignedQty(handle.Action)
		position = r.confirmed
	}
	r.state = Idle
	r.inflightDone = nil
	r.mu.Unlock()
	close(done)

	if filled {
		if r.OnFill != nil {
			r.OnFill(handle, res, position)
		}
		return
	}

	log.Printf("[reconcile] order %s %s %d not filled: status=%s reason=%q (will retry next cycle)",
		handle.OrderID, handle.Action, handle.Qty, res.Status, res.Reason)
	if r.OnOrderError != nil {
		r.OnOrderError(handle, res)
	}
}

// Drain blocks until any in-flight order reaches a terminal status or ctx
// expires. Called during shutdown so no unconfirmed order is left with
// nothing watching it.
func (r *Reconciler) Drain(ctx context.Context) error {
	r.mu.Lock()
	done := r.inflightDone
	r.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain: in-flight order unresolved: %w", ctx.Err())
	}
}

func clip(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
