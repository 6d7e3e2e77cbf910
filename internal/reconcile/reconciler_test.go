package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"futures-botv1/internal/indicator"
	"futures-botv1/internal/model"
)

// fakeGateway records submissions and lets tests control when (and how)
// each order reaches a terminal status.
type fakeGateway struct {
	mu       sync.Mutex
	submits  []model.OrderHandle
	results  chan model.OrderResult
	orderSeq int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{results: make(chan model.OrderResult, 16)}
}

func (g *fakeGateway) Submit(ctx context.Context, action model.OrderAction, qty int64) (model.OrderHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orderSeq++
	h := model.OrderHandle{
		OrderID:     fmt.Sprintf("FAKE-%d", g.orderSeq),
		Action:      action,
		Qty:         qty,
		SubmittedAt: time.Now(),
	}
	g.submits = append(g.submits, h)
	return h, nil
}

func (g *fakeGateway) AwaitTerminal(ctx context.Context, handle model.OrderHandle, timeout time.Duration) model.OrderResult {
	select {
	case res := <-g.results:
		res.OrderID = handle.OrderID
		return res
	case <-time.After(timeout):
		return model.OrderResult{OrderID: handle.OrderID, Status: model.OrderTimedOut}
	}
}

func (g *fakeGateway) submitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submits)
}

func (g *fakeGateway) lastSubmit() model.OrderHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submits[len(g.submits)-1]
}

// fill releases the oldest awaiting order as fully filled.
func (g *fakeGateway) fill(qty int64) {
	g.results <- model.OrderResult{Status: model.OrderFilled, FilledQty: qty}
}

func (g *fakeGateway) reject(reason string) {
	g.results <- model.OrderResult{Status: model.OrderRejected, Reason: reason}
}

func waitIdle(t *testing.T, r *Reconciler) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.State() == Idle {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("reconciler did not return to Idle")
}

func TestReconcile_LongFromFlat(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, 1, 1, time.Second)

	d, err := r.Reconcile(context.Background(), indicator.Long)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if d.Desired != 1 || d.Delta != 1 || d.Action != ActionBuy || d.Qty != 1 {
		t.Fatalf("unexpected decision: %+v", d)
	}

	gw.fill(1)
	waitIdle(t, r)
	if got := r.Position(); got != 1 {
		t.Fatalf("expected position=1 after fill, got %d", got)
	}

	// Unchanged signal at target: no side effect.
	d, err = r.Reconcile(context.Background(), indicator.Long)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if d.Delta != 0 || d.Action != ActionNone {
		t.Fatalf("expected no-op decision, got %+v", d)
	}
	if gw.submitCount() != 1 {
		t.Fatalf("expected 1 order total, got %d", gw.submitCount())
	}
}

func TestReconcile_FlipLongToShort(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, 1, 1, time.Second)

	r.Reconcile(context.Background(), indicator.Long)
	gw.fill(1)
	waitIdle(t, r)

	d, err := r.Reconcile(context.Background(), indicator.Short)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	// From +1 to -1 in one corrective order.
	if d.Desired != -1 || d.Delta != -2 || d.Action != ActionSell || d.Qty != 2 {
		t.Fatalf("unexpected flip decision: %+v", d)
	}
	gw.fill(2)
	waitIdle(t, r)
	if got := r.Position(); got != -1 {
		t.Fatalf("expected position=-1, got %d", got)
	}
}

func TestReconcile_SkipsWhileOrderInFlight(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, 1, 1, time.Second)

	d1, err := r.Reconcile(context.Background(), indicator.Long)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if d1.Skipped {
		t.Fatal("first cycle must not be skipped")
	}

	// Overlapping cycles while the order awaits its fill.
	for i := 0; i < 5; i++ {
		d, err := r.Reconcile(context.Background(), indicator.Long)
		if err != nil {
			t.Fatalf("overlapping reconcile: %v", err)
		}
		if !d.Skipped {
			t.Fatalf("cycle %d: expected Skipped while order in flight", i)
		}
	}
	if gw.submitCount() != 1 {
		t.Fatalf("expected exactly 1 outstanding order, got %d", gw.submitCount())
	}

	gw.fill(1)
	waitIdle(t, r)
	if gw.submitCount() != 1 {
		t.Fatalf("fill must not submit, got %d orders", gw.submitCount())
	}
}

func TestReconcile_RejectionRetriesNextCycle(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, 1, 1, time.Second)

	var rejected model.OrderResult
	rejectedCh := make(chan struct{})
	r.OnOrderError = func(h model.OrderHandle, res model.OrderResult) {
		rejected = res
		close(rejectedCh)
	}

	r.Reconcile(context.Background(), indicator.Long)
	gw.reject("insufficient margin")

	select {
	case <-rejectedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("OnOrderError never fired")
	}
	if rejected.Reason != "insufficient margin" {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}
	waitIdle(t, r)
	if r.Position() != 0 {
		t.Fatalf("rejection must not move position, got %d", r.Position())
	}

	// The delta persists, so the next cycle re-attempts.
	d, err := r.Reconcile(context.Background(), indicator.Long)
	if err != nil {
		t.Fatalf("retry reconcile: %v", err)
	}
	if d.Action != ActionBuy || d.Qty != 1 {
		t.Fatalf("expected retry Buy 1, got %+v", d)
	}
	if gw.submitCount() != 2 {
		t.Fatalf("expected 2 submissions, got %d", gw.submitCount())
	}
}

func TestReconcile_PartialFillLeavesResidualDelta(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, 2, 2, time.Second)

	d, _ := r.Reconcile(context.Background(), indicator.Long)
	if d.Qty != 2 {
		t.Fatalf("expected qty=2, got %+v", d)
	}
	gw.fill(1) // partial
	waitIdle(t, r)
	if r.Position() != 1 {
		t.Fatalf("expected position=1 after partial fill, got %d", r.Position())
	}

	d, _ = r.Reconcile(context.Background(), indicator.Long)
	if d.Action != ActionBuy || d.Qty != 1 {
		t.Fatalf("expected residual Buy 1, got %+v", d)
	}
}

func TestPlan_ClipsToMaxPosition(t *testing.T) {
	d := Plan(indicator.Long, 0, 5, 3)
	if d.Desired != 3 || d.Qty != 3 {
		t.Fatalf("expected clip to +3, got %+v", d)
	}
	d = Plan(indicator.Short, 0, 5, 3)
	if d.Desired != -3 || d.Action != ActionSell || d.Qty != 3 {
		t.Fatalf("expected clip to -3, got %+v", d)
	}
	d = Plan(indicator.Flat, 2, 1, 1)
	if d.Desired != 0 || d.Action != ActionSell || d.Qty != 2 {
		t.Fatalf("expected unwind to 0, got %+v", d)
	}
}

func TestDrain_WaitsForTerminalStatus(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, 1, 1, time.Second)

	r.Reconcile(context.Background(), indicator.Long)

	drained := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		drained <- r.Drain(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	gw.fill(1)

	select {
	case err := <-drained:
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("drain never returned")
	}
	if r.Position() != 1 {
		t.Fatalf("expected fill applied before drain completion, got %d", r.Position())
	}
}

func TestDrain_NoOpWhenIdle(t *testing.T) {
	r := New(newFakeGateway(), 1, 1, time.Second)
	if err := r.Drain(context.Background()); err != nil {
		t.Fatalf("drain on idle reconciler: %v", err)
	}
}
