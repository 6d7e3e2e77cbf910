package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"futures-botv1/config"
	"futures-botv1/internal/execution"
	"futures-botv1/internal/feed"
	"futures-botv1/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Symbol:          "ES",
		Exchange:        "GLOBEX",
		ContractMonth:   "202603",
		BarSize:         time.Minute,
		HistoryDuration: 10 * time.Minute,
		ShortWindow:     2,
		LongWindow:      3,
		OrderSize:       1,
		MaxPosition:     1,
		AwaitTimeout:    500 * time.Millisecond,
		PaperMode:       true,
	}
}

// ---- Fakes ----

type fakeHistory struct {
	bars []model.Bar
	err  error
}

func (f *fakeHistory) FetchHistory(ctx context.Context, spec model.ContractSpec, duration, barSize time.Duration) ([]model.Bar, error) {
	return f.bars, f.err
}

type fakeStream struct {
	ch chan model.Bar
}

func (f *fakeStream) Subscribe(ctx context.Context, spec model.ContractSpec, barSize time.Duration) (<-chan model.Bar, error) {
	return f.ch, nil
}

// fakeGateway holds every order open until release is closed.
type fakeGateway struct {
	mu      sync.Mutex
	submits int
	release chan struct{}
}

func (g *fakeGateway) Submit(ctx context.Context, action model.OrderAction, qty int64) (model.OrderHandle, error) {
	g.mu.Lock()
	g.submits++
	n := g.submits
	g.mu.Unlock()
	return model.OrderHandle{
		OrderID:     fmt.Sprintf("F-%d", n),
		Action:      action,
		Qty:         qty,
		SubmittedAt: time.Now(),
	}, nil
}

func (g *fakeGateway) AwaitTerminal(ctx context.Context, handle model.OrderHandle, timeout time.Duration) model.OrderResult {
	select {
	case <-g.release:
		return model.OrderResult{
			OrderID:   handle.OrderID,
			Status:    model.OrderFilled,
			FilledQty: handle.Qty,
			AvgPrice:  500000,
		}
	case <-time.After(timeout):
		return model.OrderResult{OrderID: handle.OrderID, Status: model.OrderTimedOut}
	}
}

func (g *fakeGateway) submitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submits
}

func risingBars(start time.Time, n int, barSize time.Duration) []model.Bar {
	bars := make([]model.Bar, n)
	price := int64(500000)
	for i := range bars {
		price += 100
		bars[i] = model.Bar{
			TS: start.Add(time.Duration(i) * barSize).UTC(),
			Open: price - 100, High: price + 50, Low: price - 150, Close: price,
			Volume: 10,
		}
	}
	return bars
}

// ---- Tests ----

func TestRun_NoHistoryIsFatal(t *testing.T) {
	cfg := testConfig()
	svc, err := New(cfg, Deps{
		History: &fakeHistory{err: model.ErrNoData},
		Stream:  &fakeStream{ch: make(chan model.Bar)},
		Gateway: &fakeGateway{release: make(chan struct{})},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := svc.Run(context.Background()); !errors.Is(err, model.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestRun_StreamCloseIsTerminal(t *testing.T) {
	cfg := testConfig()
	st := &fakeStream{ch: make(chan model.Bar)}
	svc, err := New(cfg, Deps{
		History: &fakeHistory{bars: risingBars(time.Now().Add(-time.Hour), 5, cfg.BarSize)},
		Stream:  st,
		Gateway: &fakeGateway{release: make(chan struct{})},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	close(st.ch)
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error on closed stream")
	}
}

func TestRun_SessionEndStopsCleanly(t *testing.T) {
	cfg := testConfig()
	cfg.EndTime = "16:00"
	st := &fakeStream{ch: make(chan model.Bar, 4)}

	base := time.Date(2026, 3, 2, 15, 58, 0, 0, time.UTC)
	hist := risingBars(base.Add(-10*time.Minute), 5, cfg.BarSize)
	gw := &fakeGateway{release: make(chan struct{})}
	close(gw.release) // fill immediately

	svc, err := New(cfg, Deps{History: &fakeHistory{bars: hist}, Stream: st, Gateway: gw})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// 15:58 and 15:59 trade; the 16:00 bar ends the session.
	for _, b := range risingBars(base, 3, cfg.BarSize) {
		st.ch <- b
	}

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean session-end shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop at session end")
	}
}

func TestRun_OneOrderInFlight(t *testing.T) {
	cfg := testConfig()
	st := &fakeStream{ch: make(chan model.Bar, 16)}
	gw := &fakeGateway{release: make(chan struct{})}

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	hist := risingBars(base.Add(-10*time.Minute), 5, cfg.BarSize)

	svc, err := New(cfg, Deps{History: &fakeHistory{bars: hist}, Stream: st, Gateway: gw})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Rising closes keep the signal long. The first bar triggers a buy
	// that the gateway holds open; the following bars must not submit.
	live := risingBars(base, 5, cfg.BarSize)
	st.ch <- live[0]
	waitFor(t, func() bool { return gw.submitCount() == 1 })
	for _, b := range live[1:] {
		st.ch <- b
	}
	time.Sleep(50 * time.Millisecond)
	if n := gw.submitCount(); n != 1 {
		t.Fatalf("expected exactly 1 submit while order in flight, got %d", n)
	}

	// Release the fill; position converges and no further order is needed.
	close(gw.release)
	waitFor(t, func() bool { return svc.Position() == 1 })

	st.ch <- risingBars(base.Add(5*cfg.BarSize), 1, cfg.BarSize)[0]
	time.Sleep(50 * time.Millisecond)
	if n := gw.submitCount(); n != 1 {
		t.Fatalf("position in sync, expected no new submit, got %d", n)
	}

	cancel()
	close(st.ch)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop on cancel")
	}
}

func TestRun_PaperLoopEndToEnd(t *testing.T) {
	cfg := testConfig()
	sim := feed.NewSim(500000, 42)
	sim.Interval = 2 * time.Millisecond
	paper := execution.NewPaperGateway(5, time.Millisecond)

	svc, err := New(cfg, Deps{
		History: sim,
		Stream:  sim,
		Gateway: paper,
		Paper:   paper,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := svc.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	pos := svc.Position()
	if pos < -cfg.MaxPosition || pos > cfg.MaxPosition {
		t.Fatalf("position %d outside [-%d, %d]", pos, cfg.MaxPosition, cfg.MaxPosition)
	}

	// Confirmed position must equal the sum of simulated fills.
	var sum int64
	for _, f := range paper.Fills() {
		if f.Action == model.ActionSell {
			sum -= f.Qty
		} else {
			sum += f.Qty
		}
	}
	if sum != pos {
		t.Fatalf("position %d does not match fill sum %d", pos, sum)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
