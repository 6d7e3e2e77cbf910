// Package bot wires the trading loop: bar stream in, indicator recompute,
// signal policy, position reconciliation out.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"futures-botv1/config"
	"futures-botv1/internal/barbuf"
	"futures-botv1/internal/execution"
	"futures-botv1/internal/indicator"
	"futures-botv1/internal/metrics"
	"futures-botv1/internal/model"
	"futures-botv1/internal/notification"
	"futures-botv1/internal/portfolio"
	"futures-botv1/internal/reconcile"
	"futures-botv1/internal/session"
	"futures-botv1/internal/strategy"
	redisstore "futures-botv1/internal/store/redis"
)

// Deps are the collaborators the service drives. History, Stream and
// Gateway are required; the rest are optional and skipped when nil.
type Deps struct {
	History model.HistoryProvider
	Stream  model.BarStream
	Gateway model.OrderGateway

	// Paper, when set, receives each bar's close as the mark price for
	// simulated fills.
	Paper *execution.PaperGateway

	Journal   *execution.Journal
	Publisher *redisstore.Publisher
	Notifier  notification.Notifier
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
}

// Service is the top-level orchestrator. It owns no trading logic itself:
// bars go into the buffer, averages come out of the engine, and the
// reconciler decides what (if anything) to submit.
type Service struct {
	cfg    *config.Config
	spec   model.ContractSpec
	window session.Window

	buf    *barbuf.Buffer
	engine *indicator.Engine
	policy strategy.Policy
	rec    *reconcile.Reconciler
	pnl    *portfolio.Tracker

	deps Deps

	lastSignal indicator.Signal
	haveSignal bool
}

// errSessionOver signals a clean end-of-session shutdown inside the loop.
var errSessionOver = errors.New("session window ended")

// New creates the service and wires fill and order-failure handling into
// the reconciler.
func New(cfg *config.Config, deps Deps) (*Service, error) {
	if deps.History == nil || deps.Stream == nil || deps.Gateway == nil {
		return nil, fmt.Errorf("bot: history, stream and gateway are required")
	}
	window, err := cfg.SessionWindow()
	if err != nil {
		return nil, err
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NewMulti()
	}

	s := &Service{
		cfg:    cfg,
		spec:   cfg.Contract(),
		window: window,
		buf:    barbuf.New(cfg.ShortWindow, cfg.LongWindow),
		engine: indicator.NewEngine(cfg.ShortWindow, cfg.LongWindow),
		policy: strategy.NewCrossover(),
		rec:    reconcile.New(deps.Gateway, cfg.OrderSize, cfg.MaxPosition, cfg.AwaitTimeout),
		pnl:    portfolio.NewTracker(),
		deps:   deps,
	}
	s.rec.OnFill = s.onFill
	s.rec.OnOrderError = s.onOrderError
	return s, nil
}

// Position returns the confirmed position (signed contracts).
func (s *Service) Position() int64 { return s.rec.Position() }

// Run backfills history, subscribes to the live stream, and processes bars
// until the stream closes, the session window ends, or ctx is cancelled.
// A closed stream channel is a terminal disconnect and returns an error.
func (s *Service) Run(ctx context.Context) error {
	log.Printf("[bot] starting %s on %s (%s bars, SMA %d/%d, session %s)",
		s.policy.Name(), s.spec.Key(), s.cfg.BarSize, s.cfg.ShortWindow, s.cfg.LongWindow, s.window)

	// ---- Backfill ----
	bars, err := s.deps.History.FetchHistory(ctx, s.spec, s.cfg.HistoryDuration, s.cfg.BarSize)
	if err != nil {
		if errors.Is(err, model.ErrNoData) {
			return fmt.Errorf("bot: no historical bars for %s: %w", s.spec.Key(), err)
		}
		return fmt.Errorf("bot: backfill: %w", err)
	}
	for _, b := range bars {
		s.buf.Append(b)
	}
	st := s.engine.Recompute(s.buf.Snapshot())
	log.Printf("[bot] backfilled %d bars (buffer %d/%d), warm=%v",
		len(bars), s.buf.Len(), s.buf.Cap(), st.Ready)

	// ---- Subscribe ----
	ch, err := s.deps.Stream.Subscribe(ctx, s.spec, s.cfg.BarSize)
	if err != nil {
		return fmt.Errorf("bot: subscribe: %w", err)
	}
	if s.deps.Health != nil {
		s.deps.Health.SetStreamConnected(true)
	}

	// ---- Bar loop ----
	// Bars are processed sequentially; order confirmation runs off-loop in
	// the reconciler, so a slow fill never blocks ingestion.
	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case bar, ok := <-ch:
			if !ok {
				if s.deps.Health != nil {
					s.deps.Health.SetStreamConnected(false)
				}
				// A close caused by our own cancellation is a clean stop.
				if ctx.Err() == nil {
					runErr = fmt.Errorf("bot: bar stream closed")
				}
				break loop
			}
			if err := s.onBar(ctx, bar); err != nil {
				if errors.Is(err, errSessionOver) {
					log.Printf("[bot] session window %s over, shutting down", s.window)
					break loop
				}
				runErr = err
				break loop
			}
		}
	}

	s.shutdown()
	return runErr
}

// onBar runs one cycle for a streamed bar.
func (s *Service) onBar(ctx context.Context, bar model.Bar) error {
	res := s.buf.Append(bar)
	m := s.deps.Metrics
	switch res {
	case barbuf.RejectedStale:
		log.Printf("[bot] dropped out-of-order bar %s", bar.TS.Format(time.RFC3339))
		if m != nil {
			m.StaleBarsRejected.Inc()
		}
		return nil
	case barbuf.Replaced:
		if m != nil {
			m.BarUpdatesTotal.Inc()
		}
	case barbuf.Inserted:
		if m != nil {
			m.BarsTotal.Inc()
		}
	}

	if s.deps.Health != nil {
		s.deps.Health.SetLastBarTime(bar.TS)
	}
	if s.deps.Paper != nil {
		s.deps.Paper.MarkPrice(bar.Close)
	}
	s.pnl.Mark(bar.Close)
	if m != nil {
		m.UnrealizedPnL.Set(float64(s.pnl.Unrealized()))
	}
	if s.deps.Publisher != nil {
		s.deps.Publisher.PublishBar(ctx, s.spec, bar)
	}

	st := s.engine.Recompute(s.buf.Snapshot())
	if m != nil && st.Ready {
		m.ShortAvg.Set(st.ShortAvg)
		m.LongAvg.Set(st.LongAvg)
	}

	sig := s.policy.Latest(st)
	if s.haveSignal && sig != s.lastSignal {
		log.Printf("[bot] signal %s -> %s (short=%.2f long=%.2f)", s.lastSignal, sig, st.ShortAvg, st.LongAvg)
		if m != nil {
			m.SignalChanges.Inc()
		}
		if s.deps.Publisher != nil {
			s.deps.Publisher.PublishSignal(ctx, s.spec, sig.String(), st.ShortAvg, st.LongAvg, bar.TS)
		}
	}
	s.lastSignal, s.haveSignal = sig, true

	if s.window.EndReached(bar.TS) {
		return errSessionOver
	}
	active := session.TradingDay(bar.TS) && s.window.Active(bar.TS)
	if m != nil {
		if active {
			m.SessionActive.Set(1)
		} else {
			m.SessionActive.Set(0)
		}
	}
	if !active {
		return nil
	}

	d, err := s.rec.Reconcile(ctx, sig)
	switch {
	case err != nil:
		// Submission failure; the unchanged delta retries next bar.
		log.Printf("[bot] reconcile: %v", err)
	case d.Skipped:
		if m != nil {
			m.CyclesSkipped.Inc()
		}
		if s.cfg.Verbose {
			log.Printf("[bot] order in flight, skipped cycle (desired=%d delta=%d)", d.Desired, d.Delta)
		}
	case d.Action != reconcile.ActionNone:
		log.Printf("[bot] submitted %s %d (desired=%d confirmed=%d)", d.Action, d.Qty, d.Desired, d.Desired-d.Delta)
		if m != nil {
			m.OrdersSubmitted.WithLabelValues(d.Action.String()).Inc()
		}
	default:
		if s.cfg.Verbose {
			log.Printf("[bot] bar %s close=%d signal=%s position=%d (in sync)",
				bar.TS.Format("15:04"), bar.Close, sig, s.rec.Position())
		}
	}
	return nil
}

// onFill is invoked by the reconciler after a fill updates the position.
func (s *Service) onFill(handle model.OrderHandle, res model.OrderResult, position int64) {
	log.Printf("[bot] filled %s %s %d/%d @ %d, position=%d",
		handle.OrderID, handle.Action, res.FilledQty, handle.Qty, res.AvgPrice, position)

	realized := s.pnl.RecordFill(handle.OrderID, res.SignedQty(handle.Action), res.AvgPrice, time.Now().UTC())
	if realized != 0 {
		log.Printf("[bot] realized pnl %d paise (total %d)", realized, s.pnl.Realized())
	}

	if m := s.deps.Metrics; m != nil {
		m.OrdersFilled.Inc()
		m.Position.Set(float64(position))
		m.OrderAwaitDur.Observe(time.Since(handle.SubmittedAt).Seconds())
		m.RealizedPnL.Set(float64(s.pnl.Realized()))
	}
	if s.deps.Health != nil {
		s.deps.Health.SetPosition(position)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.deps.Journal != nil {
		if err := s.deps.Journal.RecordFill(s.spec, handle, res, position); err != nil {
			log.Printf("[bot] journal write failed: %v", err)
			if s.deps.Health != nil {
				s.deps.Health.SetJournalOK(false)
			}
		}
	}
	if s.deps.Publisher != nil {
		s.deps.Publisher.PublishFill(ctx, s.spec, handle, res, position)
	}
	s.deps.Notifier.Send(ctx, notification.Alert{
		Level: notification.AlertInfo,
		Title: fmt.Sprintf("Fill: %s %d %s", handle.Action, res.FilledQty, s.spec.Symbol),
		Message: fmt.Sprintf("Order %s filled %d/%d at %d. Position now %d.",
			handle.OrderID, res.FilledQty, handle.Qty, res.AvgPrice, position),
	})
}

// onOrderError is invoked by the reconciler on rejection or await timeout.
func (s *Service) onOrderError(handle model.OrderHandle, res model.OrderResult) {
	if m := s.deps.Metrics; m != nil {
		switch res.Status {
		case model.OrderRejected:
			m.OrdersRejected.Inc()
		case model.OrderTimedOut:
			m.OrdersTimedOut.Inc()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.deps.Notifier.Send(ctx, notification.Alert{
		Level: notification.AlertWarning,
		Title: fmt.Sprintf("Order %s: %s", res.Status, s.spec.Symbol),
		Message: fmt.Sprintf("Order %s (%s %d) ended %s: %s. Delta retries on the next bar.",
			handle.OrderID, handle.Action, handle.Qty, res.Status, res.Reason),
	})
}

// shutdown waits for any in-flight order before returning control, so no
// unconfirmed order is left unwatched.
func (s *Service) shutdown() {
	drainCtx, cancel := context.WithTimeout(context.Background(), s.cfg.AwaitTimeout+5*time.Second)
	defer cancel()
	if err := s.rec.Drain(drainCtx); err != nil {
		log.Printf("[bot] %v", err)
	}
	sum := s.pnl.GetSummary()
	log.Printf("[bot] stopped: position=%d trades=%d realized=%d unrealized=%d",
		s.rec.Position(), sum.TotalTrades, sum.RealizedPnL, sum.UnrealizedPnL)
}
