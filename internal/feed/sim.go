// Package feed provides bar sources for the bot.
//
// Sim is a seeded random-walk bar generator implementing both the history
// and live-stream ports, so the whole loop runs offline in paper mode.
package feed

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"futures-botv1/internal/model"
)

// Sim generates a continuous random-walk bar series: the live stream
// continues from where the history backfill ended.
type Sim struct {
	mu        sync.Mutex
	rng       *rand.Rand
	lastClose int64
	lastTS    time.Time

	// StepBps is the max per-bar move in basis points of the price.
	// Defaults to 20 (0.2%).
	StepBps int64

	// Interval overrides the bar cadence of the live stream; useful for
	// accelerated runs. Zero means emit at the requested bar size.
	Interval time.Duration
}

// NewSim creates a simulated feed starting from the given price (paise).
// The same seed reproduces the same series.
func NewSim(startPaise int64, seed int64) *Sim {
	return &Sim{
		rng:       rand.New(rand.NewSource(seed)),
		lastClose: startPaise,
		StepBps:   20,
	}
}

// FetchHistory generates a backfill series ending at the current bar
// boundary. Implements model.HistoryProvider.
func (s *Sim) FetchHistory(ctx context.Context, spec model.ContractSpec, duration, barSize time.Duration) ([]model.Bar, error) {
	n := int(duration / barSize)
	if n <= 0 {
		return nil, model.ErrNoData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	end := time.Now().UTC().Truncate(barSize)
	start := end.Add(-time.Duration(n) * barSize)

	bars := make([]model.Bar, 0, n)
	ts := start
	for i := 0; i < n; i++ {
		bars = append(bars, s.nextBarLocked(ts))
		ts = ts.Add(barSize)
	}
	s.lastTS = bars[len(bars)-1].TS
	log.Printf("[feed] generated %d simulated history bars for %s", len(bars), spec.Key())
	return bars, nil
}

// Subscribe emits one bar per interval, continuing the walk from the last
// history bar. The channel closes when ctx is cancelled. Implements
// model.BarStream.
func (s *Sim) Subscribe(ctx context.Context, spec model.ContractSpec, barSize time.Duration) (<-chan model.Bar, error) {
	interval := s.Interval
	if interval == 0 {
		interval = barSize
	}

	out := make(chan model.Bar, 64)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				ts := s.lastTS.Add(barSize)
				if s.lastTS.IsZero() {
					ts = time.Now().UTC().Truncate(barSize)
				}
				bar := s.nextBarLocked(ts)
				s.lastTS = ts
				s.mu.Unlock()

				select {
				case out <- bar:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// nextBarLocked advances the walk one bar. Caller holds s.mu.
func (s *Sim) nextBarLocked(ts time.Time) model.Bar {
	open := s.lastClose
	step := open * s.StepBps / 10000
	if step < 1 {
		step = 1
	}
	move := s.rng.Int63n(2*step+1) - step
	close := open + move
	if close < 100 {
		close = 100 // price floor, one rupee
	}

	high, low := open, close
	if close > open {
		high = close
		low = open
	}
	high += s.rng.Int63n(step + 1)
	low -= s.rng.Int63n(step + 1)

	s.lastClose = close
	return model.Bar{
		TS:     ts,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 10 + s.rng.Int63n(90),
	}
}
