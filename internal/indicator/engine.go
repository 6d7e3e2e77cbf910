// Package indicator computes the moving-average crossover state over a bar
// buffer snapshot. Recompute is a pure function of the snapshot: feeding the
// same bars always yields the same State, so repeated recomputes over an
// unchanged buffer are idempotent.
package indicator

import (
	"futures-botv1/internal/model"
)

// Signal is the discrete directional signal derived from the crossover.
type Signal int

const (
	Flat Signal = iota
	Long
	Short
)

func (s Signal) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	}
	return "FLAT"
}

// AsInt returns +1 for Long, -1 for Short, 0 for Flat.
func (s Signal) AsInt() int64 {
	switch s {
	case Long:
		return 1
	case Short:
		return -1
	}
	return 0
}

// State is the indicator state derived from the newest buffer snapshot.
// ShortAvg and LongAvg are undefined while Ready is false.
type State struct {
	ShortAvg float64
	LongAvg  float64
	Ready    bool
	Signal   Signal
}

// Engine computes short/long SMAs and the crossover signal.
// Single-goroutine use only.
type Engine struct {
	shortWindow int
	longWindow  int
	short       *SMA
	long        *SMA
}

// NewEngine creates an engine for the given window lengths.
// shortWindow < longWindow is enforced by config validation.
func NewEngine(shortWindow, longWindow int) *Engine {
	return &Engine{
		shortWindow: shortWindow,
		longWindow:  longWindow,
		short:       NewSMA(shortWindow),
		long:        NewSMA(longWindow),
	}
}

// Recompute derives the indicator state from a bar snapshot. The averages
// are trailing SMAs over the newest shortWindow and longWindow closes; both
// are undefined until the snapshot holds at least longWindow bars, in which
// case the signal is Flat.
func (e *Engine) Recompute(bars []model.Bar) State {
	if len(bars) < e.longWindow {
		return State{Signal: Flat}
	}

	e.short.Reset()
	for _, b := range bars[len(bars)-e.shortWindow:] {
		e.short.Update(b.Close)
	}
	e.long.Reset()
	for _, b := range bars[len(bars)-e.longWindow:] {
		e.long.Update(b.Close)
	}

	st := State{
		ShortAvg: e.short.Value(),
		LongAvg:  e.long.Value(),
		Ready:    true,
	}
	// Equal averages resolve to Short: the signal is Long only when the
	// short average is strictly greater. Explicit tie-break policy.
	if st.ShortAvg > st.LongAvg {
		st.Signal = Long
	} else {
		st.Signal = Short
	}
	return st
}
