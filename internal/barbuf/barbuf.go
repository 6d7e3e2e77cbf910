// Package barbuf maintains a bounded, timestamp-ordered window of bars for
// indicator computation. Appends dedupe by timestamp: a bar carrying the same
// timestamp as the newest stored bar replaces it (the venue re-emitted the
// bar with updated data), while an older timestamp is rejected as stale.
package barbuf

import (
	"futures-botv1/internal/model"
)

// AppendResult describes the outcome of an Append.
type AppendResult int

const (
	// Inserted means the bar extended the buffer with a new timestamp.
	Inserted AppendResult = iota
	// Replaced means the bar updated the newest stored bar in place.
	Replaced
	// RejectedStale means the bar's timestamp was older than the newest
	// stored bar and the buffer is unchanged.
	RejectedStale
)

func (r AppendResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case RejectedStale:
		return "rejected_stale"
	}
	return "unknown"
}

// retentionFactor bounds memory: the buffer keeps retentionFactor times the
// longest indicator window, leaving slack for re-smoothing after trims.
const retentionFactor = 3

// Buffer is a timestamp-ordered bar window owned by a single goroutine.
type Buffer struct {
	bars []model.Bar
	cap  int // retention cap, retentionFactor * longest window
}

// New creates a buffer sized for the longer of the two indicator windows.
func New(shortWindow, longWindow int) *Buffer {
	maxWindow := longWindow
	if shortWindow > maxWindow {
		maxWindow = shortWindow
	}
	cap := retentionFactor * maxWindow
	return &Buffer{
		bars: make([]model.Bar, 0, cap+1),
		cap:  cap,
	}
}

// Append adds a bar to the buffer, maintaining strictly increasing
// timestamps, then trims the oldest entries down to the retention cap.
func (b *Buffer) Append(bar model.Bar) AppendResult {
	n := len(b.bars)
	if n > 0 {
		last := b.bars[n-1].TS
		if bar.TS.Before(last) {
			return RejectedStale
		}
		if bar.TS.Equal(last) {
			b.bars[n-1] = bar
			return Replaced
		}
	}

	b.bars = append(b.bars, bar)
	if len(b.bars) > b.cap {
		excess := len(b.bars) - b.cap
		b.bars = append(b.bars[:0], b.bars[excess:]...)
	}
	return Inserted
}

// Snapshot returns the buffered bars in timestamp order. The slice shares
// the buffer's backing array; callers must treat it as read-only and not
// retain it across the next Append.
func (b *Buffer) Snapshot() []model.Bar {
	return b.bars
}

// Len returns the number of buffered bars.
func (b *Buffer) Len() int {
	return len(b.bars)
}

// Cap returns the retention cap.
func (b *Buffer) Cap() int {
	return b.cap
}
