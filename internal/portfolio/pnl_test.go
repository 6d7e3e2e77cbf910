package portfolio

import (
	"testing"
	"time"
)

var ts = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestLongRoundTrip(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("1", 1, 500000, ts)
	if got := tr.Realized(); got != 0 {
		t.Fatalf("no realized pnl on open, got %d", got)
	}

	realized := tr.RecordFill("2", -1, 501000, ts)
	if realized != 1000 {
		t.Fatalf("expected 1000 realized, got %d", realized)
	}
	if s := tr.GetSummary(); s.Position != 0 || s.RealizedPnL != 1000 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestShortRoundTrip(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("1", -2, 500000, ts)
	realized := tr.RecordFill("2", 2, 499000, ts)
	if realized != 2000 {
		t.Fatalf("expected 2000 realized on short cover, got %d", realized)
	}
}

func TestFlipThroughFlat(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("1", 1, 500000, ts)
	// Sell 2: close the long at a 500 gain, open short at 500500.
	realized := tr.RecordFill("2", -2, 500500, ts)
	if realized != 500 {
		t.Fatalf("expected 500 realized, got %d", realized)
	}
	s := tr.GetSummary()
	if s.Position != -1 || s.AvgEntry != 500500 {
		t.Fatalf("expected short 1 @ 500500, got %+v", s)
	}

	tr.Mark(500000)
	if got := tr.Unrealized(); got != 500 {
		t.Fatalf("expected 500 unrealized on short, got %d", got)
	}
}

func TestWeightedAverageEntry(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("1", 1, 500000, ts)
	tr.RecordFill("2", 1, 502000, ts)
	if s := tr.GetSummary(); s.Position != 2 || s.AvgEntry != 501000 {
		t.Fatalf("unexpected summary: %+v", s)
	}

	tr.Mark(503000)
	if got := tr.Unrealized(); got != 4000 {
		t.Fatalf("expected 4000 unrealized, got %d", got)
	}
}

func TestUnrealizedNeedsMark(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("1", 1, 500000, ts)
	if got := tr.Unrealized(); got != 0 {
		t.Fatalf("expected 0 before any mark, got %d", got)
	}
}
