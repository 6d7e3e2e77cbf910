package session

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("09:30", "16:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if w.Start.Minutes() != 9*60+30 || w.End.Minutes() != 16*60 {
		t.Fatalf("unexpected window: %+v", w)
	}
}

func TestParseWindow_Invalid(t *testing.T) {
	for _, s := range []string{"9.30", "25:00", "09:61", "nine"} {
		if _, err := ParseWindow(s, ""); err == nil {
			t.Errorf("expected error for start=%q", s)
		}
	}
}

func TestWindow_Active(t *testing.T) {
	w, _ := ParseWindow("09:30", "16:00")

	cases := []struct {
		now    time.Time
		active bool
	}{
		{at(9, 29), false},  // before start
		{at(9, 30), true},   // at start
		{at(12, 0), true},   // mid-session
		{at(15, 59), true},  // last minute
		{at(16, 0), false},  // at end
		{at(20, 0), false},  // after end
	}
	for _, tc := range cases {
		if got := w.Active(tc.now); got != tc.active {
			t.Errorf("Active(%v): expected %v, got %v", tc.now, tc.active, got)
		}
	}
}

func TestWindow_UnboundedAlwaysActive(t *testing.T) {
	var w Window
	for _, now := range []time.Time{at(0, 0), at(12, 0), at(23, 59)} {
		if !w.Active(now) {
			t.Errorf("unbounded window inactive at %v", now)
		}
		if w.EndReached(now) {
			t.Errorf("unbounded window reports end reached at %v", now)
		}
	}
}

func TestWindow_StartOnly(t *testing.T) {
	w, _ := ParseWindow("09:30", "")
	if w.Active(at(9, 0)) {
		t.Error("active before start")
	}
	if !w.Active(at(23, 59)) {
		t.Error("inactive after start with open end")
	}
}

func TestWindow_EndReached(t *testing.T) {
	w, _ := ParseWindow("", "16:00")
	if w.EndReached(at(15, 59)) {
		t.Error("end reached before end time")
	}
	if !w.EndReached(at(16, 0)) {
		t.Error("end not reached at end time")
	}
}

func TestTradingDay(t *testing.T) {
	// 2026-03-02 is a Monday.
	monday := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for d := 0; d < 7; d++ {
		day := monday.AddDate(0, 0, d)
		want := d < 5
		if got := TradingDay(day); got != want {
			t.Errorf("TradingDay(%s) = %v, want %v", day.Weekday(), got, want)
		}
	}
}
