// Package session gates trading activity on a configured time-of-day window.
// The window is a stateless predicate over wall-clock time: outside it the
// bot keeps buffering bars and updating indicators but submits no orders.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time within a day, minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Minutes returns the time as minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM" (24h format).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// Window is a trading session window. A nil Start means "active from
// process start"; a nil End means "run indefinitely".
type Window struct {
	Start *TimeOfDay
	End   *TimeOfDay
}

// ParseWindow parses optional "HH:MM" start/end strings. Empty strings
// leave the respective bound unset.
func ParseWindow(start, end string) (Window, error) {
	var w Window
	if start != "" {
		t, err := ParseTimeOfDay(start)
		if err != nil {
			return Window{}, fmt.Errorf("START_TIME: %w", err)
		}
		w.Start = &t
	}
	if end != "" {
		t, err := ParseTimeOfDay(end)
		if err != nil {
			return Window{}, fmt.Errorf("END_TIME: %w", err)
		}
		w.End = &t
	}
	return w, nil
}

// Active reports whether trading is allowed at the given instant.
// True iff start is unset or now >= start, and end is unset or now < end.
func (w Window) Active(now time.Time) bool {
	hm := now.Hour()*60 + now.Minute()
	if w.Start != nil && hm < w.Start.Minutes() {
		return false
	}
	if w.End != nil && hm >= w.End.Minutes() {
		return false
	}
	return true
}

// TradingDay reports whether t falls Monday through Friday.
func TradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// EndReached reports whether the session end has passed. Always false for
// an unbounded window.
func (w Window) EndReached(now time.Time) bool {
	if w.End == nil {
		return false
	}
	return now.Hour()*60+now.Minute() >= w.End.Minutes()
}

// String returns a human-readable window description.
func (w Window) String() string {
	s, e := "open", "open"
	if w.Start != nil {
		s = w.Start.String()
	}
	if w.End != nil {
		e = w.End.String()
	}
	return s + "-" + e
}
