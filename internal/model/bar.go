package model

import (
	"encoding/json"
	"time"
)

// Bar represents one aggregated OHLCV bar for the traded contract.
// All prices are in paise (int64) to avoid floating-point drift.
type Bar struct {
	TS     time.Time `json:"ts"`     // bar start time (UTC), unique key
	Open   int64     `json:"open"`   // paise
	High   int64     `json:"high"`   // paise
	Low    int64     `json:"low"`    // paise
	Close  int64     `json:"close"`  // paise
	Volume int64     `json:"volume"` // contracts traded in this bar
}

// ClosePrice returns the close in whole currency units.
func (b *Bar) ClosePrice() float64 {
	return float64(b.Close) / 100.0
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
