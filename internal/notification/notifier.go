// Package notification delivers trading alerts (fills, order failures,
// session lifecycle) to external channels.
package notification

import (
	"context"
	"log"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of sending them. Used when no external
// channel is configured and in paper mode.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

const sendTimeout = 10 * time.Second

// Multi fans an alert out to every configured backend. Delivery is best
// effort: a failing backend is logged and never blocks the trading loop.
type Multi struct {
	backends []Notifier
}

// NewMulti creates a fan-out notifier. With no backends it falls back to
// logging, so callers can always Send unconditionally.
func NewMulti(backends ...Notifier) *Multi {
	if len(backends) == 0 {
		backends = []Notifier{NewLogNotifier()}
	}
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil {
			log.Printf("[notify] delivery failed (%T): %v", b, err)
		}
	}
	return nil
}
