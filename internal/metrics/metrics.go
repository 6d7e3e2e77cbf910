package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	BarsTotal         prometheus.Counter
	BarUpdatesTotal   prometheus.Counter
	StaleBarsRejected prometheus.Counter

	SignalChanges prometheus.Counter

	OrdersSubmitted *prometheus.CounterVec // labels: action
	OrdersFilled    prometheus.Counter
	OrdersRejected  prometheus.Counter
	OrdersTimedOut  prometheus.Counter
	CyclesSkipped   prometheus.Counter
	OrderAwaitDur   prometheus.Histogram

	Position      prometheus.Gauge
	SessionActive prometheus.Gauge
	ShortAvg      prometheus.Gauge
	LongAvg       prometheus.Gauge
	RealizedPnL   prometheus.Gauge
	UnrealizedPnL prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		BarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_bars_total",
			Help: "Total bars appended to the buffer",
		}),
		BarUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_bar_updates_total",
			Help: "Bars that replaced the newest stored bar (same timestamp)",
		}),
		StaleBarsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_stale_bars_rejected_total",
			Help: "Out-of-order bars rejected by the buffer",
		}),
		SignalChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_signal_changes_total",
			Help: "Crossover signal transitions observed",
		}),
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_orders_submitted_total",
			Help: "Orders submitted to the gateway (by action)",
		}, []string{"action"}),
		OrdersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_orders_filled_total",
			Help: "Orders confirmed filled",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_orders_rejected_total",
			Help: "Orders rejected by the gateway",
		}),
		OrdersTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_orders_timed_out_total",
			Help: "Orders with no terminal status before the await timeout",
		}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_reconcile_cycles_skipped_total",
			Help: "Reconciliation cycles skipped while an order was in flight",
		}),
		OrderAwaitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_order_await_duration_seconds",
			Help:    "Time from submission to terminal status",
			Buckets: prometheus.DefBuckets,
		}),
		Position: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_position_contracts",
			Help: "Confirmed position (signed contracts)",
		}),
		SessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_session_active",
			Help: "1 while inside the configured trading window",
		}),
		ShortAvg: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_short_avg",
			Help: "Current short moving average",
		}),
		LongAvg: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_long_avg",
			Help: "Current long moving average",
		}),
		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_realized_pnl_paise",
			Help: "Realized P&L in paise",
		}),
		UnrealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_unrealized_pnl_paise",
			Help: "Unrealized P&L at the last bar close, in paise",
		}),
	}

	prometheus.MustRegister(
		m.BarsTotal,
		m.BarUpdatesTotal,
		m.StaleBarsRejected,
		m.SignalChanges,
		m.OrdersSubmitted,
		m.OrdersFilled,
		m.OrdersRejected,
		m.OrdersTimedOut,
		m.CyclesSkipped,
		m.OrderAwaitDur,
		m.Position,
		m.SessionActive,
		m.ShortAvg,
		m.LongAvg,
		m.RealizedPnL,
		m.UnrealizedPnL,
	)

	return m
}

// HealthStatus represents the bot health.
type HealthStatus struct {
	mu sync.RWMutex

	StreamConnected bool      `json:"stream_connected"`
	LastBarTime     time.Time `json:"last_bar_time"`
	JournalOK       bool      `json:"journal_ok"`
	Position        int64     `json:"position"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus creates a health tracker.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now().UTC()}
}

// SetStreamConnected records stream connectivity.
func (h *HealthStatus) SetStreamConnected(ok bool) {
	h.mu.Lock()
	h.StreamConnected = ok
	h.mu.Unlock()
}

// SetLastBarTime records the newest bar timestamp.
func (h *HealthStatus) SetLastBarTime(ts time.Time) {
	h.mu.Lock()
	h.LastBarTime = ts
	h.mu.Unlock()
}

// SetJournalOK records journal availability.
func (h *HealthStatus) SetJournalOK(ok bool) {
	h.mu.Lock()
	h.JournalOK = ok
	h.mu.Unlock()
}

// SetPosition records the confirmed position.
func (h *HealthStatus) SetPosition(p int64) {
	h.mu.Lock()
	h.Position = p
	h.mu.Unlock()
}

// ServeHTTP renders the health status as JSON. 503 while disconnected.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	status := struct {
		StreamConnected bool   `json:"stream_connected"`
		LastBarTime     string `json:"last_bar_time"`
		BarAgeSec       int64  `json:"bar_age_sec"`
		JournalOK       bool   `json:"journal_ok"`
		Position        int64  `json:"position"`
		UptimeSec       int64  `json:"uptime_sec"`
	}{
		StreamConnected: h.StreamConnected,
		LastBarTime:     h.LastBarTime.Format(time.RFC3339),
		JournalOK:       h.JournalOK,
		Position:        h.Position,
		UptimeSec:       int64(time.Since(h.StartedAt).Seconds()),
	}
	if !h.LastBarTime.IsZero() {
		status.BarAgeSec = int64(time.Since(h.LastBarTime).Seconds())
	}
	connected := h.StreamConnected
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !connected {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
