package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"futures-botv1/internal/model"
)

const (
	heartbeatInterval = 10 * time.Second
	readTimeout       = 30 * time.Second
	maxReconnects     = 5
)

// StreamConfig configures the live-bar WebSocket stream.
type StreamConfig struct {
	Host      string
	Port      int
	FeedToken string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds; doubles per attempt up to 30s.
	ReconnectDelay time.Duration

	// OnConnect is invoked after each successful (re)connect. Optional.
	OnConnect func()
}

// Stream delivers live bars over WebSocket. Implements model.BarStream.
// After maxReconnects consecutive failed attempts the disconnect is
// terminal and the subscription channel closes; a Stream is not
// restartable after that.
type Stream struct {
	cfg StreamConfig
}

// NewStream creates a bar stream. FeedToken comes from Client.Connect.
func NewStream(cfg StreamConfig) *Stream {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	return &Stream{cfg: cfg}
}

// subscribeMsg is sent after each connect to select the contract feed.
type subscribeMsg struct {
	Action        string `json:"action"`
	Symbol        string `json:"symbol"`
	Exchange      string `json:"exchange"`
	ContractMonth string `json:"contract_month"`
	BarSizeSec    int64  `json:"bar_size_sec"`
}

// Subscribe connects and streams bars into the returned channel until ctx
// is cancelled or the disconnect becomes terminal.
func (s *Stream) Subscribe(ctx context.Context, spec model.ContractSpec, barSize time.Duration) (<-chan model.Bar, error) {
	conn, err := s.dial(ctx, spec, barSize)
	if err != nil {
		return nil, fmt.Errorf("bar stream: %w", err)
	}

	out := make(chan model.Bar, 64)
	go s.run(ctx, conn, spec, barSize, out)
	return out, nil
}

func (s *Stream) wsURL() string {
	u := url.URL{
		Scheme:   "ws",
		Host:     fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Path:     "/api/v1/stream/bars",
		RawQuery: "feed_token=" + url.QueryEscape(s.cfg.FeedToken),
	}
	return u.String()
}

func (s *Stream) dial(ctx context.Context, spec model.ContractSpec, barSize time.Duration) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL(), nil)
	if err != nil {
		return nil, err
	}

	sub := subscribeMsg{
		Action:        "subscribe",
		Symbol:        spec.Symbol,
		Exchange:      spec.Exchange,
		ContractMonth: spec.ContractMonth,
		BarSizeSec:    int64(barSize.Seconds()),
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	log.Printf("[stream] connected, subscribed to %s", spec.Key())
	if s.cfg.OnConnect != nil {
		s.cfg.OnConnect()
	}
	return conn, nil
}

// run reads bars until ctx cancellation or terminal disconnect, closing
// out either way.
func (s *Stream) run(ctx context.Context, conn *websocket.Conn, spec model.ContractSpec, barSize time.Duration, out chan<- model.Bar) {
	defer close(out)

	for {
		err := s.readLoop(ctx, conn, out)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Printf("[stream] connection lost: %v", err)

		conn = s.redial(ctx, spec, barSize)
		if conn == nil {
			log.Printf("[stream] terminal disconnect after %d attempts", maxReconnects)
			return
		}
	}
}

// readLoop pumps bars from one connection until it fails.
func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- model.Bar) error {
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ticker.C:
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var w wireBar
		if err := json.Unmarshal(raw, &w); err != nil {
			log.Printf("[stream] parse error: %v", err)
			continue
		}

		select {
		case out <- w.toBar():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// redial attempts reconnection with exponential backoff. Returns nil once
// the disconnect is terminal.
func (s *Stream) redial(ctx context.Context, spec model.ContractSpec, barSize time.Duration) *websocket.Conn {
	delay := s.cfg.ReconnectDelay
	for attempt := 1; attempt <= maxReconnects; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		conn, err := s.dial(ctx, spec, barSize)
		if err == nil {
			return conn
		}
		log.Printf("[stream] reconnect %d/%d failed: %v", attempt, maxReconnects, err)

		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
	return nil
}
