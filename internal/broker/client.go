// Package broker implements the gateway-side collaborators against the
// broker's HTTP and WebSocket APIs: session login with TOTP, historical
// bar backfill, market order placement, and order-status polling.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/pquerna/otp/totp"

	"futures-botv1/internal/model"
)

var routes = map[string]string{
	"session.login":  "/api/v1/session/login",
	"session.logout": "/api/v1/session/logout",
	"history.bars":   "/api/v1/history/bars",
	"order.place":    "/api/v1/orders",
	"order.status":   "/api/v1/orders/status",
}

// Config configures the broker client.
type Config struct {
	Host     string
	Port     int
	ClientID int

	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string

	Timeout      time.Duration // per-request timeout, default 7s
	PollInterval time.Duration // order-status poll cadence, default 1s
}

// Client is an authenticated broker API session. It implements
// model.HistoryProvider and model.OrderGateway.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client

	accessToken string
	feedToken   string
}

// NewClient creates a broker client. Connect must be called before use.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	return &Client{
		cfg:        cfg,
		baseURL:    fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// FeedToken returns the streaming token issued at login.
func (c *Client) FeedToken() string { return c.feedToken }

// Connect authenticates the session. The one-time code is derived from the
// configured TOTP secret at call time.
func (c *Client) Connect(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("broker connect: totp: %w", err)
	}

	res, err := c.post(ctx, "session.login", map[string]any{
		"clientcode": c.cfg.ClientCode,
		"password":   c.cfg.Password,
		"totp":       code,
		"client_id":  c.cfg.ClientID,
	})
	if err != nil {
		return fmt.Errorf("broker connect: %w", err)
	}

	data, ok := res["data"].(map[string]any)
	if !ok {
		return fmt.Errorf("broker connect: unexpected login response")
	}
	c.accessToken, _ = data["jwtToken"].(string)
	c.feedToken, _ = data["feedToken"].(string)
	if c.accessToken == "" {
		return fmt.Errorf("broker connect: no access token in login response")
	}

	log.Printf("[broker] session established for %s (clientId=%d)", c.cfg.ClientCode, c.cfg.ClientID)
	return nil
}

// Disconnect terminates the session. Safe to call when not connected.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.accessToken == "" {
		return nil
	}
	_, err := c.post(ctx, "session.logout", map[string]any{"clientcode": c.cfg.ClientCode})
	c.accessToken = ""
	c.feedToken = ""
	if err != nil {
		return fmt.Errorf("broker disconnect: %w", err)
	}
	log.Println("[broker] session terminated")
	return nil
}

// wireBar is the bar shape on the wire.
type wireBar struct {
	TS     int64 `json:"ts"` // Unix seconds
	Open   int64 `json:"open"`
	High   int64 `json:"high"`
	Low    int64 `json:"low"`
	Close  int64 `json:"close"`
	Volume int64 `json:"volume"`
}

func (w wireBar) toBar() model.Bar {
	return model.Bar{
		TS:     time.Unix(w.TS, 0).UTC(),
		Open:   w.Open,
		High:   w.High,
		Low:    w.Low,
		Close:  w.Close,
		Volume: w.Volume,
	}
}

// FetchHistory fetches historical bars for the contract.
// Implements model.HistoryProvider.
func (c *Client) FetchHistory(ctx context.Context, spec model.ContractSpec, duration, barSize time.Duration) ([]model.Bar, error) {
	res, err := c.post(ctx, "history.bars", map[string]any{
		"symbol":         spec.Symbol,
		"exchange":       spec.Exchange,
		"contract_month": spec.ContractMonth,
		"duration_sec":   int64(duration.Seconds()),
		"bar_size_sec":   int64(barSize.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	raw, _ := json.Marshal(res["data"])
	var wire []wireBar
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("fetch history: parse bars: %w", err)
	}
	if len(wire) == 0 {
		return nil, model.ErrNoData
	}

	bars := make([]model.Bar, len(wire))
	for i, w := range wire {
		bars[i] = w.toBar()
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })
	return bars, nil
}

// Submit places a market order. Implements model.OrderGateway.
func (c *Client) Submit(ctx context.Context, action model.OrderAction, qty int64) (model.OrderHandle, error) {
	res, err := c.post(ctx, "order.place", map[string]any{
		"action":     string(action),
		"qty":        qty,
		"order_type": "MARKET",
	})
	if err != nil {
		return model.OrderHandle{}, fmt.Errorf("place order: %w", err)
	}

	data, _ := res["data"].(map[string]any)
	orderID, _ := data["order_id"].(string)
	if orderID == "" {
		return model.OrderHandle{}, fmt.Errorf("place order: no order id in response")
	}

	return model.OrderHandle{
		OrderID:     orderID,
		Action:      action,
		Qty:         qty,
		SubmittedAt: time.Now(),
	}, nil
}

// AwaitTerminal polls the order status at the configured cadence until a
// terminal status lands or the timeout elapses.
func (c *Client) AwaitTerminal(ctx context.Context, handle model.OrderHandle, timeout time.Duration) model.OrderResult {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		res, err := c.get(ctx, "order.status", url.Values{"order_id": {handle.OrderID}})
		if err != nil {
			log.Printf("[broker] order %s status poll failed: %v", handle.OrderID, err)
		} else if out, done := parseOrderStatus(handle, res); done {
			return out
		}

		if time.Now().After(deadline) {
			return model.OrderResult{OrderID: handle.OrderID, Status: model.OrderTimedOut}
		}
		select {
		case <-ctx.Done():
			return model.OrderResult{OrderID: handle.OrderID, Status: model.OrderTimedOut}
		case <-ticker.C:
		}
	}
}

// parseOrderStatus maps a status payload to a terminal OrderResult.
// done is false while the order is still working.
func parseOrderStatus(handle model.OrderHandle, res map[string]any) (model.OrderResult, bool) {
	data, _ := res["data"].(map[string]any)
	status, _ := data["status"].(string)

	switch status {
	case "COMPLETE", "FILLED":
		filled := asInt64(data["filled_qty"])
		if filled == 0 {
			filled = handle.Qty
		}
		return model.OrderResult{
			OrderID:   handle.OrderID,
			Status:    model.OrderFilled,
			FilledQty: filled,
			AvgPrice:  asInt64(data["avg_price"]),
		}, true
	case "REJECTED", "CANCELLED":
		reason, _ := data["reason"].(string)
		return model.OrderResult{
			OrderID: handle.OrderID,
			Status:  model.OrderRejected,
			Reason:  reason,
		}, true
	}
	return model.OrderResult{}, false
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case json.Number:
		n, _ := t.Int64()
		return n
	}
	return 0
}

// ---- Request helpers ----

func (c *Client) post(ctx context.Context, route string, params map[string]any) (map[string]any, error) {
	body, _ := json.Marshal(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+routes[route], bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) get(ctx context.Context, route string, query url.Values) (map[string]any, error) {
	u := c.baseURL + routes[route]
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (map[string]any, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-PrivateKey", c.cfg.APIKey)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if st, ok := out["status"].(bool); ok && !st {
		msg, _ := out["message"].(string)
		return out, fmt.Errorf("api error: %s", msg)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return out, nil
}
