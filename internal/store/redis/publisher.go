// Package redis publishes bot events (bars, signals, fills) to capped Redis
// streams plus latest-value keys for dashboards. Write-only: the bot never
// reads these back, so Redis being down degrades observability, not trading.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"futures-botv1/internal/model"
)

const (
	// Stream trimming: a few days of 5-minute bars plus slack.
	streamMaxLen     = 4096
	defaultLatestTTL = 30 * time.Minute
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes bot events to Redis.
type Publisher struct {
	client *goredis.Client
}

// NewPublisher creates a Publisher and pings the server.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// PublishBar appends a bar to the contract's bar stream and refreshes the
// latest-bar key.
func (p *Publisher) PublishBar(ctx context.Context, spec model.ContractSpec, bar model.Bar) {
	stream := "bot:bars:" + spec.Key()
	err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(bar.JSON())},
	}).Err()
	if err != nil {
		log.Printf("[redis] bar publish failed: %v", err)
		return
	}
	p.client.Set(ctx, "bot:latest_bar:"+spec.Key(), string(bar.JSON()), defaultLatestTTL)
}

// PublishSignal records a signal transition.
func (p *Publisher) PublishSignal(ctx context.Context, spec model.ContractSpec, signal string, shortAvg, longAvg float64, ts time.Time) {
	err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: "bot:signals:" + spec.Key(),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"signal":    signal,
			"short_avg": shortAvg,
			"long_avg":  longAvg,
			"ts":        ts.UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		log.Printf("[redis] signal publish failed: %v", err)
	}
}

// PublishFill records an order fill and the position after it.
func (p *Publisher) PublishFill(ctx context.Context, spec model.ContractSpec, handle model.OrderHandle, res model.OrderResult, position int64) {
	err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: "bot:fills:" + spec.Key(),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"order_id":  res.OrderID,
			"action":    string(handle.Action),
			"qty":       res.FilledQty,
			"avg_price": res.AvgPrice,
			"position":  position,
		},
	}).Err()
	if err != nil {
		log.Printf("[redis] fill publish failed: %v", err)
	}
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
