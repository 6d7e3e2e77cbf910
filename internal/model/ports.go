package model

import (
	"context"
	"errors"
	"time"
)

// ---- Collaborator interfaces ----
// These interfaces decouple the decision loop from the concrete broker
// transports (HTTP session client, WebSocket feed, paper simulator).
// Each implementation satisfies one or more of these interfaces.

// ErrNoData is returned by a HistoryProvider when the backfill request
// yields no bars. Fatal at startup.
var ErrNoData = errors.New("no historical bar data returned")

// HistoryProvider fetches historical bars to seed the strategy.
type HistoryProvider interface {
	// FetchHistory returns bars in ascending timestamp order covering
	// the given lookback duration at the given bar size.
	// Returns ErrNoData if the venue has nothing for the contract.
	FetchHistory(ctx context.Context, spec ContractSpec, duration time.Duration, barSize time.Duration) ([]Bar, error)
}

// BarStream delivers live bars as they complete.
type BarStream interface {
	// Subscribe starts streaming bars for the contract. The returned
	// channel is closed on terminal disconnect; a stream is not
	// restartable after that.
	Subscribe(ctx context.Context, spec ContractSpec, barSize time.Duration) (<-chan Bar, error)
}

// OrderGateway submits market orders and reports their terminal status.
type OrderGateway interface {
	// Submit places a market order. The returned handle tracks it until
	// a terminal status is observed.
	Submit(ctx context.Context, action OrderAction, qty int64) (OrderHandle, error)

	// AwaitTerminal blocks until the order reaches a terminal status or
	// the timeout elapses (Status=OrderTimedOut in that case). The
	// gateway never blocks longer than timeout.
	AwaitTerminal(ctx context.Context, handle OrderHandle, timeout time.Duration) OrderResult
}
