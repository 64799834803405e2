// Package events defines the Engine's outbound event contract: a single
// Sink interface fanned out to two concrete destinations — a durable,
// replayable log (EventLogSink) and a live pub/sub fan-out (ws.Hub),
// combined in a MultiSink by cmd/server. Delivery is at-least-once;
// every published message carries an idempotency key for subscribers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wager-exchange/internal/model"
)

// Kind enumerates the messages published after a successful commit
// (spec §4.7). Distinct from model.EventKind, which is the durable
// per-order audit trail written inside the same transaction.
type Kind string

const (
	KindOrderCreated     Kind = "OrderCreated"
	KindOrderCancelled   Kind = "OrderCancelled"
	KindTradeExecuted    Kind = "TradeExecuted"
	KindOrderBookUpdated Kind = "OrderBookUpdated"
	KindMarketResolved   Kind = "MarketResolved"
	KindBalanceUpdated   Kind = "BalanceUpdated"
)

// Envelope wraps every published message with the fields idempotent
// consumers need: a unique id and the commit timestamp.
type Envelope struct {
	EventID  string    `json:"eventId"`
	CommitTs time.Time `json:"commitTs"`
	Kind     Kind      `json:"kind"`
	MarketID string    `json:"marketId,omitempty"`
	Channel  string    `json:"-"`
	Data     any       `json:"data"`
}

func newEnvelope(kind Kind, channel, marketID string, data any) Envelope {
	return Envelope{
		EventID:  uuid.New().String(),
		CommitTs: time.Now().UTC(),
		Kind:     kind,
		MarketID: marketID,
		Channel:  channel,
		Data:     data,
	}
}

// Channel name builders, matching the external channel taxonomy (spec §6).
func OrderbookChannel(marketID string, outcome model.Outcome) string {
	return "orderbook:" + marketID + ":" + string(outcome)
}
func TradesChannel(marketID string) string { return "trades:" + marketID }
func MarketChannel(marketID string) string { return "markets:" + marketID }
func UserChannel(userID string) string     { return "user:" + userID }

// Sink is a write-only publication channel the Engine calls after a
// successful commit — never inside the transaction itself.
type Sink interface {
	Publish(ctx context.Context, env Envelope)
}

// OrderBookDiff is the payload of an OrderBookUpdated event.
type OrderBookDiff struct {
	MarketID string            `json:"marketId"`
	Outcome  model.Outcome     `json:"outcome"`
	Bids     []model.BookLevel `json:"bids"`
	Asks     []model.BookLevel `json:"asks"`
}

// BalanceUpdate is the payload of a BalanceUpdated event.
type BalanceUpdate struct {
	UserID    string        `json:"userId"`
	Available string        `json:"available"`
	Locked    string        `json:"locked"`
}

// MultiSink fans a single publish out to every configured Sink — used to
// drive both the durable log and the live hub from one call site.
type MultiSink struct {
	Sinks []Sink
}

func (m MultiSink) Publish(ctx context.Context, env Envelope) {
	for _, s := range m.Sinks {
		s.Publish(ctx, env)
	}
}

func PublishOrderCreated(ctx context.Context, sink Sink, o model.Order) {
	sink.Publish(ctx, newEnvelope(KindOrderCreated, UserChannel(o.UserID), o.MarketID, o))
}

func PublishOrderCancelled(ctx context.Context, sink Sink, o model.Order) {
	sink.Publish(ctx, newEnvelope(KindOrderCancelled, UserChannel(o.UserID), o.MarketID, o))
}

func PublishTrade(ctx context.Context, sink Sink, t model.Trade) {
	sink.Publish(ctx, newEnvelope(KindTradeExecuted, TradesChannel(t.MarketID), t.MarketID, t))
}

func PublishOrderBookUpdated(ctx context.Context, sink Sink, diff OrderBookDiff) {
	sink.Publish(ctx, newEnvelope(KindOrderBookUpdated, OrderbookChannel(diff.MarketID, diff.Outcome), diff.MarketID, diff))
}

func PublishMarketResolved(ctx context.Context, sink Sink, marketID string, outcome model.Outcome) {
	sink.Publish(ctx, newEnvelope(KindMarketResolved, MarketChannel(marketID), marketID, map[string]any{
		"marketId": marketID, "outcome": outcome,
	}))
}

func PublishBalanceUpdated(ctx context.Context, sink Sink, userID string, bal model.Balance) {
	sink.Publish(ctx, newEnvelope(KindBalanceUpdated, UserChannel(userID), "", BalanceUpdate{
		UserID: userID, Available: bal.Available.String(), Locked: bal.Locked.String(),
	}))
}
