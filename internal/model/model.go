// Package model defines the domain objects shared by every layer of the
// exchange: markets, users, balances, positions, orders, trades, and the
// append-only order event log.
package model

import (
	"time"

	"wager-exchange/internal/money"
)

// ── Enums ────────────────────────────────────────────

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type MarketStatus string

const (
	MarketOpen     MarketStatus = "OPEN"
	MarketClosed   MarketStatus = "CLOSED"
	MarketResolved MarketStatus = "RESOLVED"
)

// Outcome is one of the two binary sides of a market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

func (o Outcome) Valid() bool { return o == OutcomeYes || o == OutcomeNo }

// Opposite returns the other outcome of the same market.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
)

type OrderStatus string

const (
	StatusOpen      OrderStatus = "OPEN"
	StatusPartial   OrderStatus = "PARTIAL"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Resting reports whether an order in this status can still be in the book.
func (s OrderStatus) Resting() bool { return s == StatusOpen || s == StatusPartial }

// Terminal reports whether an order in this status can no longer be filled
// or cancelled.
func (s OrderStatus) Terminal() bool { return s == StatusFilled || s == StatusCancelled }

// CancelReason is recorded on an OrderEvent{CANCELLED} and on cancelled
// orders themselves — distinguishes user-initiated cancels from the engine's
// own residual/settlement cancels.
type CancelReason string

const (
	CancelUserRequest        CancelReason = "user_request"
	CancelInsufficientLiquidity CancelReason = "insufficient_liquidity"
	CancelMarketResolved     CancelReason = "market_resolved"
)

// EventKind enumerates the append-only OrderEvent log entries (spec §3) and
// the EventSink messages published after commit (spec §4.7/§6). The two
// vocabularies overlap; OrderEvent only ever uses the first four.
type EventKind string

const (
	EventOrderCreated         EventKind = "OrderCreated"
	EventTrade                EventKind = "TradeExecuted"
	EventOrderCancelled       EventKind = "OrderCancelled"
	EventSelfTradePrevented   EventKind = "SELF_TRADE_PREVENTED"
	EventOrderBookUpdated     EventKind = "OrderBookUpdated"
	EventMarketResolved       EventKind = "MarketResolved"
	EventBalanceUpdated       EventKind = "BalanceUpdated"
)

// ── Domain objects ───────────────────────────────────

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Market struct {
	ID               string       `json:"id"`
	Slug             string       `json:"slug"`
	Question         string       `json:"question"`
	Category         string       `json:"category"`
	Status           MarketStatus `json:"status"`
	Outcome          *Outcome     `json:"outcome,omitempty"`
	CloseTime        *time.Time  `json:"close_time,omitempty"`
	ResolveTime      *time.Time  `json:"resolve_time,omitempty"`
	ResolutionSource string       `json:"resolution_source,omitempty"`
	YesPrice         money.Decimal `json:"yes_price"`
	NoPrice          money.Decimal `json:"no_price"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Balance holds the cash ledger for one user. Invariant: Total == Available
// + Locked at every commit boundary (spec §3, §8).
type Balance struct {
	UserID    string        `json:"user_id"`
	Available money.Decimal `json:"available"`
	Locked    money.Decimal `json:"locked"`
	Total     money.Decimal `json:"total"`
}

// Position is keyed by (userId, marketId, outcome). Quantity never goes
// negative (no shorting); AveragePrice only moves on buys.
type Position struct {
	UserID       string        `json:"user_id"`
	MarketID     string        `json:"market_id"`
	Outcome      Outcome       `json:"outcome"`
	Quantity     money.Decimal `json:"quantity"`
	AveragePrice money.Decimal `json:"average_price"`
}

type Order struct {
	ID            string        `json:"id"`
	MarketID      string        `json:"market_id"`
	UserID        string        `json:"user_id"`
	Outcome       Outcome       `json:"outcome"`
	Side          OrderSide     `json:"side"`
	Type          OrderType     `json:"type"`
	Price         *money.Decimal `json:"price,omitempty"`
	Quantity      money.Decimal `json:"quantity"`
	Filled        money.Decimal `json:"filled"`
	LockedCash    money.Decimal `json:"locked_cash"`
	Status        OrderStatus   `json:"status"`
	CancelReason  CancelReason  `json:"cancel_reason,omitempty"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	Seq           int64         `json:"seq"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Remaining returns the unfilled quantity of the order.
func (o Order) Remaining() money.Decimal { return o.Quantity.Sub(o.Filled) }

type Trade struct {
	ID           string        `json:"id"`
	MarketID     string        `json:"market_id"`
	Outcome      Outcome       `json:"outcome"`
	BuyOrderID   string        `json:"buy_order_id"`
	SellOrderID  string        `json:"sell_order_id"`
	BuyerID      string        `json:"buyer_id"`
	SellerID     string        `json:"seller_id"`
	Price        money.Decimal `json:"price"`
	Quantity     money.Decimal `json:"quantity"`
	Seq          int64         `json:"seq"`
	CreatedAt    time.Time     `json:"created_at"`
}

// OrderEvent is the append-only per-order audit log (spec §3).
type OrderEvent struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	MarketID  string    `json:"market_id"`
	Kind      EventKind `json:"kind"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// ── API DTOs ─────────────────────────────────────────

// PlaceOrderReq is the inbound submitOrder command (spec §6).
type PlaceOrderReq struct {
	Outcome        Outcome        `json:"outcome" validate:"required,oneof=YES NO"`
	Side           OrderSide      `json:"side" validate:"required,oneof=BUY SELL"`
	Type           OrderType      `json:"type" validate:"required,oneof=LIMIT MARKET"`
	Price          *money.Decimal `json:"price,omitempty"`
	Quantity       money.Decimal  `json:"quantity" validate:"required"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

type Accepted struct {
	Order  Order   `json:"order"`
	Trades []Trade `json:"trades"`
}

type BookLevel struct {
	Price  money.Decimal `json:"price"`
	Qty    money.Decimal `json:"quantity"`
	Orders int          `json:"orders"`
}

type BookSnapshot struct {
	MarketID       string      `json:"market_id"`
	Outcome        Outcome     `json:"outcome"`
	Bids           []BookLevel `json:"bids"`
	Asks           []BookLevel `json:"asks"`
	SequenceNumber int64       `json:"sequence_number"`
}
