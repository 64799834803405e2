// Package validate runs the ordered pre-trade checks every order
// submission must pass before the engine reserves escrow or touches the
// book. Checks run in a fixed order and stop at the first failure — no
// side effects happen until every check has passed.
package validate

import (
	"context"

	"github.com/go-playground/validator/v10"

	"wager-exchange/internal/engineerr"
	"wager-exchange/internal/model"
	"wager-exchange/internal/money"
)

// Limits bundles the configurable caps the Checker enforces (spec §6).
type Limits struct {
	PriceTick              money.Decimal
	QuantityTick           money.Decimal
	MaxPerOrderQuantity    money.Decimal
	MaxOpenOrdersPerMarket int
	MaxOpenOrdersPerUser   int
	MaxSharesPerUserMarket money.Decimal
}

func DefaultLimits() Limits {
	return Limits{
		PriceTick:              money.FromFloat(0.01),
		QuantityTick:           money.New(1, 0),
		MaxPerOrderQuantity:    money.New(1_000_000, 0),
		MaxOpenOrdersPerMarket: 10_000,
		MaxOpenOrdersPerUser:   200,
		MaxSharesPerUserMarket: money.New(10_000_000, 0),
	}
}

// BalanceView and PositionView are the read-only lookups the checker needs;
// the engine reads them from the store before it opens the submission's
// transaction, so the checker itself does no I/O.
type BalanceView struct {
	Available money.Decimal
}

type PositionView struct {
	Quantity money.Decimal
}

// OrderCounts reports how many resting orders already exist, for the
// per-market / per-user caps.
type OrderCounts struct {
	MarketOpenOrders int
	UserOpenOrders   int
}

// Request is the normalized shape the Checker validates; the engine builds
// it from the inbound PlaceOrderReq plus the market, balance, position and
// open-order counts it loads.
type Request struct {
	MarketID       string
	MarketStatus   model.MarketStatus
	Outcome        model.Outcome
	Side           model.OrderSide
	Type           model.OrderType
	Price          *money.Decimal
	Quantity       money.Decimal
	RequiredEscrow money.Decimal // BUY only; worst-case for MARKET
	Balance        BalanceView
	Position       PositionView
	Counts         OrderCounts
}

var structValidator = validator.New()

// Checker runs the ordered rule set of spec §4.4.
type Checker struct {
	limits Limits
}

func NewChecker(limits Limits) *Checker {
	return &Checker{limits: limits}
}

// ValidateDTO runs go-playground/validator struct-tag checks on the inbound
// API request shape before it is even parsed into a Request — catches
// missing/malformed enum fields cheaply, ahead of the domain rule chain.
func ValidateDTO(ctx context.Context, req *model.PlaceOrderReq) error {
	if err := structValidator.StructCtx(ctx, req); err != nil {
		return engineerr.InvalidInput("malformed request: %v", err)
	}
	return nil
}

// Check runs every domain rule in spec order, returning the first failure.
func (c *Checker) Check(req Request) error {
	if req.MarketStatus != model.MarketOpen {
		return engineerr.New(engineerr.KindMarketNotTradable, "market is not open for trading")
	}
	if !req.Outcome.Valid() {
		return engineerr.InvalidInput("outcome must be YES or NO")
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return engineerr.InvalidInput("side must be BUY or SELL")
	}
	if req.Type != model.TypeLimit && req.Type != model.TypeMarket {
		return engineerr.InvalidInput("type must be LIMIT or MARKET")
	}
	if !req.Quantity.IsPositive() {
		return engineerr.InvalidInput("quantity must be > 0")
	}
	if req.Quantity.GreaterThan(c.limits.MaxPerOrderQuantity) {
		return engineerr.New(engineerr.KindLimitExceeded, "quantity exceeds max per order")
	}
	if req.Type == model.TypeLimit {
		if req.Price == nil || !req.Price.IsPositive() || !req.Price.LessThan(money.One) {
			return engineerr.InvalidInput("limit price must be in (0,1)")
		}
	}
	if req.Side == model.SideBuy {
		if req.Balance.Available.LessThan(req.RequiredEscrow) {
			return engineerr.New(engineerr.KindInsufficientFunds, "available balance below required escrow")
		}
	} else {
		if req.Position.Quantity.LessThan(req.Quantity) {
			return engineerr.New(engineerr.KindInsufficientShares, "sell quantity exceeds owned position")
		}
	}
	if !c.limits.MaxSharesPerUserMarket.IsZero() {
		projected := req.Position.Quantity
		if req.Side == model.SideBuy {
			projected = projected.Add(req.Quantity)
		}
		if projected.GreaterThan(c.limits.MaxSharesPerUserMarket) {
			return engineerr.New(engineerr.KindLimitExceeded, "position cap exceeded")
		}
	}
	if req.Counts.MarketOpenOrders >= c.limits.MaxOpenOrdersPerMarket {
		return engineerr.New(engineerr.KindLimitExceeded, "market open order cap reached")
	}
	if req.Counts.UserOpenOrders >= c.limits.MaxOpenOrdersPerUser {
		return engineerr.New(engineerr.KindLimitExceeded, "user open order cap reached")
	}
	return nil
}
