// Package settlement resolves a market: pay winning positions, zero every
// position (the rows are kept), cancel every resting order, and retire the market's in-memory books — one
// transaction, idempotent against an already-RESOLVED market (spec §4.6).
package settlement

import (
	"context"
	"database/sql"

	"wager-exchange/internal/engineerr"
	"wager-exchange/internal/events"
	"wager-exchange/internal/model"
	"wager-exchange/internal/money"
	"wager-exchange/internal/store"
)

// MarketStopper is the subset of engine.Manager settlement needs: stop the
// market's actor and drop its in-memory books once the payout has committed.
type MarketStopper interface {
	ResolveMarket(ctx context.Context, marketID string)
}

type House struct {
	store      *store.Store
	sink       events.Sink
	stopper    MarketStopper
	retryLimit int
}

func NewHouse(st *store.Store, sink events.Sink, stopper MarketStopper, retryLimit int) *House {
	return &House{store: st, sink: sink, stopper: stopper, retryLimit: retryLimit}
}

// Resolve settles marketID to outcome, attributed to source (e.g. an oracle
// feed id or an admin user id). Re-invoking against an already-resolved
// market is a no-op success, not an error (spec §4.6 idempotency).
func (h *House) Resolve(ctx context.Context, marketID string, outcome model.Outcome, source string) error {
	if !outcome.Valid() {
		return engineerr.InvalidInput("outcome must be YES or NO")
	}

	var (
		alreadyResolved bool
		winners         []model.Position
		cancelledOrders []model.Order
	)

	err := h.store.WithRetry(ctx, h.retryLimit, func(tx *sql.Tx) error {
		winners, cancelledOrders, alreadyResolved = nil, nil, false

		mkt, err := h.store.GetMarketForUpdate(tx, marketID)
		if err != nil {
			return engineerr.Internal("lock market", err)
		}
		if mkt == nil {
			return engineerr.NotFound("market %s not found", marketID)
		}
		if mkt.Status == model.MarketResolved {
			alreadyResolved = true
			return nil
		}

		positions, err := h.store.ListMarketPositions(ctx, marketID)
		if err != nil {
			return engineerr.Internal("load positions", err)
		}
		for _, p := range positions {
			if !p.Quantity.IsPositive() {
				continue
			}
			locked, err := h.store.GetPositionForUpdate(tx, marketID, p.UserID, p.Outcome)
			if err != nil {
				return engineerr.Internal("lock position", err)
			}
			if !locked.Quantity.IsPositive() {
				continue
			}
			if p.Outcome == outcome {
				payout := locked.Quantity.Mul(money.One)
				if err := store.AddAvailable(tx, p.UserID, payout); err != nil {
					return engineerr.Internal("credit payout", err)
				}
				winners = append(winners, *locked)
			}
			if err := store.SetPositionQuantity(tx, marketID, p.UserID, p.Outcome, money.Zero); err != nil {
				return engineerr.Internal("zero position", err)
			}
		}

		restingOrders, err := h.store.ListOpenOrders(ctx, marketID)
		if err != nil {
			return engineerr.Internal("load resting orders", err)
		}
		for _, o := range restingOrders {
			order, err := h.store.GetOrderForUpdate(tx, o.ID)
			if err != nil {
				return engineerr.Internal("lock order", err)
			}
			if order == nil || order.Status.Terminal() {
				continue
			}
			if err := store.CancelOrder(tx, order.ID, model.CancelMarketResolved); err != nil {
				return engineerr.Internal("cancel resting order", err)
			}
			if order.Side == model.SideBuy && order.LockedCash.IsPositive() {
				if err := store.MoveToAvailable(tx, order.UserID, order.LockedCash); err != nil {
					return engineerr.Internal("release escrow", err)
				}
			}
			if err := store.AppendOrderEvent(tx, order.ID, marketID, model.EventOrderCancelled, map[string]any{
				"reason": model.CancelMarketResolved,
			}); err != nil {
				return engineerr.Internal("append cancel event", err)
			}
			order.Status = model.StatusCancelled
			order.CancelReason = model.CancelMarketResolved
			cancelledOrders = append(cancelledOrders, *order)
		}

		if err := h.store.ResolveMarket(tx, marketID, outcome, source); err != nil {
			return engineerr.Internal("resolve market", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if alreadyResolved {
		return nil
	}

	h.stopper.ResolveMarket(ctx, marketID)

	events.PublishMarketResolved(ctx, h.sink, marketID, outcome)
	for _, o := range cancelledOrders {
		events.PublishOrderCancelled(ctx, h.sink, o)
	}
	settled := map[string]bool{}
	for _, w := range winners {
		settled[w.UserID] = true
	}
	for _, o := range cancelledOrders {
		settled[o.UserID] = true
	}
	for uid := range settled {
		if bal, err := h.store.GetBalance(ctx, uid); err == nil && bal != nil {
			events.PublishBalanceUpdated(ctx, h.sink, uid, *bal)
		}
	}
	return nil
}
