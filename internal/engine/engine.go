// Package engine implements the transactional order lifecycle (spec C5):
// validate, lock escrow, match, settle fills, persist, publish — one
// actor goroutine per market so book mutation and commit ordering need no
// intra-market locking, only the one channel serializing its commands.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"wager-exchange/internal/bookreg"
	"wager-exchange/internal/engineerr"
	"wager-exchange/internal/events"
	"wager-exchange/internal/model"
	"wager-exchange/internal/money"
	"wager-exchange/internal/orderbook"
	"wager-exchange/internal/store"
	"wager-exchange/internal/validate"
)

// Config bundles the engine-wide knobs from spec §6 that aren't purely
// validator limits.
type Config struct {
	StoreRetryLimit   int
	CommandQueueDepth int
}

func DefaultConfig() Config {
	return Config{StoreRetryLimit: 3, CommandQueueDepth: 256}
}

// FeeHook is the hook point reserved for fee computation. Manager stores
// the hook it is given (NoFee when nil), but the submission path does not
// call it, so no fee is charged whichever hook is supplied.
type FeeHook interface {
	TakerFee(price, quantity money.Decimal) money.Decimal
}

type NoFee struct{}

func (NoFee) TakerFee(money.Decimal, money.Decimal) money.Decimal { return money.Zero }

// Manager owns one MarketEngine actor per market, started lazily and torn
// down on resolution.
type Manager struct {
	mu       sync.RWMutex
	engines  map[string]*MarketEngine
	store    *store.Store
	registry *bookreg.Registry
	sink     events.Sink
	checker  *validate.Checker
	cfg      Config
	fee      FeeHook
}

func NewManager(st *store.Store, registry *bookreg.Registry, sink events.Sink, checker *validate.Checker, cfg Config, fee FeeHook) *Manager {
	if fee == nil {
		fee = NoFee{}
	}
	return &Manager{
		engines:  make(map[string]*MarketEngine),
		store:    st,
		registry: registry,
		sink:     sink,
		checker:  checker,
		cfg:      cfg,
		fee:      fee,
	}
}

// Boot starts an actor for every currently OPEN market — the warm start
// described in spec §2/§4.3.
func (m *Manager) Boot(ctx context.Context) error {
	markets, err := m.store.ListOpenMarkets(ctx)
	if err != nil {
		return err
	}
	for _, mkt := range markets {
		if err := m.StartEngine(ctx, mkt.ID); err != nil {
			return fmt.Errorf("boot %s: %w", mkt.ID, err)
		}
	}
	log.Printf("engine: booted %d market actors", len(markets))
	return nil
}

func (m *Manager) StartEngine(ctx context.Context, marketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.engines[marketID]; ok {
		return nil
	}
	eng, err := newMarketEngine(ctx, marketID, m)
	if err != nil {
		return err
	}
	m.engines[marketID] = eng
	go eng.run()
	return nil
}

func (m *Manager) getEngine(ctx context.Context, marketID string) (*MarketEngine, error) {
	m.mu.RLock()
	eng, ok := m.engines[marketID]
	m.mu.RUnlock()
	if ok {
		return eng, nil
	}
	mkt, err := m.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, engineerr.Internal("load market", err)
	}
	if mkt == nil {
		return nil, engineerr.NotFound("market %s not found", marketID)
	}
	if mkt.Status != model.MarketOpen {
		return nil, engineerr.New(engineerr.KindMarketNotTradable, "market is not open for trading")
	}
	if err := m.StartEngine(ctx, marketID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engines[marketID], nil
}

// SubmitOrder is the public submitOrder contract (spec §4.5). ctx's
// deadline, if any, bounds queue admission — past it the caller gets
// TIMEOUT with no state touched.
func (m *Manager) SubmitOrder(ctx context.Context, marketID, userID string, req model.PlaceOrderReq) (model.Accepted, error) {
	eng, err := m.getEngine(ctx, marketID)
	if err != nil {
		return model.Accepted{}, err
	}
	ch := make(chan submitResult, 1)
	select {
	case eng.cmdCh <- submitCmd{userID: userID, req: req, result: ch}:
	case <-ctx.Done():
		return model.Accepted{}, engineerr.New(engineerr.KindTimeout, "queue admission deadline elapsed")
	}
	select {
	case res := <-ch:
		return res.accepted, res.err
	case <-ctx.Done():
		return model.Accepted{}, engineerr.New(engineerr.KindTimeout, "deadline elapsed awaiting result")
	}
}

func (m *Manager) CancelOrder(ctx context.Context, marketID, orderID, userID string) (model.Order, error) {
	eng, err := m.getEngine(ctx, marketID)
	if err != nil {
		return model.Order{}, err
	}
	ch := make(chan cancelResult, 1)
	select {
	case eng.cmdCh <- cancelCmd{orderID: orderID, userID: userID, result: ch}:
	case <-ctx.Done():
		return model.Order{}, engineerr.New(engineerr.KindTimeout, "queue admission deadline elapsed")
	}
	res := <-ch
	return res.order, res.err
}

// ResolveMarket drives the engine's side of settlement: the caller
// (internal/settlement) runs the payout transaction, then asks the
// market's actor to stop accepting new orders and the registry to drop
// its books.
func (m *Manager) ResolveMarket(ctx context.Context, marketID string) {
	m.mu.Lock()
	eng, ok := m.engines[marketID]
	delete(m.engines, marketID)
	m.mu.Unlock()
	if ok {
		close(eng.stopCh)
	}
	m.registry.Purge(marketID)
}

func (m *Manager) GetOrderbook(ctx context.Context, marketID string, outcome model.Outcome, depth int) (model.BookSnapshot, error) {
	book, err := m.registry.Get(ctx, marketID, outcome)
	if err != nil {
		return model.BookSnapshot{}, engineerr.Internal("load book", err)
	}
	bids, asks := book.Snapshot(depth)
	return model.BookSnapshot{MarketID: marketID, Outcome: outcome, Bids: bids, Asks: asks, SequenceNumber: int64(book.Size())}, nil
}

// ── MarketEngine ─────────────────────────────────────

type MarketEngine struct {
	marketID string
	books    map[model.Outcome]*orderbook.Book
	seq      int64
	cmdCh    chan command
	stopCh   chan struct{}
	mgr      *Manager
}

func newMarketEngine(ctx context.Context, marketID string, mgr *Manager) (*MarketEngine, error) {
	yesBook, err := mgr.registry.Get(ctx, marketID, model.OutcomeYes)
	if err != nil {
		return nil, err
	}
	noBook, err := mgr.registry.Get(ctx, marketID, model.OutcomeNo)
	if err != nil {
		return nil, err
	}
	seq, err := mgr.store.MaxSeq(ctx, marketID)
	if err != nil {
		return nil, err
	}
	return &MarketEngine{
		marketID: marketID,
		books:    map[model.Outcome]*orderbook.Book{model.OutcomeYes: yesBook, model.OutcomeNo: noBook},
		seq:      seq,
		cmdCh:    make(chan command, mgr.cfg.CommandQueueDepth),
		stopCh:   make(chan struct{}),
		mgr:      mgr,
	}, nil
}

func (e *MarketEngine) run() {
	for {
		select {
		case <-e.stopCh:
			return
		case cmd := <-e.cmdCh:
			cmd.exec(e)
		}
	}
}

func (e *MarketEngine) nextSeq() int64 {
	e.seq++
	return e.seq
}

// ── Commands ─────────────────────────────────────────

type command interface{ exec(e *MarketEngine) }

type submitResult struct {
	accepted model.Accepted
	err      error
}
type cancelResult struct {
	order model.Order
	err   error
}

type submitCmd struct {
	req    model.PlaceOrderReq
	userID string
	result chan<- submitResult
}
type cancelCmd struct {
	orderID string
	userID  string
	result  chan<- cancelResult
}

func (c submitCmd) exec(e *MarketEngine) {
	accepted, err := e.processOrder(context.Background(), c.userID, c.req)
	c.result <- submitResult{accepted: accepted, err: err}
}
func (c cancelCmd) exec(e *MarketEngine) {
	order, err := e.cancelOrder(context.Background(), c.orderID, c.userID)
	c.result <- cancelResult{order: order, err: err}
}

// ── Submit ───────────────────────────────────────────

func (e *MarketEngine) processOrder(ctx context.Context, userID string, req model.PlaceOrderReq) (model.Accepted, error) {
	if err := validate.ValidateDTO(ctx, &req); err != nil {
		return model.Accepted{}, err
	}

	// Idempotent replay (spec §4.4 rule 8 / §8): a prior accepted order with
	// this key short-circuits everything below, verbatim.
	if req.IdempotencyKey != "" {
		if prior, err := e.mgr.store.GetOrderByIdempotencyKey(ctx, userID, req.IdempotencyKey); err == nil && prior != nil {
			trades, _ := e.mgr.store.ListTradesByOrder(ctx, prior.ID)
			return model.Accepted{Order: *prior, Trades: trades}, nil
		}
	}

	mkt, err := e.mgr.store.GetMarket(ctx, e.marketID)
	if err != nil {
		return model.Accepted{}, engineerr.Internal("load market", err)
	}
	if mkt == nil {
		return model.Accepted{}, engineerr.NotFound("market %s not found", e.marketID)
	}

	book := e.books[req.Outcome]
	if book == nil {
		return model.Accepted{}, engineerr.InvalidInput("outcome must be YES or NO")
	}

	requiredEscrow := money.Zero
	if req.Side == model.SideBuy {
		if req.Type == model.TypeLimit {
			requiredEscrow = req.Price.Mul(req.Quantity)
		} else {
			// MARKET BUY worst case: price is bounded above by 1.0, the
			// engine's chosen cap (spec §4.4 rule 5).
			requiredEscrow = req.Quantity.Mul(money.One)
		}
	}

	bal, err := e.mgr.store.GetBalance(ctx, userID)
	if err != nil {
		return model.Accepted{}, engineerr.Internal("load balance", err)
	}
	if bal == nil {
		return model.Accepted{}, engineerr.NotFound("balance for user %s not found", userID)
	}
	pos, err := e.mgr.store.GetPosition(ctx, e.marketID, userID, req.Outcome)
	if err != nil {
		return model.Accepted{}, engineerr.Internal("load position", err)
	}
	openMarketOrders, err := e.mgr.store.CountOpenOrders(ctx, e.marketID)
	if err != nil {
		return model.Accepted{}, engineerr.Internal("count open orders", err)
	}
	openUserOrders, err := e.mgr.store.CountUserOpenOrders(ctx, e.marketID, userID)
	if err != nil {
		return model.Accepted{}, engineerr.Internal("count user open orders", err)
	}

	if err := e.mgr.checker.Check(validate.Request{
		MarketID:       e.marketID,
		MarketStatus:   mkt.Status,
		Outcome:        req.Outcome,
		Side:           req.Side,
		Type:           req.Type,
		Price:          req.Price,
		Quantity:       req.Quantity,
		RequiredEscrow: requiredEscrow,
		Balance:        validate.BalanceView{Available: bal.Available},
		Position:       validate.PositionView{Quantity: pos.Quantity},
		Counts:         validate.OrderCounts{MarketOpenOrders: openMarketOrders, UserOpenOrders: openUserOrders},
	}); err != nil {
		return model.Accepted{}, err
	}

	// Peek matches against the in-memory book without mutating it — this
	// actor is the only writer for this market, so the view stays exact
	// until the book is actually mutated below, after commit.
	matches, selfSkipped := book.MatchingOrdersWithSkips(req.Side, req.Price, req.Quantity, userID)

	filled := money.Zero
	for _, m := range matches {
		filled = filled.Add(m.FillQty)
	}
	remaining := req.Quantity.Sub(filled)

	orderID := uuid.New().String()
	seq := e.nextSeq()
	now := time.Now().UTC()

	var status model.OrderStatus
	var cancelReason model.CancelReason
	switch {
	case !remaining.IsPositive():
		status = model.StatusFilled
	case req.Type == model.TypeLimit:
		if filled.IsZero() {
			status = model.StatusOpen
		} else {
			status = model.StatusPartial
		}
	default: // MARKET with an unfilled remainder: no resting MARKET orders.
		status = model.StatusCancelled
		cancelReason = model.CancelInsufficientLiquidity
	}

	restingLock := money.Zero
	if status.Resting() && req.Type == model.TypeLimit {
		restingLock = req.Price.Mul(remaining)
	}

	order := model.Order{
		ID: orderID, MarketID: e.marketID, UserID: userID, Outcome: req.Outcome,
		Side: req.Side, Type: req.Type, Price: req.Price, Quantity: req.Quantity,
		Filled: filled, LockedCash: restingLock, Status: status, CancelReason: cancelReason,
		IdempotencyKey: req.IdempotencyKey, Seq: seq, CreatedAt: now, UpdatedAt: now,
	}

	var trades []model.Trade

	err = e.mgr.store.WithRetry(ctx, e.mgr.cfg.StoreRetryLimit, func(tx *sql.Tx) error {
		trades = nil // reset across retries

		if req.Side == model.SideBuy && requiredEscrow.IsPositive() {
			if err := store.MoveToLocked(tx, userID, requiredEscrow); err != nil {
				return engineerr.Internal("reserve escrow", err)
			}
		}
		if err := store.InsertOrder(tx, &order); err != nil {
			return engineerr.Internal("insert order", err)
		}
		if err := store.AppendOrderEvent(tx, orderID, e.marketID, model.EventOrderCreated, order); err != nil {
			return engineerr.Internal("append order event", err)
		}
		for _, skipped := range selfSkipped {
			if err := store.AppendOrderEvent(tx, orderID, e.marketID, model.EventSelfTradePrevented, map[string]any{
				"restingOrderId": skipped.OrderID,
			}); err != nil {
				return engineerr.Internal("append self-trade event", err)
			}
		}

		totalFillValue := money.Zero
		for _, m := range matches {
			fillValue := m.FillPrice.Mul(m.FillQty)
			totalFillValue = totalFillValue.Add(fillValue)

			maker := m.Entry
			makerOrder, err := e.mgr.store.GetOrderForUpdate(tx, maker.OrderID)
			if err != nil {
				return engineerr.Internal("lock maker order", err)
			}
			newFilled := makerOrder.Filled.Add(m.FillQty)
			newLocked := makerOrder.LockedCash
			if maker.Side == model.SideBuy {
				newLocked = makerOrder.LockedCash.MustSub(fillValue)
			}
			makerStatus := model.StatusPartial
			if !makerOrder.Quantity.Sub(newFilled).IsPositive() {
				makerStatus = model.StatusFilled
			}
			if err := store.UpdateOrderFill(tx, maker.OrderID, newFilled, newLocked, makerStatus); err != nil {
				return engineerr.Internal("update maker order", err)
			}
			if maker.Side == model.SideBuy {
				if err := store.AddLocked(tx, maker.UserID, fillValue.Neg()); err != nil {
					return engineerr.Internal("release maker escrow", err)
				}
			} else {
				if err := store.AddAvailable(tx, maker.UserID, fillValue); err != nil {
					return engineerr.Internal("credit maker proceeds", err)
				}
			}

			var buyerID, sellerID, buyOrderID, sellOrderID string
			if req.Side == model.SideBuy {
				buyerID, buyOrderID = userID, orderID
				sellerID, sellOrderID = maker.UserID, maker.OrderID
			} else {
				buyerID, buyOrderID = maker.UserID, maker.OrderID
				sellerID, sellOrderID = userID, orderID
			}
			if err := applyBuyFill(tx, e.mgr.store, e.marketID, buyerID, req.Outcome, m.FillQty, m.FillPrice); err != nil {
				return err
			}
			if err := applySellFill(tx, e.marketID, sellerID, req.Outcome, m.FillQty); err != nil {
				return err
			}

			trade := model.Trade{
				ID: uuid.New().String(), MarketID: e.marketID, Outcome: req.Outcome,
				BuyOrderID: buyOrderID, SellOrderID: sellOrderID, BuyerID: buyerID, SellerID: sellerID,
				Price: m.FillPrice, Quantity: m.FillQty, Seq: e.nextSeq(), CreatedAt: time.Now().UTC(),
			}
			if err := store.InsertTrade(tx, &trade); err != nil {
				return engineerr.Internal("insert trade", err)
			}
			if err := store.AppendOrderEvent(tx, orderID, e.marketID, model.EventTrade, trade); err != nil {
				return engineerr.Internal("append trade event", err)
			}
			if err := store.AppendOrderEvent(tx, maker.OrderID, e.marketID, model.EventTrade, trade); err != nil {
				return engineerr.Internal("append trade event", err)
			}
			trades = append(trades, trade)
		}

		// Escrow reconciliation for the taker (spec §4.5.2): the fills this
		// order consumed are paid for out of locked cash (mirroring the
		// maker-BUY branch above), and whatever of the worst-case
		// reservation wasn't consumed by fills or left resting for the
		// remainder is credited back to available.
		if req.Side == model.SideBuy {
			lockedDebit, availableCredit := takerEscrowSettlement(requiredEscrow, totalFillValue, restingLock)
			if lockedDebit.IsPositive() {
				if err := store.AddLocked(tx, userID, lockedDebit.Neg()); err != nil {
					return engineerr.Internal("debit taker escrow", err)
				}
			}
			if availableCredit.IsPositive() {
				if err := store.MoveToAvailable(tx, userID, availableCredit); err != nil {
					return engineerr.Internal("release taker escrow", err)
				}
			}
		} else if totalFillValue.IsPositive() {
			if err := store.AddAvailable(tx, userID, totalFillValue); err != nil {
				return engineerr.Internal("credit taker proceeds", err)
			}
		}

		if len(matches) > 0 {
			if err := updateMarkPrice(tx, e.mgr.store, e.marketID, req.Outcome); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Accepted{}, err
	}

	// Mutate the in-memory book only once the commit has succeeded.
	for _, m := range matches {
		book.ApplyFill(m.Entry.OrderID, m.FillQty)
	}
	if status.Resting() {
		book.Add(&orderbook.Entry{
			OrderID: orderID, UserID: userID, Side: req.Side, Price: *req.Price,
			RemainingQty: remaining, LockedCash: restingLock, Seq: seq,
		})
	}

	e.publishSubmitEvents(ctx, order, trades, req.Outcome, book)
	return model.Accepted{Order: order, Trades: trades}, nil
}

// takerEscrowSettlement computes the incoming BUY order's own locked/
// available deltas after matching: lockedDebit is the cash consumed by
// fills (paid for out of locked, mirroring the maker-BUY branch above),
// availableCredit is whatever of the worst-case reservation wasn't
// consumed by fills or left resting for the remainder (spec §4.5.2). A
// taker with zero fills and zero resting remainder (a fully-cancelled
// MARKET order) gets its entire requiredEscrow back via availableCredit.
func takerEscrowSettlement(requiredEscrow, totalFillValue, restingLock money.Decimal) (lockedDebit, availableCredit money.Decimal) {
	lockedDebit = totalFillValue
	availableCredit = requiredEscrow.Sub(totalFillValue).Sub(restingLock)
	return lockedDebit, availableCredit
}

// applyBuyFill credits qty at price and recomputes the VWAP average price —
// buys are the only side that ever moves it (spec §4.5.1).
func applyBuyFill(tx *sql.Tx, st *store.Store, marketID, userID string, outcome model.Outcome, qty, price money.Decimal) error {
	pos, err := st.GetPositionForUpdate(tx, marketID, userID, outcome)
	if err != nil {
		return engineerr.Internal("lock position", err)
	}
	newQty := pos.Quantity.Add(qty)
	newAvg := money.Zero
	if newQty.IsPositive() {
		newAvg = pos.Quantity.Mul(pos.AveragePrice).Add(qty.Mul(price)).Div(newQty)
	}
	if err := store.UpsertPosition(tx, marketID, userID, outcome, qty, &newAvg); err != nil {
		return engineerr.Internal("credit buyer position", err)
	}
	return nil
}

// applySellFill debits qty without touching the average price.
func applySellFill(tx *sql.Tx, marketID, userID string, outcome model.Outcome, qty money.Decimal) error {
	if err := store.UpsertPosition(tx, marketID, userID, outcome, qty.Neg(), nil); err != nil {
		return engineerr.Internal("debit seller position", err)
	}
	return nil
}

// updateMarkPrice recomputes one outcome's displayed price as the
// arithmetic mean of its last (up to) 10 trades (spec §4.5.3) and writes
// both outcome prices back — the other side's column is left untouched.
func updateMarkPrice(tx *sql.Tx, st *store.Store, marketID string, outcome model.Outcome) error {
	prices, err := store.LastTradesTx(tx, marketID, outcome, 10)
	if err != nil {
		return engineerr.Internal("load recent trades", err)
	}
	if len(prices) == 0 {
		return nil
	}
	sum := money.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	mean := sum.Div(money.New(int64(len(prices)), 0))

	mkt, err := st.GetMarketForUpdate(tx, marketID)
	if err != nil {
		return engineerr.Internal("lock market", err)
	}
	yes, no := mkt.YesPrice, mkt.NoPrice
	if outcome == model.OutcomeYes {
		yes = mean
	} else {
		no = mean
	}
	if err := st.UpdateMarketPrices(tx, marketID, yes, no); err != nil {
		return engineerr.Internal("update mark price", err)
	}
	return nil
}

// ── Cancel ───────────────────────────────────────────

func (e *MarketEngine) cancelOrder(ctx context.Context, orderID, userID string) (model.Order, error) {
	var cancelled model.Order
	err := e.mgr.store.WithRetry(ctx, e.mgr.cfg.StoreRetryLimit, func(tx *sql.Tx) error {
		order, err := e.mgr.store.GetOrderForUpdate(tx, orderID)
		if err != nil {
			return engineerr.Internal("load order", err)
		}
		if order == nil {
			return engineerr.NotFound("order %s not found", orderID)
		}
		if order.UserID != userID {
			return engineerr.Forbidden("order does not belong to caller")
		}
		if order.Status.Terminal() {
			return engineerr.New(engineerr.KindNotCancellable, "order is already terminal")
		}
		if err := store.CancelOrder(tx, orderID, model.CancelUserRequest); err != nil {
			return engineerr.Internal("cancel order", err)
		}
		if order.Side == model.SideBuy && order.LockedCash.IsPositive() {
			if err := store.MoveToAvailable(tx, userID, order.LockedCash); err != nil {
				return engineerr.Internal("release escrow", err)
			}
		}
		if err := store.AppendOrderEvent(tx, orderID, order.MarketID, model.EventOrderCancelled, map[string]any{
			"reason": model.CancelUserRequest,
		}); err != nil {
			return engineerr.Internal("append cancel event", err)
		}
		order.Status = model.StatusCancelled
		order.CancelReason = model.CancelUserRequest
		cancelled = *order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	if book := e.books[cancelled.Outcome]; book != nil {
		book.Remove(orderID)
		events.PublishOrderCancelled(ctx, e.mgr.sink, cancelled)
		e.publishBookUpdate(ctx, book, cancelled.Outcome)
	}
	if bal, err := e.mgr.store.GetBalance(ctx, userID); err == nil && bal != nil {
		events.PublishBalanceUpdated(ctx, e.mgr.sink, userID, *bal)
	}
	return cancelled, nil
}

// ── Event publication ────────────────────────────────

func (e *MarketEngine) publishSubmitEvents(ctx context.Context, order model.Order, trades []model.Trade, outcome model.Outcome, book *orderbook.Book) {
	events.PublishOrderCreated(ctx, e.mgr.sink, order)
	for _, t := range trades {
		events.PublishTrade(ctx, e.mgr.sink, t)
	}
	if len(trades) > 0 || order.Status.Resting() {
		e.publishBookUpdate(ctx, book, outcome)
	}
	touched := map[string]bool{order.UserID: true}
	for _, t := range trades {
		touched[t.BuyerID] = true
		touched[t.SellerID] = true
	}
	for uid := range touched {
		if bal, err := e.mgr.store.GetBalance(ctx, uid); err == nil && bal != nil {
			events.PublishBalanceUpdated(ctx, e.mgr.sink, uid, *bal)
		}
	}
}

func (e *MarketEngine) publishBookUpdate(ctx context.Context, book *orderbook.Book, outcome model.Outcome) {
	bids, asks := book.Snapshot(25)
	events.PublishOrderBookUpdated(ctx, e.mgr.sink, events.OrderBookDiff{
		MarketID: e.marketID, Outcome: outcome, Bids: bids, Asks: asks,
	})
}
