// Package orderbook implements the in-memory limit order book for a single
// (market, outcome) pair: price-time priority on both sides, FIFO within a
// price level, and a matching pass that proposes fills without mutating the
// book until the caller has persisted them.
package orderbook

import (
	"sort"

	"wager-exchange/internal/model"
	"wager-exchange/internal/money"
)

// Entry is a resting order in the book.
type Entry struct {
	OrderID      string
	UserID       string
	Side         model.OrderSide
	Price        money.Decimal
	RemainingQty money.Decimal
	LockedCash   money.Decimal
	Seq          int64
}

// Level is a price level with a FIFO queue of resting orders.
type Level struct {
	Price  money.Decimal
	Orders []*Entry
}

// TotalQty sums the remaining quantity of every order resting at this level.
func (l *Level) TotalQty() money.Decimal {
	t := money.Zero
	for _, o := range l.Orders {
		t = t.Add(o.RemainingQty)
	}
	return t
}

// Match is a proposed fill against a resting order, returned by
// MatchingOrders without touching book state.
type Match struct {
	Entry     *Entry
	FillQty   money.Decimal
	FillPrice money.Decimal
}

// Book is an in-memory limit order book for one (market, outcome) pair.
// Price levels are keyed by the decimal's canonical string form since
// money.Decimal is not itself comparable as a map key.
type Book struct {
	MarketID string
	Outcome  model.Outcome

	bids      map[string]*Level
	asks      map[string]*Level
	bidPrices []money.Decimal // sorted descending
	askPrices []money.Decimal // sorted ascending
	index     map[string]*Entry
}

func New(marketID string, outcome model.Outcome) *Book {
	return &Book{
		MarketID: marketID,
		Outcome:  outcome,
		bids:     make(map[string]*Level),
		asks:     make(map[string]*Level),
		index:    make(map[string]*Entry),
	}
}

// ── Queries ──────────────────────────────────────────

func (b *Book) BestBid() (money.Decimal, bool) {
	if len(b.bidPrices) == 0 {
		return money.Zero, false
	}
	return b.bidPrices[0], true
}

func (b *Book) BestAsk() (money.Decimal, bool) {
	if len(b.askPrices) == 0 {
		return money.Zero, false
	}
	return b.askPrices[0], true
}

// Size returns the number of resting orders in the book.
func (b *Book) Size() int { return len(b.index) }

func (b *Book) Snapshot(depth int) (bids, asks []model.BookLevel) {
	for i := 0; i < len(b.bidPrices) && i < depth; i++ {
		lvl := b.bids[b.bidPrices[i].String()]
		bids = append(bids, model.BookLevel{Price: lvl.Price, Qty: lvl.TotalQty(), Orders: len(lvl.Orders)})
	}
	for i := 0; i < len(b.askPrices) && i < depth; i++ {
		lvl := b.asks[b.askPrices[i].String()]
		asks = append(asks, model.BookLevel{Price: lvl.Price, Qty: lvl.TotalQty(), Orders: len(lvl.Orders)})
	}
	if bids == nil {
		bids = []model.BookLevel{}
	}
	if asks == nil {
		asks = []model.BookLevel{}
	}
	return
}

// ── Add / Remove ─────────────────────────────────────

// Add inserts a resting order. A duplicate OrderID is ignored.
func (b *Book) Add(e *Entry) {
	if _, exists := b.index[e.OrderID]; exists {
		return
	}
	b.index[e.OrderID] = e
	if e.Side == model.SideBuy {
		b.addToSide(b.bids, &b.bidPrices, e, false) // descending
	} else {
		b.addToSide(b.asks, &b.askPrices, e, true) // ascending
	}
}

// Remove pulls an order out of the book by id, returning it (nil if absent).
func (b *Book) Remove(orderID string) *Entry {
	e, ok := b.index[orderID]
	if !ok {
		return nil
	}
	delete(b.index, orderID)
	if e.Side == model.SideBuy {
		b.removeFromSide(b.bids, &b.bidPrices, e)
	} else {
		b.removeFromSide(b.asks, &b.askPrices, e)
	}
	return e
}

// Get returns the resting entry for an order id without removing it.
func (b *Book) Get(orderID string) (*Entry, bool) {
	e, ok := b.index[orderID]
	return e, ok
}

// ── Matching ─────────────────────────────────────────

// MatchingOrders walks the opposite side in price-time priority and returns
// proposed fills for up to maxQty, without mutating book state. Entries
// owned by excludeUserID are skipped (self-trade prevention) — skipped
// quantity is simply not matched, the taker does not stop scanning.
func (b *Book) MatchingOrders(side model.OrderSide, limitPrice *money.Decimal, maxQty money.Decimal, excludeUserID string) []Match {
	matches, _ := b.MatchingOrdersWithSkips(side, limitPrice, maxQty, excludeUserID)
	return matches
}

// MatchingOrdersWithSkips is MatchingOrders plus the resting entries that
// were skipped because they belong to excludeUserID — self-trade
// prevention does not stop the scan, it only excludes that one entry, and
// the engine needs the skipped entries to emit SELF_TRADE_PREVENTED events.
func (b *Book) MatchingOrdersWithSkips(side model.OrderSide, limitPrice *money.Decimal, maxQty money.Decimal, excludeUserID string) (matches []Match, selfSkipped []*Entry) {
	rem := maxQty

	walk := func(prices []money.Decimal, levels map[string]*Level, priceOK func(money.Decimal) bool) {
		for _, p := range prices {
			if !rem.IsPositive() {
				break
			}
			if limitPrice != nil && !priceOK(p) {
				break
			}
			level := levels[p.String()]
			for _, entry := range level.Orders {
				if !rem.IsPositive() {
					break
				}
				if entry.UserID == excludeUserID {
					selfSkipped = append(selfSkipped, entry)
					continue
				}
				fq := money.Min(rem, entry.RemainingQty)
				matches = append(matches, Match{Entry: entry, FillQty: fq, FillPrice: p})
				rem = rem.Sub(fq)
			}
		}
	}

	if side == model.SideBuy {
		walk(b.askPrices, b.asks, func(askPrice money.Decimal) bool { return askPrice.LessThanOrEqual(*limitPrice) })
	} else {
		walk(b.bidPrices, b.bids, func(bidPrice money.Decimal) bool { return bidPrice.GreaterThanOrEqual(*limitPrice) })
	}
	return matches, selfSkipped
}

// ApplyFill reduces a resting order's remaining quantity, removing it from
// the book entirely once exhausted. Returns the quantity left resting.
func (b *Book) ApplyFill(orderID string, fillQty money.Decimal) money.Decimal {
	e := b.index[orderID]
	if e == nil {
		return money.Zero
	}
	e.RemainingQty = e.RemainingQty.MustSub(fillQty)
	if !e.RemainingQty.IsPositive() {
		b.Remove(orderID)
		return money.Zero
	}
	return e.RemainingQty
}

// ── Internals ────────────────────────────────────────

func (b *Book) addToSide(m map[string]*Level, prices *[]money.Decimal, e *Entry, asc bool) {
	key := e.Price.String()
	level, ok := m[key]
	if !ok {
		level = &Level{Price: e.Price}
		m[key] = level
		*prices = append(*prices, e.Price)
		sort.Slice(*prices, func(i, j int) bool {
			if asc {
				return (*prices)[i].LessThan((*prices)[j])
			}
			return (*prices)[i].GreaterThan((*prices)[j])
		})
	}
	level.Orders = append(level.Orders, e)
}

func (b *Book) removeFromSide(m map[string]*Level, prices *[]money.Decimal, e *Entry) {
	key := e.Price.String()
	level, ok := m[key]
	if !ok {
		return
	}
	for i, o := range level.Orders {
		if o.OrderID == e.OrderID {
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			break
		}
	}
	if len(level.Orders) == 0 {
		delete(m, key)
		for i, p := range *prices {
			if p.Equal(e.Price) {
				*prices = append((*prices)[:i], (*prices)[i+1:]...)
				break
			}
		}
	}
}
