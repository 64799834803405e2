// Package bookreg owns the live in-memory order books, one per
// (marketId, outcome) pair, and the warm-start rehydration that rebuilds
// them from the Store on boot.
package bookreg

import (
	"context"
	"fmt"
	"sync"

	"wager-exchange/internal/model"
	"wager-exchange/internal/orderbook"
)

type key struct {
	marketID string
	outcome  model.Outcome
}

// OrderSource is the subset of store.Store the registry needs to rehydrate
// a market's books on first reference.
type OrderSource interface {
	ListOpenOrders(ctx context.Context, marketID string) ([]model.Order, error)
}

// Registry is the BookRegistry (spec C3): lazy per-market construction,
// warm start from the store, safe for concurrent lookup across markets.
type Registry struct {
	mu     sync.RWMutex
	books  map[key]*orderbook.Book
	source OrderSource
}

func New(source OrderSource) *Registry {
	return &Registry{books: make(map[key]*orderbook.Book), source: source}
}

// Get returns the book for (marketID, outcome), constructing and
// rehydrating it from the store on first reference.
func (r *Registry) Get(ctx context.Context, marketID string, outcome model.Outcome) (*orderbook.Book, error) {
	k := key{marketID, outcome}

	r.mu.RLock()
	b, ok := r.books[k]
	r.mu.RUnlock()
	if ok {
		return b, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.books[k]; ok {
		return b, nil
	}

	book := orderbook.New(marketID, outcome)
	orders, err := r.source.ListOpenOrders(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("bookreg: rehydrate %s/%s: %w", marketID, outcome, err)
	}
	for i := range orders {
		o := &orders[i]
		if o.Outcome != outcome || o.Price == nil {
			continue
		}
		book.Add(&orderbook.Entry{
			OrderID:      o.ID,
			UserID:       o.UserID,
			Side:         o.Side,
			Price:        *o.Price,
			RemainingQty: o.Remaining(),
			LockedCash:   o.LockedCash,
			Seq:          o.Seq,
		})
	}
	r.books[k] = book
	return book, nil
}

// Purge drops both outcome books for a market — called once settlement has
// cancelled every resting order (spec §4.6 step 5).
func (r *Registry) Purge(marketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.books, key{marketID, model.OutcomeYes})
	delete(r.books, key{marketID, model.OutcomeNo})
}

// Snapshot returns both sides' resting depth for a (market, outcome) pair
// without triggering rehydration — callers that only want a view call Get
// first.
func (r *Registry) Snapshot(marketID string, outcome model.Outcome, depth int) (bids, asks []model.BookLevel, ok bool) {
	r.mu.RLock()
	b, present := r.books[key{marketID, outcome}]
	r.mu.RUnlock()
	if !present {
		return nil, nil, false
	}
	bids, asks = b.Snapshot(depth)
	return bids, asks, true
}
