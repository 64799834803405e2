package orderbook

import (
	"testing"

	"wager-exchange/internal/model"
	"wager-exchange/internal/money"
)

func d(s string) money.Decimal {
	v, err := money.FromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func qty(s string) money.Decimal { return d(s) }

func TestAddAndBestBidAsk(t *testing.T) {
	b := New("m1", model.OutcomeYes)

	b.Add(&Entry{OrderID: "b1", UserID: "u1", Side: model.SideBuy, Price: d("0.40"), RemainingQty: qty("10"), Seq: 1})
	b.Add(&Entry{OrderID: "b2", UserID: "u1", Side: model.SideBuy, Price: d("0.45"), RemainingQty: qty("5"), Seq: 2})
	b.Add(&Entry{OrderID: "a1", UserID: "u2", Side: model.SideSell, Price: d("0.55"), RemainingQty: qty("10"), Seq: 3})
	b.Add(&Entry{OrderID: "a2", UserID: "u2", Side: model.SideSell, Price: d("0.60"), RemainingQty: qty("5"), Seq: 4})

	if b.Size() != 4 {
		t.Fatalf("expected size 4, got %d", b.Size())
	}
	if bb, ok := b.BestBid(); !ok || !bb.Equal(d("0.45")) {
		t.Fatalf("expected best bid 0.45, got %v", bb)
	}
	if ba, ok := b.BestAsk(); !ok || !ba.Equal(d("0.55")) {
		t.Fatalf("expected best ask 0.55, got %v", ba)
	}
}

func TestPriceTimePriority(t *testing.T) {
	b := New("m1", model.OutcomeYes)

	b.Add(&Entry{OrderID: "a1", UserID: "u2", Side: model.SideSell, Price: d("0.50"), RemainingQty: qty("3"), Seq: 1})
	b.Add(&Entry{OrderID: "a2", UserID: "u2", Side: model.SideSell, Price: d("0.50"), RemainingQty: qty("3"), Seq: 2})

	price := d("0.50")
	matches := b.MatchingOrders(model.SideBuy, &price, qty("4"), "u1")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Entry.OrderID != "a1" || !matches[0].FillQty.Equal(qty("3")) {
		t.Fatalf("expected first fill a1/3, got %s/%s", matches[0].Entry.OrderID, matches[0].FillQty)
	}
	if matches[1].Entry.OrderID != "a2" || !matches[1].FillQty.Equal(qty("1")) {
		t.Fatalf("expected second fill a2/1, got %s/%s", matches[1].Entry.OrderID, matches[1].FillQty)
	}
}

func TestPartialFillAcrossLevels(t *testing.T) {
	b := New("m1", model.OutcomeYes)

	b.Add(&Entry{OrderID: "a1", UserID: "u2", Side: model.SideSell, Price: d("0.50"), RemainingQty: qty("2"), Seq: 1})
	b.Add(&Entry{OrderID: "a2", UserID: "u2", Side: model.SideSell, Price: d("0.55"), RemainingQty: qty("3"), Seq: 2})
	b.Add(&Entry{OrderID: "a3", UserID: "u2", Side: model.SideSell, Price: d("0.60"), RemainingQty: qty("5"), Seq: 3})

	price := d("0.60")
	matches := b.MatchingOrders(model.SideBuy, &price, qty("6"), "u1")
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	total := money.Zero
	for _, m := range matches {
		total = total.Add(m.FillQty)
	}
	if !total.Equal(qty("6")) {
		t.Fatalf("expected total fill 6, got %s", total)
	}
	if !matches[2].FillQty.Equal(qty("1")) {
		t.Fatalf("expected partial fill 1 at 0.60, got %s", matches[2].FillQty)
	}
}

func TestSelfTradePreventionSkips(t *testing.T) {
	b := New("m1", model.OutcomeYes)

	b.Add(&Entry{OrderID: "a1", UserID: "u1", Side: model.SideSell, Price: d("0.50"), RemainingQty: qty("5"), Seq: 1})
	b.Add(&Entry{OrderID: "a2", UserID: "u2", Side: model.SideSell, Price: d("0.55"), RemainingQty: qty("5"), Seq: 2})

	price := d("0.99")
	matches := b.MatchingOrders(model.SideBuy, &price, qty("3"), "u1")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match (skipping self), got %d", len(matches))
	}
	if matches[0].Entry.UserID != "u2" {
		t.Fatalf("expected match with u2, got %s", matches[0].Entry.UserID)
	}
}

func TestRemoveOrder(t *testing.T) {
	b := New("m1", model.OutcomeYes)
	b.Add(&Entry{OrderID: "b1", UserID: "u1", Side: model.SideBuy, Price: d("0.50"), RemainingQty: qty("5"), Seq: 1})
	b.Add(&Entry{OrderID: "b2", UserID: "u1", Side: model.SideBuy, Price: d("0.50"), RemainingQty: qty("3"), Seq: 2})

	removed := b.Remove("b1")
	if removed == nil || removed.OrderID != "b1" {
		t.Fatal("expected to remove b1")
	}
	if b.Size() != 1 {
		t.Fatalf("expected size 1 after remove, got %d", b.Size())
	}
	if bb, ok := b.BestBid(); !ok || !bb.Equal(d("0.50")) {
		t.Fatal("best bid should still be 0.50")
	}
}

func TestRemoveLastAtLevel(t *testing.T) {
	b := New("m1", model.OutcomeYes)
	b.Add(&Entry{OrderID: "a1", UserID: "u1", Side: model.SideSell, Price: d("0.50"), RemainingQty: qty("5"), Seq: 1})
	b.Remove("a1")

	if _, ok := b.BestAsk(); ok {
		t.Fatal("expected no best ask after removing only order")
	}
	if b.Size() != 0 {
		t.Fatal("expected empty book")
	}
}

func TestApplyFillPartialAndFull(t *testing.T) {
	b := New("m1", model.OutcomeYes)
	b.Add(&Entry{OrderID: "a1", UserID: "u1", Side: model.SideSell, Price: d("0.50"), RemainingQty: qty("10"), Seq: 1})

	rem := b.ApplyFill("a1", qty("3"))
	if !rem.Equal(qty("7")) {
		t.Fatalf("expected remaining 7, got %s", rem)
	}
	if b.Size() != 1 {
		t.Fatal("order should still be in book")
	}

	rem = b.ApplyFill("a1", qty("7"))
	if !rem.IsZero() {
		t.Fatalf("expected remaining 0, got %s", rem)
	}
	if b.Size() != 0 {
		t.Fatal("order should be removed from book")
	}
}

func TestSnapshotDepth(t *testing.T) {
	b := New("m1", model.OutcomeYes)
	prices := []string{"0.41", "0.42", "0.43", "0.44", "0.45"}
	for i, p := range prices {
		b.Add(&Entry{OrderID: "bid" + p, UserID: "u1", Side: model.SideBuy, Price: d(p), RemainingQty: qty("1"), Seq: int64(i)})
	}
	asks := []string{"0.51", "0.52", "0.53", "0.54", "0.55"}
	for i, p := range asks {
		b.Add(&Entry{OrderID: "ask" + p, UserID: "u2", Side: model.SideSell, Price: d(p), RemainingQty: qty("1"), Seq: int64(10 + i)})
	}

	bids, asksOut := b.Snapshot(3)
	if len(bids) != 3 {
		t.Fatalf("expected 3 bid levels, got %d", len(bids))
	}
	if len(asksOut) != 3 {
		t.Fatalf("expected 3 ask levels, got %d", len(asksOut))
	}
	if !bids[0].Price.Equal(d("0.45")) {
		t.Fatalf("expected top bid 0.45, got %s", bids[0].Price)
	}
	if !asksOut[0].Price.Equal(d("0.51")) {
		t.Fatalf("expected top ask 0.51, got %s", asksOut[0].Price)
	}
}

func TestDuplicateAddIgnored(t *testing.T) {
	b := New("m1", model.OutcomeYes)
	b.Add(&Entry{OrderID: "b1", UserID: "u1", Side: model.SideBuy, Price: d("0.50"), RemainingQty: qty("5"), Seq: 1})
	b.Add(&Entry{OrderID: "b1", UserID: "u1", Side: model.SideBuy, Price: d("0.50"), RemainingQty: qty("5"), Seq: 2})

	if b.Size() != 1 {
		t.Fatalf("expected size 1 (dup ignored), got %d", b.Size())
	}
}

func TestMatchingOrdersSellSide(t *testing.T) {
	b := New("m1", model.OutcomeYes)

	b.Add(&Entry{OrderID: "b1", UserID: "u1", Side: model.SideBuy, Price: d("0.60"), RemainingQty: qty("5"), Seq: 1})
	b.Add(&Entry{OrderID: "b2", UserID: "u1", Side: model.SideBuy, Price: d("0.55"), RemainingQty: qty("5"), Seq: 2})

	price := d("0.55")
	matches := b.MatchingOrders(model.SideSell, &price, qty("8"), "u2")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if !matches[0].FillPrice.Equal(d("0.60")) {
		t.Fatalf("expected first fill at 0.60, got %s", matches[0].FillPrice)
	}
	total := money.Zero
	for _, m := range matches {
		total = total.Add(m.FillQty)
	}
	if !total.Equal(qty("8")) {
		t.Fatalf("expected total 8, got %s", total)
	}
}
