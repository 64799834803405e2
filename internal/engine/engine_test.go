package engine

import (
	"testing"

	"wager-exchange/internal/money"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StoreRetryLimit <= 0 {
		t.Fatalf("expected positive retry limit, got %d", cfg.StoreRetryLimit)
	}
	if cfg.CommandQueueDepth <= 0 {
		t.Fatalf("expected positive queue depth, got %d", cfg.CommandQueueDepth)
	}
}

func TestNoFeeChargesNothing(t *testing.T) {
	var fee NoFee
	got := fee.TakerFee(money.FromFloat(0.60), money.New(10, 0))
	if !got.IsZero() {
		t.Fatalf("expected zero fee, got %s", got)
	}
}

func TestMarketEngineSeqIncrements(t *testing.T) {
	e := &MarketEngine{seq: 5}
	if got := e.nextSeq(); got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
	if got := e.nextSeq(); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func d(s string) money.Decimal {
	v, err := money.FromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// TestTakerEscrowSettlement is the table the spec §8 scenario suite seeds:
// for a BUY taker, lockedDebit must equal exactly what fills consumed and
// availableCredit must equal exactly what's left over once the resting
// remainder's own reservation is accounted for.
func TestTakerEscrowSettlement(t *testing.T) {
	tests := []struct {
		name                string
		requiredEscrow      money.Decimal
		totalFillValue      money.Decimal
		restingLock         money.Decimal
		wantLockedDebit     money.Decimal
		wantAvailableCredit money.Decimal
	}{
		{
			// Regression case: BUY YES @0.40x60 fully fills against a resting
			// SELL @0.40x60 — nothing rests, nothing is released, the full
			// fill value must come out of locked.
			name:                "full fill at resting price leaves nothing resting",
			requiredEscrow:      d("24"),
			totalFillValue:      d("24"),
			restingLock:         money.Zero,
			wantLockedDebit:     d("24"),
			wantAvailableCredit: money.Zero,
		},
		{
			// BUY LIMIT 0.50x100 partially fills 40 shares at the better
			// maker price 0.45, the remaining 60 rest at 0.50.
			name:                "partial fill at improved price with resting remainder",
			requiredEscrow:      d("50"),
			totalFillValue:      d("18"),
			restingLock:         d("30"),
			wantLockedDebit:     d("18"),
			wantAvailableCredit: d("2"),
		},
		{
			// MARKET BUY that can't find enough liquidity and cancels its
			// unfilled remainder: the entire worst-case reservation returns.
			name:                "unfilled market remainder releases in full",
			requiredEscrow:      d("10"),
			totalFillValue:      money.Zero,
			restingLock:         money.Zero,
			wantLockedDebit:     money.Zero,
			wantAvailableCredit: d("10"),
		},
		{
			// Fully filled at a strictly better price than reserved.
			name:                "full fill at better price",
			requiredEscrow:      d("50"),
			totalFillValue:      d("45"),
			restingLock:         money.Zero,
			wantLockedDebit:     d("45"),
			wantAvailableCredit: d("5"),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotLockedDebit, gotAvailableCredit := takerEscrowSettlement(tc.requiredEscrow, tc.totalFillValue, tc.restingLock)
			if !gotLockedDebit.Equal(tc.wantLockedDebit) {
				t.Fatalf("lockedDebit = %s, want %s", gotLockedDebit, tc.wantLockedDebit)
			}
			if !gotAvailableCredit.Equal(tc.wantAvailableCredit) {
				t.Fatalf("availableCredit = %s, want %s", gotAvailableCredit, tc.wantAvailableCredit)
			}
		})
	}
}

// simBalance mirrors the store's balance mutation primitives in memory, so
// the §8 conservation invariants can be checked without a database.
type simBalance struct{ available, locked money.Decimal }

func (b *simBalance) total() money.Decimal { return b.available.Add(b.locked) }

func (b *simBalance) moveToLocked(amt money.Decimal) {
	b.available = b.available.Sub(amt)
	b.locked = b.locked.Add(amt)
}

func (b *simBalance) moveToAvailable(amt money.Decimal) {
	b.available = b.available.Add(amt)
	b.locked = b.locked.Sub(amt)
}

func (b *simBalance) addLocked(delta money.Decimal) { b.locked = b.locked.Add(delta) }

func (b *simBalance) addAvailable(delta money.Decimal) { b.available = b.available.Add(delta) }

// TestTakerBuyFillConservesCash is the regression test for the maintainer's
// taker-BUY defect: a resting SELL fully fills an incoming BUY, and the
// buyer's total cash must drop by exactly price×quantity while the seller's
// total rises by the same amount — spec §8 "ΔbuyerCash = -p·q" with no cash
// created or destroyed.
func TestTakerBuyFillConservesCash(t *testing.T) {
	buyer := &simBalance{available: d("100")}
	seller := &simBalance{available: d("50")}

	requiredEscrow := d("24") // 0.40 * 60
	fillValue := d("24")
	buyer.moveToLocked(requiredEscrow)

	lockedDebit, availableCredit := takerEscrowSettlement(requiredEscrow, fillValue, money.Zero)
	buyer.addLocked(lockedDebit.Neg())
	if availableCredit.IsPositive() {
		buyer.moveToAvailable(availableCredit)
	}
	seller.addAvailable(fillValue)

	if !buyer.total().Equal(d("76")) {
		t.Fatalf("buyer total = %s, want 76 (100 - 24)", buyer.total())
	}
	if !buyer.locked.IsZero() {
		t.Fatalf("buyer locked = %s, want 0 (nothing rests)", buyer.locked)
	}
	if !seller.total().Equal(d("74")) {
		t.Fatalf("seller total = %s, want 74 (50 + 24)", seller.total())
	}

	buyerDelta := buyer.total().Sub(d("100"))
	sellerDelta := seller.total().Sub(d("50"))
	if !buyerDelta.Add(sellerDelta).IsZero() {
		t.Fatalf("cash not conserved: buyerDelta=%s sellerDelta=%s", buyerDelta, sellerDelta)
	}
}

// TestPartialFillLockedMatchesRestingRemainder checks the other half of the
// spec §8 invariant: after a partial fill, locked must equal exactly the
// resting remainder's own reservation, not the original order's full escrow.
func TestPartialFillLockedMatchesRestingRemainder(t *testing.T) {
	buyer := &simBalance{available: d("1000")}

	requiredEscrow := d("50") // 0.50 * 100
	fillValue := d("18")      // 40 shares filled at improved price 0.45
	restingLock := d("30")    // 60 shares still resting at 0.50

	buyer.moveToLocked(requiredEscrow)
	lockedDebit, availableCredit := takerEscrowSettlement(requiredEscrow, fillValue, restingLock)
	buyer.addLocked(lockedDebit.Neg())
	if availableCredit.IsPositive() {
		buyer.moveToAvailable(availableCredit)
	}

	if !buyer.locked.Equal(restingLock) {
		t.Fatalf("locked = %s, want %s (resting remainder only)", buyer.locked, restingLock)
	}
	if !buyer.total().Equal(d("982")) {
		t.Fatalf("total = %s, want 982 (1000 - 18 consumed)", buyer.total())
	}
}
