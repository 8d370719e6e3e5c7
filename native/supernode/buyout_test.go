package supernode

import (
	"errors"
	"math/big"
	"testing"
)

// buyoutFixture has provider1 (seller) and provider2 (buyer) with one unit of
// native share each and, when rewarded, two units unclaimed each.
func buyoutFixture(t *testing.T, rewarded bool) *fixture {
	t.Helper()
	f := newFixture(t)
	f.fund(TrackNative, provider1, units(10))
	f.fund(TrackNative, provider2, units(10))
	f.deposit(TrackNative, provider1, units(1))
	f.deposit(TrackNative, provider2, units(1))
	if rewarded {
		f.reward(TrackNative, units(4))
		if _, err := f.engine.Distribute(f.pool, TrackNative); err != nil {
			t.Fatalf("distribute: %v", err)
		}
	}
	return f
}

func TestBuyoutMovesSharesAndPaysSeller(t *testing.T) {
	f := buyoutFixture(t, true)
	if err := f.engine.SetBuyoutLimit(f.pool, TrackNative, provider2, units(1)); err != nil {
		t.Fatalf("buyout limit: %v", err)
	}
	sellerWallet := f.balance(TrackNative, provider1)

	res, err := f.engine.Buyout(f.pool, TrackNative, provider1, provider2, halfUnit())
	if err != nil {
		t.Fatalf("buyout: %v", err)
	}
	// amount plus the seller's two units of unclaimed rewards.
	paid := new(big.Int).Add(halfUnit(), units(2))
	expectAmount(t, "paid seller", res.PaidSeller, paid)
	expectAmount(t, "seller wallet", f.balance(TrackNative, provider1), new(big.Int).Add(sellerWallet, paid))

	seller := f.account(provider1)
	buyer := f.account(provider2)
	expectAmount(t, "seller share", seller.Native.Share, halfUnit())
	expectAmount(t, "seller unclaimed", seller.Native.Unclaimed, big.NewInt(0))
	expectAmount(t, "buyer share", buyer.Native.Share, new(big.Int).Add(units(1), halfUnit()))
	expectAmount(t, "buyer unclaimed", buyer.Native.Unclaimed, new(big.Int).Add(units(1), halfUnit()))
	expectAmount(t, "buyer buyout limit", buyer.Native.BuyoutLimit, halfUnit())

	pool, _ := f.engine.Pool(f.pool)
	expectAmount(t, "total shares", pool.TotalNative, units(2))
	f.checkConservation(TrackNative)

	// Custody still covers every liability exactly.
	pending, _ := f.engine.Pending(f.pool, TrackNative)
	expectAmount(t, "pending", pending, big.NewInt(0))
}

func TestBuyoutRequiresBuyerUnclaimed(t *testing.T) {
	f := buyoutFixture(t, false)
	if err := f.engine.SetBuyoutLimit(f.pool, TrackNative, provider1, units(10)); err != nil {
		t.Fatalf("buyout limit: %v", err)
	}
	_, err := f.engine.Buyout(f.pool, TrackNative, provider2, provider1, halfUnit())
	if !errors.Is(err, ErrBuyerInsufficientUnclaimedBalance) {
		t.Fatalf("expected ErrBuyerInsufficientUnclaimedBalance, got %v", err)
	}
	expectAmount(t, "buyer share", f.account(provider1).Native.Share, units(1))
	expectAmount(t, "seller share", f.account(provider2).Native.Share, units(1))
}

func TestBuyoutChecksCapitalLimitFirst(t *testing.T) {
	f := buyoutFixture(t, false)
	// The buyer is at its limit and also has no unclaimed balance.
	if err := f.engine.SetLimit(f.pool, owner, TrackNative, provider2, units(1)); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	_, err := f.engine.Buyout(f.pool, TrackNative, provider1, provider2, halfUnit())
	if !errors.Is(err, ErrBuyerCapitalLimitExceeded) {
		t.Fatalf("expected ErrBuyerCapitalLimitExceeded, got %v", err)
	}
}

func TestBuyoutChecksBuyoutLimitLast(t *testing.T) {
	f := buyoutFixture(t, true)
	_, err := f.engine.Buyout(f.pool, TrackNative, provider1, provider2, halfUnit())
	if !errors.Is(err, ErrBuyerBuyoutLimitExceeded) {
		t.Fatalf("expected ErrBuyerBuyoutLimitExceeded, got %v", err)
	}
}

func TestBuyoutTransferFailureReverts(t *testing.T) {
	f := buyoutFixture(t, true)
	if err := f.engine.SetBuyoutLimit(f.pool, TrackNative, provider2, units(1)); err != nil {
		t.Fatalf("buyout limit: %v", err)
	}
	f.bank.SetRejecting(provider1, true)
	_, err := f.engine.Buyout(f.pool, TrackNative, provider1, provider2, halfUnit())
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	seller := f.account(provider1)
	buyer := f.account(provider2)
	expectAmount(t, "seller share", seller.Native.Share, units(1))
	expectAmount(t, "seller unclaimed", seller.Native.Unclaimed, units(2))
	expectAmount(t, "buyer unclaimed", buyer.Native.Unclaimed, units(2))
	expectAmount(t, "buyer buyout limit", buyer.Native.BuyoutLimit, units(1))
}

func TestBuyoutRejectsBadInput(t *testing.T) {
	f := buyoutFixture(t, true)
	if _, err := f.engine.Buyout(f.pool, TrackNative, provider1, provider1, halfUnit()); !errors.Is(err, ErrSelfBuyout) {
		t.Fatalf("expected ErrSelfBuyout, got %v", err)
	}
	if _, err := f.engine.Buyout(f.pool, TrackNative, provider1, provider2, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.engine.Buyout(f.pool, TrackNative, outsider, provider2, halfUnit()); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	if err := f.engine.SetBuyoutLimit(f.pool, TrackNative, provider2, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative limit, got %v", err)
	}
}

func TestBuyoutOnTokenTrack(t *testing.T) {
	f := newFixture(t)
	f.fund(TrackToken, provider1, units(10))
	f.fund(TrackToken, provider2, units(10))
	f.deposit(TrackToken, provider1, units(3))
	f.deposit(TrackToken, provider2, units(1))
	f.reward(TrackToken, units(8))
	if _, err := f.engine.Distribute(f.pool, TrackToken); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if err := f.engine.SetBuyoutLimit(f.pool, TrackToken, provider2, units(2)); err != nil {
		t.Fatalf("buyout limit: %v", err)
	}
	if _, err := f.engine.Buyout(f.pool, TrackToken, provider1, provider2, units(2)); err != nil {
		t.Fatalf("buyout: %v", err)
	}
	expectAmount(t, "buyer share", f.account(provider2).Token.Share, units(3))
	expectAmount(t, "native untouched", f.account(provider2).Native.Share, big.NewInt(0))
	f.checkConservation(TrackToken)
}
