package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func mustBalance(t *testing.T, l *Ledger, asset string, who common.Address) *big.Int {
	t.Helper()
	bal, err := l.Balance(asset, who)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func TestTransferMovesBalance(t *testing.T) {
	l := NewLedger(nil)
	if err := l.Credit(AssetToken, addr(1), big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Transfer(AssetToken, addr(1), addr(2), big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := mustBalance(t, l, AssetToken, addr(1)); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("sender balance %s", got)
	}
	if got := mustBalance(t, l, AssetToken, addr(2)); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("recipient balance %s", got)
	}
	if got := mustBalance(t, l, AssetNative, addr(2)); got.Sign() != 0 {
		t.Fatalf("assets must be tracked separately, got %s", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := NewLedger(nil)
	_ = l.Credit(AssetNative, addr(1), big.NewInt(5))
	err := l.Transfer(AssetNative, addr(1), addr(2), big.NewInt(6))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := mustBalance(t, l, AssetNative, addr(1)); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("balance changed on failure: %s", got)
	}
}

func TestRejectingRecipientOnlyAffectsNative(t *testing.T) {
	l := NewLedger(nil)
	_ = l.Credit(AssetNative, addr(1), big.NewInt(10))
	_ = l.Credit(AssetToken, addr(1), big.NewInt(10))
	l.SetRejecting(addr(9), true)
	if err := l.Transfer(AssetNative, addr(1), addr(9), big.NewInt(1)); !errors.Is(err, ErrRecipientRejected) {
		t.Fatalf("expected ErrRecipientRejected, got %v", err)
	}
	if err := l.Transfer(AssetToken, addr(1), addr(9), big.NewInt(1)); err != nil {
		t.Fatalf("token transfer to rejecting address: %v", err)
	}
	l.SetRejecting(addr(9), false)
	if err := l.Transfer(AssetNative, addr(1), addr(9), big.NewInt(1)); err != nil {
		t.Fatalf("native transfer after clearing rejection: %v", err)
	}
}

func TestTransferBatchIsAtomic(t *testing.T) {
	l := NewLedger(nil)
	_ = l.Credit(AssetNative, addr(1), big.NewInt(10))
	l.SetRejecting(addr(3), true)
	err := l.TransferBatch([]Leg{
		{Asset: AssetNative, From: addr(1), To: addr(2), Amount: big.NewInt(4)},
		{Asset: AssetNative, From: addr(1), To: addr(3), Amount: big.NewInt(4)},
	})
	if !errors.Is(err, ErrRecipientRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if got := mustBalance(t, l, AssetNative, addr(2)); got.Sign() != 0 {
		t.Fatalf("first leg applied despite failed batch: %s", got)
	}
	if got := mustBalance(t, l, AssetNative, addr(1)); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("sender debited despite failed batch: %s", got)
	}
}

func TestTransferBatchTracksRunningBalance(t *testing.T) {
	l := NewLedger(nil)
	_ = l.Credit(AssetNative, addr(1), big.NewInt(10))
	err := l.TransferBatch([]Leg{
		{Asset: AssetNative, From: addr(1), To: addr(2), Amount: big.NewInt(6)},
		{Asset: AssetNative, From: addr(1), To: addr(3), Amount: big.NewInt(6)},
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected overdraft across legs to fail, got %v", err)
	}
}

func TestCreditRejectsOverflow(t *testing.T) {
	l := NewLedger(nil)
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := l.Credit(AssetToken, addr(1), max); err != nil {
		t.Fatalf("credit max: %v", err)
	}
	if err := l.Credit(AssetToken, addr(1), big.NewInt(1)); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestNormalizeAsset(t *testing.T) {
	if got, err := NormalizeAsset(" Native "); err != nil || got != AssetNative {
		t.Fatalf("normalize: %q %v", got, err)
	}
	if _, err := NormalizeAsset("btc"); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
}
