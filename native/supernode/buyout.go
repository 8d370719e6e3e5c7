package supernode

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"supernode/native/bank"
)

// Buyout moves amount of seller's share on track to buyer. The buyer pays out
// of its unclaimed rewards; the seller is paid amount plus its own unclaimed
// balance in a single transfer. Called by the seller.
//
// The buyer checks run in a fixed order and the first failure is returned:
// capital limit, then unclaimed balance, then buyout limit.
func (e *Engine) Buyout(poolAddr common.Address, track Track, seller, buyer common.Address, amount *big.Int) (*BuyoutResult, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if !track.Valid() {
		return nil, ErrInvalidTrack
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if seller == buyer {
		return nil, ErrSelfBuyout
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	sellerPos := pool.Account(seller).Position(track)
	buyerPos := pool.Account(buyer).Position(track)
	if sellerPos.Share.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: has %s, selling %s", ErrInsufficientShares, sellerPos.Share, amount)
	}

	nextBuyerShare, err := checkedAdd(buyerPos.Share, amount)
	if err != nil {
		return nil, err
	}
	if nextBuyerShare.Cmp(buyerPos.Limit) > 0 {
		return nil, fmt.Errorf("%w: share %s + %s > limit %s", ErrBuyerCapitalLimitExceeded, buyerPos.Share, amount, buyerPos.Limit)
	}
	if buyerPos.Unclaimed.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: has %s, needs %s", ErrBuyerInsufficientUnclaimedBalance, buyerPos.Unclaimed, amount)
	}
	if amount.Cmp(buyerPos.BuyoutLimit) > 0 {
		return nil, fmt.Errorf("%w: limit %s, amount %s", ErrBuyerBuyoutLimitExceeded, buyerPos.BuyoutLimit, amount)
	}

	autoClaim := newBigInt(sellerPos.Unclaimed)
	payout := new(big.Int).Add(amount, autoClaim)

	buyerPos.Share = nextBuyerShare
	buyerPos.Unclaimed = new(big.Int).Sub(buyerPos.Unclaimed, amount)
	buyerPos.BuyoutLimit = new(big.Int).Sub(buyerPos.BuyoutLimit, amount)
	sellerPos.Share = new(big.Int).Sub(sellerPos.Share, amount)
	sellerPos.Unclaimed = big.NewInt(0)
	pool.Actors.Add(buyer)

	if err := e.commit(pool, bank.Leg{Asset: track.Asset(), From: pool.Address, To: seller, Amount: payout}); err != nil {
		return nil, err
	}
	res := &BuyoutResult{
		Pool:       pool.Address,
		Track:      track,
		Seller:     seller,
		Buyer:      buyer,
		Amount:     newBigInt(amount),
		AutoClaim:  autoClaim,
		PaidSeller: payout,
	}
	e.emit(BuyoutEvent(res))
	return res, nil
}

// SetBuyoutLimit overwrites the caller's own buyout limit for track. It is the
// only limit a provider may set for itself.
func (e *Engine) SetBuyoutLimit(poolAddr common.Address, track Track, caller common.Address, limit *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if !track.Valid() {
		return ErrInvalidTrack
	}
	if err := validLimit(limit); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return err
	}
	pool.Account(caller).Position(track).BuyoutLimit = newBigInt(limit)
	if err := e.state.SupernodePoolPut(pool); err != nil {
		return err
	}
	e.emit(BuyoutLimitSetEvent(pool.Address, track, caller, limit))
	return nil
}
