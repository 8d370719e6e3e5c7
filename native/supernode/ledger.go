package supernode

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"supernode/native/bank"
)

// Deposit moves amount of the track's asset from provider into pool custody and
// raises the provider's share by the same amount.
func (e *Engine) Deposit(poolAddr common.Address, track Track, provider common.Address, amount *big.Int) (*Account, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if !track.Valid() {
		return nil, ErrInvalidTrack
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	acc := pool.Account(provider)
	pos := acc.Position(track)
	nextShare, err := checkedAdd(pos.Share, amount)
	if err != nil {
		return nil, err
	}
	if nextShare.Cmp(pos.Limit) > 0 {
		return nil, fmt.Errorf("%w: share %s + %s > limit %s", ErrCapitalLimitExceeded, pos.Share, amount, pos.Limit)
	}
	nextTotal, err := checkedAdd(pool.TotalShares(track), amount)
	if err != nil {
		return nil, err
	}
	pos.Share = nextShare
	pool.setTotalShares(track, nextTotal)
	pool.Actors.Add(provider)

	if err := e.commit(pool, bank.Leg{Asset: track.Asset(), From: provider, To: pool.Address, Amount: amount}); err != nil {
		return nil, err
	}
	e.emit(DepositEvent(pool.Address, track, provider, amount, nextShare, nextTotal))
	return acc.Clone(), nil
}

// SetLimit sets provider's capital limit for track. Owner only. Lowering a
// limit below the current share blocks further deposits but never touches the
// existing balance.
func (e *Engine) SetLimit(poolAddr, caller common.Address, track Track, provider common.Address, limit *big.Int) error {
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
	if err := e.requireOwner(pool, caller); err != nil {
		return err
	}
	pool.Account(provider).Position(track).Limit = newBigInt(limit)
	if err := e.state.SupernodePoolPut(pool); err != nil {
		return err
	}
	e.emit(LimitSetEvent(pool.Address, track, provider, limit))
	return nil
}
