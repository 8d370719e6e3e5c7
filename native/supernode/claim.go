package supernode

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"supernode/native/bank"
)

// Claim pays provider's unclaimed balance for track and zeroes it. A zero
// balance is a successful no-op returning zero.
func (e *Engine) Claim(poolAddr common.Address, track Track, provider common.Address) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if !track.Valid() {
		return nil, ErrInvalidTrack
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	acc, ok := pool.Lookup(provider)
	if !ok {
		return big.NewInt(0), nil
	}
	pos := acc.Position(track)
	amount := newBigInt(pos.Unclaimed)
	if amount.Sign() == 0 {
		return amount, nil
	}
	pos.Unclaimed = big.NewInt(0)
	if err := e.commit(pool, bank.Leg{Asset: track.Asset(), From: pool.Address, To: provider, Amount: amount}); err != nil {
		return nil, err
	}
	e.emit(ClaimedEvent(pool.Address, track, provider, amount))
	return amount, nil
}
