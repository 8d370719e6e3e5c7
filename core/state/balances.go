package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var balancePrefix = []byte("balance/")

func balanceKey(asset string, addr common.Address) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(asset)+1+common.AddressLength)
	buf = append(buf, balancePrefix...)
	buf = append(buf, asset...)
	buf = append(buf, '/')
	return append(buf, addr.Bytes()...)
}

// BalanceGet returns addr's balance of asset, zero when never written.
func (m *Manager) BalanceGet(asset string, addr common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	amount := new(big.Int)
	if _, err := m.KVGet(balanceKey(asset, addr), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// BalancePut overwrites addr's balance of asset.
func (m *Manager) BalancePut(asset string, addr common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.KVPut(balanceKey(asset, addr), nonNil(amount))
}
