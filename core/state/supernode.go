package state

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"supernode/native/supernode"
)

var (
	supernodePoolPrefix  = []byte("supernode/pool/")
	supernodeNoncePrefix = []byte("supernode/nonce/")
	supernodePoolIndex   = []byte("supernode/pools")
)

func supernodePoolKey(addr common.Address) []byte {
	return append(append([]byte(nil), supernodePoolPrefix...), addr.Bytes()...)
}

func supernodeNonceKey(owner common.Address) []byte {
	return append(append([]byte(nil), supernodeNoncePrefix...), owner.Bytes()...)
}

type positionRecord struct {
	Share       *big.Int
	Limit       *big.Int
	BuyoutLimit *big.Int
	Unclaimed   *big.Int
}

type accountRecord struct {
	Address       common.Address
	Native        positionRecord
	Token         positionRecord
	Minipools     uint64
	OperatorLimit uint64
}

type poolRecord struct {
	Address        common.Address
	Owner          common.Address
	Timezone       string
	CreatedAt      uint64
	PoolNative     *big.Int
	PoolToken      *big.Int
	OperatorNative *big.Int
	OperatorToken  *big.Int
	TotalNative    *big.Int
	TotalToken     *big.Int
	TotalMinipools uint64
	AverageNodeFee *big.Int
	Distributor    common.Address
	Actors         []common.Address
	Accounts       []accountRecord
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func newPositionRecord(p supernode.Position) positionRecord {
	return positionRecord{
		Share:       nonNil(p.Share),
		Limit:       nonNil(p.Limit),
		BuyoutLimit: nonNil(p.BuyoutLimit),
		Unclaimed:   nonNil(p.Unclaimed),
	}
}

func (r positionRecord) position() supernode.Position {
	return supernode.Position{
		Share:       nonNil(r.Share),
		Limit:       nonNil(r.Limit),
		BuyoutLimit: nonNil(r.BuyoutLimit),
		Unclaimed:   nonNil(r.Unclaimed),
	}
}

// newPoolRecord flattens a pool into its storage form. Accounts are sorted by
// address so equal pools always encode to the same bytes.
func newPoolRecord(pool *supernode.Pool) *poolRecord {
	rec := &poolRecord{
		Address:        pool.Address,
		Owner:          pool.Owner,
		Timezone:       pool.Timezone,
		CreatedAt:      uint64(pool.CreatedAt),
		PoolNative:     nonNil(pool.Fees.PoolNative),
		PoolToken:      nonNil(pool.Fees.PoolToken),
		OperatorNative: nonNil(pool.Fees.OperatorNative),
		OperatorToken:  nonNil(pool.Fees.OperatorToken),
		TotalNative:    nonNil(pool.TotalNative),
		TotalToken:     nonNil(pool.TotalToken),
		TotalMinipools: pool.TotalMinipools,
		AverageNodeFee: nonNil(pool.AverageNodeFee),
		Distributor:    pool.Distributor,
		Actors:         pool.Actors.Addresses(),
		Accounts:       make([]accountRecord, 0, len(pool.Accounts)),
	}
	if rec.Actors == nil {
		rec.Actors = []common.Address{}
	}
	for _, acc := range pool.Accounts {
		rec.Accounts = append(rec.Accounts, accountRecord{
			Address:       acc.Address,
			Native:        newPositionRecord(acc.Native),
			Token:         newPositionRecord(acc.Token),
			Minipools:     acc.Minipools,
			OperatorLimit: acc.OperatorLimit,
		})
	}
	sort.Slice(rec.Accounts, func(i, j int) bool {
		return bytes.Compare(rec.Accounts[i].Address.Bytes(), rec.Accounts[j].Address.Bytes()) < 0
	})
	return rec
}

func (r *poolRecord) pool() *supernode.Pool {
	pool := supernode.NewPool(r.Address, r.Owner, r.Timezone, int64(r.CreatedAt))
	pool.Fees = supernode.Fees{
		PoolNative:     nonNil(r.PoolNative),
		PoolToken:      nonNil(r.PoolToken),
		OperatorNative: nonNil(r.OperatorNative),
		OperatorToken:  nonNil(r.OperatorToken),
	}
	pool.TotalNative = nonNil(r.TotalNative)
	pool.TotalToken = nonNil(r.TotalToken)
	pool.TotalMinipools = r.TotalMinipools
	pool.AverageNodeFee = nonNil(r.AverageNodeFee)
	pool.Distributor = r.Distributor
	pool.Actors = supernode.NewActorRegistry(r.Actors...)
	for _, acc := range r.Accounts {
		pool.Accounts[acc.Address] = &supernode.Account{
			Address:       acc.Address,
			Native:        acc.Native.position(),
			Token:         acc.Token.position(),
			Minipools:     acc.Minipools,
			OperatorLimit: acc.OperatorLimit,
		}
	}
	return pool
}

// SupernodePoolGet loads the pool stored at addr.
func (m *Manager) SupernodePoolGet(addr common.Address) (*supernode.Pool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rec poolRecord
	ok, err := m.KVGet(supernodePoolKey(addr), &rec)
	if err != nil || !ok {
		return nil, ok, err
	}
	return rec.pool(), true, nil
}

// SupernodePoolPut stores pool and records it in the pool index on first write.
func (m *Manager) SupernodePoolPut(pool *supernode.Pool) error {
	if pool == nil {
		return fmt.Errorf("supernode: nil pool")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.KVPut(supernodePoolKey(pool.Address), newPoolRecord(pool)); err != nil {
		return err
	}
	return m.KVAppend(supernodePoolIndex, pool.Address.Bytes())
}

// SupernodePoolList returns every pool address in creation order.
func (m *Manager) SupernodePoolList() ([]common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var raw [][]byte
	if err := m.KVGetList(supernodePoolIndex, &raw); err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(raw))
	for _, b := range raw {
		out = append(out, common.BytesToAddress(b))
	}
	return out, nil
}

// SupernodeOwnerNonce returns how many pools owner has created.
func (m *Manager) SupernodeOwnerNonce(owner common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var nonce uint64
	if _, err := m.KVGet(supernodeNonceKey(owner), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// SupernodeSetOwnerNonce records owner's next pool nonce.
func (m *Manager) SupernodeSetOwnerNonce(owner common.Address, nonce uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.KVPut(supernodeNonceKey(owner), nonce)
}

// SupernodePoolDigest returns the blake3 hash of the pool's canonical
// encoding. Two nodes holding the same ledger report the same digest.
func (m *Manager) SupernodePoolDigest(addr common.Address) ([32]byte, error) {
	pool, ok, err := m.SupernodePoolGet(addr)
	if err != nil {
		return [32]byte{}, err
	}
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: %s", supernode.ErrPoolNotFound, addr.Hex())
	}
	encoded, err := rlp.EncodeToBytes(newPoolRecord(pool))
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(encoded), nil
}
