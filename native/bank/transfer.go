package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"supernode/observability"
)

// Asset names understood by the ledger.
const (
	AssetNative = "native"
	AssetToken  = "token"
)

var (
	ErrUnknownAsset        = errors.New("bank: unknown asset")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrRecipientRejected   = errors.New("bank: recipient rejected transfer")
	ErrBalanceOverflow     = errors.New("bank: balance exceeds 256 bits")
)

// Store persists balances. A missing balance reads as zero.
type Store interface {
	BalanceGet(asset string, addr common.Address) (*big.Int, error)
	BalancePut(asset string, addr common.Address, amount *big.Int) error
}

// Leg is a single debit/credit pair applied as part of a batch.
type Leg struct {
	Asset  string
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// Ledger is the transfer primitive for both assets. Every call is atomic: a
// batch either applies all legs or none.
type Ledger struct {
	mu        sync.Mutex
	store     Store
	rejecting map[common.Address]struct{}
}

// NewLedger returns a ledger over store, or over an in-memory map when store is nil.
func NewLedger(store Store) *Ledger {
	if store == nil {
		store = newMemoryStore()
	}
	return &Ledger{store: store, rejecting: make(map[common.Address]struct{})}
}

// NormalizeAsset lowercases and validates an asset name.
func NormalizeAsset(asset string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(asset))
	switch normalized {
	case AssetNative, AssetToken:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAsset, asset)
	}
}

// SetRejecting marks addr as a recipient that refuses native transfers, the way
// a contract without a payable fallback would.
func (l *Ledger) SetRejecting(addr common.Address, reject bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if reject {
		l.rejecting[addr] = struct{}{}
		return
	}
	delete(l.rejecting, addr)
}

// Balance returns the current balance of addr for asset.
func (l *Ledger) Balance(asset string, addr common.Address) (*big.Int, error) {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(normalized, addr)
}

// Credit mints amount into addr. Used for faucets and externally arriving rewards.
func (l *Ledger) Credit(asset string, addr common.Address, amount *big.Int) error {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	current, err := l.balance(normalized, addr)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(current, amount)
	if err := checkBounds(next); err != nil {
		return err
	}
	return l.store.BalancePut(normalized, addr, next)
}

// Transfer moves amount of asset from one address to another.
func (l *Ledger) Transfer(asset string, from, to common.Address, amount *big.Int) error {
	return l.TransferBatch([]Leg{{Asset: asset, From: from, To: to, Amount: amount}})
}

// TransferBatch validates every leg against a working copy of the affected
// balances before persisting any of them.
func (l *Ledger) TransferBatch(legs []Leg) error {
	if len(legs) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	type key struct {
		asset string
		addr  common.Address
	}
	working := make(map[key]*big.Int)
	order := make([]key, 0, len(legs)*2)
	load := func(k key) (*big.Int, error) {
		if bal, ok := working[k]; ok {
			return bal, nil
		}
		bal, err := l.balance(k.asset, k.addr)
		if err != nil {
			return nil, err
		}
		working[k] = bal
		order = append(order, k)
		return bal, nil
	}

	for _, leg := range legs {
		asset, err := NormalizeAsset(leg.Asset)
		if err != nil {
			return err
		}
		if leg.Amount == nil || leg.Amount.Sign() <= 0 {
			return ErrInvalidAmount
		}
		if asset == AssetNative {
			if _, rejects := l.rejecting[leg.To]; rejects {
				return fmt.Errorf("%w: %s", ErrRecipientRejected, leg.To.Hex())
			}
		}
		fromBal, err := load(key{asset, leg.From})
		if err != nil {
			return err
		}
		if fromBal.Cmp(leg.Amount) < 0 {
			return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, leg.From.Hex(), fromBal, leg.Amount)
		}
		fromBal.Sub(fromBal, leg.Amount)
		toBal, err := load(key{asset, leg.To})
		if err != nil {
			return err
		}
		toBal.Add(toBal, leg.Amount)
		if err := checkBounds(toBal); err != nil {
			return err
		}
	}
	for _, k := range order {
		if err := l.store.BalancePut(k.asset, k.addr, working[k]); err != nil {
			return err
		}
	}
	for _, leg := range legs {
		observability.Events().RecordTransfer(leg.Asset)
	}
	return nil
}

func (l *Ledger) balance(asset string, addr common.Address) (*big.Int, error) {
	bal, err := l.store.BalanceGet(asset, addr)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func checkBounds(v *big.Int) error {
	if _, overflow := uint256.FromBig(v); overflow {
		return ErrBalanceOverflow
	}
	return nil
}

type memoryStore struct {
	balances map[string]*big.Int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{balances: make(map[string]*big.Int)}
}

func memoryKey(asset string, addr common.Address) string {
	return asset + ":" + addr.Hex()
}

func (m *memoryStore) BalanceGet(asset string, addr common.Address) (*big.Int, error) {
	bal, ok := m.balances[memoryKey(asset, addr)]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(bal), nil
}

func (m *memoryStore) BalancePut(asset string, addr common.Address, amount *big.Int) error {
	m.balances[memoryKey(asset, addr)] = new(big.Int).Set(amount)
	return nil
}
