package supernode

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"supernode/core/events"
	"supernode/core/types"
	"supernode/native/bank"
	nativecommon "supernode/native/common"
)

// ModuleName is the pause-guard key for the ledger.
const ModuleName = "supernode"

type engineState interface {
	SupernodePoolGet(addr common.Address) (*Pool, bool, error)
	SupernodePoolPut(pool *Pool) error
	SupernodePoolList() ([]common.Address, error)
	SupernodeOwnerNonce(owner common.Address) (uint64, error)
	SupernodeSetOwnerNonce(owner common.Address, nonce uint64) error
}

type custody interface {
	Balance(asset string, addr common.Address) (*big.Int, error)
	TransferBatch(legs []bank.Leg) error
}

// Engine owns every pool's ledger. All operations are serialised by a single
// mutex and work on a cloned pool that is only written back once every check
// has passed.
type Engine struct {
	mu                sync.Mutex
	state             engineState
	bank              custody
	emitter           events.Emitter
	pauses            nativecommon.PauseView
	nowFn             func() int64
	protocolRecipient common.Address
}

// NewEngine constructs a ledger engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the asset transfer primitive.
func (e *Engine) SetBank(b custody) { e.bank = b }

// SetPauses configures the pause view consulted before mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetProtocolRecipient configures where the protocol share of swept
// distributor rewards is sent.
func (e *Engine) SetProtocolRecipient(addr common.Address) { e.protocolRecipient = addr }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.bank == nil {
		return errNilBank
	}
	return nil
}

func (e *Engine) guard() error {
	if err := e.ready(); err != nil {
		return err
	}
	return nativecommon.Guard(e.pauses, ModuleName)
}

// loadPool returns a private copy of the pool that callers may mutate freely.
func (e *Engine) loadPool(addr common.Address) (*Pool, error) {
	pool, ok, err := e.state.SupernodePoolGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, addr.Hex())
	}
	return pool.Clone(), nil
}

func (e *Engine) requireOwner(pool *Pool, caller common.Address) error {
	if caller != pool.Owner {
		return fmt.Errorf("%w: %s is not the owner of %s", ErrUnauthorized, caller.Hex(), pool.Address.Hex())
	}
	return nil
}

// transfer runs legs atomically and reports any failure as ErrTransferFailed.
func (e *Engine) transfer(legs ...bank.Leg) error {
	filtered := legs[:0]
	for _, leg := range legs {
		if leg.Amount != nil && leg.Amount.Sign() > 0 {
			filtered = append(filtered, leg)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if err := e.bank.TransferBatch(filtered); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// commit writes pool and then runs legs. When the transfer fails the previous
// record is written back, so custody and the ledger never disagree.
func (e *Engine) commit(pool *Pool, legs ...bank.Leg) error {
	prev, existed, err := e.state.SupernodePoolGet(pool.Address)
	if err != nil {
		return err
	}
	if err := e.state.SupernodePoolPut(pool); err != nil {
		return err
	}
	if err := e.transfer(legs...); err != nil {
		if existed {
			if restoreErr := e.state.SupernodePoolPut(prev); restoreErr != nil {
				return fmt.Errorf("%w; restore pool %s: %v", err, pool.Address.Hex(), restoreErr)
			}
		}
		return err
	}
	return nil
}

// CreatePool registers a new pool owned by owner. The address is derived from
// the owner and a per-owner nonce, the way contract addresses are.
func (e *Engine) CreatePool(owner common.Address, timezone string) (*Pool, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	tz := strings.TrimSpace(timezone)
	if tz == "" {
		return nil, ErrInvalidTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimezone, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	nonce, err := e.state.SupernodeOwnerNonce(owner)
	if err != nil {
		return nil, err
	}
	addr := ethcrypto.CreateAddress(owner, nonce)
	if _, exists, err := e.state.SupernodePoolGet(addr); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %s", ErrPoolExists, addr.Hex())
	}
	pool := NewPool(addr, owner, tz, e.now())
	if err := e.state.SupernodePoolPut(pool); err != nil {
		return nil, err
	}
	if err := e.state.SupernodeSetOwnerNonce(owner, nonce+1); err != nil {
		return nil, err
	}
	e.emit(CreatedEvent(addr, owner, tz))
	return pool.Clone(), nil
}

// Pool returns a snapshot of the pool at addr.
func (e *Engine) Pool(addr common.Address) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadPool(addr)
}

// Pools lists pool addresses in creation order.
func (e *Engine) Pools() ([]common.Address, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.SupernodePoolList()
}

// Account returns a snapshot of addr's account in the pool. Unknown addresses
// read as zeroed accounts.
func (e *Engine) Account(poolAddr, addr common.Address) (*Account, error) {
	pool, err := e.Pool(poolAddr)
	if err != nil {
		return nil, err
	}
	if acc, ok := pool.Lookup(addr); ok {
		return acc.Clone(), nil
	}
	return NewAccount(addr), nil
}

// Actors returns the pool's actor list in registration order.
func (e *Engine) Actors(poolAddr common.Address) ([]common.Address, error) {
	pool, err := e.Pool(poolAddr)
	if err != nil {
		return nil, err
	}
	return pool.Actors.Addresses(), nil
}

// Pending returns the reward value a distribute call would currently split.
// It does not include rewards still parked at the distributor.
func (e *Engine) Pending(poolAddr common.Address, track Track) (*big.Int, error) {
	if !track.Valid() {
		return nil, ErrInvalidTrack
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	return e.undistributed(pool, track)
}

func (e *Engine) undistributed(pool *Pool, track Track) (*big.Int, error) {
	custodied, err := e.bank.Balance(track.Asset(), pool.Address)
	if err != nil {
		return nil, err
	}
	delta := new(big.Int).Sub(custodied, pool.Liabilities(track))
	if delta.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return delta, nil
}

// SetFees replaces the pool's fee configuration. Owner only.
func (e *Engine) SetFees(poolAddr, caller common.Address, fees Fees) error {
	if err := e.guard(); err != nil {
		return err
	}
	fees = fees.Clone()
	if err := fees.Validate(); err != nil {
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
	pool.Fees = fees
	if err := e.state.SupernodePoolPut(pool); err != nil {
		return err
	}
	e.emit(FeesSetEvent(pool.Address, fees))
	return nil
}
