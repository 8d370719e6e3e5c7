package supernode

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// SetOperatorLimit caps how many minipools operator may run in the pool. Owner only.
func (e *Engine) SetOperatorLimit(poolAddr, caller, operator common.Address, limit uint64) error {
	if err := e.guard(); err != nil {
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
	pool.Account(operator).OperatorLimit = limit
	if err := e.state.SupernodePoolPut(pool); err != nil {
		return err
	}
	e.emit(OperatorLimitSetEvent(pool.Address, operator, limit))
	return nil
}

// RecordMinipoolCreated attributes a new minipool to operator. It is the
// signal consumed from the staking subsystem; the staking proof itself is not
// checked here.
func (e *Engine) RecordMinipoolCreated(poolAddr, operator common.Address) (*Account, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	acc := pool.Account(operator)
	if acc.Minipools >= acc.OperatorLimit {
		return nil, fmt.Errorf("%w: %d of %d minipools in use", ErrOperatorLimitExceeded, acc.Minipools, acc.OperatorLimit)
	}
	acc.Minipools++
	pool.TotalMinipools++
	pool.Actors.Add(operator)
	if err := e.state.SupernodePoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(MinipoolEvent(EventTypeMinipoolCreated, pool.Address, operator, acc.Minipools, pool.TotalMinipools))
	return acc.Clone(), nil
}

// RecordMinipoolDestroyed retires one of operator's minipools. The operator
// stays in the actor registry.
func (e *Engine) RecordMinipoolDestroyed(poolAddr, operator common.Address) (*Account, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	acc, ok := pool.Lookup(operator)
	if !ok || acc.Minipools == 0 {
		return nil, ErrNoActiveMinipools
	}
	acc.Minipools--
	pool.TotalMinipools--
	if err := e.state.SupernodePoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(MinipoolEvent(EventTypeMinipoolDestroyed, pool.Address, operator, acc.Minipools, pool.TotalMinipools))
	return acc.Clone(), nil
}
