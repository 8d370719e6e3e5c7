package supernode

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ActorRegistry is an append-only, insertion-ordered set of addresses. The
// order is what makes distribution rounding reproducible.
type ActorRegistry struct {
	order []common.Address
	index map[common.Address]int
}

// NewActorRegistry seeds a registry with addrs, dropping duplicates.
func NewActorRegistry(addrs ...common.Address) *ActorRegistry {
	r := &ActorRegistry{index: make(map[common.Address]int, len(addrs))}
	for _, addr := range addrs {
		r.Add(addr)
	}
	return r
}

// Add appends addr unless already present. It reports whether addr was new.
func (r *ActorRegistry) Add(addr common.Address) bool {
	if _, ok := r.index[addr]; ok {
		return false
	}
	r.index[addr] = len(r.order)
	r.order = append(r.order, addr)
	return true
}

// Contains reports membership in constant time.
func (r *ActorRegistry) Contains(addr common.Address) bool {
	if r == nil {
		return false
	}
	_, ok := r.index[addr]
	return ok
}

// Len returns the number of registered actors.
func (r *ActorRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// At returns the actor at position i.
func (r *ActorRegistry) At(i int) (common.Address, error) {
	if r == nil || i < 0 || i >= len(r.order) {
		return common.Address{}, fmt.Errorf("actor index %d out of range", i)
	}
	return r.order[i], nil
}

// Addresses returns a copy of the actors in insertion order.
func (r *ActorRegistry) Addresses() []common.Address {
	if r == nil {
		return nil
	}
	out := make([]common.Address, len(r.order))
	copy(out, r.order)
	return out
}

// Clone returns an independent copy.
func (r *ActorRegistry) Clone() *ActorRegistry {
	if r == nil {
		return NewActorRegistry()
	}
	return NewActorRegistry(r.order...)
}
