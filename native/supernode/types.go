package supernode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"supernode/native/bank"
)

// Track identifies one of the two independently accounted value tracks.
type Track uint8

const (
	// TrackNative is the native asset track (ETH on the reference network).
	TrackNative Track = iota
	// TrackToken is the fungible token track (RPL on the reference network).
	TrackToken
)

// Tracks lists every track in canonical order.
var Tracks = []Track{TrackNative, TrackToken}

func (t Track) String() string {
	switch t {
	case TrackNative:
		return "native"
	case TrackToken:
		return "token"
	default:
		return fmt.Sprintf("track(%d)", uint8(t))
	}
}

// Valid reports whether t names a known track.
func (t Track) Valid() bool { return t == TrackNative || t == TrackToken }

// Asset returns the bank asset backing the track.
func (t Track) Asset() string {
	if t == TrackToken {
		return bank.AssetToken
	}
	return bank.AssetNative
}

// ParseTrack accepts the track names plus the reference network's asset symbols.
func ParseTrack(raw string) (Track, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "native", "eth":
		return TrackNative, nil
	case "token", "rpl":
		return TrackToken, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTrack, raw)
	}
}

// Position holds one provider's balances on a single track.
type Position struct {
	Share       *big.Int
	Limit       *big.Int
	BuyoutLimit *big.Int
	Unclaimed   *big.Int
}

func newPosition() Position {
	return Position{
		Share:       big.NewInt(0),
		Limit:       big.NewInt(0),
		BuyoutLimit: big.NewInt(0),
		Unclaimed:   big.NewInt(0),
	}
}

// Clone returns a deep copy of the position.
func (p Position) Clone() Position {
	return Position{
		Share:       newBigInt(p.Share),
		Limit:       newBigInt(p.Limit),
		BuyoutLimit: newBigInt(p.BuyoutLimit),
		Unclaimed:   newBigInt(p.Unclaimed),
	}
}

// Account is a provider's state within one pool. Operator fields are zero for
// addresses that never ran a minipool.
type Account struct {
	Address       common.Address
	Native        Position
	Token         Position
	Minipools     uint64
	OperatorLimit uint64
}

// NewAccount returns a zeroed account for addr.
func NewAccount(addr common.Address) *Account {
	return &Account{Address: addr, Native: newPosition(), Token: newPosition()}
}

// Position returns a pointer to the position for track t.
func (a *Account) Position(t Track) *Position {
	if t == TrackToken {
		return &a.Token
	}
	return &a.Native
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		Address:       a.Address,
		Native:        a.Native.Clone(),
		Token:         a.Token.Clone(),
		Minipools:     a.Minipools,
		OperatorLimit: a.OperatorLimit,
	}
}

// Pool is the complete ledger state of one supernode.
type Pool struct {
	Address        common.Address
	Owner          common.Address
	Timezone       string
	CreatedAt      int64
	Fees           Fees
	TotalNative    *big.Int
	TotalToken     *big.Int
	TotalMinipools uint64
	// AverageNodeFee is reported by the staking subsystem and weights the
	// node share of swept distributor rewards.
	AverageNodeFee *big.Int
	Distributor    common.Address
	Actors         *ActorRegistry
	Accounts       map[common.Address]*Account
}

// NewPool returns an empty pool owned by owner.
func NewPool(addr, owner common.Address, timezone string, createdAt int64) *Pool {
	return &Pool{
		Address:        addr,
		Owner:          owner,
		Timezone:       timezone,
		CreatedAt:      createdAt,
		Fees:           ZeroFees(),
		TotalNative:    big.NewInt(0),
		TotalToken:     big.NewInt(0),
		AverageNodeFee: big.NewInt(0),
		Actors:         NewActorRegistry(),
		Accounts:       make(map[common.Address]*Account),
	}
}

// TotalShares returns the aggregate share count for track t.
func (p *Pool) TotalShares(t Track) *big.Int {
	if t == TrackToken {
		return p.TotalToken
	}
	return p.TotalNative
}

func (p *Pool) setTotalShares(t Track, v *big.Int) {
	if t == TrackToken {
		p.TotalToken = v
		return
	}
	p.TotalNative = v
}

// Lookup returns the account for addr without creating it.
func (p *Pool) Lookup(addr common.Address) (*Account, bool) {
	acc, ok := p.Accounts[addr]
	return acc, ok
}

// Account returns the account for addr, creating a zeroed one on first reference.
func (p *Pool) Account(addr common.Address) *Account {
	if acc, ok := p.Accounts[addr]; ok {
		return acc
	}
	acc := NewAccount(addr)
	p.Accounts[addr] = acc
	return acc
}

// HasDistributor reports whether a reward distributor is attached.
func (p *Pool) HasDistributor() bool { return !isZeroAddress(p.Distributor) }

// Liabilities is the custody balance the pool owes for track t: every share
// plus every unclaimed credit.
func (p *Pool) Liabilities(t Track) *big.Int {
	total := newBigInt(p.TotalShares(t))
	for _, acc := range p.Accounts {
		total.Add(total, acc.Position(t).Unclaimed)
	}
	return total
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	accounts := make(map[common.Address]*Account, len(p.Accounts))
	for addr, acc := range p.Accounts {
		accounts[addr] = acc.Clone()
	}
	actors := p.Actors
	if actors == nil {
		actors = NewActorRegistry()
	}
	return &Pool{
		Address:        p.Address,
		Owner:          p.Owner,
		Timezone:       p.Timezone,
		CreatedAt:      p.CreatedAt,
		Fees:           p.Fees.Clone(),
		TotalNative:    newBigInt(p.TotalNative),
		TotalToken:     newBigInt(p.TotalToken),
		TotalMinipools: p.TotalMinipools,
		AverageNodeFee: newBigInt(p.AverageNodeFee),
		Distributor:    p.Distributor,
		Actors:         actors.Clone(),
		Accounts:       accounts,
	}
}

// Credit is one actor's share of a distribution.
type Credit struct {
	Address        common.Address
	Share          *big.Int
	Minipools      uint64
	ShareCredit    *big.Int
	PoolFeeCredit  *big.Int
	OperatorCredit *big.Int
	Total          *big.Int
}

// Distribution describes the outcome of one distribute call.
type Distribution struct {
	Pool           common.Address
	Track          Track
	Applied        bool
	Swept          *big.Int
	Reward         *big.Int
	PoolCut        *big.Int
	OperatorCut    *big.Int
	PerMinipool    *big.Int
	Residual       *big.Int
	Credited       *big.Int
	Dust           *big.Int
	TotalShares    *big.Int
	TotalMinipools uint64
	Credits        []Credit
	Timestamp      int64
}

// BuyoutResult reports the balances moved by a buyout.
type BuyoutResult struct {
	Pool       common.Address
	Track      Track
	Seller     common.Address
	Buyer      common.Address
	Amount     *big.Int
	AutoClaim  *big.Int
	PaidSeller *big.Int
}
