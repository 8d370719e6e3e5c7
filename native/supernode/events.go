package supernode

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"supernode/core/events"
	"supernode/core/types"
)

const (
	// EventTypeCreated is emitted when a new pool is created.
	EventTypeCreated = "supernode.created"
	// EventTypeDeposit is emitted when a provider deposits capital.
	EventTypeDeposit = "supernode.deposit"
	// EventTypeLimitSet is emitted when the owner changes a provider's capital limit.
	EventTypeLimitSet = "supernode.limit.set"
	// EventTypeOperatorLimitSet is emitted when the owner changes an operator's minipool cap.
	EventTypeOperatorLimitSet = "supernode.operator_limit.set"
	// EventTypeMinipoolCreated is emitted when a minipool is attributed to an operator.
	EventTypeMinipoolCreated = "supernode.minipool.created"
	// EventTypeMinipoolDestroyed is emitted when an operator's minipool is retired.
	EventTypeMinipoolDestroyed = "supernode.minipool.destroyed"
	// EventTypeFeesSet is emitted when the owner updates the fee configuration.
	EventTypeFeesSet = "supernode.fees.set"
	// EventTypeDistributed is emitted after rewards are credited to actors.
	EventTypeDistributed = "supernode.distributed"
	// EventTypeClaimed is emitted when an actor withdraws unclaimed rewards.
	EventTypeClaimed = "supernode.claimed"
	// EventTypeBuyout is emitted when shares move between providers.
	EventTypeBuyout = "supernode.buyout"
	// EventTypeBuyoutLimitSet is emitted when a provider resets its buyout limit.
	EventTypeBuyoutLimitSet = "supernode.buyout_limit.set"
	// EventTypeRewardsSwept is emitted when distributor rewards move into custody.
	EventTypeRewardsSwept = "supernode.rewards.swept"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr common.Address) string { return addr.Hex() }

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// CreatedEvent announces a new pool.
func CreatedEvent(pool, owner common.Address, timezone string) *types.Event {
	return &types.Event{
		Type: EventTypeCreated,
		Attributes: map[string]string{
			"pool":     hexAddr(pool),
			"owner":    hexAddr(owner),
			"timezone": timezone,
		},
	}
}

// DepositEvent records a provider deposit.
func DepositEvent(pool common.Address, track Track, provider common.Address, amount, share, total *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"pool":        hexAddr(pool),
			"track":       track.String(),
			"provider":    hexAddr(provider),
			"amount":      bigString(amount),
			"share":       bigString(share),
			"totalShares": bigString(total),
		},
	}
}

// LimitSetEvent records a capital limit change.
func LimitSetEvent(pool common.Address, track Track, provider common.Address, limit *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeLimitSet,
		Attributes: map[string]string{
			"pool":     hexAddr(pool),
			"track":    track.String(),
			"provider": hexAddr(provider),
			"limit":    bigString(limit),
		},
	}
}

// OperatorLimitSetEvent records a minipool cap change.
func OperatorLimitSetEvent(pool, operator common.Address, limit uint64) *types.Event {
	return &types.Event{
		Type: EventTypeOperatorLimitSet,
		Attributes: map[string]string{
			"pool":     hexAddr(pool),
			"operator": hexAddr(operator),
			"limit":    strconv.FormatUint(limit, 10),
		},
	}
}

// MinipoolEvent records a minipool count change for an operator.
func MinipoolEvent(eventType string, pool, operator common.Address, count, total uint64) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"pool":           hexAddr(pool),
			"operator":       hexAddr(operator),
			"minipools":      strconv.FormatUint(count, 10),
			"totalMinipools": strconv.FormatUint(total, 10),
		},
	}
}

// FeesSetEvent records a fee configuration change.
func FeesSetEvent(pool common.Address, fees Fees) *types.Event {
	return &types.Event{
		Type: EventTypeFeesSet,
		Attributes: map[string]string{
			"pool":           hexAddr(pool),
			"poolNative":     bigString(fees.PoolNative),
			"poolToken":      bigString(fees.PoolToken),
			"operatorNative": bigString(fees.OperatorNative),
			"operatorToken":  bigString(fees.OperatorToken),
		},
	}
}

// DistributedEvent summarises a distribution.
func DistributedEvent(d *Distribution) *types.Event {
	return &types.Event{
		Type: EventTypeDistributed,
		Attributes: map[string]string{
			"pool":        hexAddr(d.Pool),
			"track":       d.Track.String(),
			"reward":      bigString(d.Reward),
			"poolCut":     bigString(d.PoolCut),
			"operatorCut": bigString(d.OperatorCut),
			"residual":    bigString(d.Residual),
			"credited":    bigString(d.Credited),
			"dust":        bigString(d.Dust),
			"actors":      strconv.Itoa(len(d.Credits)),
		},
	}
}

// ClaimedEvent records a claim payout.
func ClaimedEvent(pool common.Address, track Track, provider common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeClaimed,
		Attributes: map[string]string{
			"pool":     hexAddr(pool),
			"track":    track.String(),
			"provider": hexAddr(provider),
			"amount":   bigString(amount),
		},
	}
}

// BuyoutEvent records a share transfer.
func BuyoutEvent(res *BuyoutResult) *types.Event {
	return &types.Event{
		Type: EventTypeBuyout,
		Attributes: map[string]string{
			"pool":       hexAddr(res.Pool),
			"track":      res.Track.String(),
			"seller":     hexAddr(res.Seller),
			"buyer":      hexAddr(res.Buyer),
			"amount":     bigString(res.Amount),
			"autoClaim":  bigString(res.AutoClaim),
			"paidSeller": bigString(res.PaidSeller),
		},
	}
}

// BuyoutLimitSetEvent records a self-service buyout limit reset.
func BuyoutLimitSetEvent(pool common.Address, track Track, provider common.Address, limit *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeBuyoutLimitSet,
		Attributes: map[string]string{
			"pool":     hexAddr(pool),
			"track":    track.String(),
			"provider": hexAddr(provider),
			"limit":    bigString(limit),
		},
	}
}

// RewardsSweptEvent records a distributor sweep.
func RewardsSweptEvent(pool, distributor common.Address, nodeShare, protocolShare *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsSwept,
		Attributes: map[string]string{
			"pool":          hexAddr(pool),
			"distributor":   hexAddr(distributor),
			"nodeShare":     bigString(nodeShare),
			"protocolShare": bigString(protocolShare),
		},
	}
}
