package supernode

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"supernode/native/bank"
)

// splitReward computes how reward would be credited across the pool's actors
// for track. It does not modify the pool.
func splitReward(pool *Pool, track Track, reward *big.Int) *Distribution {
	totalShares := newBigInt(pool.TotalShares(track))
	d := &Distribution{
		Pool:           pool.Address,
		Track:          track,
		Swept:          big.NewInt(0),
		Reward:         newBigInt(reward),
		PoolCut:        big.NewInt(0),
		OperatorCut:    big.NewInt(0),
		PerMinipool:    big.NewInt(0),
		Residual:       big.NewInt(0),
		Credited:       big.NewInt(0),
		Dust:           newBigInt(reward),
		TotalShares:    totalShares,
		TotalMinipools: pool.TotalMinipools,
	}
	if d.Reward.Sign() <= 0 || totalShares.Sign() == 0 {
		return d
	}
	d.Applied = true
	d.PoolCut = mulDiv(d.Reward, pool.Fees.Pool(track), Denominator)
	if pool.TotalMinipools > 0 {
		d.OperatorCut = mulDiv(d.Reward, pool.Fees.Operator(track), Denominator)
		d.PerMinipool = new(big.Int).Quo(d.OperatorCut, new(big.Int).SetUint64(pool.TotalMinipools))
	}
	d.Residual = new(big.Int).Sub(d.Reward, d.PoolCut)
	d.Residual.Sub(d.Residual, d.OperatorCut)

	actors := pool.Actors.Addresses()
	if d.PoolCut.Sign() > 0 && !pool.Actors.Contains(pool.Owner) {
		actors = append(actors, pool.Owner)
	}
	d.Credits = make([]Credit, 0, len(actors))
	for _, addr := range actors {
		credit := Credit{
			Address:        addr,
			Share:          big.NewInt(0),
			ShareCredit:    big.NewInt(0),
			PoolFeeCredit:  big.NewInt(0),
			OperatorCredit: big.NewInt(0),
		}
		if acc, ok := pool.Lookup(addr); ok {
			credit.Share = newBigInt(acc.Position(track).Share)
			credit.Minipools = acc.Minipools
		}
		credit.ShareCredit = mulDiv(credit.Share, d.Residual, totalShares)
		if addr == pool.Owner {
			credit.PoolFeeCredit = newBigInt(d.PoolCut)
		}
		if credit.Minipools > 0 {
			credit.OperatorCredit = new(big.Int).Mul(d.PerMinipool, new(big.Int).SetUint64(credit.Minipools))
		}
		credit.Total = new(big.Int).Add(credit.ShareCredit, credit.PoolFeeCredit)
		credit.Total.Add(credit.Total, credit.OperatorCredit)
		d.Credited.Add(d.Credited, credit.Total)
		d.Credits = append(d.Credits, credit)
	}
	d.Dust = new(big.Int).Sub(d.Reward, d.Credited)
	return d
}

func applyDistribution(pool *Pool, d *Distribution) {
	for _, credit := range d.Credits {
		if credit.Total.Sign() == 0 {
			continue
		}
		pool.Actors.Add(credit.Address)
		pos := pool.Account(credit.Address).Position(d.Track)
		pos.Unclaimed = new(big.Int).Add(pos.Unclaimed, credit.Total)
	}
}

// Distribute splits the track's undistributed custody balance across the
// pool. Anyone may call it. With nothing to split, or no shares outstanding,
// it returns a Distribution with Applied false and leaves the balance for the
// next call.
func (e *Engine) Distribute(poolAddr common.Address, track Track) (*Distribution, error) {
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

	var sweep *sweepPlan
	if track == TrackNative && pool.HasDistributor() {
		sweep, err = e.planSweep(pool)
		if err != nil {
			return nil, err
		}
	}
	custodied, err := e.bank.Balance(track.Asset(), pool.Address)
	if err != nil {
		return nil, err
	}
	if sweep != nil {
		// The sweep leaves liabilities untouched, so the swept value lands in R.
		custodied.Add(custodied, sweep.nodeShare)
	}
	reward := custodied.Sub(custodied, pool.Liabilities(track))
	if reward.Sign() < 0 {
		reward.SetInt64(0)
	}

	d := splitReward(pool, track, reward)
	d.Timestamp = e.now()
	var legs []bank.Leg
	if sweep != nil {
		d.Swept = newBigInt(sweep.nodeShare)
		legs = sweep.legs
	}
	switch {
	case d.Applied:
		applyDistribution(pool, d)
		if err := e.commit(pool, legs...); err != nil {
			return nil, err
		}
	case len(legs) > 0:
		if err := e.transfer(legs...); err != nil {
			return nil, err
		}
	}
	if sweep != nil {
		e.emit(RewardsSweptEvent(pool.Address, pool.Distributor, sweep.nodeShare, sweep.protocolShare))
	}
	if d.Applied {
		e.emit(DistributedEvent(d))
	}
	return d, nil
}

type sweepPlan struct {
	nodeShare     *big.Int
	protocolShare *big.Int
	legs          []bank.Leg
}

// planSweep splits the distributor balance B: the pool takes half plus the
// average node fee on the other half, the protocol recipient the remainder.
func (e *Engine) planSweep(pool *Pool) (*sweepPlan, error) {
	balance, err := e.bank.Balance(bank.AssetNative, pool.Distributor)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, nil
	}
	half := new(big.Int).Quo(balance, big.NewInt(2))
	nodeShare := new(big.Int).Add(half, mulDiv(half, pool.AverageNodeFee, Denominator))
	protocolShare := new(big.Int).Sub(balance, nodeShare)
	if protocolShare.Sign() > 0 && isZeroAddress(e.protocolRecipient) {
		return nil, ErrRecipientNotSet
	}
	return &sweepPlan{
		nodeShare:     nodeShare,
		protocolShare: protocolShare,
		legs: []bank.Leg{
			{Asset: bank.AssetNative, From: pool.Distributor, To: pool.Address, Amount: nodeShare},
			{Asset: bank.AssetNative, From: pool.Distributor, To: e.protocolRecipient, Amount: protocolShare},
		},
	}, nil
}

// SetDistributor attaches the reward distributor whose balance is swept on
// every native distribution. Pass the zero address to detach.
func (e *Engine) SetDistributor(poolAddr, distributor common.Address) error {
	if err := e.guard(); err != nil {
		return err
	}
	if !isZeroAddress(distributor) && isZeroAddress(e.protocolRecipient) {
		return ErrRecipientNotSet
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return err
	}
	pool.Distributor = distributor
	return e.state.SupernodePoolPut(pool)
}

// SetAverageNodeFee records the pool's average minipool node fee, as reported
// by the staking subsystem.
func (e *Engine) SetAverageNodeFee(poolAddr common.Address, fee *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if fee == nil || fee.Sign() < 0 || fee.Cmp(Denominator) > 0 {
		return ErrInvalidFee
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return err
	}
	pool.AverageNodeFee = newBigInt(fee)
	return e.state.SupernodePoolPut(pool)
}
