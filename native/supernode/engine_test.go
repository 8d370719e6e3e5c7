package supernode

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"supernode/core/events"
	"supernode/native/bank"
	nativecommon "supernode/native/common"
)

type mockState struct {
	pools  map[common.Address]*Pool
	order  []common.Address
	nonces map[common.Address]uint64
	putErr error
}

func newMockState() *mockState {
	return &mockState{
		pools:  make(map[common.Address]*Pool),
		nonces: make(map[common.Address]uint64),
	}
}

func (m *mockState) SupernodePoolGet(addr common.Address) (*Pool, bool, error) {
	pool, ok := m.pools[addr]
	if !ok {
		return nil, false, nil
	}
	return pool.Clone(), true, nil
}

func (m *mockState) SupernodePoolPut(pool *Pool) error {
	if m.putErr != nil {
		return m.putErr
	}
	if _, ok := m.pools[pool.Address]; !ok {
		m.order = append(m.order, pool.Address)
	}
	m.pools[pool.Address] = pool.Clone()
	return nil
}

func (m *mockState) SupernodePoolList() ([]common.Address, error) {
	return append([]common.Address(nil), m.order...), nil
}

func (m *mockState) SupernodeOwnerNonce(owner common.Address) (uint64, error) {
	return m.nonces[owner], nil
}

func (m *mockState) SupernodeSetOwnerNonce(owner common.Address, nonce uint64) error {
	m.nonces[owner] = nonce
	return nil
}

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.types = append(r.types, evt.EventType())
}

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), unit)
}

func halfUnit() *big.Int {
	return new(big.Int).Quo(unit, big.NewInt(2))
}

var (
	owner     = addr(1)
	provider1 = addr(2)
	provider2 = addr(3)
	operator1 = addr(4)
	operator2 = addr(5)
	outsider  = addr(6)
)

type fixture struct {
	t       *testing.T
	engine  *Engine
	bank    *bank.Ledger
	state   *mockState
	emitter *recordingEmitter
	pool    common.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := newMockState()
	ledger := bank.NewLedger(nil)
	emitter := &recordingEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetBank(ledger)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	pool, err := engine.CreatePool(owner, "UTC")
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return &fixture{t: t, engine: engine, bank: ledger, state: state, emitter: emitter, pool: pool.Address}
}

// fund gives who a wallet balance and a capital limit on track.
func (f *fixture) fund(track Track, who common.Address, limit *big.Int) {
	f.t.Helper()
	if err := f.bank.Credit(track.Asset(), who, units(1000)); err != nil {
		f.t.Fatalf("credit: %v", err)
	}
	if err := f.engine.SetLimit(f.pool, owner, track, who, limit); err != nil {
		f.t.Fatalf("set limit: %v", err)
	}
}

func (f *fixture) deposit(track Track, who common.Address, amount *big.Int) {
	f.t.Helper()
	if _, err := f.engine.Deposit(f.pool, track, who, amount); err != nil {
		f.t.Fatalf("deposit: %v", err)
	}
}

func (f *fixture) reward(track Track, amount *big.Int) {
	f.t.Helper()
	if err := f.bank.Credit(track.Asset(), f.pool, amount); err != nil {
		f.t.Fatalf("reward: %v", err)
	}
}

func (f *fixture) account(who common.Address) *Account {
	f.t.Helper()
	acc, err := f.engine.Account(f.pool, who)
	if err != nil {
		f.t.Fatalf("account: %v", err)
	}
	return acc
}

func (f *fixture) balance(track Track, who common.Address) *big.Int {
	f.t.Helper()
	bal, err := f.bank.Balance(track.Asset(), who)
	if err != nil {
		f.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (f *fixture) checkConservation(track Track) {
	f.t.Helper()
	pool, err := f.engine.Pool(f.pool)
	if err != nil {
		f.t.Fatalf("pool: %v", err)
	}
	sum := big.NewInt(0)
	for _, acc := range pool.Accounts {
		sum.Add(sum, acc.Position(track).Share)
	}
	if sum.Cmp(pool.TotalShares(track)) != 0 {
		f.t.Fatalf("share sum %s != total %s", sum, pool.TotalShares(track))
	}
}

func expectAmount(t *testing.T, label string, got, want *big.Int) {
	t.Helper()
	if got.Cmp(want) != 0 {
		t.Fatalf("%s: got %s want %s", label, got, want)
	}
}

func TestCreatePoolDerivesAddressFromOwnerNonce(t *testing.T) {
	f := newFixture(t)
	second, err := f.engine.CreatePool(owner, "UTC")
	if err != nil {
		t.Fatalf("second pool: %v", err)
	}
	if second.Address == f.pool {
		t.Fatalf("pools for the same owner must not collide")
	}
	pools, err := f.engine.Pools()
	if err != nil {
		t.Fatalf("pools: %v", err)
	}
	if len(pools) != 2 || pools[0] != f.pool || pools[1] != second.Address {
		t.Fatalf("unexpected pool order %v", pools)
	}
	if _, err := f.engine.CreatePool(owner, "Mars/Olympus"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
	if len(f.emitter.types) != 2 || f.emitter.types[0] != EventTypeCreated {
		t.Fatalf("unexpected events %v", f.emitter.types)
	}
}

func TestDepositRespectsCapitalLimit(t *testing.T) {
	f := newFixture(t)
	f.fund(TrackNative, provider1, units(2))
	f.deposit(TrackNative, provider1, units(2))
	_, err := f.engine.Deposit(f.pool, TrackNative, provider1, big.NewInt(1))
	if !errors.Is(err, ErrCapitalLimitExceeded) {
		t.Fatalf("expected ErrCapitalLimitExceeded, got %v", err)
	}
	acc := f.account(provider1)
	expectAmount(t, "share", acc.Native.Share, units(2))
	expectAmount(t, "wallet", f.balance(TrackNative, provider1), units(998))
	expectAmount(t, "custody", f.balance(TrackNative, f.pool), units(2))

	if _, err := f.engine.Deposit(f.pool, TrackNative, provider1, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	actors, _ := f.engine.Actors(f.pool)
	if len(actors) != 1 || actors[0] != provider1 {
		t.Fatalf("unexpected actors %v", actors)
	}
}

func TestDepositWithoutFundsLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetLimit(f.pool, owner, TrackToken, provider1, units(5)); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	_, err := f.engine.Deposit(f.pool, TrackToken, provider1, units(1))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	pool, _ := f.engine.Pool(f.pool)
	if pool.TotalToken.Sign() != 0 || pool.Actors.Len() != 0 {
		t.Fatalf("failed deposit mutated pool: total=%s actors=%d", pool.TotalToken, pool.Actors.Len())
	}
}

func TestSetLimitIsOwnerOnlyAndNotRetroactive(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetLimit(f.pool, outsider, TrackNative, provider1, units(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	f.fund(TrackNative, provider1, units(3))
	f.deposit(TrackNative, provider1, units(3))
	if err := f.engine.SetLimit(f.pool, owner, TrackNative, provider1, units(1)); err != nil {
		t.Fatalf("lower limit: %v", err)
	}
	acc := f.account(provider1)
	expectAmount(t, "share", acc.Native.Share, units(3))
	expectAmount(t, "limit", acc.Native.Limit, units(1))
	if _, err := f.engine.Deposit(f.pool, TrackNative, provider1, big.NewInt(1)); !errors.Is(err, ErrCapitalLimitExceeded) {
		t.Fatalf("expected ErrCapitalLimitExceeded, got %v", err)
	}
}

func TestMinipoolLifecycle(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.RecordMinipoolCreated(f.pool, operator1); !errors.Is(err, ErrOperatorLimitExceeded) {
		t.Fatalf("expected ErrOperatorLimitExceeded, got %v", err)
	}
	if err := f.engine.SetOperatorLimit(f.pool, outsider, operator1, 2); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SetOperatorLimit(f.pool, owner, operator1, 2); err != nil {
		t.Fatalf("set operator limit: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := f.engine.RecordMinipoolCreated(f.pool, operator1); err != nil {
			t.Fatalf("minipool %d: %v", i, err)
		}
	}
	if _, err := f.engine.RecordMinipoolCreated(f.pool, operator1); !errors.Is(err, ErrOperatorLimitExceeded) {
		t.Fatalf("expected ErrOperatorLimitExceeded, got %v", err)
	}
	acc, err := f.engine.RecordMinipoolDestroyed(f.pool, operator1)
	if err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if acc.Minipools != 1 {
		t.Fatalf("expected 1 minipool, got %d", acc.Minipools)
	}
	pool, _ := f.engine.Pool(f.pool)
	if pool.TotalMinipools != 1 || !pool.Actors.Contains(operator1) {
		t.Fatalf("unexpected pool state: minipools=%d", pool.TotalMinipools)
	}
	if _, err := f.engine.RecordMinipoolDestroyed(f.pool, operator2); !errors.Is(err, ErrNoActiveMinipools) {
		t.Fatalf("expected ErrNoActiveMinipools, got %v", err)
	}
}

func TestDistributeEqualSharesNoFees(t *testing.T) {
	f := newFixture(t)
	f.fund(TrackNative, provider1, units(10))
	f.fund(TrackNative, provider2, units(10))
	f.deposit(TrackNative, provider1, units(1))
	f.deposit(TrackNative, provider2, units(1))
	f.reward(TrackNative, units(4))

	d, err := f.engine.Distribute(f.pool, TrackNative)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if !d.Applied {
		t.Fatalf("expected distribution to apply")
	}
	expectAmount(t, "provider1 unclaimed", f.account(provider1).Native.Unclaimed, units(2))
	expectAmount(t, "provider2 unclaimed", f.account(provider2).Native.Unclaimed, units(2))
	expectAmount(t, "dust", d.Dust, big.NewInt(0))

	again, err := f.engine.Distribute(f.pool, TrackNative)
	if err != nil {
		t.Fatalf("second distribute: %v", err)
	}
	if again.Applied {
		t.Fatalf("second distribution should be a no-op")
	}
	expectAmount(t, "provider1 unclaimed after no-op", f.account(provider1).Native.Unclaimed, units(2))
}

func TestDistributePoolFeeWithMinipool(t *testing.T) {
	f := newFixture(t)
	fees := ZeroFees()
	fees.PoolNative = FeeFromPercent(50)
	if err := f.engine.SetFees(f.pool, owner, fees); err != nil {
		t.Fatalf("set fees: %v", err)
	}
	if err := f.engine.SetOperatorLimit(f.pool, owner, operator1, 1); err != nil {
		t.Fatalf("operator limit: %v", err)
	}
	if _, err := f.engine.RecordMinipoolCreated(f.pool, operator1); err != nil {
		t.Fatalf("minipool: %v", err)
	}
	f.fund(TrackNative, provider1, units(10))
	f.fund(TrackNative, provider2, units(10))
	f.deposit(TrackNative, provider1, units(1))
	f.deposit(TrackNative, provider2, units(1))
	f.reward(TrackNative, units(4))

	if _, err := f.engine.Distribute(f.pool, TrackNative); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	expectAmount(t, "owner", f.account(owner).Native.Unclaimed, units(2))
	expectAmount(t, "provider1", f.account(provider1).Native.Unclaimed, units(1))
	expectAmount(t, "provider2", f.account(provider2).Native.Unclaimed, units(1))
	expectAmount(t, "operator", f.account(operator1).Native.Unclaimed, big.NewInt(0))
	actors, _ := f.engine.Actors(f.pool)
	if actors[len(actors)-1] != owner {
		t.Fatalf("owner should be registered once credited, got %v", actors)
	}
}

func TestDistributeWithoutSharesCarriesRewardForward(t *testing.T) {
	f := newFixture(t)
	f.reward(TrackToken, units(3))
	d, err := f.engine.Distribute(f.pool, TrackToken)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if d.Applied {
		t.Fatalf("distribution without shares must be a no-op")
	}
	f.fund(TrackToken, provider1, units(10))
	f.deposit(TrackToken, provider1, units(1))
	pending, err := f.engine.Pending(f.pool, TrackToken)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	expectAmount(t, "pending", pending, units(3))
	if _, err := f.engine.Distribute(f.pool, TrackToken); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	expectAmount(t, "carried reward", f.account(provider1).Token.Unclaimed, units(3))
}

func TestDistributeDustRollsIntoNextReward(t *testing.T) {
	f := newFixture(t)
	f.fund(TrackToken, provider1, units(10))
	f.fund(TrackToken, provider2, units(10))
	f.deposit(TrackToken, provider1, big.NewInt(1))
	f.deposit(TrackToken, provider2, big.NewInt(2))
	f.reward(TrackToken, big.NewInt(10))

	d, err := f.engine.Distribute(f.pool, TrackToken)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	// 10*1/3 = 3, 10*2/3 = 6, one unit of dust stays in custody.
	expectAmount(t, "dust", d.Dust, big.NewInt(1))
	pending, _ := f.engine.Pending(f.pool, TrackToken)
	expectAmount(t, "pending dust", pending, big.NewInt(1))

	f.reward(TrackToken, big.NewInt(2))
	d, err = f.engine.Distribute(f.pool, TrackToken)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	expectAmount(t, "reward includes dust", d.Reward, big.NewInt(3))
	expectAmount(t, "provider1", f.account(provider1).Token.Unclaimed, big.NewInt(4))
	expectAmount(t, "provider2", f.account(provider2).Token.Unclaimed, big.NewInt(8))
}

func TestClaimPaysAndZeroes(t *testing.T) {
	f := newFixture(t)
	f.fund(TrackNative, provider1, units(10))
	f.fund(TrackNative, provider2, units(10))
	f.deposit(TrackNative, provider1, units(1))
	f.deposit(TrackNative, provider2, units(1))
	f.reward(TrackNative, units(4))
	if _, err := f.engine.Distribute(f.pool, TrackNative); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	before := f.balance(TrackNative, provider1)
	paid, err := f.engine.Claim(f.pool, TrackNative, provider1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectAmount(t, "paid", paid, units(2))
	expectAmount(t, "wallet", f.balance(TrackNative, provider1), new(big.Int).Add(before, units(2)))
	expectAmount(t, "unclaimed", f.account(provider1).Native.Unclaimed, big.NewInt(0))

	paid, err = f.engine.Claim(f.pool, TrackNative, provider1)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	expectAmount(t, "second claim", paid, big.NewInt(0))

	pending, _ := f.engine.Pending(f.pool, TrackNative)
	expectAmount(t, "pending after claim", pending, big.NewInt(0))
}

func TestClaimTransferFailureReverts(t *testing.T) {
	f := newFixture(t)
	f.fund(TrackNative, provider1, units(10))
	f.deposit(TrackNative, provider1, units(1))
	f.reward(TrackNative, units(1))
	if _, err := f.engine.Distribute(f.pool, TrackNative); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	f.bank.SetRejecting(provider1, true)
	if _, err := f.engine.Claim(f.pool, TrackNative, provider1); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	expectAmount(t, "unclaimed kept", f.account(provider1).Native.Unclaimed, units(1))
}

func TestFailedWriteMovesNoFunds(t *testing.T) {
	f := newFixture(t)
	f.fund(TrackNative, provider1, units(10))
	f.fund(TrackNative, provider2, units(10))
	f.deposit(TrackNative, provider1, units(1))
	f.deposit(TrackNative, provider2, units(1))
	f.reward(TrackNative, units(4))
	if _, err := f.engine.Distribute(f.pool, TrackNative); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if err := f.engine.SetBuyoutLimit(f.pool, TrackNative, provider2, units(1)); err != nil {
		t.Fatalf("buyout limit: %v", err)
	}
	wallet1 := f.balance(TrackNative, provider1)
	custody := f.balance(TrackNative, f.pool)

	diskFull := errors.New("disk full")
	f.state.putErr = diskFull
	if _, err := f.engine.Claim(f.pool, TrackNative, provider1); !errors.Is(err, diskFull) {
		t.Fatalf("claim: expected write error, got %v", err)
	}
	if _, err := f.engine.Buyout(f.pool, TrackNative, provider1, provider2, halfUnit()); !errors.Is(err, diskFull) {
		t.Fatalf("buyout: expected write error, got %v", err)
	}
	if _, err := f.engine.Deposit(f.pool, TrackNative, provider1, units(1)); !errors.Is(err, diskFull) {
		t.Fatalf("deposit: expected write error, got %v", err)
	}
	f.state.putErr = nil

	expectAmount(t, "wallet", f.balance(TrackNative, provider1), wallet1)
	expectAmount(t, "custody", f.balance(TrackNative, f.pool), custody)
	expectAmount(t, "unclaimed", f.account(provider1).Native.Unclaimed, units(2))
	expectAmount(t, "share", f.account(provider1).Native.Share, units(1))

	paid, err := f.engine.Claim(f.pool, TrackNative, provider1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectAmount(t, "paid once", paid, units(2))
	paid, err = f.engine.Claim(f.pool, TrackNative, provider1)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	expectAmount(t, "nothing left", paid, big.NewInt(0))
	pending, _ := f.engine.Pending(f.pool, TrackNative)
	expectAmount(t, "custody covers liabilities", pending, big.NewInt(0))
}

func TestTransferFailureRestoresStoredPool(t *testing.T) {
	f := newFixture(t)
	f.fund(TrackNative, provider1, units(10))
	f.deposit(TrackNative, provider1, units(1))
	f.reward(TrackNative, units(1))
	if _, err := f.engine.Distribute(f.pool, TrackNative); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	f.bank.SetRejecting(provider1, true)
	if _, err := f.engine.Claim(f.pool, TrackNative, provider1); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	stored, ok, err := f.state.SupernodePoolGet(f.pool)
	if err != nil || !ok {
		t.Fatalf("stored pool: %v %v", ok, err)
	}
	acc, _ := stored.Lookup(provider1)
	expectAmount(t, "stored unclaimed", acc.Native.Unclaimed, units(1))
}

func TestPauseBlocksMutationsButNotReads(t *testing.T) {
	f := newFixture(t)
	f.fund(TrackNative, provider1, units(10))
	f.engine.SetPauses(nativecommon.PauseSet{ModuleName: true})
	if _, err := f.engine.Deposit(f.pool, TrackNative, provider1, units(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if _, err := f.engine.Pool(f.pool); err != nil {
		t.Fatalf("reads must work while paused: %v", err)
	}
}

func TestUnknownPool(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Distribute(outsider, TrackNative); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestSweepSplitsDistributorBalance(t *testing.T) {
	f := newFixture(t)
	distributor := addr(8)
	protocol := addr(9)
	if err := f.engine.SetDistributor(f.pool, distributor); !errors.Is(err, ErrRecipientNotSet) {
		t.Fatalf("expected ErrRecipientNotSet, got %v", err)
	}
	f.engine.SetProtocolRecipient(protocol)
	if err := f.engine.SetDistributor(f.pool, distributor); err != nil {
		t.Fatalf("set distributor: %v", err)
	}
	if err := f.engine.SetAverageNodeFee(f.pool, FeeFromPercent(10)); err != nil {
		t.Fatalf("set node fee: %v", err)
	}
	f.fund(TrackNative, provider1, units(10))
	f.fund(TrackNative, provider2, units(10))
	f.deposit(TrackNative, provider1, big.NewInt(1))
	f.deposit(TrackNative, provider2, big.NewInt(4))
	if err := f.bank.Credit(bank.AssetNative, distributor, big.NewInt(100)); err != nil {
		t.Fatalf("fund distributor: %v", err)
	}

	d, err := f.engine.Distribute(f.pool, TrackNative)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	// half = 50, node share = 50 + 50*10% = 55, protocol = 45.
	expectAmount(t, "swept", d.Swept, big.NewInt(55))
	expectAmount(t, "protocol", f.balance(TrackNative, protocol), big.NewInt(45))
	expectAmount(t, "distributor", f.balance(TrackNative, distributor), big.NewInt(0))
	expectAmount(t, "provider1", f.account(provider1).Native.Unclaimed, big.NewInt(11))
	expectAmount(t, "provider2", f.account(provider2).Native.Unclaimed, big.NewInt(44))
}

func TestSetFeesValidation(t *testing.T) {
	f := newFixture(t)
	fees := ZeroFees()
	fees.PoolToken = FeeFromPercent(60)
	fees.OperatorToken = FeeFromPercent(50)
	if err := f.engine.SetFees(f.pool, owner, fees); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
	fees.OperatorToken = FeeFromPercent(40)
	if err := f.engine.SetFees(f.pool, outsider, fees); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SetFees(f.pool, owner, fees); err != nil {
		t.Fatalf("set fees: %v", err)
	}
	pool, _ := f.engine.Pool(f.pool)
	expectAmount(t, "pool token fee", pool.Fees.PoolToken, FeeFromPercent(60))
}
