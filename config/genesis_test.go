package config

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"supernode/core/state"
	"supernode/native/bank"
	"supernode/native/supernode"
)

func writeGenesis(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

const sampleGenesis = `pools:
  - owner: "0x0000000000000000000000000000000000000001"
    timezone: Europe/Berlin
    fees:
      pool_native: "0.05"
      operator_native: "0.1"
    limits:
      - provider: "0x0000000000000000000000000000000000000002"
        track: eth
        limit: "1000"
    operators:
      - operator: "0x0000000000000000000000000000000000000003"
        limit: 2
balances:
  - address: "0x0000000000000000000000000000000000000002"
    asset: native
    amount: "500"
`

func TestLoadGenesisAndApply(t *testing.T) {
	g, err := LoadGenesis(writeGenesis(t, sampleGenesis))
	require.NoError(t, err)
	require.Len(t, g.Pools, 1)

	manager := state.NewManager(nil)
	engine := supernode.NewEngine()
	engine.SetState(manager)
	ledger := bank.NewLedger(manager)
	engine.SetBank(ledger)

	created, err := g.Apply(engine, ledger)
	require.NoError(t, err)
	require.Len(t, created, 1)

	pool, err := engine.Pool(created[0])
	require.NoError(t, err)
	require.Equal(t, "Europe/Berlin", pool.Timezone)
	require.Equal(t, 0, pool.Fees.PoolNative.Cmp(supernode.FeeFromPercent(5)))
	require.Equal(t, 0, pool.Fees.OperatorNative.Cmp(supernode.FeeFromPercent(10)))

	provider := common.HexToAddress("0x0000000000000000000000000000000000000002")
	acc, err := engine.Account(created[0], provider)
	require.NoError(t, err)
	require.Equal(t, "1000", acc.Native.Limit.String())

	operator := common.HexToAddress("0x0000000000000000000000000000000000000003")
	opAcc, err := engine.Account(created[0], operator)
	require.NoError(t, err)
	require.Equal(t, uint64(2), opAcc.OperatorLimit)

	bal, err := ledger.Balance(bank.AssetNative, provider)
	require.NoError(t, err)
	require.Equal(t, 0, bal.Cmp(big.NewInt(500)))

	_, err = g.Apply(engine, ledger)
	require.True(t, errors.Is(err, ErrGenesisApplied))
}

func TestLoadGenesisRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"owner":   "pools:\n  - owner: nope\n",
		"track":   "pools:\n  - owner: \"0x0000000000000000000000000000000000000001\"\n    limits:\n      - provider: \"0x0000000000000000000000000000000000000002\"\n        track: btc\n        limit: \"1\"\n",
		"fees":    "pools:\n  - owner: \"0x0000000000000000000000000000000000000001\"\n    fees:\n      pool_token: \"0.7\"\n      operator_token: \"0.4\"\n",
		"asset":   "balances:\n  - address: \"0x0000000000000000000000000000000000000002\"\n    asset: gold\n    amount: \"1\"\n",
		"unknown": "pool:\n  - owner: x\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadGenesis(writeGenesis(t, contents))
			require.Error(t, err)
		})
	}
}

func TestParseFraction(t *testing.T) {
	v, err := ParseFraction("0.25")
	require.NoError(t, err)
	require.Equal(t, 0, v.Cmp(supernode.FeeFromPercent(25)))
	v, err = ParseFraction("")
	require.NoError(t, err)
	require.Equal(t, 0, v.Sign())
	_, err = ParseFraction("-0.1")
	require.Error(t, err)
}
