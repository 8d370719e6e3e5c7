package config

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"supernode/native/bank"
	"supernode/native/supernode"
)

// Genesis seeds a fresh node with pools and wallet balances.
type Genesis struct {
	Pools    []GenesisPool    `yaml:"pools"`
	Balances []GenesisBalance `yaml:"balances"`
}

// GenesisPool describes one pool to create at startup.
type GenesisPool struct {
	Owner     string            `yaml:"owner"`
	Timezone  string            `yaml:"timezone"`
	Fees      GenesisFees       `yaml:"fees"`
	Limits    []GenesisLimit    `yaml:"limits"`
	Operators []GenesisOperator `yaml:"operators"`
}

// GenesisFees holds fee fractions as decimals, e.g. "0.05" for five percent.
type GenesisFees struct {
	PoolNative     string `yaml:"pool_native"`
	PoolToken      string `yaml:"pool_token"`
	OperatorNative string `yaml:"operator_native"`
	OperatorToken  string `yaml:"operator_token"`
}

// GenesisLimit sets a provider's capital limit on one track.
type GenesisLimit struct {
	Provider string `yaml:"provider"`
	Track    string `yaml:"track"`
	Limit    string `yaml:"limit"`
}

// GenesisOperator sets an operator's minipool cap.
type GenesisOperator struct {
	Operator string `yaml:"operator"`
	Limit    uint64 `yaml:"limit"`
}

// GenesisBalance credits a wallet.
type GenesisBalance struct {
	Address string `yaml:"address"`
	Asset   string `yaml:"asset"`
	Amount  string `yaml:"amount"`
}

// LoadGenesis reads and validates a YAML genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Genesis
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return &g, nil
}

// Validate parses every field without applying anything.
func (g *Genesis) Validate() error {
	for i, p := range g.Pools {
		if _, err := parseAddress(p.Owner); err != nil {
			return fmt.Errorf("pools[%d].owner: %w", i, err)
		}
		fees, err := p.Fees.Parse()
		if err != nil {
			return fmt.Errorf("pools[%d].fees: %w", i, err)
		}
		if err := fees.Validate(); err != nil {
			return fmt.Errorf("pools[%d].fees: %w", i, err)
		}
		for j, l := range p.Limits {
			if _, err := parseAddress(l.Provider); err != nil {
				return fmt.Errorf("pools[%d].limits[%d].provider: %w", i, j, err)
			}
			if _, err := supernode.ParseTrack(l.Track); err != nil {
				return fmt.Errorf("pools[%d].limits[%d].track: %w", i, j, err)
			}
			if _, err := parseAmount(l.Limit); err != nil {
				return fmt.Errorf("pools[%d].limits[%d].limit: %w", i, j, err)
			}
		}
		for j, o := range p.Operators {
			if _, err := parseAddress(o.Operator); err != nil {
				return fmt.Errorf("pools[%d].operators[%d].operator: %w", i, j, err)
			}
		}
	}
	for i, b := range g.Balances {
		if _, err := parseAddress(b.Address); err != nil {
			return fmt.Errorf("balances[%d].address: %w", i, err)
		}
		if _, err := bank.NormalizeAsset(b.Asset); err != nil {
			return fmt.Errorf("balances[%d].asset: %w", i, err)
		}
		if _, err := parseAmount(b.Amount); err != nil {
			return fmt.Errorf("balances[%d].amount: %w", i, err)
		}
	}
	return nil
}

// Parse converts the decimal fee fractions into Denominator units.
func (f GenesisFees) Parse() (supernode.Fees, error) {
	fees := supernode.ZeroFees()
	targets := []struct {
		raw string
		dst **big.Int
	}{
		{f.PoolNative, &fees.PoolNative},
		{f.PoolToken, &fees.PoolToken},
		{f.OperatorNative, &fees.OperatorNative},
		{f.OperatorToken, &fees.OperatorToken},
	}
	for _, t := range targets {
		v, err := ParseFraction(t.raw)
		if err != nil {
			return fees, err
		}
		*t.dst = v
	}
	return fees, nil
}

// ParseFraction converts a decimal such as "0.05" into Denominator units,
// truncating below 1e-18. Empty strings read as zero.
func ParseFraction(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return big.NewInt(0), nil
	}
	r, ok := new(big.Rat).SetString(raw)
	if !ok || r.Sign() < 0 {
		return nil, fmt.Errorf("invalid fraction %q", raw)
	}
	r.Mul(r, new(big.Rat).SetInt(supernode.Denominator))
	return new(big.Int).Quo(r.Num(), r.Denom()), nil
}

// GenesisEngine is the subset of the ledger engine genesis needs.
type GenesisEngine interface {
	Pools() ([]common.Address, error)
	CreatePool(owner common.Address, timezone string) (*supernode.Pool, error)
	SetFees(pool, caller common.Address, fees supernode.Fees) error
	SetLimit(pool, caller common.Address, track supernode.Track, provider common.Address, limit *big.Int) error
	SetOperatorLimit(pool, caller, operator common.Address, limit uint64) error
}

// GenesisBank credits wallet balances.
type GenesisBank interface {
	Credit(asset string, addr common.Address, amount *big.Int) error
}

// ErrGenesisApplied is returned when the ledger already holds pools.
var ErrGenesisApplied = errors.New("genesis: ledger already initialised")

// Apply creates the configured pools and balances. It refuses to run on a
// ledger that already has pools, and returns the created pool addresses.
func (g *Genesis) Apply(engine GenesisEngine, ledger GenesisBank) ([]common.Address, error) {
	existing, err := engine.Pools()
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrGenesisApplied
	}
	for _, b := range g.Balances {
		addr, _ := parseAddress(b.Address)
		amount, _ := parseAmount(b.Amount)
		if amount.Sign() == 0 {
			continue
		}
		if err := ledger.Credit(b.Asset, addr, amount); err != nil {
			return nil, fmt.Errorf("genesis balance %s: %w", b.Address, err)
		}
	}
	created := make([]common.Address, 0, len(g.Pools))
	for _, p := range g.Pools {
		owner, _ := parseAddress(p.Owner)
		tz := p.Timezone
		if strings.TrimSpace(tz) == "" {
			tz = "UTC"
		}
		pool, err := engine.CreatePool(owner, tz)
		if err != nil {
			return nil, err
		}
		fees, _ := p.Fees.Parse()
		if err := engine.SetFees(pool.Address, owner, fees); err != nil {
			return nil, err
		}
		for _, l := range p.Limits {
			provider, _ := parseAddress(l.Provider)
			track, _ := supernode.ParseTrack(l.Track)
			limit, _ := parseAmount(l.Limit)
			if err := engine.SetLimit(pool.Address, owner, track, provider, limit); err != nil {
				return nil, err
			}
		}
		for _, o := range p.Operators {
			operator, _ := parseAddress(o.Operator)
			if err := engine.SetOperatorLimit(pool.Address, owner, operator, o.Limit); err != nil {
				return nil, err
			}
		}
		created = append(created, pool.Address)
	}
	return created, nil
}

func parseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}
