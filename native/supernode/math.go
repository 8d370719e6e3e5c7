package supernode

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Denominator is the fixed-point base for fee fractions (1e18 == 100%).
var Denominator = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}

// mulDiv returns floor(a*b/c). c must be positive.
func mulDiv(a, b, c *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c)
}

// checkedAdd returns a+b, failing when the sum leaves the uint256 range.
func checkedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(newBigInt(a), newBigInt(b))
	if _, overflow := uint256.FromBig(sum); overflow {
		return nil, ErrAmountOverflow
	}
	return sum, nil
}

func validAmount(v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return ErrAmountOverflow
	}
	return nil
}

// validLimit accepts zero; limits may be cleared.
func validLimit(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return ErrAmountOverflow
	}
	return nil
}
