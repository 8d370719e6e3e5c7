package supernode

import (
	"fmt"
	"math/big"
)

// Fees holds the four fee fractions, each expressed over Denominator.
type Fees struct {
	PoolNative     *big.Int
	PoolToken      *big.Int
	OperatorNative *big.Int
	OperatorToken  *big.Int
}

// ZeroFees returns a fee set with every rate at zero.
func ZeroFees() Fees {
	return Fees{
		PoolNative:     big.NewInt(0),
		PoolToken:      big.NewInt(0),
		OperatorNative: big.NewInt(0),
		OperatorToken:  big.NewInt(0),
	}
}

// Pool returns the pool-operator fee for track t.
func (f Fees) Pool(t Track) *big.Int {
	if t == TrackToken {
		return newBigInt(f.PoolToken)
	}
	return newBigInt(f.PoolNative)
}

// Operator returns the per-minipool-operator fee for track t.
func (f Fees) Operator(t Track) *big.Int {
	if t == TrackToken {
		return newBigInt(f.OperatorToken)
	}
	return newBigInt(f.OperatorNative)
}

// Clone returns a deep copy with nil rates normalised to zero.
func (f Fees) Clone() Fees {
	return Fees{
		PoolNative:     newBigInt(f.PoolNative),
		PoolToken:      newBigInt(f.PoolToken),
		OperatorNative: newBigInt(f.OperatorNative),
		OperatorToken:  newBigInt(f.OperatorToken),
	}
}

// Validate checks every rate lies in [0, Denominator] and that the two cuts of
// a track never exceed the whole reward.
func (f Fees) Validate() error {
	named := []struct {
		name string
		v    *big.Int
	}{
		{"pool native", f.PoolNative},
		{"pool token", f.PoolToken},
		{"operator native", f.OperatorNative},
		{"operator token", f.OperatorToken},
	}
	for _, fee := range named {
		v := newBigInt(fee.v)
		if v.Sign() < 0 || v.Cmp(Denominator) > 0 {
			return fmt.Errorf("%w: %s fee %s outside [0, %s]", ErrInvalidFee, fee.name, v, Denominator)
		}
	}
	for _, t := range Tracks {
		sum := new(big.Int).Add(f.Pool(t), f.Operator(t))
		if sum.Cmp(Denominator) > 0 {
			return fmt.Errorf("%w: %s fees sum to %s", ErrInvalidFee, t, sum)
		}
	}
	return nil
}

// FeeFromPercent converts a whole-number percentage into a Denominator fraction.
func FeeFromPercent(percent int64) *big.Int {
	return mulDiv(big.NewInt(percent), Denominator, big.NewInt(100))
}
