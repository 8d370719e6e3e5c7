package exports

import "math/big"

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
