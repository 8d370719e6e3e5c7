package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"supernode/native/supernode"
)

// decodeParams unmarshals the single params object into dst, writing an
// invalid-params error and returning false on failure.
func decodeParams(w http.ResponseWriter, req *RPCRequest, dst interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}

func invalidParam(w http.ResponseWriter, req *RPCRequest, field string, err error) {
	writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("invalid %s", field), err.Error())
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("address required")
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%q is not a hex address", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// parseAmount accepts a non-negative base-10 integer string.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not a base-10 integer", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseTrack(raw string) (supernode.Track, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("track required")
	}
	return supernode.ParseTrack(raw)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
