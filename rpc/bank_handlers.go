package rpc

import (
	"net/http"

	"supernode/native/bank"
)

type bankParams struct {
	Asset   string `json:"asset"`
	Address string `json:"address"`
	Amount  string `json:"amount,omitempty"`
}

type balanceResult struct {
	Asset   string `json:"asset"`
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) decodeBankParams(w http.ResponseWriter, req *RPCRequest) (bankParams, bool) {
	var params bankParams
	if s.bank == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "bank not configured", nil)
		return params, false
	}
	if !decodeParams(w, req, &params) {
		return params, false
	}
	asset, err := bank.NormalizeAsset(params.Asset)
	if err != nil {
		invalidParam(w, req, "asset", err)
		return params, false
	}
	params.Asset = asset
	return params, true
}

func (s *Server) handleBankBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, ok := s.decodeBankParams(w, req)
	if !ok {
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		invalidParam(w, req, "address", err)
		return
	}
	balance, err := s.bank.Balance(params.Asset, addr)
	if err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, balanceResult{Asset: params.Asset, Address: addr.Hex(), Balance: bigString(balance)})
}

// handleBankFund mints into a wallet. It stands in for the external chain on
// development networks.
func (s *Server) handleBankFund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, ok := s.decodeBankParams(w, req)
	if !ok {
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		invalidParam(w, req, "address", err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		invalidParam(w, req, "amount", err)
		return
	}
	if err := s.bank.Credit(params.Asset, addr, amount); err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	balance, err := s.bank.Balance(params.Asset, addr)
	if err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	s.logger.Info("wallet funded", "asset", params.Asset, "address", addr.Hex(), "amount", amount.String())
	writeResult(w, req.ID, balanceResult{Asset: params.Asset, Address: addr.Hex(), Balance: bigString(balance)})
}
