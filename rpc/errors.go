package rpc

import (
	"errors"
	"net/http"

	"supernode/native/bank"
	nativecommon "supernode/native/common"
	"supernode/native/supernode"
)

type ledgerErrorMapping struct {
	err    error
	status int
	code   int
	reason string
}

// ledgerErrors maps engine sentinels onto JSON-RPC codes. The reason string
// is stable and lets clients branch without parsing messages.
var ledgerErrors = []ledgerErrorMapping{
	{supernode.ErrCapitalLimitExceeded, http.StatusConflict, codeLedgerRejected, "CapitalLimitExceeded"},
	{supernode.ErrOperatorLimitExceeded, http.StatusConflict, codeLedgerRejected, "OperatorLimitExceeded"},
	{supernode.ErrBuyerCapitalLimitExceeded, http.StatusConflict, codeLedgerRejected, "BuyerCapitalLimitExceeded"},
	{supernode.ErrBuyerInsufficientUnclaimedBalance, http.StatusConflict, codeLedgerRejected, "BuyerInsufficientUnclaimedBalance"},
	{supernode.ErrBuyerBuyoutLimitExceeded, http.StatusConflict, codeLedgerRejected, "BuyerBuyoutLimitExceeded"},
	{supernode.ErrInsufficientShares, http.StatusConflict, codeLedgerRejected, "InsufficientShares"},
	{supernode.ErrNoActiveMinipools, http.StatusConflict, codeLedgerRejected, "NoActiveMinipools"},
	{supernode.ErrPoolExists, http.StatusConflict, codeLedgerRejected, "PoolExists"},
	{supernode.ErrRecipientNotSet, http.StatusConflict, codeLedgerRejected, "RecipientNotSet"},
	{supernode.ErrTransferFailed, http.StatusConflict, codeTransferFailed, "TransferFailed"},
	{supernode.ErrUnauthorized, http.StatusForbidden, codeUnauthorized, "Unauthorized"},
	{supernode.ErrPoolNotFound, http.StatusNotFound, codeNotFound, "PoolNotFound"},
	{supernode.ErrInvalidAmount, http.StatusBadRequest, codeInvalidParams, "InvalidAmount"},
	{supernode.ErrAmountOverflow, http.StatusBadRequest, codeInvalidParams, "AmountOverflow"},
	{supernode.ErrInvalidTrack, http.StatusBadRequest, codeInvalidParams, "InvalidTrack"},
	{supernode.ErrInvalidFee, http.StatusBadRequest, codeInvalidParams, "InvalidFee"},
	{supernode.ErrInvalidTimezone, http.StatusBadRequest, codeInvalidParams, "InvalidTimezone"},
	{supernode.ErrSelfBuyout, http.StatusBadRequest, codeInvalidParams, "SelfBuyout"},
	{bank.ErrUnknownAsset, http.StatusBadRequest, codeInvalidParams, "UnknownAsset"},
	{bank.ErrInvalidAmount, http.StatusBadRequest, codeInvalidParams, "InvalidAmount"},
	{bank.ErrBalanceOverflow, http.StatusBadRequest, codeInvalidParams, "AmountOverflow"},
	{bank.ErrInsufficientBalance, http.StatusConflict, codeTransferFailed, "InsufficientBalance"},
	{nativecommon.ErrModulePaused, http.StatusServiceUnavailable, codeModulePaused, "ModulePaused"},
}

func classifyError(err error) (status, code int, reason string) {
	for _, m := range ledgerErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.reason
		}
	}
	return http.StatusInternalServerError, codeServerError, "Internal"
}

// writeLedgerError reports an engine error. Unclassified errors are logged and
// returned without internal detail.
func (s *Server) writeLedgerError(w http.ResponseWriter, req *RPCRequest, err error) {
	status, code, reason := classifyError(err)
	if code == codeServerError {
		s.logger.Error("ledger operation failed", "method", req.Method, "error", err)
		writeError(w, status, req.ID, code, "internal error", nil)
		return
	}
	writeError(w, status, req.ID, code, err.Error(), map[string]string{"reason": reason})
}
