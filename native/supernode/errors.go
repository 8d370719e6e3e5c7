package supernode

import "errors"

// Ledger failures. Every one aborts the call with no state change.
var (
	ErrCapitalLimitExceeded              = errors.New("supernode: exceeds capital limit")
	ErrOperatorLimitExceeded             = errors.New("supernode: exceeds operator limit")
	ErrBuyerCapitalLimitExceeded         = errors.New("supernode: exceeds buyer capital limit")
	ErrBuyerInsufficientUnclaimedBalance = errors.New("supernode: buyer unclaimed balance too low")
	ErrBuyerBuyoutLimitExceeded          = errors.New("supernode: buyer buyout limit too low")
	ErrTransferFailed                    = errors.New("supernode: transfer failed")
	ErrUnauthorized                      = errors.New("supernode: caller not authorized")

	ErrInvalidAmount      = errors.New("supernode: amount must be positive")
	ErrInvalidTrack       = errors.New("supernode: unknown track")
	ErrInvalidFee         = errors.New("supernode: invalid fee")
	ErrInvalidTimezone    = errors.New("supernode: invalid timezone location")
	ErrPoolNotFound       = errors.New("supernode: pool not found")
	ErrPoolExists         = errors.New("supernode: pool already exists")
	ErrInsufficientShares = errors.New("supernode: seller share too low")
	ErrSelfBuyout         = errors.New("supernode: seller and buyer must differ")
	ErrNoActiveMinipools  = errors.New("supernode: operator has no active minipools")
	ErrAmountOverflow     = errors.New("supernode: amount exceeds 256 bits")
	ErrRecipientNotSet    = errors.New("supernode: protocol recipient not configured")

	errNilState = errors.New("supernode engine: state not configured")
	errNilBank  = errors.New("supernode engine: bank not configured")
)
