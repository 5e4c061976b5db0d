package domain

import "errors"

var (
	ErrNotFound                 = errors.New("not found")
	ErrAccountNotFound          = errors.New("account not found")
	ErrDuplicateKey             = errors.New("duplicate key")
	ErrInvalidTransactionState  = errors.New("transaction already in terminal state")
	ErrInvalidAmount            = errors.New("amount must be greater than zero")
	ErrInvalidCurrency          = errors.New("invalid currency")
	ErrCurrencyMismatch         = errors.New("currency mismatch")
	ErrFeeExceedsAmount         = errors.New("fee exceeds amount")
	ErrMissingParty             = errors.New("required party account missing")
	ErrInvalidIdempotencyKey    = errors.New("invalid idempotency key")
	ErrInvalidExternalReference = errors.New("invalid external reference")
	ErrUnbalancedEntries        = errors.New("ledger entries do not balance")
	ErrVersionConflict          = errors.New("optimistic lock conflict")
	ErrConfirmationMismatch     = errors.New("confirmation token mismatch")
	ErrConfirmationExpired      = errors.New("confirmation token expired")
)
