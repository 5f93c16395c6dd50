package saga

import "errors"

var (
	// ErrValidation marks a malformed request rejected before any side effect.
	ErrValidation = errors.New("invalid payment request")
	// ErrLedger marks a failed debit; the order stays SUBMITTED and the
	// caller may retry the whole submission with the same idempotency key.
	ErrLedger = errors.New("ledger operation failed")
	// ErrProvider marks a provider failure; the debit has already been
	// compensated and the order is FAILED when this is returned.
	ErrProvider = errors.New("provider call failed")
)
