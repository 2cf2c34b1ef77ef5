package entity

import (
	"errors"
	"fmt"
)

var (
	ErrMissingUser           = errors.New("missing required field: user")
	ErrMissingCurrency       = errors.New("missing required field: currency")
	ErrMissingAmount         = errors.New("missing required field: amount")
	ErrMissingIdempotencyKey = errors.New("missing required field: idempotency_key")

	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidEnum         = errors.New("invalid enum value")

	ErrNotFound          = errors.New("balance not found")
	ErrCardNotFound      = errors.New("card not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeBalance   = errors.New("balance would become negative")

	// ErrStoreUnavailable marks transient infrastructure failures. It is the
	// only error class a caller should retry.
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrLockTimeout          = fmt.Errorf("%w: lock wait timeout", ErrStoreUnavailable)
	ErrIdempotencyKeyExists = errors.New("idempotency key already recorded")
)

// InsufficientFundsError reports a failed sufficiency check together with the
// balance observed under lock.
type InsufficientFundsError struct {
	Key       BalanceKey
	Available int64
	Requested int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s has %d, requested %d", e.Key, e.Available, e.Requested)
}

// Is lets errors.Is match the sentinel.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
