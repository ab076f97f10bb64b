package accrual

import "errors"

var (
	// ErrZeroTotalShares indicates a payment against an empty supply.
	ErrZeroTotalShares = errors.New("accrual: zero total shares")

	// ErrAccumulatorOverflow indicates a value left the representable range.
	ErrAccumulatorOverflow = errors.New("accrual: accumulator overflow")

	// ErrNothingToClaim indicates a claim with no entitlement.
	ErrNothingToClaim = errors.New("accrual: nothing to claim")

	// ErrInvalidState indicates a persisted accumulator is inconsistent.
	ErrInvalidState = errors.New("accrual: invalid accumulator state")
)
