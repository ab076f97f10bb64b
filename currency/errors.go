package currency

import "errors"

var (
	// ErrInsufficientFunds indicates the source balance is below the amount.
	ErrInsufficientFunds = errors.New("currency: insufficient funds")

	// ErrInsufficientAllowance indicates the spender is not approved for the amount.
	ErrInsufficientAllowance = errors.New("currency: insufficient allowance")

	// ErrInvalidAccount indicates a null source or destination.
	ErrInvalidAccount = errors.New("currency: invalid account")

	// ErrBalanceOverflow indicates a credit would overflow the destination balance.
	ErrBalanceOverflow = errors.New("currency: balance overflow")
)
