package shares

import "errors"

var (
	// ErrZeroTotalShares indicates a ledger was created with no supply.
	ErrZeroTotalShares = errors.New("shares: zero total shares")

	// ErrAlreadyMinted indicates the full supply has already been allocated.
	ErrAlreadyMinted = errors.New("shares: supply already minted")

	// ErrInsufficientBalance indicates the sender holds fewer shares than requested.
	ErrInsufficientBalance = errors.New("shares: insufficient balance")

	// ErrInvalidRecipient indicates a transfer or mint to the null account.
	ErrInvalidRecipient = errors.New("shares: invalid recipient")

	// ErrShareConservationViolation indicates balances no longer sum to the supply.
	ErrShareConservationViolation = errors.New("shares: share conservation violated")

	// ErrInvalidLedgerData indicates a serialized holder table is malformed.
	ErrInvalidLedgerData = errors.New("shares: invalid ledger data")
)
