package lease

import (
	"errors"

	"github.com/bitfsorg/rentshare-go/accrual"
	"github.com/bitfsorg/rentshare-go/schedule"
	"github.com/bitfsorg/rentshare-go/shares"
)

// Component errors surfaced unchanged by the coordinator.
var (
	ErrAlreadyActivated    = schedule.ErrAlreadyActivated
	ErrInsufficientBalance = shares.ErrInsufficientBalance
	ErrInvalidRecipient    = shares.ErrInvalidRecipient
	ErrNothingToClaim      = accrual.ErrNothingToClaim
)

var (
	// ErrInvalidParams indicates the lease parameters fail validation.
	ErrInvalidParams = errors.New("lease: invalid parameters")

	// ErrMissingDependency indicates a required collaborator was not supplied.
	ErrMissingDependency = errors.New("lease: missing dependency")

	// ErrNotActivated indicates an operation that needs an active lease.
	ErrNotActivated = errors.New("lease: not activated")

	// ErrNotPayer indicates a payment attempt by someone other than the payer.
	ErrNotPayer = errors.New("lease: caller is not the payer")

	// ErrPaymentTransferFailed indicates the currency pull from the payer was rejected.
	ErrPaymentTransferFailed = errors.New("lease: payment transfer failed")

	// ErrPayoutFailed indicates the currency push to a claimer was rejected.
	ErrPayoutFailed = errors.New("lease: payout failed")

	// ErrCustodyNotTransferred indicates the asset did not end up in the coordinator's custody.
	ErrCustodyNotTransferred = errors.New("lease: asset custody not transferred")

	// ErrSnapshotMismatch indicates a stored snapshot belongs to a different lease.
	ErrSnapshotMismatch = errors.New("lease: stored snapshot does not match parameters")

	// ErrPersistFailed indicates the operation took effect but could not be saved.
	ErrPersistFailed = errors.New("lease: persist failed")
)
