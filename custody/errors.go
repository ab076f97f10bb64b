package custody

import "errors"

var (
	// ErrEmptyDescription indicates an asset minted without a description.
	ErrEmptyDescription = errors.New("custody: expecting non-empty description")

	// ErrInvalidOwner indicates an asset minted or moved to the null account.
	ErrInvalidOwner = errors.New("custody: invalid owner")

	// ErrAlreadyMinted indicates the asset id is already registered.
	ErrAlreadyMinted = errors.New("custody: asset already minted")

	// ErrUnknownAsset indicates the asset id is not registered.
	ErrUnknownAsset = errors.New("custody: unknown asset")

	// ErrNotOwner indicates the caller does not own the asset.
	ErrNotOwner = errors.New("custody: caller is not the owner")

	// ErrNotApproved indicates the operator may not move the asset.
	ErrNotApproved = errors.New("custody: operator not approved")
)
