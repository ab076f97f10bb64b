// Package custody defines the registry of the leased asset and an
// in-memory implementation of it.
package custody

import (
	"context"
	"strconv"

	"github.com/bitfsorg/rentshare-go/account"
)

// AssetID identifies a leased asset in its registry.
type AssetID uint64

// String implements fmt.Stringer.
func (id AssetID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Provider is the custody interface a coordinator is given, bound to the
// coordinator's own account.
type Provider interface {
	// TransferCustodyIn moves asset id from from to the bound account.
	TransferCustodyIn(ctx context.Context, id AssetID, from account.Account) error

	// CustodyOwner returns the current custodian of record of id.
	CustodyOwner(ctx context.Context, id AssetID) (account.Account, error)
}
