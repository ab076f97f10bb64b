// Package account defines the identities that hold shares, pay rent and
// receive payouts.
//
// An Account is an opaque string. Real deployments use Base58Check P2PKH
// addresses; the empty string is the null account and is never a valid
// recipient.
package account

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
)

// Account identifies a share holder, the payer or the coordinator itself.
type Account string

// Null is the zero account. Minting is modelled as a transfer from Null.
const Null Account = ""

// IsNull reports whether a is the null account.
func (a Account) IsNull() bool { return a == Null }

// String implements fmt.Stringer.
func (a Account) String() string {
	if a.IsNull() {
		return "<null>"
	}
	return string(a)
}

// ParseAddress validates s as a P2PKH address and returns it as an Account.
func ParseAddress(s string) (Account, error) {
	if s == "" {
		return Null, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	addr, err := script.NewAddressFromString(s)
	if err != nil {
		return Null, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
	}
	if len(addr.PublicKeyHash) != 20 {
		return Null, fmt.Errorf("%w: %q: public key hash must be 20 bytes", ErrInvalidAddress, s)
	}
	return Account(addr.AddressString), nil
}
