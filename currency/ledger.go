// Package currency defines the payment currency the lease collects in and
// pays out with, plus an in-memory balance and allowance ledger.
package currency

import (
	"context"

	"github.com/bitfsorg/rentshare-go/account"
)

// Ledger is the currency interface a coordinator is given. Implementations
// are bound to the coordinator's own account: Pull moves funds the payer
// has approved for it, and Push pays out of its own balance.
type Ledger interface {
	// Pull moves amount from payer to to using payer's allowance for the
	// bound account.
	Pull(ctx context.Context, payer, to account.Account, amount uint64) error

	// Push moves amount from the bound account to to.
	Push(ctx context.Context, to account.Account, amount uint64) error
}
