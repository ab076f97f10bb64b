// Package shares implements a fixed-supply fractional ownership ledger.
//
// The supply is allocated once to a single holder and afterwards only moves
// between holders. Every balance change first calls a settlement Hook with
// the balances as they were before the change, so entitlements earned under
// the old balances can be finalized.
package shares

import (
	"fmt"
	"sort"

	"github.com/bitfsorg/rentshare-go/account"
)

// Hook is invoked for each party of a balance change before the change is
// applied. balance is the party's balance prior to the change.
type Hook interface {
	Settle(a account.Account, balance uint64) error
}

// Movement records shares moving between two accounts. Mints have From set
// to account.Null.
type Movement struct {
	From   account.Account
	To     account.Account
	Amount uint64
}

// Holding is one non-zero entry of the holder table.
type Holding struct {
	Account account.Account
	Shares  uint64
}

// Ledger tracks share balances. It is not safe for concurrent use; callers
// serialize access.
type Ledger struct {
	total    uint64
	balances map[account.Account]uint64
	minted   bool
}

// NewLedger creates an unminted ledger with the given fixed supply.
func NewLedger(totalShares uint64) (*Ledger, error) {
	if totalShares == 0 {
		return nil, ErrZeroTotalShares
	}
	return &Ledger{
		total:    totalShares,
		balances: make(map[account.Account]uint64),
	}, nil
}

// TotalShares returns the fixed supply.
func (l *Ledger) TotalShares() uint64 { return l.total }

// Minted reports whether the supply has been allocated.
func (l *Ledger) Minted() bool { return l.minted }

// BalanceOf returns the number of shares held by a.
func (l *Ledger) BalanceOf(a account.Account) uint64 { return l.balances[a] }

// Holders returns all accounts with a non-zero balance, sorted by account.
func (l *Ledger) Holders() []Holding {
	out := make([]Holding, 0, len(l.balances))
	for a, n := range l.balances {
		if n > 0 {
			out = append(out, Holding{Account: a, Shares: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

// Balances returns a copy of the holder table.
func (l *Ledger) Balances() map[account.Account]uint64 {
	out := make(map[account.Account]uint64, len(l.balances))
	for a, n := range l.balances {
		if n > 0 {
			out[a] = n
		}
	}
	return out
}

// Mint allocates the whole supply to to. The hook is called with a zero
// balance so the recipient's settlement snapshot starts at the current
// accumulator value.
func (l *Ledger) Mint(to account.Account, hook Hook) (Movement, error) {
	if l.minted {
		return Movement{}, ErrAlreadyMinted
	}
	if to.IsNull() {
		return Movement{}, fmt.Errorf("%w: mint to null account", ErrInvalidRecipient)
	}
	if hook != nil {
		if err := hook.Settle(to, 0); err != nil {
			return Movement{}, err
		}
	}
	l.balances[to] = l.total
	l.minted = true
	return Movement{From: account.Null, To: to, Amount: l.total}, nil
}

// Transfer moves amount shares from from to to. Both parties are settled
// with their pre-transfer balances before anything changes. A zero amount
// or a transfer to oneself is validated and then left as a no-op.
func (l *Ledger) Transfer(from, to account.Account, amount uint64, hook Hook) (Movement, error) {
	if to.IsNull() {
		return Movement{}, fmt.Errorf("%w: transfer to null account", ErrInvalidRecipient)
	}
	fromBal := l.balances[from]
	if amount > fromBal {
		return Movement{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, fromBal, amount)
	}
	mv := Movement{From: from, To: to, Amount: amount}
	if amount == 0 || from == to {
		return mv, nil
	}

	toBal := l.balances[to]
	if hook != nil {
		if err := hook.Settle(from, fromBal); err != nil {
			return Movement{}, err
		}
		if err := hook.Settle(to, toBal); err != nil {
			return Movement{}, err
		}
	}

	if fromBal == amount {
		delete(l.balances, from)
	} else {
		l.balances[from] = fromBal - amount
	}
	l.balances[to] = toBal + amount
	return mv, nil
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		total:    l.total,
		balances: make(map[account.Account]uint64, len(l.balances)),
		minted:   l.minted,
	}
	for a, n := range l.balances {
		c.balances[a] = n
	}
	return c
}

// Restore rebuilds a ledger from a persisted holder table. An empty table
// yields an unminted ledger.
func Restore(totalShares uint64, balances map[account.Account]uint64) (*Ledger, error) {
	l, err := NewLedger(totalShares)
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return l, nil
	}
	if err := ValidateConservation(totalShares, balances); err != nil {
		return nil, err
	}
	for a, n := range balances {
		if a.IsNull() {
			return nil, fmt.Errorf("%w: null account holds %d shares", ErrInvalidLedgerData, n)
		}
		if n > 0 {
			l.balances[a] = n
		}
	}
	l.minted = true
	return l, nil
}
