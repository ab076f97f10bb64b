package currency

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitfsorg/rentshare-go/account"
)

type allowanceKey struct {
	owner   account.Account
	spender account.Account
}

// MemLedger is an in-memory balance and allowance ledger with the usual
// fungible-token semantics. It is safe for concurrent use.
type MemLedger struct {
	mu         sync.RWMutex
	balances   map[account.Account]uint64
	allowances map[allowanceKey]uint64
}

// NewMemLedger creates an empty ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		balances:   make(map[account.Account]uint64),
		allowances: make(map[allowanceKey]uint64),
	}
}

// Faucet credits amount to to out of thin air.
func (m *MemLedger) Faucet(to account.Account, amount uint64) error {
	if to.IsNull() {
		return fmt.Errorf("%w: faucet to null account", ErrInvalidAccount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credit(to, amount)
}

// BalanceOf returns a's balance.
func (m *MemLedger) BalanceOf(a account.Account) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[a]
}

// Allowance returns how much spender may still move on owner's behalf.
func (m *MemLedger) Allowance(owner, spender account.Account) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allowances[allowanceKey{owner, spender}]
}

// IncreaseAllowance raises spender's allowance over owner's funds, saturating
// at the maximum value.
func (m *MemLedger) IncreaseAllowance(owner, spender account.Account, amount uint64) error {
	if owner.IsNull() || spender.IsNull() {
		return fmt.Errorf("%w: allowance with null account", ErrInvalidAccount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := allowanceKey{owner, spender}
	cur := m.allowances[k]
	if amount > ^uint64(0)-cur {
		m.allowances[k] = ^uint64(0)
	} else {
		m.allowances[k] = cur + amount
	}
	return nil
}

// Transfer moves amount from from to to.
func (m *MemLedger) Transfer(from, to account.Account, amount uint64) error {
	if from.IsNull() || to.IsNull() {
		return fmt.Errorf("%w: transfer with null account", ErrInvalidAccount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(from, to, amount)
}

// TransferFrom moves amount from from to to, spending spender's allowance.
func (m *MemLedger) TransferFrom(spender, from, to account.Account, amount uint64) error {
	if from.IsNull() || to.IsNull() {
		return fmt.Errorf("%w: transfer with null account", ErrInvalidAccount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := allowanceKey{from, spender}
	if have := m.allowances[k]; have < amount {
		return fmt.Errorf("%w: %s may spend %d of %s, need %d", ErrInsufficientAllowance, spender, have, from, amount)
	}
	if err := m.move(from, to, amount); err != nil {
		return err
	}
	m.allowances[k] -= amount
	return nil
}

// For returns a Ledger bound to self.
func (m *MemLedger) For(self account.Account) Ledger {
	return &boundLedger{mem: m, self: self}
}

func (m *MemLedger) move(from, to account.Account, amount uint64) error {
	have := m.balances[from]
	if have < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, from, have, amount)
	}
	if from == to {
		return nil
	}
	if m.balances[to] > ^uint64(0)-amount {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, to)
	}
	m.balances[from] = have - amount
	m.balances[to] += amount
	return nil
}

func (m *MemLedger) credit(to account.Account, amount uint64) error {
	if m.balances[to] > ^uint64(0)-amount {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, to)
	}
	m.balances[to] += amount
	return nil
}

type boundLedger struct {
	mem  *MemLedger
	self account.Account
}

func (b *boundLedger) Pull(ctx context.Context, payer, to account.Account, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.mem.TransferFrom(b.self, payer, to, amount)
}

func (b *boundLedger) Push(ctx context.Context, to account.Account, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.mem.Transfer(b.self, to, amount)
}

var _ Ledger = (*boundLedger)(nil)
