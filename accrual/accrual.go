// Package accrual distributes lump-sum payments to share holders in O(1)
// per payment and per balance change.
//
// A global accumulator records the cumulative payment per share, scaled by
// Scale. Each holder keeps the accumulator value it was last settled at and
// the amount owed so far. Settling credits
//
//	balance * (accPerShare - lastAcc) / Scale
//
// and must happen with the balance as it was before any change.
package accrual

import (
	"fmt"

	"lukechampine.com/uint128"

	"github.com/bitfsorg/rentshare-go/account"
)

// Scale is the fixed-point factor applied to accPerShare.
const Scale uint64 = 1_000_000_000_000_000_000

var scale = uint128.From64(Scale)

// Position is a holder's settlement snapshot.
type Position struct {
	LastAcc   uint128.Uint128
	Unclaimed uint64
}

// State is the exportable form of an Accumulator.
type State struct {
	AccPerShare uint128.Uint128
	Positions   map[account.Account]Position
}

// Accumulator owns accPerShare and every holder's Position. Balances are
// owned by the share ledger and passed in. Not safe for concurrent use.
type Accumulator struct {
	totalShares uint64
	acc         uint128.Uint128
	positions   map[account.Account]Position
}

// New returns an empty accumulator for a supply of totalShares.
func New(totalShares uint64) *Accumulator {
	return &Accumulator{
		totalShares: totalShares,
		positions:   make(map[account.Account]Position),
	}
}

// TotalShares returns the supply payments are divided by.
func (a *Accumulator) TotalShares() uint64 { return a.totalShares }

// AccPerShare returns the current scaled payment-per-share.
func (a *Accumulator) AccPerShare() uint128.Uint128 { return a.acc }

// OnPayment records a payment of amount. It returns the dust: the part of
// amount the floor division leaves unattributed to any share, which is at
// most totalShares-1.
func (a *Accumulator) OnPayment(amount uint64) (uint64, error) {
	if a.totalShares == 0 {
		return 0, ErrZeroTotalShares
	}
	scaled := uint128.From64(amount).Mul64(Scale)
	delta := scaled.Div64(a.totalShares)
	if a.acc.Cmp(uint128.Max.Sub(delta)) > 0 {
		return 0, fmt.Errorf("%w: payment %d", ErrAccumulatorOverflow, amount)
	}
	a.acc = a.acc.Add(delta)

	distributed := delta.Mul64(a.totalShares).Div(scale)
	return amount - distributed.Lo, nil
}

// pending returns what balance earned since pos was last settled.
func (a *Accumulator) pending(pos Position, balance uint64) (uint64, error) {
	if balance == 0 {
		return 0, nil
	}
	diff := a.acc.Sub(pos.LastAcc)
	if diff.Cmp(uint128.Max.Div64(balance)) > 0 {
		return 0, fmt.Errorf("%w: pending for balance %d", ErrAccumulatorOverflow, balance)
	}
	p := diff.Mul64(balance).Div(scale)
	if p.Hi != 0 {
		return 0, fmt.Errorf("%w: pending %s", ErrAccumulatorOverflow, p)
	}
	return p.Lo, nil
}

// Settle credits holder's pending entitlement and moves its snapshot to
// the current accumulator. balance must be the pre-change balance.
func (a *Accumulator) Settle(holder account.Account, balance uint64) error {
	pos := a.positions[holder]
	p, err := a.pending(pos, balance)
	if err != nil {
		return err
	}
	if pos.Unclaimed > ^uint64(0)-p {
		return fmt.Errorf("%w: unclaimed for %s", ErrAccumulatorOverflow, holder)
	}
	pos.Unclaimed += p
	pos.LastAcc = a.acc
	a.positions[holder] = pos
	return nil
}

// Claim settles holder and withdraws everything it is owed.
func (a *Accumulator) Claim(holder account.Account, balance uint64) (uint64, error) {
	if err := a.Settle(holder, balance); err != nil {
		return 0, err
	}
	pos := a.positions[holder]
	if pos.Unclaimed == 0 {
		return 0, ErrNothingToClaim
	}
	amount := pos.Unclaimed
	pos.Unclaimed = 0
	a.positions[holder] = pos
	return amount, nil
}

// Unclaimed returns holder's current entitlement including what has not
// been settled yet. It does not modify state.
func (a *Accumulator) Unclaimed(holder account.Account, balance uint64) (uint64, error) {
	pos := a.positions[holder]
	p, err := a.pending(pos, balance)
	if err != nil {
		return 0, err
	}
	if pos.Unclaimed > ^uint64(0)-p {
		return 0, fmt.Errorf("%w: unclaimed for %s", ErrAccumulatorOverflow, holder)
	}
	return pos.Unclaimed + p, nil
}

// Position returns the stored snapshot for holder.
func (a *Accumulator) Position(holder account.Account) Position {
	return a.positions[holder]
}

// Clone returns an independent copy.
func (a *Accumulator) Clone() *Accumulator {
	c := &Accumulator{
		totalShares: a.totalShares,
		acc:         a.acc,
		positions:   make(map[account.Account]Position, len(a.positions)),
	}
	for k, v := range a.positions {
		c.positions[k] = v
	}
	return c
}

// Export returns a copy of the accumulator state for persistence.
func (a *Accumulator) Export() State {
	return a.Clone().state()
}

func (a *Accumulator) state() State {
	return State{AccPerShare: a.acc, Positions: a.positions}
}

// Restore rebuilds an accumulator from exported state.
func Restore(totalShares uint64, st State) (*Accumulator, error) {
	a := New(totalShares)
	a.acc = st.AccPerShare
	for k, v := range st.Positions {
		if v.LastAcc.Cmp(st.AccPerShare) > 0 {
			return nil, fmt.Errorf("%w: %s settled ahead of accumulator", ErrInvalidState, k)
		}
		a.positions[k] = v
	}
	return a, nil
}
