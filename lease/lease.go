// Package lease coordinates a single leased asset: it takes custody of the
// asset, mints its share supply, collects the periodic payment with late
// fees and distributes every collection to the share holders of the moment.
//
// Each public operation is one atomic state transition. The coordinator
// works on a copy of its state, performs the external currency or custody
// call, and only then replaces its state and appends the resulting
// notifications. A failure anywhere leaves the previous state untouched.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	klogv2 "k8s.io/klog/v2"

	"github.com/bitfsorg/rentshare-go/account"
	"github.com/bitfsorg/rentshare-go/currency"
	"github.com/bitfsorg/rentshare-go/custody"
	"github.com/bitfsorg/rentshare-go/journal"
	"github.com/bitfsorg/rentshare-go/schedule"
	"github.com/bitfsorg/rentshare-go/shares"
	"github.com/bitfsorg/rentshare-go/store"
)

// Decimals is the number of decimal places of a share. Shares are indivisible.
const Decimals = 0

// Params fix a lease at construction.
type Params struct {
	AssetID     custody.AssetID
	Payer       account.Account // the only account allowed to pay
	Self        account.Account // the coordinator's own account with custody and currency
	TotalShares uint64
	Terms       schedule.Terms
}

// Validate checks p for usable values.
func (p Params) Validate() error {
	if p.Payer.IsNull() {
		return fmt.Errorf("%w: payer is the null account", ErrInvalidParams)
	}
	if p.Self.IsNull() {
		return fmt.Errorf("%w: self is the null account", ErrInvalidParams)
	}
	if p.TotalShares == 0 {
		return fmt.Errorf("%w: total shares must be positive", ErrInvalidParams)
	}
	if err := p.Terms.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

// Deps are the external collaborators. Clock defaults to the system clock
// and Store is optional.
type Deps struct {
	Custody  custody.Provider
	Currency currency.Ledger
	Clock    schedule.Clock
	Store    store.Store
}

// Coordinator is a lease. It is safe for concurrent use; operations are
// serialized.
type Coordinator struct {
	mu      deadlock.Mutex
	params  Params
	deps    Deps
	state   *aggregate
	journal *journal.Journal

	// persisted counts the journal entries known to be in deps.Store.
	persisted int

	// custodyFrom is the caller whose custody transfer succeeded during an
	// activation that did not complete. Its retry skips the transfer.
	custodyFrom account.Account
}

// New creates a coordinator. When deps.Store already holds a snapshot for
// the same lease, the coordinator resumes from it.
func New(params Params, deps Deps) (*Coordinator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if deps.Custody == nil {
		return nil, fmt.Errorf("%w: custody provider", ErrMissingDependency)
	}
	if deps.Currency == nil {
		return nil, fmt.Errorf("%w: currency ledger", ErrMissingDependency)
	}
	if deps.Clock == nil {
		deps.Clock = schedule.SystemClock{}
	}

	c := &Coordinator{params: params, deps: deps, journal: journal.New()}
	if deps.Store == nil {
		st, err := newAggregate(params)
		if err != nil {
			return nil, err
		}
		c.state = st
		return c, nil
	}

	snap, err := deps.Store.LoadSnapshot()
	switch {
	case errors.Is(err, store.ErrSnapshotNotFound):
		if c.state, err = newAggregate(params); err != nil {
			return nil, err
		}
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("lease: load snapshot: %w", err)
	}

	if c.state, err = restoreAggregate(params, snap); err != nil {
		return nil, fmt.Errorf("lease: restore snapshot: %w", err)
	}
	entries, err := deps.Store.ListEntries()
	if err != nil {
		return nil, fmt.Errorf("lease: load journal: %w", err)
	}
	if err := c.journal.Restore(entries); err != nil {
		return nil, fmt.Errorf("lease: restore journal: %w", err)
	}
	c.persisted = len(entries)
	klogv2.V(2).Infof("lease %s: resumed at version %d with %d journal entries", params.AssetID, snap.Version, len(entries))
	return c, nil
}

// commit installs next and appends events. It is called only after every
// external call of the operation has succeeded, so the in-memory state is
// always replaced; a storage failure is reported as ErrPersistFailed.
//
// Each commit writes the full current snapshot together with every journal
// entry the store has not yet accepted, so a later commit catches the store
// up after an earlier one failed.
func (c *Coordinator) commit(next *aggregate, events ...journal.Event) error {
	next.version++
	entries := c.journal.Next(events...)

	var persistErr error
	if c.deps.Store != nil {
		pending := append(c.journal.Entries()[c.persisted:], entries...)
		snap, err := next.snapshot(c.params)
		if err == nil {
			err = c.deps.Store.Commit(snap, pending)
		}
		if err != nil {
			klogv2.Errorf("lease %s: persist version %d (%d entries behind): %v",
				c.params.AssetID, next.version, len(pending), err)
			persistErr = fmt.Errorf("%w: %w", ErrPersistFailed, err)
		} else if len(pending) > len(entries) {
			klogv2.Infof("lease %s: store caught up at version %d", c.params.AssetID, next.version)
		}
	}

	c.state = next
	if err := c.journal.Commit(entries...); err != nil {
		return err
	}
	if c.deps.Store != nil && persistErr == nil {
		c.persisted = c.journal.Len()
	}
	return persistErr
}

// Activate takes custody of the asset from caller, mints the whole share
// supply to caller and starts the payment schedule.
//
// If the transfer succeeds but the provider does not then report the
// coordinator as custodian, activation fails and the same caller may retry
// without transferring again. Any other caller still has to transfer.
func (c *Coordinator) Activate(ctx context.Context, caller account.Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	now := c.deps.Clock.Now()

	next := c.state.clone()
	if err := next.sched.Activate(now); err != nil {
		return err
	}
	mint, err := next.ledger.Mint(caller, next.acc)
	if err != nil {
		return err
	}

	if c.custodyFrom != caller {
		if err := c.deps.Custody.TransferCustodyIn(ctx, c.params.AssetID, caller); err != nil {
			klogv2.Errorf("lease %s: custody transfer from %s failed: %v", c.params.AssetID, caller, err)
			return fmt.Errorf("%w: %w", ErrCustodyNotTransferred, err)
		}
		c.custodyFrom = caller
	}
	custodian, err := c.deps.Custody.CustodyOwner(ctx, c.params.AssetID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCustodyNotTransferred, err)
	}
	if custodian != c.params.Self {
		return fmt.Errorf("%w: custodian of record is %s", ErrCustodyNotTransferred, custodian)
	}

	klogv2.Infof("lease %s: activated by %s, %d shares minted, first due %s",
		c.params.AssetID, caller, mint.Amount, next.sched.NextDue.Format(time.RFC3339))
	return c.commit(next,
		journal.Event{Kind: journal.KindActivated, To: caller, Amount: mint.Amount, At: now},
		journal.Event{Kind: journal.KindTransfer, From: mint.From, To: mint.To, Amount: mint.Amount, At: now},
	)
}

// Pay collects the amount currently due from the payer, credits it to the
// share holders and moves the due date one period past now. It returns the
// amount collected.
func (c *Coordinator) Pay(ctx context.Context, caller account.Account) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if caller != c.params.Payer {
		return 0, fmt.Errorf("%w: %s", ErrNotPayer, caller)
	}
	if !c.state.sched.Activated {
		return 0, ErrNotActivated
	}
	now := c.deps.Clock.Now()

	next := c.state.clone()
	lateDays := next.sched.LateDays(now)
	amount, err := next.sched.DueAmount(now)
	if err != nil {
		return 0, err
	}
	dust, err := next.acc.OnPayment(amount)
	if err != nil {
		return 0, err
	}
	if err := next.sched.Advance(now); err != nil {
		return 0, err
	}
	if next.collected, err = addChecked(next.collected, amount); err != nil {
		return 0, err
	}
	next.dust += dust

	if err := c.deps.Currency.Pull(ctx, c.params.Payer, c.params.Self, amount); err != nil {
		klogv2.Errorf("lease %s: pull %d from %s failed: %v", c.params.AssetID, amount, c.params.Payer, err)
		return 0, fmt.Errorf("%w: %w", ErrPaymentTransferFailed, err)
	}

	klogv2.Infof("lease %s: collected %d from %s (%d days late), next due %s",
		c.params.AssetID, amount, caller, lateDays, next.sched.NextDue.Format(time.RFC3339))
	return amount, c.commit(next, journal.Event{Kind: journal.KindRentPaid, From: caller, Amount: amount, At: now})
}

// Claim pays out everything caller is owed and returns the amount.
func (c *Coordinator) Claim(ctx context.Context, caller account.Account) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := c.deps.Clock.Now()

	next := c.state.clone()
	amount, err := next.acc.Claim(caller, next.ledger.BalanceOf(caller))
	if err != nil {
		return 0, err
	}
	if next.claimed, err = addChecked(next.claimed, amount); err != nil {
		return 0, err
	}

	if err := c.deps.Currency.Push(ctx, caller, amount); err != nil {
		klogv2.Errorf("lease %s: payout of %d to %s failed: %v", c.params.AssetID, amount, caller, err)
		return 0, fmt.Errorf("%w: %w", ErrPayoutFailed, err)
	}

	klogv2.Infof("lease %s: paid out %d to %s", c.params.AssetID, amount, caller)
	return amount, c.commit(next, journal.Event{Kind: journal.KindClaimed, To: caller, Amount: amount, At: now})
}

// Transfer moves amount shares from caller to to. Entitlement earned so far
// stays with the account that earned it.
func (c *Coordinator) Transfer(ctx context.Context, caller, to account.Account, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	now := c.deps.Clock.Now()

	next := c.state.clone()
	mv, err := next.ledger.Transfer(caller, to, amount, next.acc)
	if err != nil {
		return err
	}

	klogv2.V(2).Infof("lease %s: %s transferred %d shares to %s", c.params.AssetID, caller, amount, to)
	return c.commit(next, journal.Event{Kind: journal.KindTransfer, From: mv.From, To: mv.To, Amount: mv.Amount, At: now})
}

// DueAmount returns what Pay would collect right now.
func (c *Coordinator) DueAmount() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.sched.Activated {
		return 0, ErrNotActivated
	}
	return c.state.sched.DueAmount(c.deps.Clock.Now())
}

// DueTimestamp returns when the next payment becomes due.
func (c *Coordinator) DueTimestamp() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.sched.Activated {
		return time.Time{}, ErrNotActivated
	}
	return c.state.sched.NextDue, nil
}

// ShowUnclaimed returns a's current entitlement, settled or not.
func (c *Coordinator) ShowUnclaimed(a account.Account) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.acc.Unclaimed(a, c.state.ledger.BalanceOf(a))
}

// BalanceOf returns a's share balance.
func (c *Coordinator) BalanceOf(a account.Account) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ledger.BalanceOf(a)
}

// Holders returns all accounts with shares.
func (c *Coordinator) Holders() []shares.Holding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ledger.Holders()
}

// Activated reports whether Activate has succeeded.
func (c *Coordinator) Activated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.sched.Activated
}

// Events returns every notification emitted so far, oldest first.
func (c *Coordinator) Events() []journal.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.journal.Events()
}

// Entries returns the hash-chained journal.
func (c *Coordinator) Entries() []journal.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.journal.Entries()
}

// Collected returns the total amount ever collected.
func (c *Coordinator) Collected() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.collected
}

// Claimed returns the total amount ever paid out.
func (c *Coordinator) Claimed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.claimed
}

// Dust returns the payment-level rounding residue: the part of each
// payment the accumulator could not spread over the share supply. Holder
// entitlements are also rounded down when read or settled, and that residue
// is not counted here, so the coordinator's currency balance may exceed
// Collected-Claimed-unclaimed by more than Dust. Both stay in that balance.
func (c *Coordinator) Dust() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.dust
}

// AssetID returns the leased asset.
func (c *Coordinator) AssetID() custody.AssetID { return c.params.AssetID }

// Payer returns the account the lease collects from.
func (c *Coordinator) Payer() account.Account { return c.params.Payer }

// Self returns the coordinator's own account.
func (c *Coordinator) Self() account.Account { return c.params.Self }

// BaseAmount returns the amount due per period before late fees.
func (c *Coordinator) BaseAmount() uint64 { return c.params.Terms.BaseAmount }

// Terms returns the lease terms.
func (c *Coordinator) Terms() schedule.Terms { return c.params.Terms }

// TotalShares returns the fixed share supply.
func (c *Coordinator) TotalShares() uint64 { return c.params.TotalShares }

// Decimals returns the share precision, which is always zero.
func (c *Coordinator) Decimals() uint8 { return Decimals }

func addChecked(a, b uint64) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, fmt.Errorf("lease: running total overflows")
	}
	return a + b, nil
}
