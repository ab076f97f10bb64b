package lease

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/rentshare-go/account"
	"github.com/bitfsorg/rentshare-go/currency"
	"github.com/bitfsorg/rentshare-go/custody"
	"github.com/bitfsorg/rentshare-go/journal"
	"github.com/bitfsorg/rentshare-go/schedule"
	"github.com/bitfsorg/rentshare-go/store"
)

const (
	owner  account.Account = "owner"
	renter account.Account = "renter"
	other  account.Account = "other"
	third  account.Account = "third"
	self   account.Account = "lease"

	assetID custody.AssetID = 1
	rent                    = 100_000_000
)

var start = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	params Params
	ctx    context.Context
	money  *currency.MemLedger
	reg    *custody.MemRegistry
	clock  *schedule.ManualClock
	c      *Coordinator
}

func testParams() Params {
	return Params{
		AssetID:     assetID,
		Payer:       renter,
		Self:        self,
		TotalShares: 100,
		Terms: schedule.Terms{
			BaseAmount:           rent,
			Period:               30 * schedule.Day,
			LateFeePercentPerDay: 5,
		},
	}
}

// newFixture builds a coordinator over in-memory collaborators. The asset
// is minted to owner and approved for the coordinator; the renter is funded
// and has approved allowance for the coordinator.
func newFixture(t *testing.T, allowance uint64, st store.Store) *fixture {
	t.Helper()
	return newFixtureWith(t, testParams(), allowance, st)
}

func newFixtureWith(t *testing.T, params Params, allowance uint64, st store.Store) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		params: params,
		ctx:    context.Background(),
		money:  currency.NewMemLedger(),
		reg:    custody.NewMemRegistry(),
		clock:  schedule.NewManualClock(start),
	}
	require.NoError(t, f.reg.Mint(owner, assetID, "Nice house"))
	require.NoError(t, f.reg.Approve(owner, assetID, self))
	require.NoError(t, f.money.Faucet(renter, 100*rent))
	if allowance > 0 {
		require.NoError(t, f.money.IncreaseAllowance(renter, self, allowance))
	}
	f.c = f.coordinator(st)
	return f
}

func (f *fixture) coordinator(st store.Store) *Coordinator {
	f.t.Helper()
	c, err := New(f.params, Deps{
		Custody:  f.reg.For(self),
		Currency: f.money.For(self),
		Clock:    f.clock,
		Store:    st,
	})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) activate() {
	f.t.Helper()
	require.NoError(f.t, f.c.Activate(f.ctx, owner))
}

func (f *fixture) pay() uint64 {
	f.t.Helper()
	amount, err := f.c.Pay(f.ctx, renter)
	require.NoError(f.t, err)
	return amount
}

func (f *fixture) transfer(from, to account.Account, n uint64) {
	f.t.Helper()
	require.NoError(f.t, f.c.Transfer(f.ctx, from, to, n))
}

func (f *fixture) unclaimed(a account.Account) uint64 {
	f.t.Helper()
	u, err := f.c.ShowUnclaimed(a)
	require.NoError(f.t, err)
	return u
}

// ---------------------------------------------------------------------------
// Construction and getters
// ---------------------------------------------------------------------------

func TestGetters(t *testing.T) {
	f := newFixture(t, 0, nil)
	assert.Equal(t, uint8(0), f.c.Decimals())
	assert.Equal(t, assetID, f.c.AssetID())
	assert.Equal(t, renter, f.c.Payer())
	assert.Equal(t, self, f.c.Self())
	assert.Equal(t, uint64(rent), f.c.BaseAmount())
	assert.Equal(t, uint64(100), f.c.TotalShares())
	assert.Equal(t, testParams().Terms, f.c.Terms())
	assert.False(t, f.c.Activated())
	assert.Empty(t, f.c.Events())
}

func TestNew_Validation(t *testing.T) {
	reg := custody.NewMemRegistry()
	money := currency.NewMemLedger()
	deps := Deps{Custody: reg.For(self), Currency: money.For(self)}

	tests := []struct {
		name    string
		mutate  func(*Params, *Deps)
		wantErr error
	}{
		{"null payer", func(p *Params, _ *Deps) { p.Payer = account.Null }, ErrInvalidParams},
		{"null self", func(p *Params, _ *Deps) { p.Self = account.Null }, ErrInvalidParams},
		{"zero shares", func(p *Params, _ *Deps) { p.TotalShares = 0 }, ErrInvalidParams},
		{"zero base", func(p *Params, _ *Deps) { p.Terms.BaseAmount = 0 }, schedule.ErrInvalidTerms},
		{"no custody", func(_ *Params, d *Deps) { d.Custody = nil }, ErrMissingDependency},
		{"no currency", func(_ *Params, d *Deps) { d.Currency = nil }, ErrMissingDependency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, d := testParams(), deps
			tt.mutate(&p, &d)
			_, err := New(p, d)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	c, err := New(testParams(), deps)
	require.NoError(t, err)
	assert.Equal(t, schedule.SystemClock{}, c.deps.Clock)
}

// ---------------------------------------------------------------------------
// Activation
// ---------------------------------------------------------------------------

func TestActivate(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.activate()

	custodian, err := f.reg.OwnerOf(assetID)
	require.NoError(t, err)
	assert.Equal(t, self, custodian)
	assert.Equal(t, uint64(100), f.c.BalanceOf(owner))
	assert.True(t, f.c.Activated())

	due, err := f.c.DueTimestamp()
	require.NoError(t, err)
	assert.Equal(t, start.Add(30*schedule.Day), due)

	assert.Equal(t, []journal.Event{
		{Kind: journal.KindActivated, To: owner, Amount: 100, At: start},
		{Kind: journal.KindTransfer, From: account.Null, To: owner, Amount: 100, At: start},
	}, f.c.Events())
}

func TestActivate_Twice(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.activate()
	err := f.c.Activate(f.ctx, owner)
	assert.ErrorIs(t, err, ErrAlreadyActivated)
	assert.Len(t, f.c.Events(), 2)
}

func TestActivate_NotApproved(t *testing.T) {
	f := newFixture(t, 0, nil)
	require.NoError(t, f.reg.Approve(owner, assetID, account.Null))

	err := f.c.Activate(f.ctx, owner)
	assert.ErrorIs(t, err, ErrCustodyNotTransferred)
	assert.ErrorIs(t, err, custody.ErrNotApproved)
	assert.False(t, f.c.Activated())
	assert.Equal(t, uint64(0), f.c.BalanceOf(owner))
	_, err = f.c.DueTimestamp()
	assert.ErrorIs(t, err, ErrNotActivated)
	assert.Empty(t, f.c.Events())

	require.NoError(t, f.reg.Approve(owner, assetID, self))
	f.activate()
	assert.Equal(t, uint64(100), f.c.BalanceOf(owner))
}

func TestActivate_CustodianMismatch(t *testing.T) {
	money := currency.NewMemLedger()
	c, err := New(testParams(), Deps{
		Custody: &custody.MockProvider{
			TransferCustodyInFn: func(context.Context, custody.AssetID, account.Account) error { return nil },
			CustodyOwnerFn: func(context.Context, custody.AssetID) (account.Account, error) {
				return other, nil
			},
		},
		Currency: money.For(self),
		Clock:    schedule.NewManualClock(start),
	})
	require.NoError(t, err)

	err = c.Activate(context.Background(), owner)
	assert.ErrorIs(t, err, ErrCustodyNotTransferred)
	assert.False(t, c.Activated())
}

func TestActivate_RetryAfterCustodyCheckFails(t *testing.T) {
	var transfers []account.Account
	checks := 0
	money := currency.NewMemLedger()
	c, err := New(testParams(), Deps{
		Custody: &custody.MockProvider{
			TransferCustodyInFn: func(_ context.Context, _ custody.AssetID, from account.Account) error {
				transfers = append(transfers, from)
				if from != owner {
					return custody.ErrNotOwner
				}
				return nil
			},
			CustodyOwnerFn: func(context.Context, custody.AssetID) (account.Account, error) {
				checks++
				if checks == 1 {
					return account.Null, errors.New("registry unavailable")
				}
				return self, nil
			},
		},
		Currency: money.For(self),
		Clock:    schedule.NewManualClock(start),
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, c.Activate(ctx, owner), ErrCustodyNotTransferred)
	assert.False(t, c.Activated())

	// Someone else cannot claim the custody the owner already handed over.
	assert.ErrorIs(t, c.Activate(ctx, other), ErrCustodyNotTransferred)
	assert.False(t, c.Activated())

	require.NoError(t, c.Activate(ctx, owner))
	assert.True(t, c.Activated())
	assert.Equal(t, uint64(100), c.BalanceOf(owner))
	assert.Equal(t, []account.Account{owner, other}, transfers)
}

func TestActivate_NullCaller(t *testing.T) {
	f := newFixture(t, 0, nil)
	assert.ErrorIs(t, f.c.Activate(f.ctx, account.Null), ErrInvalidRecipient)
	assert.False(t, f.c.Activated())
}

// ---------------------------------------------------------------------------
// Due amount
// ---------------------------------------------------------------------------

func TestDueAmount_NotActivated(t *testing.T) {
	f := newFixture(t, 0, nil)
	_, err := f.c.DueAmount()
	assert.ErrorIs(t, err, ErrNotActivated)
}

func TestDueAmount_LateFee(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    uint64
	}{
		{"at activation", 0, 100_000_000},
		{"29 days", 29 * schedule.Day, 100_000_000},
		{"1 day late", 31 * schedule.Day, 105_000_000},
		{"2 days late", 32 * schedule.Day, 110_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0, nil)
			f.activate()
			f.clock.Set(start.Add(tt.elapsed))
			got, err := f.c.DueAmount()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPay_LateFeeCollected(t *testing.T) {
	f := newFixture(t, 1000*rent, nil)
	f.activate()
	f.clock.Set(start.Add(32 * schedule.Day))

	assert.Equal(t, uint64(110_000_000), f.pay())
	assert.Equal(t, uint64(110_000_000), f.unclaimed(owner))

	due, err := f.c.DueTimestamp()
	require.NoError(t, err)
	assert.Equal(t, start.Add(62*schedule.Day), due)

	amount, err := f.c.DueAmount()
	require.NoError(t, err)
	assert.Equal(t, uint64(rent), amount)
}

// ---------------------------------------------------------------------------
// Payment and claim
// ---------------------------------------------------------------------------

func TestPay_SingleOwner(t *testing.T) {
	f := newFixture(t, 200*rent, nil)
	f.activate()
	assert.Equal(t, uint64(0), f.unclaimed(owner))
	assert.Equal(t, uint64(0), f.unclaimed(other))
	oldDue, err := f.c.DueTimestamp()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.money.BalanceOf(self))

	f.clock.Advance(time.Hour)
	assert.Equal(t, uint64(rent), f.pay())

	events := f.c.Events()
	assert.Equal(t, journal.Event{Kind: journal.KindRentPaid, From: renter, Amount: rent, At: start.Add(time.Hour)}, events[len(events)-1])
	newDue, err := f.c.DueTimestamp()
	require.NoError(t, err)
	assert.True(t, newDue.After(oldDue))
	assert.Equal(t, uint64(rent), f.money.BalanceOf(self))
	assert.Equal(t, uint64(rent), f.unclaimed(owner))
	assert.Equal(t, uint64(0), f.unclaimed(other))

	claimed, err := f.c.Claim(f.ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(rent), claimed)
	assert.Equal(t, uint64(0), f.money.BalanceOf(self))
	assert.Equal(t, uint64(rent), f.money.BalanceOf(owner))
	assert.Equal(t, uint64(0), f.unclaimed(owner))
	assert.Equal(t, uint64(0), f.unclaimed(other))

	_, err = f.c.Claim(f.ctx, owner)
	assert.ErrorIs(t, err, ErrNothingToClaim)
	assert.Equal(t, uint64(rent), f.c.Collected())
	assert.Equal(t, uint64(rent), f.c.Claimed())
}

func TestPay_TwoOwners(t *testing.T) {
	f := newFixture(t, 200*rent, nil)
	f.activate()
	f.transfer(owner, other, 1)
	f.pay()

	assert.Equal(t, uint64(99_000_000), f.unclaimed(owner))
	assert.Equal(t, uint64(1_000_000), f.unclaimed(other))

	_, err := f.c.Claim(f.ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), f.money.BalanceOf(self))
	assert.Equal(t, uint64(99_000_000), f.money.BalanceOf(owner))
	assert.Equal(t, uint64(0), f.unclaimed(owner))
	assert.Equal(t, uint64(1_000_000), f.unclaimed(other))
}

func TestPay_ChangeOwner(t *testing.T) {
	t.Run("after", func(t *testing.T) {
		f := newFixture(t, 200*rent, nil)
		f.activate()
		f.pay()
		f.transfer(owner, other, 100)
		assert.Equal(t, uint64(rent), f.unclaimed(owner))
		assert.Equal(t, uint64(0), f.unclaimed(other))

		_, err := f.c.Claim(f.ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(rent), f.money.BalanceOf(owner))
		assert.Equal(t, uint64(0), f.money.BalanceOf(self))
		_, err = f.c.Claim(f.ctx, other)
		assert.ErrorIs(t, err, ErrNothingToClaim)
	})
	t.Run("before", func(t *testing.T) {
		f := newFixture(t, 200*rent, nil)
		f.activate()
		f.transfer(owner, other, 100)
		f.pay()
		assert.Equal(t, uint64(0), f.unclaimed(owner))
		assert.Equal(t, uint64(rent), f.unclaimed(other))
	})
	t.Run("in between", func(t *testing.T) {
		f := newFixture(t, 200*rent, nil)
		f.activate()
		f.pay()
		f.transfer(owner, other, 100)
		f.pay()
		assert.Equal(t, uint64(2*rent), f.money.BalanceOf(self))
		assert.Equal(t, uint64(rent), f.unclaimed(owner))
		assert.Equal(t, uint64(rent), f.unclaimed(other))
	})
}

func TestPay_SplitAndRebalance(t *testing.T) {
	p := testParams()
	p.Terms.BaseAmount = 100
	f := newFixtureWith(t, p, 1000, nil)
	f.activate()
	f.transfer(owner, other, 33)
	f.transfer(owner, third, 33)
	assert.Equal(t, uint64(100), f.pay())

	f.transfer(owner, other, 33)
	f.transfer(owner, third, 1)
	assert.Equal(t, uint64(100), f.pay())

	assert.Equal(t, uint64(34), f.unclaimed(owner))
	assert.Equal(t, uint64(99), f.unclaimed(other))
	assert.Equal(t, uint64(67), f.unclaimed(third))
	assert.Equal(t, uint64(0), f.c.BalanceOf(owner))
	assert.Equal(t, uint64(0), f.c.Dust())
}

func TestPay_NotPayer(t *testing.T) {
	f := newFixture(t, 200*rent, nil)
	f.activate()
	_, err := f.c.Pay(f.ctx, owner)
	assert.ErrorIs(t, err, ErrNotPayer)
}

func TestPay_NotActivated(t *testing.T) {
	f := newFixture(t, 200*rent, nil)
	_, err := f.c.Pay(f.ctx, renter)
	assert.ErrorIs(t, err, ErrNotActivated)
	assert.Equal(t, uint64(0), f.money.BalanceOf(self))
}

func TestPay_TransferFailedLeavesState(t *testing.T) {
	f := newFixture(t, rent, nil)
	f.activate()
	f.clock.Set(start.Add(31 * schedule.Day))
	dueBefore, err := f.c.DueTimestamp()
	require.NoError(t, err)
	eventsBefore := len(f.c.Events())

	// Allowance covers the base amount but not the late fee.
	_, err = f.c.Pay(f.ctx, renter)
	assert.ErrorIs(t, err, ErrPaymentTransferFailed)
	assert.ErrorIs(t, err, currency.ErrInsufficientAllowance)

	dueAfter, err := f.c.DueTimestamp()
	require.NoError(t, err)
	assert.Equal(t, dueBefore, dueAfter)
	amount, err := f.c.DueAmount()
	require.NoError(t, err)
	assert.Equal(t, uint64(105_000_000), amount)
	assert.Equal(t, uint64(0), f.unclaimed(owner))
	assert.Equal(t, uint64(0), f.c.Collected())
	assert.Len(t, f.c.Events(), eventsBefore)
	assert.Equal(t, uint64(100*rent), f.money.BalanceOf(renter))

	require.NoError(t, f.money.IncreaseAllowance(renter, self, rent))
	assert.Equal(t, uint64(105_000_000), f.pay())
}

func TestClaim_PayoutFailedLeavesState(t *testing.T) {
	reg := custody.NewMemRegistry()
	require.NoError(t, reg.Mint(owner, assetID, "Nice house"))
	require.NoError(t, reg.Approve(owner, assetID, self))
	payoutErr := errors.New("ledger offline")

	c, err := New(testParams(), Deps{
		Custody: reg.For(self),
		Currency: &currency.MockLedger{
			PullFn: func(context.Context, account.Account, account.Account, uint64) error { return nil },
			PushFn: func(context.Context, account.Account, uint64) error { return payoutErr },
		},
		Clock: schedule.NewManualClock(start),
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Activate(ctx, owner))
	_, err = c.Pay(ctx, renter)
	require.NoError(t, err)

	_, err = c.Claim(ctx, owner)
	assert.ErrorIs(t, err, ErrPayoutFailed)
	assert.ErrorIs(t, err, payoutErr)

	u, err := c.ShowUnclaimed(owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(rent), u)
	assert.Equal(t, uint64(0), c.Claimed())
}

func TestCancelledContext(t *testing.T) {
	f := newFixture(t, 200*rent, nil)
	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	assert.ErrorIs(t, f.c.Activate(ctx, owner), context.Canceled)
	assert.False(t, f.c.Activated())
}

// ---------------------------------------------------------------------------
// Transfers
// ---------------------------------------------------------------------------

func TestTransfer_Errors(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.activate()
	events := len(f.c.Events())

	assert.ErrorIs(t, f.c.Transfer(f.ctx, owner, account.Null, 1), ErrInvalidRecipient)
	assert.ErrorIs(t, f.c.Transfer(f.ctx, owner, other, 101), ErrInsufficientBalance)
	assert.ErrorIs(t, f.c.Transfer(f.ctx, other, owner, 1), ErrInsufficientBalance)
	assert.Equal(t, uint64(100), f.c.BalanceOf(owner))
	assert.Len(t, f.c.Events(), events)
}

func TestTransfer_NoOpsKeepEntitlement(t *testing.T) {
	f := newFixture(t, 200*rent, nil)
	f.activate()
	f.pay()

	f.transfer(owner, owner, 100)
	f.transfer(owner, other, 0)
	assert.Equal(t, uint64(rent), f.unclaimed(owner))
	assert.Equal(t, uint64(0), f.unclaimed(other))
	assert.Equal(t, uint64(100), f.c.BalanceOf(owner))

	events := f.c.Events()
	assert.Equal(t, journal.KindTransfer, events[len(events)-1].Kind)
	assert.Equal(t, uint64(0), events[len(events)-1].Amount)
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

func TestResumeFromBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lease.db")
	st, err := store.OpenBoltStore(path)
	require.NoError(t, err)

	f := newFixture(t, 1000*rent, st)
	f.activate()
	f.transfer(owner, other, 25)
	f.clock.Set(start.Add(31 * schedule.Day))
	f.pay()
	_, err = f.c.Claim(f.ctx, other)
	require.NoError(t, err)
	wantEntries := f.c.Entries()
	require.NoError(t, st.Close())

	st, err = store.OpenBoltStore(path)
	require.NoError(t, err)
	defer st.Close()
	resumed := f.coordinator(st)

	assert.True(t, resumed.Activated())
	assert.Equal(t, uint64(75), resumed.BalanceOf(owner))
	assert.Equal(t, uint64(25), resumed.BalanceOf(other))
	u, err := resumed.ShowUnclaimed(owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(78_750_000), u)
	u, err = resumed.ShowUnclaimed(other)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), u)
	assert.Equal(t, uint64(105_000_000), resumed.Collected())
	assert.Equal(t, uint64(26_250_000), resumed.Claimed())

	due, err := resumed.DueTimestamp()
	require.NoError(t, err)
	assert.True(t, due.Equal(start.Add(61*schedule.Day)))

	got := resumed.Entries()
	require.Len(t, got, len(wantEntries))
	assert.Equal(t, wantEntries[len(wantEntries)-1].Hash, got[len(got)-1].Hash)

	f.c = resumed
	_, err = f.c.Claim(f.ctx, owner)
	require.NoError(t, err)
	entries, err := st.ListEntries()
	require.NoError(t, err)
	assert.Len(t, entries, len(wantEntries)+1)
	assert.NoError(t, journal.Verify(entries))
}

func TestResume_Mismatch(t *testing.T) {
	st := store.NewMemStore()
	f := newFixture(t, 0, st)
	f.activate()

	p := testParams()
	p.Payer = other
	_, err := New(p, Deps{Custody: f.reg.For(self), Currency: f.money.For(self), Store: st})
	assert.ErrorIs(t, err, ErrSnapshotMismatch)
}

// failingStore accepts reads but rejects commits.
type failingStore struct {
	*store.MemStore
}

func (failingStore) Commit(*store.Snapshot, []journal.Entry) error {
	return errors.New("disk full")
}

func TestPersistFailure_KeepsCommittedEffect(t *testing.T) {
	f := newFixture(t, 200*rent, failingStore{store.NewMemStore()})
	err := f.c.Activate(f.ctx, owner)
	assert.ErrorIs(t, err, ErrPersistFailed)

	// Custody already moved, so the activation stands in memory.
	assert.True(t, f.c.Activated())
	assert.Equal(t, uint64(100), f.c.BalanceOf(owner))
	assert.Len(t, f.c.Events(), 2)

	amount, err := f.c.Pay(f.ctx, renter)
	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.Equal(t, uint64(rent), amount)
	assert.Equal(t, uint64(rent), f.unclaimed(owner))
}

func TestDust_PaymentLevelOnly(t *testing.T) {
	params := testParams()
	params.TotalShares = 3
	params.Terms.BaseAmount = 2
	f := newFixtureWith(t, params, 10, nil)
	f.activate()
	f.transfer(owner, other, 1)
	f.transfer(owner, third, 1)
	assert.Equal(t, uint64(2), f.pay())

	// 2/3 per share: one unit is lost spreading the payment and the
	// credited unit is lost again when each holder rounds down.
	assert.Equal(t, uint64(1), f.c.Dust())
	var outstanding uint64
	for _, a := range []account.Account{owner, other, third} {
		outstanding += f.unclaimed(a)
	}
	assert.Zero(t, outstanding)
	held := f.money.BalanceOf(self)
	assert.Equal(t, uint64(2), held)
	assert.Greater(t, held-f.c.Claimed()-outstanding, f.c.Dust())
}

// flakyStore rejects the next failures commits, then behaves like MemStore.
type flakyStore struct {
	*store.MemStore
	failures int
}

func (s *flakyStore) Commit(snap *store.Snapshot, entries []journal.Entry) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("disk full")
	}
	return s.MemStore.Commit(snap, entries)
}

func TestPersistFailure_StoreCatchesUp(t *testing.T) {
	st := &flakyStore{MemStore: store.NewMemStore()}
	f := newFixture(t, 200*rent, st)
	f.activate()

	st.failures = 1
	_, err := f.c.Pay(f.ctx, renter)
	require.ErrorIs(t, err, ErrPersistFailed)

	f.transfer(owner, other, 40)
	f.transfer(owner, third, 10)
	paid, err := f.c.Claim(f.ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(rent), paid)

	snap, err := st.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), snap.Version)
	assert.Equal(t, uint64(rent), snap.Collected)
	assert.Equal(t, uint64(rent), snap.Claimed)

	entries, err := st.ListEntries()
	require.NoError(t, err)
	require.NoError(t, journal.Verify(entries))
	assert.Equal(t, f.c.Entries(), entries)

	// A restart resumes with the claim recorded.
	resumed := f.coordinator(st)
	assert.Equal(t, uint64(rent), resumed.Claimed())
	assert.Equal(t, uint64(0), mustUnclaimed(t, resumed, owner))
	assert.Equal(t, uint64(50), resumed.BalanceOf(owner))
	_, err = resumed.Claim(f.ctx, owner)
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestPersistFailure_RepeatedFailuresThenRecovery(t *testing.T) {
	st := &flakyStore{MemStore: store.NewMemStore(), failures: 3}
	f := newFixture(t, 200*rent, st)

	assert.ErrorIs(t, f.c.Activate(f.ctx, owner), ErrPersistFailed)
	_, err := f.c.Pay(f.ctx, renter)
	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.ErrorIs(t, f.c.Transfer(f.ctx, owner, other, 1), ErrPersistFailed)
	_, err = st.LoadSnapshot()
	require.ErrorIs(t, err, store.ErrSnapshotNotFound)

	require.NoError(t, f.c.Transfer(f.ctx, owner, other, 1))
	entries, err := st.ListEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	snap, err := st.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), snap.Version)
	assert.Equal(t, uint64(rent), snap.Collected)
}

func mustUnclaimed(t *testing.T, c *Coordinator, a account.Account) uint64 {
	t.Helper()
	u, err := c.ShowUnclaimed(a)
	require.NoError(t, err)
	return u
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func TestRandomOperations_Reconcile(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	f := newFixture(t, ^uint64(0), nil)
	require.NoError(t, f.money.Faucet(renter, 1<<50))
	f.activate()
	holders := []account.Account{owner, other, third, "fourth"}
	var payments uint64

	for i := 0; i < 500; i++ {
		f.clock.Advance(time.Duration(rng.Intn(40)) * schedule.Day)
		switch rng.Intn(4) {
		case 0:
			f.pay()
			payments++
		case 1, 2:
			from := holders[rng.Intn(len(holders))]
			to := holders[rng.Intn(len(holders))]
			bal := f.c.BalanceOf(from)
			if bal > 0 {
				f.transfer(from, to, uint64(rng.Int63n(int64(bal)))+1)
			}
		case 3:
			_, err := f.c.Claim(f.ctx, holders[rng.Intn(len(holders))])
			if err != nil {
				require.ErrorIs(t, err, ErrNothingToClaim)
			}
		}

		var outstanding, held uint64
		for _, h := range holders {
			outstanding += f.unclaimed(h)
			held += f.c.BalanceOf(h)
		}
		require.Equal(t, f.c.TotalShares(), held)
		require.Equal(t, f.c.Collected()-f.c.Claimed(), f.money.BalanceOf(self))
		require.LessOrEqual(t, outstanding+f.c.Claimed(), f.c.Collected())
		require.LessOrEqual(t, f.c.Collected()-f.c.Claimed()-outstanding, payments*(f.c.TotalShares()-1))
	}
}

func TestConcurrentOperations(t *testing.T) {
	f := newFixture(t, ^uint64(0), nil)
	f.activate()
	f.transfer(owner, other, 50)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := owner, other
			if i%2 == 1 {
				from, to = other, owner
			}
			for j := 0; j < 50; j++ {
				_ = f.c.Transfer(f.ctx, from, to, 1)
				_, _ = f.c.ShowUnclaimed(from)
				if j%10 == 0 {
					_, _ = f.c.Pay(f.ctx, renter)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(100), f.c.BalanceOf(owner)+f.c.BalanceOf(other))
	total := f.unclaimed(owner) + f.unclaimed(other)
	assert.Equal(t, f.c.Collected(), total)
	assert.NoError(t, journal.Verify(f.c.Entries()))
}
