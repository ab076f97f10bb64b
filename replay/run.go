package replay

import (
	"context"
	"fmt"
	"sort"
	"strings"

	klogv2 "k8s.io/klog/v2"

	"github.com/bitfsorg/rentshare-go/account"
	"github.com/bitfsorg/rentshare-go/currency"
	"github.com/bitfsorg/rentshare-go/custody"
	"github.com/bitfsorg/rentshare-go/lease"
	"github.com/bitfsorg/rentshare-go/schedule"
	"github.com/bitfsorg/rentshare-go/store"
)

type runner struct {
	sc       *Scenario
	names    []string // participants, then self when undeclared
	accounts map[string]account.Account
	self     account.Account
	asset    custody.AssetID

	money *currency.MemLedger
	reg   *custody.MemRegistry
	clock *schedule.ManualClock
	lease *lease.Coordinator
}

// Run executes sc against fresh in-memory collaborators. st may be nil;
// otherwise it must be empty, since the currency and custody state of a
// previous run is not persisted.
func Run(ctx context.Context, sc *Scenario, st store.Store) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	start, err := sc.start()
	if err != nil {
		return nil, err
	}

	r := &runner{
		sc:    sc,
		asset: custody.AssetID(sc.Asset.ID),
		money: currency.NewMemLedger(),
		reg:   custody.NewMemRegistry(),
		clock: schedule.NewManualClock(start),
	}
	if err := r.resolve(); err != nil {
		return nil, err
	}
	if err := r.setup(st); err != nil {
		return nil, err
	}

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.clock.Set(start.Add(step.Offset()))
		if err := r.step(ctx, step); err != nil {
			return nil, fmt.Errorf("replay: step %d (%s): %w", i+1, step.Op, err)
		}
	}
	klogv2.Infof("replay %q: %d steps completed", sc.Name, len(sc.Steps))
	return r.report()
}

func (r *runner) resolve() error {
	r.names = append([]string(nil), r.sc.Participants...)
	declared := false
	for _, n := range r.names {
		if n == r.sc.Self {
			declared = true
		}
	}
	if !declared {
		r.names = append(r.names, r.sc.Self)
	}

	r.accounts = make(map[string]account.Account, len(r.names))
	if r.sc.Mnemonic == "" {
		for _, n := range r.names {
			r.accounts[n] = account.Account(n)
		}
	} else {
		network := r.sc.Network
		if network == "" {
			network = "mainnet"
		}
		d, err := account.NewDeriver(r.sc.Mnemonic, "", network)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
		}
		for i, n := range r.names {
			a, err := d.Derive(uint32(i))
			if err != nil {
				return err
			}
			r.accounts[n] = a
		}
	}
	r.self = r.accounts[r.sc.Self]
	return nil
}

func (r *runner) setup(st store.Store) error {
	owner := r.accounts[r.sc.Asset.Owner]
	if err := r.reg.Mint(owner, r.asset, r.sc.Asset.Description); err != nil {
		return fmt.Errorf("replay: mint asset: %w", err)
	}
	for _, name := range sortedKeys(r.sc.Faucet) {
		a, err := r.account(name)
		if err != nil {
			return err
		}
		if err := r.money.Faucet(a, r.sc.Faucet[name]); err != nil {
			return fmt.Errorf("replay: faucet %s: %w", name, err)
		}
	}
	payer := r.accounts[r.sc.Payer]
	if r.sc.Allowance > 0 {
		if err := r.money.IncreaseAllowance(payer, r.self, r.sc.Allowance); err != nil {
			return fmt.Errorf("replay: allowance: %w", err)
		}
	}

	c, err := lease.New(lease.Params{
		AssetID:     r.asset,
		Payer:       payer,
		Self:        r.self,
		TotalShares: r.sc.TotalShares,
		Terms:       r.sc.Terms.Schedule(),
	}, lease.Deps{
		Custody:  r.reg.For(r.self),
		Currency: r.money.For(r.self),
		Clock:    r.clock,
		Store:    st,
	})
	if err != nil {
		return fmt.Errorf("replay: create lease: %w", err)
	}
	r.lease = c
	return nil
}

func (r *runner) account(name string) (account.Account, error) {
	a, ok := r.accounts[name]
	if !ok {
		return account.Null, fmt.Errorf("%w: %q", ErrUnknownParticipant, name)
	}
	return a, nil
}

// target resolves the step's counterparty. An empty name is the null
// account for transfers and the lease itself for approvals.
func (r *runner) target(step Step) (account.Account, error) {
	if step.To != "" {
		return r.account(step.To)
	}
	if step.Op == OpTransfer {
		return account.Null, nil
	}
	return r.self, nil
}

func (r *runner) step(ctx context.Context, step Step) error {
	if step.Op == OpExpect {
		return r.check(step.Expect)
	}

	by, err := r.account(step.By)
	if err != nil {
		return err
	}
	to, err := r.target(step)
	if err != nil {
		return err
	}

	var (
		got    uint64
		hasGot bool
		opErr  error
	)
	switch step.Op {
	case OpActivate:
		opErr = r.lease.Activate(ctx, by)
	case OpApprove:
		opErr = r.reg.Approve(by, r.asset, to)
	case OpAllow:
		opErr = r.money.IncreaseAllowance(by, to, step.Amount)
	case OpPay:
		got, opErr = r.lease.Pay(ctx, by)
		hasGot = true
	case OpTransfer:
		opErr = r.lease.Transfer(ctx, by, to, step.Amount)
	case OpClaim:
		got, opErr = r.lease.Claim(ctx, by)
		hasGot = true
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, step.Op)
	}

	if step.ExpectError != "" {
		if opErr == nil {
			return fmt.Errorf("%w: succeeded, want error containing %q", ErrUnexpectedOutcome, step.ExpectError)
		}
		if !strings.Contains(opErr.Error(), step.ExpectError) {
			return fmt.Errorf("%w: got %v, want error containing %q", ErrUnexpectedOutcome, opErr, step.ExpectError)
		}
		klogv2.V(2).Infof("replay: %s by %s failed as expected: %v", step.Op, step.By, opErr)
		return nil
	}
	if opErr != nil {
		return opErr
	}
	if hasGot && step.Amount != 0 && got != step.Amount {
		return fmt.Errorf("%w: %s moved %d, want %d", ErrExpectationFailed, step.Op, got, step.Amount)
	}
	klogv2.V(2).Infof("replay: %s by %s at %s", step.Op, step.By, r.clock.Now().Format("2006-01-02 15:04"))
	return nil
}

func (r *runner) check(e *Expectation) error {
	for _, name := range sortedKeys(e.Unclaimed) {
		a, err := r.account(name)
		if err != nil {
			return err
		}
		got, err := r.lease.ShowUnclaimed(a)
		if err != nil {
			return err
		}
		if err := compare("unclaimed of "+name, got, e.Unclaimed[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(e.Shares) {
		a, err := r.account(name)
		if err != nil {
			return err
		}
		if err := compare("shares of "+name, r.lease.BalanceOf(a), e.Shares[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(e.Balance) {
		a, err := r.account(name)
		if err != nil {
			return err
		}
		if err := compare("balance of "+name, r.money.BalanceOf(a), e.Balance[name]); err != nil {
			return err
		}
	}
	if e.Due != nil {
		got, err := r.lease.DueAmount()
		if err != nil {
			return err
		}
		if err := compare("due", got, *e.Due); err != nil {
			return err
		}
	}
	for _, f := range []struct {
		what string
		want *uint64
		got  func() uint64
	}{
		{"collected", e.Collected, r.lease.Collected},
		{"claimed", e.Claimed, r.lease.Claimed},
		{"dust", e.Dust, r.lease.Dust},
	} {
		if f.want == nil {
			continue
		}
		if err := compare(f.what, f.got(), *f.want); err != nil {
			return err
		}
	}
	return nil
}

func compare(what string, got, want uint64) error {
	if got != want {
		return fmt.Errorf("%w: %s = %d, want %d", ErrExpectationFailed, what, got, want)
	}
	return nil
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
