package currency

import (
	"context"

	"github.com/bitfsorg/rentshare-go/account"
)

// MockLedger is a test double for Ledger.
// All function fields must be set before the corresponding method is called.
type MockLedger struct {
	PullFn func(ctx context.Context, payer, to account.Account, amount uint64) error
	PushFn func(ctx context.Context, to account.Account, amount uint64) error
}

func (m *MockLedger) Pull(ctx context.Context, payer, to account.Account, amount uint64) error {
	return m.PullFn(ctx, payer, to, amount)
}
func (m *MockLedger) Push(ctx context.Context, to account.Account, amount uint64) error {
	return m.PushFn(ctx, to, amount)
}
