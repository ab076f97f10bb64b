package custody

import (
	"context"

	"github.com/bitfsorg/rentshare-go/account"
)

// MockProvider is a test double for Provider.
// All function fields must be set before the corresponding method is called.
type MockProvider struct {
	TransferCustodyInFn func(ctx context.Context, id AssetID, from account.Account) error
	CustodyOwnerFn      func(ctx context.Context, id AssetID) (account.Account, error)
}

func (m *MockProvider) TransferCustodyIn(ctx context.Context, id AssetID, from account.Account) error {
	return m.TransferCustodyInFn(ctx, id, from)
}
func (m *MockProvider) CustodyOwner(ctx context.Context, id AssetID) (account.Account, error) {
	return m.CustodyOwnerFn(ctx, id)
}
