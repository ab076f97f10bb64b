package custody

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bitfsorg/rentshare-go/account"
)

type asset struct {
	owner       account.Account
	approved    account.Account
	description string
}

// MemRegistry is an in-memory registry of unique assets, each with an
// owner, an optional approved operator and a description. It is safe for
// concurrent use.
type MemRegistry struct {
	mu     sync.RWMutex
	assets map[AssetID]*asset
}

// NewMemRegistry creates an empty registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{assets: make(map[AssetID]*asset)}
}

// Mint registers asset id owned by owner.
func (r *MemRegistry) Mint(owner account.Account, id AssetID, description string) error {
	if strings.TrimSpace(description) == "" {
		return ErrEmptyDescription
	}
	if owner.IsNull() {
		return fmt.Errorf("%w: mint to null account", ErrInvalidOwner)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyMinted, id)
	}
	r.assets[id] = &asset{owner: owner, description: description}
	return nil
}

// Description returns the description id was minted with.
func (r *MemRegistry) Description(id AssetID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return a.description, nil
}

// OwnerOf returns the owner of id.
func (r *MemRegistry) OwnerOf(id AssetID) (account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return account.Null, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return a.owner, nil
}

// Approve lets operator move id once on behalf of caller, who must own it.
// Approving the null account clears the approval.
func (r *MemRegistry) Approve(caller account.Account, id AssetID, operator account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	if a.owner != caller {
		return fmt.Errorf("%w: %s does not own %s", ErrNotOwner, caller, id)
	}
	a.approved = operator
	return nil
}

// Approved returns the operator currently approved for id.
func (r *MemRegistry) Approved(id AssetID) (account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return account.Null, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return a.approved, nil
}

// TransferFrom moves id from from to to. operator must be the owner or the
// approved operator. The approval is cleared on success.
func (r *MemRegistry) TransferFrom(operator, from, to account.Account, id AssetID) error {
	if to.IsNull() {
		return fmt.Errorf("%w: transfer to null account", ErrInvalidOwner)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	if a.owner != from {
		return fmt.Errorf("%w: %s does not own %s", ErrNotOwner, from, id)
	}
	if operator != from && (a.approved.IsNull() || operator != a.approved) {
		return fmt.Errorf("%w: %s on %s", ErrNotApproved, operator, id)
	}
	a.owner = to
	a.approved = account.Null
	return nil
}

// For returns a Provider bound to self.
func (r *MemRegistry) For(self account.Account) Provider {
	return &boundRegistry{reg: r, self: self}
}

type boundRegistry struct {
	reg  *MemRegistry
	self account.Account
}

func (b *boundRegistry) TransferCustodyIn(ctx context.Context, id AssetID, from account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.reg.TransferFrom(b.self, from, b.self, id)
}

func (b *boundRegistry) CustodyOwner(ctx context.Context, id AssetID) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Null, err
	}
	return b.reg.OwnerOf(id)
}

var _ Provider = (*boundRegistry)(nil)
