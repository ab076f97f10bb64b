// Package store persists a lease aggregate and its journal.
package store

import (
	"fmt"
	"sync"

	"lukechampine.com/uint128"

	"github.com/bitfsorg/rentshare-go/accrual"
	"github.com/bitfsorg/rentshare-go/account"
	"github.com/bitfsorg/rentshare-go/journal"
)

// Snapshot is the persisted state of one lease.
type Snapshot struct {
	Version uint64 // incremented by the coordinator on every commit

	AssetID     uint64
	Payer       account.Account
	Self        account.Account
	TotalShares uint64

	Activated bool
	NextDue   int64  // unix nanoseconds; zero until activated
	Holders   []byte // shares.Ledger binary form

	AccPerShare uint128.Uint128
	Positions   map[account.Account]accrual.Position

	Collected uint64
	Claimed   uint64
	Dust      uint64
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Holders = append([]byte(nil), s.Holders...)
	c.Positions = make(map[account.Account]accrual.Position, len(s.Positions))
	for k, v := range s.Positions {
		c.Positions[k] = v
	}
	return &c
}

// Store persists lease snapshots and journal entries.
type Store interface {
	// SaveSnapshot replaces the stored snapshot.
	SaveSnapshot(snap *Snapshot) error

	// LoadSnapshot returns the stored snapshot or ErrSnapshotNotFound.
	LoadSnapshot() (*Snapshot, error)

	// AppendEntries appends journal entries; they must continue the stored sequence.
	AppendEntries(entries []journal.Entry) error

	// ListEntries returns all journal entries in sequence order.
	ListEntries() ([]journal.Entry, error)

	// Commit saves snap and appends entries as one unit.
	Commit(snap *Snapshot, entries []journal.Entry) error

	// Close releases the store's resources.
	Close() error
}

// MemStore is an in-memory implementation of Store.
type MemStore struct {
	mu      sync.RWMutex
	snap    *Snapshot
	entries []journal.Entry
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// SaveSnapshot replaces the stored snapshot.
func (s *MemStore) SaveSnapshot(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(snap)
}

func (s *MemStore) saveLocked(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: snapshot", ErrNilParam)
	}
	if s.snap != nil && snap.Version <= s.snap.Version {
		return fmt.Errorf("%w: have %d, got %d", ErrStaleSnapshot, s.snap.Version, snap.Version)
	}
	s.snap = snap.Clone()
	return nil
}

// LoadSnapshot returns a copy of the stored snapshot.
func (s *MemStore) LoadSnapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrSnapshotNotFound
	}
	return s.snap.Clone(), nil
}

// AppendEntries appends journal entries.
func (s *MemStore) AppendEntries(entries []journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(entries)
}

func (s *MemStore) appendLocked(entries []journal.Entry) error {
	next := uint64(len(s.entries)) + 1
	for i, e := range entries {
		if e.Seq != next+uint64(i) {
			return fmt.Errorf("%w: expected seq %d, got %d", ErrSequenceGap, next+uint64(i), e.Seq)
		}
	}
	s.entries = append(s.entries, entries...)
	return nil
}

// ListEntries returns all journal entries.
func (s *MemStore) ListEntries() ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]journal.Entry(nil), s.entries...), nil
}

// Commit saves snap and appends entries; neither is applied if either fails.
func (s *MemStore) Commit(snap *Snapshot, entries []journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prevSnap, prevLen := s.snap, len(s.entries)
	if err := s.saveLocked(snap); err != nil {
		return err
	}
	if err := s.appendLocked(entries); err != nil {
		s.snap = prevSnap
		s.entries = s.entries[:prevLen]
		return err
	}
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }
