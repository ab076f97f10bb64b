// Package journal keeps the notifications a lease emits as a hash-chained,
// append-only log.
//
// Each entry commits to its predecessor through PrevHash, so a persisted
// journal can be checked for gaps or edits with Verify and replayed in
// order.
package journal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/bitfsorg/rentshare-go/account"
)

// Kind names a notification.
type Kind string

const (
	KindActivated Kind = "activated"
	KindTransfer  Kind = "transfer"
	KindRentPaid  Kind = "rent_paid"
	KindClaimed   Kind = "claimed"
)

// Event is one notification. Which of From and To are set depends on Kind:
// activated has To as the initial holder, transfer has both, rent_paid has
// From as the payer and claimed has To as the claimer.
type Event struct {
	Kind   Kind
	From   account.Account
	To     account.Account
	Amount uint64
	At     time.Time
}

// Entry is an Event placed in the chain.
type Entry struct {
	ID       uuid.UUID
	Seq      uint64
	Event    Event
	PrevHash [32]byte
	Hash     [32]byte
}

// entryNamespace scopes the name-based entry ids.
var entryNamespace = uuid.MustParse("6f1c1a52-2f0e-4d7c-9a8b-5e2d4c3b1a09")

// Journal is the in-memory chain. Not safe for concurrent use.
type Journal struct {
	entries []Entry
}

// New returns an empty journal.
func New() *Journal { return &Journal{} }

// Len returns the number of entries.
func (j *Journal) Len() int { return len(j.entries) }

// Head returns the hash of the last entry, or the zero hash when empty.
func (j *Journal) Head() [32]byte {
	if len(j.entries) == 0 {
		return [32]byte{}
	}
	return j.entries[len(j.entries)-1].Hash
}

// Entries returns a copy of all entries in order.
func (j *Journal) Entries() []Entry {
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Events returns the events of all entries in order.
func (j *Journal) Events() []Event {
	out := make([]Event, len(j.entries))
	for i, e := range j.entries {
		out[i] = e.Event
	}
	return out
}

// Next builds the entries that appending events would produce without
// modifying the journal.
func (j *Journal) Next(events ...Event) []Entry {
	out := make([]Entry, 0, len(events))
	prev := j.Head()
	seq := uint64(len(j.entries))
	for _, ev := range events {
		seq++
		e := seal(seq, prev, ev)
		out = append(out, e)
		prev = e.Hash
	}
	return out
}

// Commit appends entries previously built by Next. They must continue the
// chain from the current head.
func (j *Journal) Commit(entries ...Entry) error {
	prev := j.Head()
	seq := uint64(len(j.entries))
	for i := range entries {
		if err := check(entries[i], seq+1, prev); err != nil {
			return err
		}
		prev = entries[i].Hash
		seq++
	}
	j.entries = append(j.entries, entries...)
	return nil
}

// Append seals events and appends them.
func (j *Journal) Append(events ...Event) []Entry {
	entries := j.Next(events...)
	j.entries = append(j.entries, entries...)
	return entries
}

// Restore replaces the journal with persisted entries after verifying them.
func (j *Journal) Restore(entries []Entry) error {
	if err := Verify(entries); err != nil {
		return err
	}
	j.entries = append([]Entry(nil), entries...)
	return nil
}

// Verify checks that entries form an unbroken chain starting at sequence 1.
func Verify(entries []Entry) error {
	var prev [32]byte
	for i := range entries {
		if err := check(entries[i], uint64(i)+1, prev); err != nil {
			return err
		}
		prev = entries[i].Hash
	}
	return nil
}

func check(e Entry, seq uint64, prev [32]byte) error {
	if e.Seq != seq {
		return fmt.Errorf("%w: expected seq %d, got %d", ErrChainBroken, seq, e.Seq)
	}
	if e.PrevHash != prev {
		return fmt.Errorf("%w: entry %d does not follow %x", ErrChainBroken, seq, prev[:8])
	}
	want := seal(e.Seq, e.PrevHash, e.Event)
	if want.Hash != e.Hash || want.ID != e.ID {
		return fmt.Errorf("%w: entry %d", ErrHashMismatch, seq)
	}
	return nil
}

func seal(seq uint64, prev [32]byte, ev Event) Entry {
	h := blake2b.Sum256(encode(seq, prev, ev))
	return Entry{
		ID:       uuid.NewSHA1(entryNamespace, h[:]),
		Seq:      seq,
		Event:    ev,
		PrevHash: prev,
		Hash:     h,
	}
}

// encode is the canonical byte form hashed for an entry:
//
//	prev(32) || seq(8) || kind || from || to || amount(8) || at_unix_nano(8)
//
// where strings are written as uvarint(len) || bytes.
func encode(seq uint64, prev [32]byte, ev Event) []byte {
	var buf bytes.Buffer
	buf.Write(prev[:])
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], seq)
	buf.Write(u64[:])
	var l [binary.MaxVarintLen64]byte
	for _, s := range []string{string(ev.Kind), string(ev.From), string(ev.To)} {
		n := binary.PutUvarint(l[:], uint64(len(s)))
		buf.Write(l[:n])
		buf.WriteString(s)
	}
	binary.BigEndian.PutUint64(u64[:], ev.Amount)
	buf.Write(u64[:])
	binary.BigEndian.PutUint64(u64[:], uint64(ev.At.UnixNano()))
	buf.Write(u64[:])
	return buf.Bytes()
}
