package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/rentshare-go/journal"
)

var (
	bucketLease   = []byte("lease")
	bucketJournal = []byte("journal")

	keySnapshot = []byte("snapshot")
)

// BoltStore persists a lease in a bbolt database: the snapshot under a
// fixed key in the lease bucket and journal entries keyed by sequence.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketLease, bucketJournal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// seqKey encodes a journal sequence number as an 8-byte big-endian key so
// the cursor walks entries in order.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// SaveSnapshot replaces the stored snapshot.
func (s *BoltStore) SaveSnapshot(snap *Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putSnapshot(tx, snap)
	})
}

// LoadSnapshot returns the stored snapshot.
func (s *BoltStore) LoadSnapshot() (*Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketLease).Get(keySnapshot)
		if data == nil {
			return ErrSnapshotNotFound
		}
		if err := decodeGob(data, &snap); err != nil {
			return fmt.Errorf("boltstore: decode snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// AppendEntries appends journal entries.
func (s *BoltStore) AppendEntries(entries []journal.Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putEntries(tx, entries)
	})
}

// ListEntries returns all journal entries in sequence order.
func (s *BoltStore) ListEntries() ([]journal.Entry, error) {
	var entries []journal.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketJournal).ForEach(func(k, v []byte) error {
			var e journal.Entry
			if err := decodeGob(v, &e); err != nil {
				return fmt.Errorf("boltstore: decode entry %x: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list entries: %w", err)
	}
	return entries, nil
}

// Commit saves snap and appends entries in a single bbolt transaction.
func (s *BoltStore) Commit(snap *Snapshot, entries []journal.Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putSnapshot(tx, snap); err != nil {
			return err
		}
		return putEntries(tx, entries)
	})
}

func putSnapshot(tx *bbolt.Tx, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: snapshot", ErrNilParam)
	}
	b := tx.Bucket(bucketLease)
	if data := b.Get(keySnapshot); data != nil {
		var cur Snapshot
		if err := decodeGob(data, &cur); err != nil {
			return fmt.Errorf("boltstore: decode snapshot: %w", err)
		}
		if snap.Version <= cur.Version {
			return fmt.Errorf("%w: have %d, got %d", ErrStaleSnapshot, cur.Version, snap.Version)
		}
	}
	data, err := encodeGob(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := b.Put(keySnapshot, data); err != nil {
		return fmt.Errorf("boltstore: put snapshot: %w", err)
	}
	return nil
}

func putEntries(tx *bbolt.Tx, entries []journal.Entry) error {
	b := tx.Bucket(bucketJournal)
	next := uint64(1)
	if k, _ := b.Cursor().Last(); k != nil {
		next = binary.BigEndian.Uint64(k) + 1
	}
	for _, e := range entries {
		if e.Seq != next {
			return fmt.Errorf("%w: expected seq %d, got %d", ErrSequenceGap, next, e.Seq)
		}
		data, err := encodeGob(e)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		if err := b.Put(seqKey(e.Seq), data); err != nil {
			return fmt.Errorf("boltstore: put entry: %w", err)
		}
		next++
	}
	return nil
}
