package store

import "errors"

var (
	// ErrSnapshotNotFound indicates no lease snapshot has been saved yet.
	ErrSnapshotNotFound = errors.New("store: snapshot not found")

	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("store: nil parameter")

	// ErrSequenceGap indicates appended entries do not continue the stored journal.
	ErrSequenceGap = errors.New("store: journal sequence gap")

	// ErrStaleSnapshot indicates a snapshot older than the stored one.
	ErrStaleSnapshot = errors.New("store: stale snapshot version")
)
