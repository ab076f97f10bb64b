package journal

import "errors"

var (
	// ErrChainBroken indicates an entry does not link to its predecessor.
	ErrChainBroken = errors.New("journal: hash chain broken")

	// ErrHashMismatch indicates an entry's stored hash or id does not match its content.
	ErrHashMismatch = errors.New("journal: entry hash mismatch")
)
