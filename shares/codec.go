package shares

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bitfsorg/rentshare-go/account"
)

const (
	ledgerHeaderSize = 12 // total_shares(8) + num_entries(4)
	entryFixedSize   = 10 // account_len(2) + shares(8)
)

// MarshalBinary encodes the holder table. Entries are written in account
// order so equal ledgers encode identically.
func (l *Ledger) MarshalBinary() ([]byte, error) {
	holders := l.Holders()
	if len(holders) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d holders", ErrInvalidLedgerData, len(holders))
	}
	size := ledgerHeaderSize
	for _, h := range holders {
		if len(h.Account) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: account too long (%d bytes)", ErrInvalidLedgerData, len(h.Account))
		}
		size += entryFixedSize + len(h.Account)
	}

	buf := make([]byte, size)
	offset := 0
	binary.BigEndian.PutUint64(buf[offset:offset+8], l.total)
	offset += 8
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(holders)))
	offset += 4

	for _, h := range holders {
		binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(h.Account)))
		offset += 2
		offset += copy(buf[offset:], h.Account)
		binary.BigEndian.PutUint64(buf[offset:offset+8], h.Shares)
		offset += 8
	}
	return buf, nil
}

// UnmarshalBinary decodes a holder table produced by MarshalBinary and
// replaces the receiver's state with it.
func (l *Ledger) UnmarshalBinary(data []byte) error {
	if len(data) < ledgerHeaderSize {
		return fmt.Errorf("%w: too short (%d bytes)", ErrInvalidLedgerData, len(data))
	}
	offset := 0
	total := binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	count := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if maxEntries := (len(data) - ledgerHeaderSize) / entryFixedSize; count > maxEntries {
		return fmt.Errorf("%w: %d entries cannot fit in %d bytes", ErrInvalidLedgerData, count, len(data))
	}

	balances := make(map[account.Account]uint64, count)
	for i := 0; i < count; i++ {
		if len(data)-offset < entryFixedSize {
			return fmt.Errorf("%w: entry %d truncated", ErrInvalidLedgerData, i)
		}
		n := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if len(data)-offset < n+8 {
			return fmt.Errorf("%w: entry %d truncated", ErrInvalidLedgerData, i)
		}
		a := account.Account(data[offset : offset+n])
		offset += n
		if _, dup := balances[a]; dup {
			return fmt.Errorf("%w: duplicate holder %s", ErrInvalidLedgerData, a)
		}
		balances[a] = binary.BigEndian.Uint64(data[offset : offset+8])
		offset += 8
	}
	if offset != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidLedgerData, len(data)-offset)
	}

	restored, err := Restore(total, balances)
	if err != nil {
		return err
	}
	*l = *restored
	return nil
}
