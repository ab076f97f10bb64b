package lease

import (
	"fmt"
	"time"

	"github.com/bitfsorg/rentshare-go/accrual"
	"github.com/bitfsorg/rentshare-go/schedule"
	"github.com/bitfsorg/rentshare-go/shares"
	"github.com/bitfsorg/rentshare-go/store"
)

// aggregate is everything an operation may change. Operations mutate a
// clone and swap it in only once every external call has succeeded.
type aggregate struct {
	version   uint64
	ledger    *shares.Ledger
	sched     *schedule.Schedule
	acc       *accrual.Accumulator
	collected uint64
	claimed   uint64
	dust      uint64
}

func newAggregate(p Params) (*aggregate, error) {
	ledger, err := shares.NewLedger(p.TotalShares)
	if err != nil {
		return nil, err
	}
	sched, err := schedule.New(p.Terms)
	if err != nil {
		return nil, err
	}
	return &aggregate{
		ledger: ledger,
		sched:  sched,
		acc:    accrual.New(p.TotalShares),
	}, nil
}

func (a *aggregate) clone() *aggregate {
	return &aggregate{
		version:   a.version,
		ledger:    a.ledger.Clone(),
		sched:     a.sched.Clone(),
		acc:       a.acc.Clone(),
		collected: a.collected,
		claimed:   a.claimed,
		dust:      a.dust,
	}
}

func (a *aggregate) snapshot(p Params) (*store.Snapshot, error) {
	holders, err := a.ledger.MarshalBinary()
	if err != nil {
		return nil, err
	}
	st := a.acc.Export()
	snap := &store.Snapshot{
		Version:     a.version,
		AssetID:     uint64(p.AssetID),
		Payer:       p.Payer,
		Self:        p.Self,
		TotalShares: p.TotalShares,
		Activated:   a.sched.Activated,
		Holders:     holders,
		AccPerShare: st.AccPerShare,
		Positions:   st.Positions,
		Collected:   a.collected,
		Claimed:     a.claimed,
		Dust:        a.dust,
	}
	if a.sched.Activated {
		snap.NextDue = a.sched.NextDue.UnixNano()
	}
	return snap, nil
}

func restoreAggregate(p Params, snap *store.Snapshot) (*aggregate, error) {
	if snap.AssetID != uint64(p.AssetID) || snap.Payer != p.Payer ||
		snap.Self != p.Self || snap.TotalShares != p.TotalShares {
		return nil, fmt.Errorf("%w: snapshot is for asset %d payer %s", ErrSnapshotMismatch, snap.AssetID, snap.Payer)
	}
	a, err := newAggregate(p)
	if err != nil {
		return nil, err
	}
	if err := a.ledger.UnmarshalBinary(snap.Holders); err != nil {
		return nil, err
	}
	if a.ledger.TotalShares() != p.TotalShares {
		return nil, fmt.Errorf("%w: holder table supply %d", ErrSnapshotMismatch, a.ledger.TotalShares())
	}
	if a.acc, err = accrual.Restore(p.TotalShares, accrual.State{
		AccPerShare: snap.AccPerShare,
		Positions:   snap.Positions,
	}); err != nil {
		return nil, err
	}
	if snap.Activated {
		a.sched.Activated = true
		a.sched.NextDue = time.Unix(0, snap.NextDue).UTC()
	}
	a.version = snap.Version
	a.collected = snap.Collected
	a.claimed = snap.Claimed
	a.dust = snap.Dust
	return a, nil
}
