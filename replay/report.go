package replay

import (
	"encoding/hex"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/bitfsorg/rentshare-go/account"
)

// Participant is one row of a Report.
type Participant struct {
	Name      string
	Account   account.Account
	Shares    uint64
	Unclaimed uint64
	Balance   uint64 // currency balance
}

// Report is the lease state at the end of a run.
type Report struct {
	Scenario  string
	Steps     int
	Activated bool
	NextDue   time.Time // zero before activation
	Due       uint64    // amount due at the final step time

	Collected uint64
	Claimed   uint64
	Dust      uint64
	Held      uint64 // currency held by the lease account

	Participants []Participant

	JournalLen  int
	JournalHead [32]byte
}

func (r *runner) report() (*Report, error) {
	rep := &Report{
		Scenario:   r.sc.Name,
		Steps:      len(r.sc.Steps),
		Activated:  r.lease.Activated(),
		Collected:  r.lease.Collected(),
		Claimed:    r.lease.Claimed(),
		Dust:       r.lease.Dust(),
		Held:       r.money.BalanceOf(r.self),
		JournalLen: len(r.lease.Entries()),
	}
	if rep.Activated {
		var err error
		if rep.NextDue, err = r.lease.DueTimestamp(); err != nil {
			return nil, err
		}
		if rep.Due, err = r.lease.DueAmount(); err != nil {
			return nil, err
		}
	}
	if entries := r.lease.Entries(); len(entries) > 0 {
		rep.JournalHead = entries[len(entries)-1].Hash
	}

	for _, name := range r.sc.Participants {
		a := r.accounts[name]
		u, err := r.lease.ShowUnclaimed(a)
		if err != nil {
			return nil, err
		}
		rep.Participants = append(rep.Participants, Participant{
			Name:      name,
			Account:   a,
			Shares:    r.lease.BalanceOf(a),
			Unclaimed: u,
			Balance:   r.money.BalanceOf(a),
		})
	}
	return rep, nil
}

// Participant returns the row for name.
func (rep *Report) Participant(name string) (Participant, bool) {
	for _, p := range rep.Participants {
		if p.Name == name {
			return p, true
		}
	}
	return Participant{}, false
}

// Print writes rep as aligned text.
func (rep *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "scenario:\t%s\n", rep.Scenario)
	fmt.Fprintf(tw, "steps:\t%d\n", rep.Steps)
	fmt.Fprintf(tw, "activated:\t%t\n", rep.Activated)
	if rep.Activated {
		fmt.Fprintf(tw, "next due:\t%s (%d)\n", rep.NextDue.Format(time.RFC3339), rep.Due)
	}
	fmt.Fprintf(tw, "collected:\t%d\n", rep.Collected)
	fmt.Fprintf(tw, "claimed:\t%d\n", rep.Claimed)
	fmt.Fprintf(tw, "dust:\t%d\n", rep.Dust)
	fmt.Fprintf(tw, "held by lease:\t%d\n", rep.Held)
	fmt.Fprintf(tw, "journal:\t%d entries, head %s\n", rep.JournalLen, hex.EncodeToString(rep.JournalHead[:]))
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "NAME\tACCOUNT\tSHARES\tUNCLAIMED\tBALANCE")
	for _, p := range rep.Participants {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", p.Name, p.Account, p.Shares, p.Unclaimed, p.Balance)
	}
	return tw.Flush()
}
