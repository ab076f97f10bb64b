// Package replay drives a lease through a scripted scenario against
// in-memory currency and custody collaborators.
package replay

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bitfsorg/rentshare-go/schedule"
)

// Operation names accepted in Step.Op.
const (
	OpActivate = "activate"
	OpApprove  = "approve"
	OpAllow    = "allow"
	OpPay      = "pay"
	OpTransfer = "transfer"
	OpClaim    = "claim"
	OpExpect   = "expect"
)

// DefaultStart is the scenario clock origin when Scenario.Start is empty.
var DefaultStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Scenario is a scripted lease run.
type Scenario struct {
	Name string `yaml:"name"`

	// Mnemonic, when set, maps participant names to derived P2PKH
	// addresses in declaration order. Otherwise names are used verbatim.
	Mnemonic string `yaml:"mnemonic"`
	Network  string `yaml:"network"`

	Participants []string `yaml:"participants"`
	Asset        Asset    `yaml:"asset"`
	Payer        string   `yaml:"payer"`
	Self         string   `yaml:"self"`
	Start        string   `yaml:"start"` // RFC 3339

	TotalShares uint64            `yaml:"total_shares"`
	Terms       Terms             `yaml:"terms"`
	Faucet      map[string]uint64 `yaml:"faucet"`
	Allowance   uint64            `yaml:"allowance"` // payer to lease, granted at setup

	Steps []Step `yaml:"steps"`
}

// Asset describes the NFT minted at setup.
type Asset struct {
	ID          uint64 `yaml:"id"`
	Description string `yaml:"description"`
	Owner       string `yaml:"owner"`
}

// Terms mirrors schedule.Terms with the period in whole days.
type Terms struct {
	BaseAmount        uint64 `yaml:"base_amount"`
	PeriodDays        uint64 `yaml:"period_days"`
	LateFeePercent    uint64 `yaml:"late_fee_percent"`
	LateFeeCapPercent uint64 `yaml:"late_fee_cap_percent"`
}

// Schedule converts t to schedule terms.
func (t Terms) Schedule() schedule.Terms {
	return schedule.Terms{
		BaseAmount:           t.BaseAmount,
		Period:               time.Duration(t.PeriodDays) * schedule.Day,
		LateFeePercentPerDay: t.LateFeePercent,
		LateFeeCapPercent:    t.LateFeeCapPercent,
	}
}

// Step is one scripted action. Day and Hours place it relative to the
// scenario start; steps must not go back in time.
type Step struct {
	Day    uint64 `yaml:"day"`
	Hours  uint64 `yaml:"hours"`
	Op     string `yaml:"op"`
	By     string `yaml:"by"`
	To     string `yaml:"to"`
	Amount uint64 `yaml:"amount"`

	// ExpectError, when set, must be a substring of the operation's error.
	ExpectError string `yaml:"expect_error"`

	Expect *Expectation `yaml:"expect"`
}

// Offset returns the step time relative to the scenario start.
func (s Step) Offset() time.Duration {
	return time.Duration(s.Day)*schedule.Day + time.Duration(s.Hours)*time.Hour
}

// Expectation lists observed values checked by an expect step. Nil and
// empty fields are not checked.
type Expectation struct {
	Unclaimed map[string]uint64 `yaml:"unclaimed"`
	Shares    map[string]uint64 `yaml:"shares"`
	Balance   map[string]uint64 `yaml:"balance"`
	Due       *uint64           `yaml:"due"`
	Collected *uint64           `yaml:"collected"`
	Claimed   *uint64           `yaml:"claimed"`
	Dust      *uint64           `yaml:"dust"`
}

// Load decodes a scenario document. Unknown fields are rejected.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadFile reads and decodes the scenario at path.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open scenario: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks the scenario's structure. Lease parameters are checked
// again by the coordinator when the run starts.
func (sc *Scenario) Validate() error {
	if len(sc.Participants) == 0 {
		return fmt.Errorf("%w: no participants", ErrInvalidScenario)
	}
	seen := make(map[string]bool, len(sc.Participants))
	for _, p := range sc.Participants {
		if p == "" {
			return fmt.Errorf("%w: empty participant name", ErrInvalidScenario)
		}
		if seen[p] {
			return fmt.Errorf("%w: duplicate participant %q", ErrInvalidScenario, p)
		}
		seen[p] = true
	}
	if sc.Self == "" {
		return fmt.Errorf("%w: self is required", ErrInvalidScenario)
	}
	if !seen[sc.Payer] {
		return fmt.Errorf("%w: payer %q", ErrUnknownParticipant, sc.Payer)
	}
	if !seen[sc.Asset.Owner] {
		return fmt.Errorf("%w: asset owner %q", ErrUnknownParticipant, sc.Asset.Owner)
	}
	if _, err := sc.start(); err != nil {
		return err
	}

	var prev time.Duration
	for i, st := range sc.Steps {
		switch st.Op {
		case OpActivate, OpApprove, OpAllow, OpPay, OpTransfer, OpClaim:
		case OpExpect:
			if st.Expect == nil {
				return fmt.Errorf("%w: step %d: expect without values", ErrInvalidScenario, i+1)
			}
		default:
			return fmt.Errorf("%w: step %d: %q", ErrUnknownOp, i+1, st.Op)
		}
		off := st.Offset()
		if off < prev {
			return fmt.Errorf("%w: step %d", ErrClockBackwards, i+1)
		}
		prev = off
	}
	return nil
}

func (sc *Scenario) start() (time.Time, error) {
	if sc.Start == "" {
		return DefaultStart, nil
	}
	t, err := time.Parse(time.RFC3339, sc.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start: %w", ErrInvalidScenario, err)
	}
	return t.UTC(), nil
}
