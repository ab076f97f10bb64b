// Package schedule computes due dates and late fees for a recurring lease
// payment.
package schedule

import (
	"fmt"
	"math"
	"time"

	"lukechampine.com/uint128"
)

// Day is the unit late fees accrue in.
const Day = 24 * time.Hour

// Terms are the fixed economics of a lease.
type Terms struct {
	BaseAmount           uint64        // amount due per period, in currency units
	Period               time.Duration // time from one collection to the next due date
	LateFeePercentPerDay uint64        // percent of BaseAmount added per whole day late
	LateFeeCapPercent    uint64        // upper bound on the total fee in percent of BaseAmount; 0 disables
}

// Validate checks the terms for usable values.
func (t Terms) Validate() error {
	if t.BaseAmount == 0 {
		return fmt.Errorf("%w: base amount must be positive", ErrInvalidTerms)
	}
	if t.Period <= 0 {
		return fmt.Errorf("%w: period must be positive, got %s", ErrInvalidTerms, t.Period)
	}
	return nil
}

// Schedule tracks the next due timestamp of an activated lease.
type Schedule struct {
	Terms     Terms
	NextDue   time.Time
	Activated bool
}

// New returns an inactive schedule for the given terms.
func New(terms Terms) (*Schedule, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	return &Schedule{Terms: terms}, nil
}

// Activate sets the first due date one period after now. It may only be
// called once.
func (s *Schedule) Activate(now time.Time) error {
	if s.Activated {
		return ErrAlreadyActivated
	}
	s.NextDue = now.Add(s.Terms.Period)
	s.Activated = true
	return nil
}

// Advance moves the due date to one period after now. Called after a
// successful collection.
func (s *Schedule) Advance(now time.Time) error {
	if !s.Activated {
		return ErrNotActivated
	}
	s.NextDue = now.Add(s.Terms.Period)
	return nil
}

// LateDays returns the number of whole days now is past the due date.
func (s *Schedule) LateDays(now time.Time) uint64 {
	if !s.Activated || !now.After(s.NextDue) {
		return 0
	}
	return uint64(now.Sub(s.NextDue) / Day)
}

// DueAmount returns the base amount plus the linear late fee for now:
//
//	fee = base * rate * lateDays / 100, capped at base * cap / 100 when cap > 0
func (s *Schedule) DueAmount(now time.Time) (uint64, error) {
	if !s.Activated {
		return 0, ErrNotActivated
	}
	base := s.Terms.BaseAmount
	days := s.LateDays(now)
	if days == 0 || s.Terms.LateFeePercentPerDay == 0 {
		return base, nil
	}

	perDay := uint128.From64(base).Mul64(s.Terms.LateFeePercentPerDay)
	if perDay.Cmp(uint128.Max.Div64(days)) > 0 {
		return 0, fmt.Errorf("%w: %d days late", ErrAmountOverflow, days)
	}
	fee := perDay.Mul64(days).Div64(100)

	if s.Terms.LateFeeCapPercent > 0 {
		limit := uint128.From64(base).Mul64(s.Terms.LateFeeCapPercent).Div64(100)
		if fee.Cmp(limit) > 0 {
			fee = limit
		}
	}

	if fee.Cmp64(math.MaxUint64-base) > 0 {
		return 0, fmt.Errorf("%w: fee %s on base %d", ErrAmountOverflow, fee, base)
	}
	return base + fee.Lo, nil
}

// Clone returns a copy of the schedule.
func (s *Schedule) Clone() *Schedule {
	c := *s
	return &c
}
