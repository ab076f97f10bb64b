package schedule

import "errors"

var (
	// ErrInvalidTerms indicates lease terms fail validation.
	ErrInvalidTerms = errors.New("schedule: invalid lease terms")

	// ErrAlreadyActivated indicates Activate was called on an active schedule.
	ErrAlreadyActivated = errors.New("schedule: already activated")

	// ErrNotActivated indicates the schedule has no due date yet.
	ErrNotActivated = errors.New("schedule: not activated")

	// ErrAmountOverflow indicates the due amount does not fit in 64 bits.
	ErrAmountOverflow = errors.New("schedule: due amount overflows")
)
