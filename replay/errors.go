package replay

import "errors"

var (
	// ErrInvalidScenario indicates the scenario document is malformed.
	ErrInvalidScenario = errors.New("replay: invalid scenario")

	// ErrUnknownParticipant indicates a step names a participant that is not declared.
	ErrUnknownParticipant = errors.New("replay: unknown participant")

	// ErrUnknownOp indicates a step uses an unsupported operation.
	ErrUnknownOp = errors.New("replay: unknown operation")

	// ErrClockBackwards indicates a step is scheduled before the previous one.
	ErrClockBackwards = errors.New("replay: step time precedes previous step")

	// ErrExpectationFailed indicates an expect step observed a different value.
	ErrExpectationFailed = errors.New("replay: expectation failed")

	// ErrUnexpectedOutcome indicates an operation succeeded where an error
	// was expected, or failed with a different error.
	ErrUnexpectedOutcome = errors.New("replay: unexpected outcome")
)
