package waitfor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("wait timed out")

	// ErrConditionNotMet is returned by an immediate check that did not hold.
	ErrConditionNotMet = errors.New("condition not met")

	// ErrPreconditionCycle is returned when a registration would close a loop
	// in the precondition graph.
	ErrPreconditionCycle = errors.New("precondition cycle")
)

// TimeoutError reports that a bounded wait expired before its condition held.
type TimeoutError struct {
	Condition string
	Bound     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("wait for %s timed out after %s", e.Condition, e.Bound)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
