package browser

import (
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/rodchain/pkg/waitfor"
	"github.com/ysmood/gson"
)

var (
	// ErrStaleState matches every *StaleStateError.
	ErrStaleState = errors.New("stale state")

	// ErrNotFound is returned when a NodeSet lookup matched no element.
	ErrNotFound = errors.New("node not found")

	// ErrTimeout matches every bounded wait that expired.
	ErrTimeout = waitfor.ErrTimeout
)

// StaleStateError reports a read of entity data that does not exist: either
// the entity is still pending behind a promise, or its session was terminated.
type StaleStateError struct {
	Field  string
	Reason string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("%s can not be accessed: %s", e.Field, e.Reason)
}

func (e *StaleStateError) Is(target error) bool {
	return target == ErrStaleState
}

func pendingField(field string) error {
	return &StaleStateError{Field: field, Reason: "value is still pending"}
}

func terminatedField(field string) error {
	return &StaleStateError{Field: field, Reason: "session is terminated"}
}

// ScriptError carries the value an in-page script rejected with.
type ScriptError struct {
	Value gson.JSON
}

func (e *ScriptError) Error() string {
	return "script failed: " + e.Value.JSON("", "")
}
