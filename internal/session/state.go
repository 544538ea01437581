package session

import (
	"errors"
	"fmt"
)

// State is the client-visible phase of a session. Transitions:
//
//	idle       --add-->      collecting
//	collecting --generate--> generating --done--> reviewing
//	reviewing  --add-->      collecting (schedule goes stale, log kept)
//	reviewing  --override--> reviewing
//	any        --close-->    closed
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateGenerating State = "generating"
	StateReviewing  State = "reviewing"
	StateClosed     State = "closed"
)

// StateError rejects an operation invoked in a phase that cannot serve
// it, such as an override before any schedule exists.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s is not allowed while the session is %s", e.Op, e.State)
}

// IsStateError reports whether err is a StateError.
func IsStateError(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}
