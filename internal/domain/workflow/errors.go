package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a trigger is configured but none of
	// its guards accept the facts
	ErrGuardFailed = errors.New("guard condition failed")
)

// TransitionError records the status and trigger of a rejected transition.
// It unwraps to ErrInvalidTransition or ErrGuardFailed.
type TransitionError struct {
	From    State
	Trigger Trigger
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s from %s: %v", e.Trigger, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
