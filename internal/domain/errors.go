package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a trip, approval, segment or identity does not exist.
// Handlers map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrPrecondition is returned when an operation is invoked while the trip is
// not in a status that permits it. Handlers map this to HTTP 409.
var ErrPrecondition = errors.New("precondition failed")

// ErrStaleState is returned when a compare-and-set write loses a race.
var ErrStaleState = fmt.Errorf("%w: trip status changed concurrently", ErrPrecondition)

// ErrApprovalClosed is returned when deciding on an approval that already has a decision.
var ErrApprovalClosed = fmt.Errorf("%w: approval already decided", ErrPrecondition)

// ErrApprovalAlreadyOpen is returned when opening a second undecided approval for a trip.
var ErrApprovalAlreadyOpen = fmt.Errorf("%w: trip already has an open approval", ErrPrecondition)

// ErrValidation is returned when input breaks a business rule, such as a
// reschedule touching a non-date field. Handlers map this to HTTP 422.
var ErrValidation = errors.New("validation error")

// ErrForbidden is returned when the caller may not act on the trip or approval.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write collides with a unique constraint.
var ErrConflict = errors.New("conflict")

// ErrInvalidInput is returned for malformed requests. Handlers map this to HTTP 400.
var ErrInvalidInput = errors.New("invalid input")

// PreconditionError names the operation and the status that blocked it.
type PreconditionError struct {
	Op     string
	Status string
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("%s not allowed while trip is %s", e.Op, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap exposes both ErrPrecondition and the underlying cause.
func (e *PreconditionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPrecondition}
	}
	return []error{ErrPrecondition, e.Err}
}

// NewPreconditionError builds a PreconditionError for op at status.
func NewPreconditionError(op, status string, cause error) *PreconditionError {
	return &PreconditionError{Op: op, Status: status, Err: cause}
}
