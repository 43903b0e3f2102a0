package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation covers bad submission fields. No state is created.
	ErrValidation = errors.New("invalid request")
	// ErrDuplicateRequest means a state already exists for the id and has
	// not been reset.
	ErrDuplicateRequest = errors.New("duplicate request")
	// ErrUnknownRequest means no state exists for the id, or the state is
	// terminal and no longer accepts writes.
	ErrUnknownRequest = errors.New("unknown request")
	// ErrInvalidState rejects an operation the current status does not
	// permit, e.g. deciding a request that is not awaiting approval.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidTransition rejects a step decrease or an illegal status
	// change.
	ErrInvalidTransition = errors.New("invalid transition")
)

// CollaboratorError wraps a failure from an external decision function. The
// workflow converts it into a terminal FAILED status; it never crashes the
// worker.
type CollaboratorError struct {
	Phase string
	Err   error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s collaborator: %v", e.Phase, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
