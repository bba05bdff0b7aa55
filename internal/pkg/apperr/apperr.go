package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrCircuitOpen is returned when a guarded resource is rejecting calls.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrAnomalyBlocked signals the quality gate rejected a schedule. The
	// full report still travels as data; this sentinel only exists so batch
	// aggregation can label the outcome.
	ErrAnomalyBlocked = errors.New("schedule blocked by anomaly gate")
)

// PersistenceError marks a failed write at the storage boundary.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError marks malformed input. Callers reject immediately, no retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// StateTransitionError marks an illegal rotation state-machine move. The
// tracker lands in its error state and must be reseeded.
type StateTransitionError struct {
	From string
	To   string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal state transition %s -> %s", e.From, e.To)
}

// SagaStepError wraps any step failure, including timeouts. It triggers
// compensation of all previously completed steps.
type SagaStepError struct {
	Step string
	Err  error
}

func (e *SagaStepError) Error() string {
	return fmt.Sprintf("saga step %s: %v", e.Step, e.Err)
}

func (e *SagaStepError) Unwrap() error { return e.Err }

// CircuitOpenError carries the guarded resource name so batch results can
// label the failure. Wraps ErrCircuitOpen for errors.Is checks.
type CircuitOpenError struct {
	Resource string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s", e.Resource)
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// StateError is raised when the rotation tracker is asked for styles while in
// its error state.
type StateError struct {
	CreatorID string
	State     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("rotation state unusable for creator %s (state=%s), reseed required", e.CreatorID, e.State)
}
