// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrAutomationNotFound indicates an automation was not found by the given identifier.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrRunNotFound indicates a run was not found by the given identifier
	// or wait criteria.
	ErrRunNotFound = errors.New("run not found")

	// ErrVersionConflict indicates a compare-and-swap lost to a concurrent
	// writer. Callers re-read the run and decide again.
	ErrVersionConflict = errors.New("run version conflict")

	// ErrRunAlreadyExists indicates a run with the same identifier already exists.
	ErrRunAlreadyExists = errors.New("run already exists")
)

// RunError wraps run-related errors with additional context.
type RunError struct {
	Op    string // Operation being performed (e.g., "GetByID", "CompareAndSwap")
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for run errors.
func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunError creates a new run error with context.
func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// AutomationError wraps automation-related errors with additional context.
type AutomationError struct {
	Op           string
	AutomationID string
	Err          error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s operation failed for automation %s: %v", e.Op, e.AutomationID, e.Err)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

func (e *AutomationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewAutomationError creates a new automation error with context.
func NewAutomationError(op, automationID string, err error) *AutomationError {
	return &AutomationError{Op: op, AutomationID: automationID, Err: err}
}
