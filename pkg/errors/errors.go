package errors

import (
	"fmt"
	"time"
)

// LockTimeoutError reports that the shared resource stayed contended for the
// whole acquisition window. It aborts the run: no cycle can proceed without
// the resource.
type LockTimeoutError struct {
	Resource string
	Waited   time.Duration
}

// NewLockTimeoutError constructs a LockTimeoutError.
func NewLockTimeoutError(resource string, waited time.Duration) error {
	return &LockTimeoutError{Resource: resource, Waited: waited}
}

func (e *LockTimeoutError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("lock timeout: %s still held after %s", e.Resource, e.Waited)
}

// StepError represents a runtime failure while probing or applying a step.
type StepError struct {
	StepID string
	Err    error
}

// NewStepError constructs a StepError.
func NewStepError(stepID string, err error) error {
	return &StepError{StepID: stepID, Err: err}
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	if e.StepID != "" {
		return fmt.Sprintf("step %s: %v", e.StepID, e.Err)
	}
	return fmt.Sprintf("step error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ParseError represents a plan file parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures plan validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
