package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrToolNotInstalled = errors.New("required tool not installed")
	ErrNoHistory        = errors.New("no submission recorded")
)

// ValidationError reports a form field that could not be encoded.
// It is the only error kind produced by the encoder.
type ValidationError struct {
	Field  string // "delay_time", "gain", "threshold", "ratio", "low", "mid", "high", "effect", "preset"
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidParameter) match any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// NewValidationError creates a ValidationError
func NewValidationError(field, value, reason string) *ValidationError {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// ProcessError represents a failure in an external process
type ProcessError struct {
	Tool     string // "display_effect", "send_effect"
	Stage    string // "display", "control", "clear"
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed at %s (exit %d): %s", e.Tool, e.Stage, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s failed at %s (exit %d)", e.Tool, e.Stage, e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// IsRecoverable returns true when the downstream program can simply be re-run
func (e *ProcessError) IsRecoverable() bool {
	return !errors.Is(e.Cause, ErrToolNotInstalled)
}

// NewProcessError creates a ProcessError
func NewProcessError(tool, stage string, exitCode int, stderr string, cause error) *ProcessError {
	return &ProcessError{
		Tool:     tool,
		Stage:    stage,
		ExitCode: exitCode,
		Stderr:   stderr,
		Cause:    cause,
	}
}
