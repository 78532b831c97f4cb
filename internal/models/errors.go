package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an error for machine consumption. The CLI maps each
// kind to a distinct non-zero exit code; library callers switch on KindOf.
type ErrorKind string

// Error kinds.
const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindNotFound            ErrorKind = "not_found"
	KindDependencyViolation ErrorKind = "dependency_violation"
	KindCycleDetected       ErrorKind = "cycle_detected"
	KindIllegalTransition   ErrorKind = "illegal_transition"
	KindValidationFailed    ErrorKind = "validation_failed"
	KindStoreBusy           ErrorKind = "store_busy"
	KindLockTimeout         ErrorKind = "lock_timeout"
	KindSchemaMismatch      ErrorKind = "schema_mismatch"
	KindSizeExceeded        ErrorKind = "size_exceeded"
	KindCorrupt             ErrorKind = "corrupt"
	KindInternal            ErrorKind = "internal"
)

// Error is the structured error carried by every failure the engine surfaces.
// It wraps an optional cause and carries key/value context for diagnostics.
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// WithContext attaches a context key/value pair and returns e for chaining.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string, 1)
	}
	e.Context[key] = value
	return e
}

// SlogAttrs returns structured logging attributes for the error.
func (e *Error) SlogAttrs() []any {
	attrs := []any{"kind", string(e.Kind)}
	for k, v := range e.Context {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// E constructs a structured error of the given kind.
func E(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a structured error of the given kind wrapping a cause.
func Wrap(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the ErrorKind from err, or KindInternal if err carries none.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidationFailed
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// CriterionResult is the evaluation outcome for a single success criterion.
type CriterionResult struct {
	Criterion string `json:"criterion"`
	Passed    bool   `json:"passed"`
	Reason    string `json:"reason,omitempty"`
}

// ValidationError is returned when completion validation fails. It carries
// the per-criterion results so callers can report exactly what was unmet.
type ValidationError struct {
	TaskID   string
	Failures []CriterionResult
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Criterion)
	}
	return fmt.Sprintf("validation failed for task %s: unmet criteria: %s", e.TaskID, strings.Join(names, ", "))
}

// SlogAttrs returns structured logging attributes for the error.
func (e *ValidationError) SlogAttrs() []any {
	return []any{"kind", string(KindValidationFailed), "task_id", e.TaskID, "unmet", len(e.Failures)}
}
