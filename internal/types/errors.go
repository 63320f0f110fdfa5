package types

import (
	"errors"
	"fmt"
)

// ValidationError rejects a whole input before any row is processed, such as
// a malformed header or an unreadable upload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// RowError records why a single row was skipped during ingestion. Row is the
// 1-based position in the source, header excluded.
type RowError struct {
	Row    int
	Column string
	Reason string
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("row %d, column %q: %s", e.Row, e.Column, e.Reason)
}

// TransientError wraps a failure that is worth retrying, such as a network
// timeout or a busy browser engine.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// FatalError wraps a failure that no retry can fix, such as a missing record
// set or an unrenderable template.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func Fatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}

// IsTransient reports whether an error chain is retryable. A FatalError
// anywhere in the chain wins over a transient cause underneath it.
func IsTransient(err error) bool {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return false
	}
	var transient *TransientError
	return errors.As(err, &transient)
}

// DegradedWarning notes a wait phase that gave up before its condition held.
// Rendering continues; the warning travels with the produced artifact.
type DegradedWarning struct {
	Phase  string
	Reason string
}

func (w *DegradedWarning) Error() string {
	return fmt.Sprintf("render degraded in phase %s: %s", w.Phase, w.Reason)
}
