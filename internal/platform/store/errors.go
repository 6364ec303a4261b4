package store

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by a repository matches exactly one of
// these through errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrOperationFailed  = errors.New("operation failed")
	ErrValidationFailed = errors.New("validation failed")
)

// Error is the typed failure returned by repositories and domain services.
type Error struct {
	Kind error  // one of the sentinels above
	Op   string // e.g. "services.update"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound reports a missing record in a collection.
func NotFound(op, id string) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf("record %s not found", id)}
}

// Invalid reports a caller-side validation failure.
func Invalid(op, format string, args ...interface{}) error {
	return &Error{Kind: ErrValidationFailed, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Failed wraps a backend error. Errors that already carry a kind are returned
// unchanged so that NotFound and ValidationFailed survive the wrapping.
func Failed(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: ErrOperationFailed, Op: op, Err: err}
}

// IsNotFound reports whether err is a NotFound failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is a ValidationFailed failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidationFailed) }
