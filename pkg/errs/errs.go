// Package errs defines the error taxonomy shared by the Canvas client packages.
//
// Callers test for a kind with errors.Is, e.g. errors.Is(err, errs.ErrNotFound).
// Errors that concern a specific record carry the offending field and value
// in a *LookupError so an operator can locate the problem without re-running
// with verbose logging.
package errs

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrInvalidArgument is returned when required inputs are missing or
	// mutually exclusive inputs are combined incorrectly.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when an expected single match is absent.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSubject is returned when more than one record matches a
	// uniqueness expectation.
	ErrDuplicateSubject = errors.New("duplicate subject")

	// ErrTransport is returned when a request/response cycle failed or the
	// remote returned a non-success status.
	ErrTransport = errors.New("transport failure")

	// ErrParse is returned when a snapshot or response body cannot be decoded.
	ErrParse = errors.New("parse error")
)

// LookupError describes a failed lookup against a collection.
type LookupError struct {
	Kind  error
	Field string
	Value any
	Count int
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	if e.Count > 1 {
		return fmt.Sprintf("%v: %d records with %s=%v", e.Kind, e.Count, e.Field, e.Value)
	}
	return fmt.Sprintf("%v: no record with %s=%v", e.Kind, e.Field, e.Value)
}

// Is reports whether target is the kind of this error.
func (e *LookupError) Is(target error) bool {
	return target == e.Kind
}

// NotFound returns a LookupError of kind ErrNotFound.
func NotFound(field string, value any) error {
	return &LookupError{Kind: ErrNotFound, Field: field, Value: value}
}

// Duplicate returns a LookupError of kind ErrDuplicateSubject.
func Duplicate(field string, value any, count int) error {
	return &LookupError{Kind: ErrDuplicateSubject, Field: field, Value: value, Count: count}
}
