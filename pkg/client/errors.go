package client

import (
	"fmt"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
)

// APIError represents a failed Canvas request with additional context.
// It always matches errs.ErrTransport.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Method     string
	Endpoint   string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("canvas %s error: %s %s: %s: %v",
			e.ErrorClass, e.Method, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("canvas %s error (status %d): %s %s: %s",
		e.ErrorClass, e.StatusCode, e.Method, e.Endpoint, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{errs.ErrTransport, e.Err}
	}
	return []error{errs.ErrTransport}
}
