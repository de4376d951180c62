// Package core provides the error kinds shared by the census client packages.
package core

import (
	"errors"
	"fmt"
)

// ErrorKind represents the kind of failure that occurred
type ErrorKind string

const (
	// KindNotFound indicates the service has no dataset matching the request
	KindNotFound ErrorKind = "not_found"
	// KindTransport indicates a timeout, connection failure or non-200 status
	KindTransport ErrorKind = "transport_error"
	// KindInvalidQuery indicates a request that completed but returned no data
	KindInvalidQuery ErrorKind = "invalid_query"
	// KindLookup indicates a field or column absent from metadata or a table
	KindLookup ErrorKind = "lookup_error"
	// KindMissingField indicates an expected JSON path absent from a response
	KindMissingField ErrorKind = "missing_field"
	// KindUnexpectedType indicates a JSON value of the wrong type
	KindUnexpectedType ErrorKind = "unexpected_type"
)

// Error is the base error type for all client errors
type Error struct {
	Kind    ErrorKind
	Message string
	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewTransportError creates a new transport error wrapping err
func NewTransportError(message string, err error) *Error {
	return &Error{Kind: KindTransport, Message: message, Err: err}
}

// NewInvalidQueryError creates a new invalid query error
func NewInvalidQueryError(message string) *Error {
	return &Error{Kind: KindInvalidQuery, Message: message}
}

// NewLookupError creates a new lookup error
func NewLookupError(message string) *Error {
	return &Error{Kind: KindLookup, Message: message}
}

// NewMissingFieldError creates an error for an absent JSON path
func NewMissingFieldError(path string) *Error {
	return &Error{Kind: KindMissingField, Message: fmt.Sprintf("missing field %q", path)}
}

// NewUnexpectedTypeError creates an error for a JSON value of the wrong type
func NewUnexpectedTypeError(path, want string) *Error {
	return &Error{Kind: KindUnexpectedType, Message: fmt.Sprintf("field %q is not %s", path, want)}
}
