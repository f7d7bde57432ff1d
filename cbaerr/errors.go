// Package cbaerr defines the public error taxonomy surfaced by the
// analytics query core: the distinct observable error kinds produced by
// the classifier's classification table.
package cbaerr

import (
	"fmt"
)

// Code identifies the observable error kind. Unlike the server's own
// numeric error codes (carried separately on QueryError as ServerCode),
// Code distinguishes the handful of kinds the core itself surfaces.
type Code int

const (
	// Analytics represents a generic wrapper for anything not covered by a
	// more specific code below.
	Analytics Code = iota

	// InvalidCredential represents an HTTP 401 response or a server error
	// with code 20000.
	InvalidCredential

	// Timeout represents a caller deadline exceeded, a withHardTimeout
	// firing, a connect-timeout firing, or a server error with code 21002.
	Timeout

	// Query represents a server-side query failure; Error.ServerCode and
	// Error.Message carry the selected primary server error.
	Query

	// InvalidArgument represents a caller-supplied configuration error,
	// such as a negative timeout or conflicting trust options.
	InvalidArgument
)

// String returns the name applications see in error text.
func (c Code) String() string {
	switch c {
	case InvalidCredential:
		return "InvalidCredentialError"
	case Timeout:
		return "TimeoutError"
	case Query:
		return "QueryError"
	case InvalidArgument:
		return "InvalidArgumentError"
	default:
		return "AnalyticsError"
	}
}

// Error represents an error that wraps the error code, error message and an
// optional cause of the error.
//
// This implements the error interface.
type Error struct {
	// Code specifies the error code.
	Code Code `json:"code"`

	// Message specifies the description of error.
	Message string `json:"message"`

	// ServerCode carries the server-reported numeric error code when this
	// is a Query error built from a server error-array entry. It is zero
	// otherwise, including for the InvalidCredential and Timeout errors
	// built from server codes 20000 and 21002.
	ServerCode int `json:"serverCode,omitempty"`

	// Cause optionally specifies the cause of error.
	Cause error `json:"cause,omitempty"`
}

// New creates an error with the specified error code and message.
func New(code Code, msgFmt string, msgArgs ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(msgFmt, msgArgs...),
	}
}

// NewWithCause creates an error with the specified error code, message and the cause of error.
func NewWithCause(code Code, cause error, msgFmt string, msgArgs ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(msgFmt, msgArgs...),
		Cause:   cause,
	}
}

// NewQuery creates a Query error carrying the server's message and error code.
func NewQuery(serverMessage string, serverCode int) *Error {
	return &Error{Code: Query, Message: serverMessage, ServerCode: serverCode}
}

// NewInvalidCredential creates an InvalidCredential error with the specified message.
func NewInvalidCredential(msgFmt string, msgArgs ...interface{}) *Error {
	return New(InvalidCredential, msgFmt, msgArgs...)
}

// NewTimeout creates a Timeout error with the specified message.
func NewTimeout(msgFmt string, msgArgs ...interface{}) *Error {
	return New(Timeout, msgFmt, msgArgs...)
}

// NewInvalidArgument creates an InvalidArgument error with the specified message.
func NewInvalidArgument(msgFmt string, msgArgs ...interface{}) *Error {
	return New(InvalidArgument, msgFmt, msgArgs...)
}

// Error returns a descriptive message for the error, suffixed by the cause
// if one is set. Callers that need to suffix request-context diagnostics
// (spec: "every surfaced error message is suffixed with the request
// context's string form") do so by formatting with this message, not by
// mutating it in place.
func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s]: %s", e.Code, e.Message)
	}

	return fmt.Sprintf("[%s]: %s. Caused by:\n\t%s", e.Code, e.Message, e.Cause.Error())
}

// Unwrap returns the wrapped cause, if any, so errors.Is/As can see through
// this type.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the specified error is an *Error value and, when codes are
// given, that its Code matches one of them.
func Is(err error, codes ...Code) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}

	if len(codes) == 0 {
		return true
	}

	for _, c := range codes {
		if e.Code == c {
			return true
		}
	}

	return false
}

// IsTimeout returns true if the specified error is a Timeout error.
func IsTimeout(err error) bool {
	return Is(err, Timeout)
}

// IsInvalidCredential returns true if the specified error is an
// InvalidCredential error.
func IsInvalidCredential(err error) bool {
	return Is(err, InvalidCredential)
}

// IsInvalidArgument returns true if the specified error is an
// InvalidArgument error.
func IsInvalidArgument(err error) bool {
	return Is(err, InvalidArgument)
}

// IsQuery returns true if the specified error is a Query error.
func IsQuery(err error) bool {
	return Is(err, Query)
}
