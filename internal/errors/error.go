package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the typed error the business layers return. Transport handlers
// translate it to HTTP via CodeOf and the ErrorResponse helpers; business
// code never touches http.ResponseWriter.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// E creates a typed error.
func E(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error around an underlying cause.
func Wrap(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithDetail attaches a single detail field, returning the same error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, 1)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternalError for
// untyped errors.
func CodeOf(err error) ErrorCode {
	var te *Error
	if stderrors.As(err, &te) {
		return te.Code
	}
	return ErrCodeInternalError
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// As is a re-export of the standard errors.As so callers in this package's
// consumers don't need both imports.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
