// Package apperr defines the error taxonomy shared by the backend client and the coordinators.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure.
type Code string

const (
	CodeTransport    Code = "TRANSPORT"
	CodeStatus       Code = "STATUS"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeMissingToken Code = "MISSING_TOKEN"
	CodeApplication  Code = "APPLICATION"
	CodeDecode       Code = "DECODE"
	CodeValidation   Code = "VALIDATION"
)

// Error carries a classified failure. Op names the operation ("login", "search recipes").
type Error struct {
	Code    Code
	Op      string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	switch {
	case e.Op != "" && e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Code, e.Status, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error without a cause.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap creates an error around cause.
func Wrap(code Code, op string, cause error) *Error {
	return &Error{Code: code, Op: op, Cause: cause}
}

// FromStatus classifies a non-2xx HTTP response.
func FromStatus(op string, status int, message string) *Error {
	code := CodeStatus
	if status == http.StatusUnauthorized {
		code = CodeUnauthorized
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Code: code, Op: op, Status: status, Message: message}
}

// Validation creates a client-side validation error.
func Validation(op, message string) *Error {
	return New(CodeValidation, op, message)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsUnauthorized reports whether err should end the session: a 401 or a missing token.
func IsUnauthorized(err error) bool {
	switch CodeOf(err) {
	case CodeUnauthorized, CodeMissingToken:
		return true
	}
	return false
}

// UserMessage renders err for a transient notification.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		if err == nil {
			return ""
		}
		return "An unexpected error occurred"
	}
	switch e.Code {
	case CodeTransport:
		return "Could not reach the server. Check your connection and try again."
	case CodeUnauthorized:
		return "Your session has expired. Please sign in again."
	case CodeMissingToken:
		if e.Message == "" {
			return "Your session has expired. Please sign in again."
		}
	case CodeDecode:
		return "The server sent a response we could not read."
	}
	if e.Message != "" {
		return e.Message
	}
	return "An unexpected error occurred"
}
