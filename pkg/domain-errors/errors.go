// Package domainerrors defines the typed error codes the voting engine
// returns across package boundaries. Services construct these; the HTTP layer
// translates codes to status codes without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class. Rejection codes are user-facing and carry
// exactly one reason so callers can surface an actionable message without
// leaking check ordering.
type Code string

const (
	// Eligibility rejections. Each is distinct so UIs can tell
	// "KYC not verified" from "wrong device" from "already voted".
	CodeNotVerified    Code = "not_verified"
	CodeAlreadyVoted   Code = "already_voted"
	CodeScopeMismatch  Code = "scope_mismatch"
	CodeDeviceMismatch Code = "device_mismatch"

	// CodeWindowClosed is separate from the eligibility codes so callers can
	// show a countdown instead of a permission error.
	CodeWindowClosed Code = "window_closed"

	// CodeInvalidBallot covers malformed submissions: wrong position count or
	// a candidate that does not belong to the position/election.
	CodeInvalidBallot Code = "invalid_ballot"

	// CodeIntegrityFailure marks a stored record whose recomputed hash does
	// not match. Never auto-corrected.
	CodeIntegrityFailure Code = "integrity_failure"

	// Transport / infrastructure codes.
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal"
)

// Error is the concrete error type carried across layers.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with a static message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from an error chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Retryable reports whether the caller may safely retry: nothing was
// committed for timeout/unavailable failures.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeTimeout, CodeUnavailable:
		return true
	}
	return false
}

// ToHTTPStatus maps a code to an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidBallot:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotVerified, CodeScopeMismatch, CodeDeviceMismatch, CodeWindowClosed, CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyVoted, CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
