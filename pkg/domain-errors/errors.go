// Package domainerrors provides code-carrying errors for the registry core.
//
// Services attach a Code to every error they return so transport layers can
// map failures to responses without string matching, and so callers can make
// policy decisions (retry, surface verbatim, mask) per error class.
//
// Stores do NOT use this package; they return pkg/platform/sentinel errors
// and services translate at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeUnauthorized: caller identity missing or invalid (authentication).
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden: caller lacks the role required for the operation.
	// Always rejected before any mutation.
	CodeForbidden Code = "forbidden"
	// CodeNotFound: unknown identity/claim/asset/listing/escrow id.
	CodeNotFound Code = "not_found"
	// CodeConflict: operation's required status precondition not met, or a
	// uniqueness constraint violated (e.g. registering twice).
	CodeConflict Code = "conflict"
	// CodeValidation: malformed input (zero price, empty metadata,
	// mismatched batch lengths).
	CodeValidation Code = "validation"
	// CodeComplianceRejected: transfer rejected by the compliance engine.
	// The message is the human-readable reason and is surfaced verbatim.
	CodeComplianceRejected Code = "compliance_rejected"
	// CodePaused: module is paused and the operation is not exempt.
	CodePaused Code = "paused"
	// CodeInvariantViolation: aggregate constructor or transition guard
	// rejected a state change. Services usually translate this to
	// CodeValidation or CodeConflict before returning to transport.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTimeout: context deadline exceeded.
	CodeTimeout Code = "timeout"
	// CodeInternal: unexpected infrastructure failure.
	CodeInternal Code = "internal"
)

// DomainError couples a Code with a message and an optional wrapped cause.
type DomainError struct {
	Code    Code
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// New constructs a DomainError without a cause.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Newf constructs a DomainError with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the message from err without the code prefix.
// Falls back to err.Error() for non-domain errors.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// ToHTTPStatus maps a code to the HTTP status used by the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeComplianceRejected:
		return http.StatusUnprocessableEntity
	case CodePaused:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
