// Package domainerrors defines coded errors shared across the engine,
// dispatcher and stores. Codes carry the retry decision: the dispatcher
// redelivers retryable failures and dead-letters the rest, so every error
// that crosses a package boundary should carry a code.
package domainerrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	// CodeNotFound: entity id unknown. Permanent; dead-letter.
	CodeNotFound Code = "not_found"
	// CodeInvalidState: the command's source-state precondition failed and
	// the entity is not already settled in the command's target. Permanent;
	// indicates a logic bug or a conflicting concurrent edit.
	CodeInvalidState Code = "invalid_state"
	// CodeGatewayTransient: registry call failed or timed out before any
	// local mutation. Safe to retry.
	CodeGatewayTransient Code = "gateway_transient"
	// CodeGatewayPermanent: registry rejected the request outright. The
	// entity is parked in ERROR for operator intervention.
	CodeGatewayPermanent Code = "gateway_permanent"
	CodeConflict         Code = "conflict"
	CodeValidation       Code = "validation"
	CodeInternal         Code = "internal"
)

// Error is a coded error with an optional wrapped cause.
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

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or any error in its chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Retryable reports whether the transport layer should redeliver the
// message that produced err. Conflicts are retryable: a concurrent writer
// won the version check and the reread may now short-circuit on idempotency.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeGatewayTransient, CodeConflict, CodeInternal:
		return true
	default:
		return false
	}
}
