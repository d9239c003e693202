package apperr

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies a failed operation. Kinds are part of the service contract:
// the HTTP layer maps each kind to a stable status code and callers decide
// retriability from the kind alone.
type Kind string

const (
	// Non-retriable without re-reading state first.
	KindInvalidTransition        Kind = "INVALID_TRANSITION"
	KindUnauthorized             Kind = "UNAUTHORIZED"
	KindDuplicateOpenQuery       Kind = "DUPLICATE_OPEN_QUERY"
	KindThreadResolved           Kind = "THREAD_RESOLVED"
	KindAlreadyResolved          Kind = "ALREADY_RESOLVED"
	KindEditWindowExpired        Kind = "EDIT_WINDOW_EXPIRED"
	KindInsufficientBalance      Kind = "INSUFFICIENT_BALANCE"
	KindOutstandingRequestExists Kind = "OUTSTANDING_REQUEST_EXISTS"
	KindNotFound                 Kind = "NOT_FOUND"
	KindValidation               Kind = "VALIDATION"

	// Retriable unchanged by the caller.
	KindTimeout     Kind = "TIMEOUT"
	KindUnavailable Kind = "UNAVAILABLE"
)

// Error is a structured domain error. Services return *Error for every
// rejected operation; the message is diagnostic, the Kind is the contract.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a domain error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or KindUnavailable when err is not a
// domain error (unexpected failures are treated as transient store trouble).
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retriable reports whether the caller may retry the operation unchanged.
func Retriable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindUnavailable:
		return true
	}
	return false
}

// FromStore translates a record-store failure into a domain error. Missing
// rows become NotFound; deadline expiry becomes Timeout; everything else is
// surfaced as Unavailable so callers never see driver-level errors.
func FromStore(err error, entity string) *Error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return New(KindNotFound, "%s not found", entity)
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(KindTimeout, err, "record store timed out")
	default:
		return Wrap(KindUnavailable, err, "record store unavailable")
	}
}
