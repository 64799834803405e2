// Package engineerr defines the closed error taxonomy returned across every
// engine boundary (validation, matching, settlement, store). Callers switch
// on Kind rather than inspecting error strings; the HTTP layer maps Kind to
// a status code in one place.
package engineerr

import "fmt"

// Kind is a closed enum of business-facing failure categories.
type Kind string

const (
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindMarketNotTradable   Kind = "MARKET_NOT_TRADABLE"
	KindInsufficientFunds   Kind = "INSUFFICIENT_FUNDS"
	KindInsufficientShares  Kind = "INSUFFICIENT_SHARES"
	KindLimitExceeded       Kind = "LIMIT_EXCEEDED"
	KindNotFound            Kind = "NOT_FOUND"
	KindForbidden           Kind = "FORBIDDEN"
	KindNotCancellable      Kind = "NOT_CANCELLABLE"
	KindConflict            Kind = "CONFLICT"
	KindTimeout             Kind = "TIMEOUT"
	KindInternal            Kind = "INTERNAL"
)

// HTTPStatus maps a Kind to the status code the API surface returns.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return 400
	case KindMarketNotTradable, KindNotCancellable:
		return 409
	case KindInsufficientFunds, KindInsufficientShares:
		return 422
	case KindLimitExceeded:
		return 429
	case KindNotFound:
		return 404
	case KindForbidden:
		return 403
	case KindConflict:
		return 409
	case KindTimeout:
		return 408
	default:
		return 500
	}
}

// Error is the concrete error type every engine-facing function returns.
// Message is safe to surface to a client; Cause (if set) is logged but
// never serialized.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given Kind — the idiomatic
// switch point for callers deciding how to respond.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, fmt.Sprintf(format, args...))
}

func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}
