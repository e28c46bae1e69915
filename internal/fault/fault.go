// Package fault defines the typed error taxonomy shared across herald.
//
// Callers that surface errors to operators or end users branch on the
// error kind (validation, conflict, not-found, transport, database)
// instead of matching message strings.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for caller-side handling.
type Kind int

const (
	// KindValidation is bad input the caller can correct.
	KindValidation Kind = iota
	// KindConflict is a uniqueness violation on a stored entity.
	KindConflict
	// KindNotFound is a referenced entity that does not exist.
	KindNotFound
	// KindTransport is an external delivery failure.
	KindTransport
	// KindDatabase is a store operation failure, possibly transient.
	KindDatabase
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	case KindDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// Error is a classified error with an operator-displayable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a validation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Transport wraps an external delivery failure.
func Transport(msg string, err error) error {
	return &Error{Kind: KindTransport, Message: msg, Err: err}
}

// Database wraps a store operation failure.
func Database(msg string, err error) error {
	return &Error{Kind: KindDatabase, Message: msg, Err: err}
}

// is reports whether err carries the given kind anywhere in its chain.
func is(err error, k Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == k
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return is(err, KindValidation) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return is(err, KindConflict) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return is(err, KindNotFound) }

// IsTransport reports whether err is a transport error.
func IsTransport(err error) bool { return is(err, KindTransport) }

// IsDatabase reports whether err is a database error.
func IsDatabase(err error) bool { return is(err, KindDatabase) }

// UserMessage returns the displayable message for classified errors, or a
// generic fallback for anything else. Unclassified errors are not shown to
// end users verbatim.
func UserMessage(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return "something went wrong, try again later"
}
