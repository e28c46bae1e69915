package transport

import (
	"errors"
	"fmt"
)

// FailureKind buckets delivery errors by what the operator can do about
// them. Transports attach a kind by returning a *Failure; anything else
// classifies as FailureUnknown.
type FailureKind int

const (
	// FailureUnknown covers errors the transport could not interpret.
	FailureUnknown FailureKind = iota
	// FailureNotFound means the destination chat does not exist or the
	// bot was never added to it.
	FailureNotFound
	// FailureForbidden means the recipient blocked the bot or the bot
	// lacks permission to post.
	FailureForbidden
	// FailureRateLimited means the platform asked us to slow down; the
	// message is worth retrying later.
	FailureRateLimited
)

func (k FailureKind) String() string {
	switch k {
	case FailureNotFound:
		return "not_found"
	case FailureForbidden:
		return "forbidden"
	case FailureRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Failure wraps a platform error with a classification.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("transport: %s", f.Kind)
	}
	return fmt.Sprintf("transport: %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Failf builds a classified Failure.
func Failf(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// Classify extracts the FailureKind from a delivery error.
func Classify(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureUnknown
}

// Describe renders a delivery error for persistence in a message's
// failure column: the classification plus the platform detail.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Error()
	}
	return err.Error()
}
