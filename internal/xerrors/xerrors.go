// Package xerrors implements the error taxonomy from the core's error
// handling design: a small set of kinds that drive retry, circuit, and
// strict-mode decisions, rather than a type per failure site.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of retry/circuit/strict-mode
// policy. It is never used for user-facing copy; callers switch on it.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransientNetwork
	KindRateLimit
	KindValidation
	KindDomainConflict
	KindConfiguration
	KindDataIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient-network"
	case KindRateLimit:
		return "rate-limit"
	case KindValidation:
		return "validation"
	case KindDomainConflict:
		return "domain-conflict"
	case KindConfiguration:
		return "configuration"
	case KindDataIntegrity:
		return "data-integrity"
	default:
		return "unknown"
	}
}

// Error is the core's wrapped error type. Op names the failing operation
// (e.g. "provider.execute", "costbasis.disposal"); Examples carries
// affected IDs for data-integrity batch failures (at most 5 when set via
// WithExamples; the processor pipeline sets every failing ID).
type Error struct {
	Kind     Kind
	Op       string
	Err      error
	Examples []string
}

func (e *Error) Error() string {
	if len(e.Examples) > 0 {
		return fmt.Sprintf("%s: %s: %v (examples: %v)", e.Op, e.Kind, e.Err, e.Examples)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err as a typed Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithExamples attaches up to 5 example IDs for data-integrity failures.
func (e *Error) WithExamples(ids []string) *Error {
	n := e
	if len(ids) > 5 {
		ids = ids[:5]
	}
	n.Examples = ids
	return n
}

// Is reports whether err (or any error it wraps) is of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the error's kind is one the provider manager's
// retry policy should act on (transient network or rate-limit).
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindTransientNetwork || e.Kind == KindRateLimit
}

// OpensCircuit reports whether repeated occurrences of this error should
// count toward opening a provider's circuit breaker. Validation and
// rate-limit errors do not.
func OpensCircuit(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindTransientNetwork
}
