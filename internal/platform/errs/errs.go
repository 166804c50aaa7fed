// Package errs defines the error kinds the platform reports to callers.
// Every terminal error carries a machine-checkable kind and a short detail
// string; internals (SQL, redis, stack traces) stay wrapped underneath.
package errs

import (
	"github.com/cockroachdb/errors"
)

type Kind string

const (
	KindUnknown       Kind = "internal"
	KindInvalidTenant Kind = "invalid_tenant"
	KindNotFound      Kind = "not_found"
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindRateLimited   Kind = "rate_limited"
)

// Error is a terminal, caller-visible error.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

func InvalidTenant(detail string) error {
	return &Error{Kind: KindInvalidTenant, Detail: detail}
}

func NotFound(detail string) error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

func Validation(detail string) error {
	return &Error{Kind: KindValidation, Detail: detail}
}

func Conflict(detail string) error {
	return &Error{Kind: KindConflict, Detail: detail}
}

func RateLimited(detail string) error {
	return &Error{Kind: KindRateLimited, Detail: detail}
}

// KindOf returns the kind of err, unwrapping as needed.
// Errors without a kind report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DetailOf returns the caller-visible detail of err, or a generic message
// for unclassified errors so internals never leak.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return "internal error"
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
