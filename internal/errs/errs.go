// Package errs provides the error sum type used across the engine in
// place of exception-style control flow (spec.md §7, §9): every function's
// failure modes are explicit, carrying a stable Kind + Code and a
// human-readable Message, with an optional wrapped cause.
package errs

import "fmt"

// Kind is the coarse error taxonomy from spec.md §7. It never changes at
// runtime and is what callers switch on to decide retry/fatal handling.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindConnectivity  Kind = "connectivity"
	KindTransient     Kind = "transient"
	KindValidation    Kind = "validation"
	KindRiskPolicy    Kind = "risk_policy"
	KindExternalTool  Kind = "external_tool"
	KindBackup        Kind = "backup"
	KindRollback      Kind = "rollback"
)

// Error is the engine's sum-type error: Kind classifies it, Code names the
// specific failure, Message is free-form, and cause is an optional wrapped
// error for %w-style unwrapping.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error that wraps cause.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// Retryable reports whether the error's kind is one the retry policy
// should act on: Transient always, Connectivity only at connection-creation
// time (callers distinguish by context, not here).
func Retryable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindTransient
}
