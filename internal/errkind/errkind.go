// Package errkind provides the typed error taxonomy shared across the orchestration
// core, so callers can branch on a stable Kind without parsing messages.
package errkind

import "fmt"

// Kind classifies an error into one of the categories a caller may need to branch on.
type Kind int8

const (
	// Network indicates a transport failure reaching a provider.
	Network Kind = iota
	// Authentication indicates a provider rejected credentials.
	Authentication
	// ModelNotFound indicates the provider has no such model.
	ModelNotFound
	// RateLimited indicates the provider throttled the request.
	RateLimited
	// ServiceUnavailable indicates the provider returned a server-side error.
	ServiceUnavailable
	// Parse indicates a malformed provider response.
	Parse
	// Timeout indicates a task or gate exceeded its deadline.
	Timeout
	// Cancelled indicates explicit cancellation.
	Cancelled
	// NotFound indicates an unknown session/agent/task id.
	NotFound
	// Duplicate indicates an agent name is already registered.
	Duplicate
	// Validation indicates a gate-blocking failure or changeset invariant violation.
	Validation
	// Conflict indicates a changeset file overlap or a session lock.
	Conflict
	// Persistence indicates a backend failure (load/save/delete).
	Persistence
	// Config indicates invalid or missing configuration.
	Config
)

//nolint:gochecknoglobals // label table, not mutable state
var names = map[Kind]string{
	Network: "network",
	Authentication: "authentication",
	ModelNotFound: "model_not_found",
	RateLimited: "rate_limited",
	ServiceUnavailable: "service_unavailable",
	Parse: "parse",
	Timeout: "timeout",
	Cancelled: "cancelled",
	NotFound: "not_found",
	Duplicate: "duplicate",
	Validation: "validation",
	Conflict: "conflict",
	Persistence: "persistence",
	Config: "config",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the typed error every component boundary returns. It carries a stable Kind
// plus a human-readable message and never leaks a stack trace across the boundary.
type Error struct {
	Cause error
	Message string
	Kind Kind
}

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that wraps an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can write
// errors.Is(err, errkind.New(errkind.NotFound, "")) without caring about the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err if it (or something it wraps) is an *Error.
// It returns (0, false) for plain errors so callers can fall back to a default.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if ke, ok := err.(*Error); ok { //nolint:errorlint // walking the chain manually below
			e = ke
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return 0, false
	}
	return e.Kind, true
}
