// Package apperrors defines the application error taxonomy shared by every
// service. Errors are classified once, at the boundary that talks to the
// procedure engine, and flow unchanged from there to the transport layer,
// where each kind maps to an HTTP status code.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	// KindValidation covers malformed input, no-op changes and entity
	// conflicts (400-equivalent).
	KindValidation Kind = iota + 1

	// KindUnauthorized covers signers lacking the required permissions
	// (403-equivalent).
	KindUnauthorized

	// KindNotFound covers referenced on-chain data that is unavailable
	// (404-equivalent).
	KindNotFound

	// KindUnprocessable covers business-rule violations such as insufficient
	// balance (422-equivalent).
	KindUnprocessable

	// KindInternal covers every unexpected or unmapped failure
	// (500-equivalent).
	KindInternal
)

// String returns a short label for the kind, used in logs and responses.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindUnprocessable:
		return "unprocessable"
	default:
		return "internal"
	}
}

// Error is a classified application error. Resource and ID are only set for
// not-found errors raised while looking up a specific entity.
type Error struct {
	Kind     Kind
	Message  string
	Resource string
	ID       string
}

func (e *Error) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s with ID %q was not found", e.Kind, e.Resource, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewValidation returns a validation error with the given message.
func NewValidation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewUnauthorized returns an unauthorized error with the given message.
func NewUnauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// NewNotFound returns a not-found error for the given resource and id. The
// resource may be empty when the failing lookup cannot be attributed to a
// specific entity, in which case id carries the underlying message.
func NewNotFound(id, resource string) *Error {
	message := id
	if resource != "" {
		message = fmt.Sprintf("%s %q not found", resource, id)
	}
	return &Error{Kind: KindNotFound, Message: message, Resource: resource, ID: id}
}

// NewUnprocessable returns an unprocessable error with the given message.
func NewUnprocessable(message string) *Error {
	return &Error{Kind: KindUnprocessable, Message: message}
}

// NewInternal returns an internal error with the given message.
func NewInternal(message string) *Error {
	return &Error{Kind: KindInternal, Message: message}
}

// From extracts the application error from err's chain, if any.
func From(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// IsKind reports whether err carries an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := From(err)
	return ok && appErr.Kind == kind
}
