package service

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindPayloadTooLarge
	KindUnsupportedMediaType
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindUnsupportedMediaType:
		return "unsupported_media_type"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is an application failure with a message that is safe to show to clients. Err
// keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, ErrNotFound) holds for every
// not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrPayloadTooLarge      = &Error{Kind: KindPayloadTooLarge}
	ErrUnsupportedMediaType = &Error{Kind: KindUnsupportedMediaType}
	ErrInternal             = &Error{Kind: KindInternal}
)

const internalMessage = "Internal server error"

func newError(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Validation(message string) error { return newError(KindValidation, message) }
func Unauthorized(message string) error { return newError(KindUnauthorized, message) }
func Forbidden(message string) error { return newError(KindForbidden, message) }
func NotFound(message string) error { return newError(KindNotFound, message) }
func Conflict(message string) error { return newError(KindConflict, message) }
func PayloadTooLarge(message string) error { return newError(KindPayloadTooLarge, message) }
func UnsupportedMediaType(message string) error {
	return newError(KindUnsupportedMediaType, message)
}

// Internal wraps an unexpected failure. The client only ever sees the generic message.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Message: internalMessage, Err: err}
}

// KindOf returns the kind of err, treating anything that is not an *Error as internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// PublicMessage returns the text that may be sent to a client for err.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal && appErr.Message != "" {
		return appErr.Message
	}
	return internalMessage
}
