// Package apperrors defines the failure kinds surfaced by the story engine.
//
// Every error returned by services and repositories carries one Kind so that
// transports can map it to a stable identifier. Match kinds with errors.Is
// against the Err* sentinels:
//
//	if errors.Is(err, apperrors.ErrNotFound) { ... }
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is a stable failure category.
type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindNotFound      Kind = "not_found"
	KindPermission    Kind = "permission_denied"
	KindInvalidState  Kind = "invalid_state"
	KindConflict      Kind = "conflict"
	KindDataIntegrity Kind = "data_integrity"
	KindInternal      Kind = "internal"
)

// Sentinels for errors.Is matching. They compare by kind only.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrPermission    = &Error{Kind: KindPermission}
	ErrInvalidState  = &Error{Kind: KindInvalidState}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrDataIntegrity = &Error{Kind: KindDataIntegrity}
	ErrInternal      = &Error{Kind: KindInternal}
)

// Error is a classified failure with an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error   { return newf(KindValidation, format, args...) }
func NotFound(format string, args ...any) error     { return newf(KindNotFound, format, args...) }
func Permission(format string, args ...any) error   { return newf(KindPermission, format, args...) }
func InvalidState(format string, args ...any) error { return newf(KindInvalidState, format, args...) }
func Conflict(format string, args ...any) error     { return newf(KindConflict, format, args...) }
func DataIntegrity(format string, args ...any) error {
	return newf(KindDataIntegrity, format, args...)
}

// Internal wraps an unexpected infrastructure failure.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of a classified error.
// Unclassified and internal errors never leak their cause.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal && appErr.Kind != KindDataIntegrity {
		if appErr.Message != "" {
			return appErr.Message
		}
		return string(appErr.Kind)
	}
	return "internal server error"
}
