package apperr

import (
	"errors"
	"fmt"
)

// Kinds. Every service error that should reach the client wraps one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("not enough permissions")
	ErrInvalid      = errors.New("invalid request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// Error несёт вид ошибки и сообщение для клиента.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NotFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// Forbidden always carries the same message so callers cannot leak why access was denied.
func Forbidden() error {
	return &Error{Kind: ErrForbidden, Message: ErrForbidden.Error()}
}

func Invalid(message string) error {
	return &Error{Kind: ErrInvalid, Message: message}
}

func Invalidf(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalid, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}

func Conflict(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

// Wrap attaches a kind and client message to an underlying error.
func Wrap(kind error, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Message возвращает текст, безопасный для отдачи клиенту.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
