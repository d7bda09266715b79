package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error carries a human readable message while still matching its kind with errors.Is.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Wrap builds an error of the given kind with a message.
func Wrap(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return Wrap(ErrNotFound, format, args...)
}

func Forbidden(format string, args ...any) error {
	return Wrap(ErrForbidden, format, args...)
}

func Conflict(format string, args ...any) error {
	return Wrap(ErrConflict, format, args...)
}

func InvalidArgument(format string, args ...any) error {
	return Wrap(ErrInvalidArgument, format, args...)
}

// HTTPStatus maps an error to the response status used by the HTTP handlers.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
