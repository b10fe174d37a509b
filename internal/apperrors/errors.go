// Package apperrors defines the error taxonomy shared by the workflow
// engine and the HTTP layer. Constraint violations are wrapped around
// these sentinels so handlers can map them to status codes without
// string matching.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("invalid input")
)

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// HTTPStatus maps a taxonomy error to its response code. Unknown errors
// are treated as internal failures.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message strips the sentinel prefix so callers see the precise reason.
func Message(err error) string {
	for _, sentinel := range []error{ErrNotFound, ErrForbidden, ErrConflict, ErrValidation} {
		if errors.Is(err, sentinel) {
			msg := err.Error()
			prefix := sentinel.Error() + ": "
			if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
				return msg[len(prefix):]
			}
			return msg
		}
	}
	return "internal server error"
}
