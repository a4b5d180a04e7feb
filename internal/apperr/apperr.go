// Package apperr define la taxonomia de errores que el responder HTTP traduce
// a codigos de estado y al sobre JSON uniforme.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error es un error operacional: su Message es seguro para el cliente.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Status() int {
	return e.Kind.Status()
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func BadRequest(message string, cause error) *Error {
	return New(KindBadRequest, message, cause)
}

func Unauthorized(message string, cause error) *Error {
	return New(KindUnauthorized, message, cause)
}

func Forbidden(message string, cause error) *Error {
	return New(KindForbidden, message, cause)
}

func NotFound(message string, cause error) *Error {
	return New(KindNotFound, message, cause)
}

func Conflict(message string, cause error) *Error {
	return New(KindConflict, message, cause)
}

func Internal(message string, cause error) *Error {
	return New(KindInternal, message, cause)
}

// As extrae el *Error de una cadena de errores.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf devuelve el codigo HTTP de err; 500 si no es operacional.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Status()
	}
	return http.StatusInternalServerError
}
