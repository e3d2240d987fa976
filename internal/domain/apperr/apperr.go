// Package apperr описывает закрытую таксономию ошибок сервиса.
// Каждый домен возвращает *Error с конкретным Kind, а HTTP-слой
// сопоставляет Kind со статусом ответа.
package apperr

import (
	"errors"
	"fmt"
)

// Kind тип ошибки
type Kind int

const (
	Internal Kind = iota
	ValidationFailed
	Unauthorized
	InvalidToken
	TokenExpired
	Forbidden
	NotFound
	Conflict
	DeviceLimitExceeded
	InvalidState
)

// Code возвращает машиночитаемый код ошибки для ответа API
func (k Kind) Code() string {
	switch k {
	case ValidationFailed:
		return "VALIDATION_FAILED"
	case Unauthorized:
		return "UNAUTHORIZED"
	case InvalidToken:
		return "INVALID_TOKEN"
	case TokenExpired:
		return "TOKEN_EXPIRED"
	case Forbidden:
		return "FORBIDDEN"
	case NotFound:
		return "NOT_FOUND"
	case Conflict:
		return "CONFLICT"
	case DeviceLimitExceeded:
		return "DEVICE_LIMIT_EXCEEDED"
	case InvalidState:
		return "INVALID_STATE"
	default:
		return "INTERNAL_ERROR"
	}
}

func (k Kind) String() string {
	return k.Code()
}

// Error доменная ошибка
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.Code()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать ошибки по Kind: errors.Is(err, apperr.E(apperr.NotFound, ""))
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// E создает ошибку заданного типа
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap оборачивает причину в ошибку заданного типа
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// WithDetails создает ошибку с дополнительными деталями для клиента
func WithDetails(kind Kind, msg string, details any) *Error {
	return &Error{Kind: kind, Message: msg, Details: details}
}

// KindOf возвращает тип ошибки; всё, что не *Error, считается Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is проверяет, что err имеет тип kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
