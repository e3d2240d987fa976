// Package response формирует единый конверт ответов API:
// {success, data} при успехе и {success:false, error:{code,message,details}} при ошибке.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"devicesync/internal/domain/apperr"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Envelope успешный ответ
type Envelope[T any] struct {
	Success bool `json:"success" example:"true"`
	Data    T    `json:"data"`
}

// OK оборачивает данные в успешный конверт
func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: data}
}

// Ack ответ для операций без данных
type Ack struct {
	Message string `json:"message"`
}

// ErrorBody описание ошибки для клиента
type ErrorBody struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error ответ с ошибкой; реализует huma.StatusError
type Error struct {
	status  int
	Success bool      `json:"success"`
	Body    ErrorBody `json:"error"`
}

func (e *Error) Error() string {
	return e.Body.Code + ": " + e.Body.Message
}

func (e *Error) GetStatus() int {
	return e.status
}

// NewErr создает ответ с ошибкой
func NewErr(status int, code, msg string, details any) *Error {
	return &Error{
		status:  status,
		Success: false,
		Body:    ErrorBody{Code: code, Message: msg, Details: details},
	}
}

// Status сопоставляет тип доменной ошибки с HTTP-статусом
func Status(kind apperr.Kind) int {
	switch kind {
	case apperr.ValidationFailed, apperr.DeviceLimitExceeded:
		return http.StatusBadRequest
	case apperr.Unauthorized, apperr.InvalidToken, apperr.TokenExpired:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict, apperr.InvalidState:
		return http.StatusConflict
	case apperr.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// From превращает ошибку сервиса в ответ. Причина внутренних ошибок
// уходит только в лог.
func From(log *slog.Logger, err error) *Error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Wrap(apperr.Internal, "", err)
	}

	if ae.Kind == apperr.Internal {
		log.Error("request failed", slog.String("error", err.Error()))
		return NewErr(Status(ae.Kind), ae.Kind.Code(), "internal server error", nil)
	}

	msg := ae.Message
	if msg == "" {
		msg = ae.Error()
	}
	return NewErr(Status(ae.Kind), ae.Kind.Code(), msg, ae.Details)
}

// Write пишет ответ с ошибкой напрямую, минуя huma.Register (для middleware)
func Write(ctx huma.Context, e *Error) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(e.GetStatus())
	_ = json.NewEncoder(ctx.BodyWriter()).Encode(e)
}

var installOnce sync.Once

// Install подменяет конструктор ошибок huma, чтобы ошибки разбора и
// валидации запросов приходили в том же конверте
func Install() {
	installOnce.Do(func() {
		huma.NewError = newHumaError
	})
}

func newHumaError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}

	var details []*huma.ErrorDetail
	for _, err := range errs {
		if err == nil {
			continue
		}
		var d huma.ErrorDetailer
		if errors.As(err, &d) {
			details = append(details, d.ErrorDetail())
			continue
		}
		details = append(details, &huma.ErrorDetail{Message: err.Error()})
	}

	e := NewErr(status, statusCode(status), msg, nil)
	if len(details) > 0 {
		e.Body.Details = details
	}
	return e
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.ValidationFailed.Code()
	case http.StatusUnauthorized:
		return apperr.Unauthorized.Code()
	case http.StatusForbidden:
		return apperr.Forbidden.Code()
	case http.StatusNotFound:
		return apperr.NotFound.Code()
	case http.StatusConflict:
		return apperr.Conflict.Code()
	default:
		if status < http.StatusInternalServerError {
			return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
		}
		return apperr.Internal.Code()
	}
}
