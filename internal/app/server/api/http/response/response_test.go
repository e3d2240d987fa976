package response

import (
	"errors"
	"net/http"
	"testing"

	"devicesync/internal/domain/apperr"
	"devicesync/internal/utils/logger"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.ValidationFailed, http.StatusBadRequest},
		{apperr.DeviceLimitExceeded, http.StatusBadRequest},
		{apperr.Unauthorized, http.StatusUnauthorized},
		{apperr.InvalidToken, http.StatusUnauthorized},
		{apperr.TokenExpired, http.StatusUnauthorized},
		{apperr.Forbidden, http.StatusForbidden},
		{apperr.NotFound, http.StatusNotFound},
		{apperr.Conflict, http.StatusConflict},
		{apperr.InvalidState, http.StatusConflict},
		{apperr.Internal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.kind))
		})
	}
}

func TestFrom(t *testing.T) {
	log := logger.Discard()

	t.Run("domain error keeps message and details", func(t *testing.T) {
		e := From(log, apperr.WithDetails(apperr.DeviceLimitExceeded, "limit", map[string]int{"limit": 1}))

		assert.Equal(t, http.StatusBadRequest, e.GetStatus())
		assert.False(t, e.Success)
		assert.Equal(t, "DEVICE_LIMIT_EXCEEDED", e.Body.Code)
		assert.Equal(t, "limit", e.Body.Message)
		assert.Equal(t, map[string]int{"limit": 1}, e.Body.Details)
	})

	t.Run("internal cause is hidden", func(t *testing.T) {
		e := From(log, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, e.GetStatus())
		assert.Equal(t, "INTERNAL_ERROR", e.Body.Code)
		assert.Equal(t, "internal server error", e.Body.Message)
		assert.Nil(t, e.Body.Details)
	})

	t.Run("wrapped domain error", func(t *testing.T) {
		e := From(log, apperr.Wrap(apperr.NotFound, "device not found", errors.New("no rows")))

		assert.Equal(t, http.StatusNotFound, e.GetStatus())
		assert.Equal(t, "device not found", e.Body.Message)
	})
}

func TestNewHumaError(t *testing.T) {
	err := newHumaError(http.StatusUnprocessableEntity, "validation failed", &huma.ErrorDetail{
		Message:  "expected required property name to be present",
		Location: "body",
	})

	e, ok := err.(*Error)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusBadRequest, e.GetStatus())
		assert.Equal(t, "VALIDATION_FAILED", e.Body.Code)
		details, ok := e.Body.Details.([]*huma.ErrorDetail)
		if assert.True(t, ok) {
			assert.Len(t, details, 1)
			assert.Equal(t, "body", details[0].Location)
		}
	}

	assert.Equal(t, "METHOD_NOT_ALLOWED", newHumaError(http.StatusMethodNotAllowed, "").(*Error).Body.Code)
	assert.Equal(t, "INTERNAL_ERROR", newHumaError(http.StatusBadGateway, "").(*Error).Body.Code)
}

func TestOK(t *testing.T) {
	env := OK(Ack{Message: "deleted"})

	assert.True(t, env.Success)
	assert.Equal(t, "deleted", env.Data.Message)
}

