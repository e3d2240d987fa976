package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/device"
	"devicesync/internal/utils/logger"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]string

func (f fakeUsers) Verify(token string) (string, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return "", apperr.E(apperr.InvalidToken, "invalid token")
}

type fakeDevices map[string]*device.Device

func (f fakeDevices) AuthenticateDevice(_ context.Context, token string) (*device.Device, error) {
	if d, ok := f[token]; ok {
		return d, nil
	}
	return nil, apperr.E(apperr.TokenExpired, "token expired")
}

type whoamiOutput struct {
	Body struct {
		UserID   string `json:"user_id"`
		DeviceID string `json:"device_id,omitempty"`
	}
}

func setup(t *testing.T) humatest.TestAPI {
	_, api := humatest.New(t)

	a := New(
		fakeUsers{"user-token": "user-1"},
		fakeDevices{"device-token": {ID: "dev-1", UserID: "user-2", IsActive: true}},
		logger.Discard(),
	)

	handler := func(ctx context.Context, _ *struct{}) (*whoamiOutput, error) {
		out := &whoamiOutput{}
		out.Body.UserID, _ = GetUserID(ctx)
		if d, ok := GetDevice(ctx); ok {
			out.Body.DeviceID = d.ID
		}
		return out, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "user-whoami",
		Method:      http.MethodGet,
		Path:        "/user/whoami",
		Middlewares: huma.Middlewares{a.Middleware()},
	}, handler)
	huma.Register(api, huma.Operation{
		OperationID: "device-whoami",
		Method:      http.MethodGet,
		Path:        "/device/whoami",
		Middlewares: huma.Middlewares{a.DeviceMiddleware()},
	}, handler)

	return api
}

func decodeError(t *testing.T, body []byte) (bool, string) {
	t.Helper()
	var env struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	return env.Success, env.Error.Code
}

func TestMiddleware_User(t *testing.T) {
	api := setup(t)

	tests := []struct {
		name       string
		headers    []any
		wantStatus int
		wantCode   string
	}{
		{name: "no header", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "not bearer", headers: []any{"Authorization: Basic abc"}, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "bad token", headers: []any{"Authorization: Bearer nope"}, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "ok", headers: []any{"Authorization: Bearer user-token"}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Get("/user/whoami", tt.headers...)
			assert.Equal(t, tt.wantStatus, resp.Code)

			if tt.wantCode != "" {
				success, code := decodeError(t, resp.Body.Bytes())
				assert.False(t, success)
				assert.Equal(t, tt.wantCode, code)
				return
			}

			var out whoamiOutput
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out.Body))
			assert.Equal(t, "user-1", out.Body.UserID)
		})
	}
}

func TestDeviceMiddleware(t *testing.T) {
	api := setup(t)

	resp := api.Get("/device/whoami", "Authorization: Bearer device-token")
	require.Equal(t, http.StatusOK, resp.Code)

	var out whoamiOutput
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out.Body))
	assert.Equal(t, "user-2", out.Body.UserID)
	assert.Equal(t, "dev-1", out.Body.DeviceID)

	resp = api.Get("/device/whoami", "Authorization: Bearer stale")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	_, code := decodeError(t, resp.Body.Bytes())
	assert.Equal(t, "TOKEN_EXPIRED", code)

	// пользовательский токен не подходит для операций устройства
	resp = api.Get("/device/whoami", "Authorization: Bearer user-token")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestGetUserID_Empty(t *testing.T) {
	_, ok := GetUserID(context.Background())
	assert.False(t, ok)

	_, ok = GetUserID(WithUserID(context.Background(), ""))
	assert.False(t, ok)

	_, ok = GetDevice(context.Background())
	assert.False(t, ok)
}
