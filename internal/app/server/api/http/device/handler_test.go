package device

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"devicesync/internal/app/server/api/http/middleware/auth"
	"devicesync/internal/app/server/api/http/response"
	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/device"
	"devicesync/internal/domain/token"
	"devicesync/internal/utils/logger"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Register(ctx context.Context, userID string, req device.RegisterRequest) (*device.Registration, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*device.Registration), args.Error(1)
}

func (m *MockService) Get(ctx context.Context, userID, deviceID string) (*device.Device, error) {
	return m.device(m.Called(ctx, userID, deviceID))
}

func (m *MockService) ListForUser(ctx context.Context, userID string, activeOnly bool) ([]*device.Device, error) {
	args := m.Called(ctx, userID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*device.Device), args.Error(1)
}

func (m *MockService) Update(ctx context.Context, userID, deviceID string, req device.UpdateRequest) (*device.Device, error) {
	return m.device(m.Called(ctx, userID, deviceID, req))
}

func (m *MockService) Activate(ctx context.Context, userID, deviceID string) (*device.Device, error) {
	return m.device(m.Called(ctx, userID, deviceID))
}

func (m *MockService) Deactivate(ctx context.Context, userID, deviceID string) (*device.Device, error) {
	return m.device(m.Called(ctx, userID, deviceID))
}

func (m *MockService) Delete(ctx context.Context, userID, deviceID string) error {
	return m.Called(ctx, userID, deviceID).Error(0)
}

func (m *MockService) RefreshToken(ctx context.Context, oldToken string) (token.Token, error) {
	args := m.Called(ctx, oldToken)
	return args.Get(0).(token.Token), args.Error(1)
}

func (m *MockService) AuthenticateDevice(ctx context.Context, tokenString string) (*device.Device, error) {
	return m.device(m.Called(ctx, tokenString))
}

func (m *MockService) device(args mock.Arguments) (*device.Device, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*device.Device), args.Error(1)
}

// asUser подставляет аутентифицированного пользователя вместо проверки токена
func asUser(userID string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		next(huma.WithContext(ctx, auth.WithUserID(ctx.Context(), userID)))
	}
}

func setup(t *testing.T) (humatest.TestAPI, *MockService) {
	response.Install()
	_, api := humatest.New(t)
	svc := &MockService{}
	NewHandler(svc, logger.Discard(), huma.Middlewares{asUser("user-1")}, nil).SetupRoutes(api)
	return api, svc
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestHandler_Register(t *testing.T) {
	api, svc := setup(t)

	want := device.RegisterRequest{
		Name:     "Pixel",
		Type:     device.TypeMobile,
		Platform: device.PlatformAndroid,
		Capabilities: device.Capabilities{
			Touch:    true,
			Camera:   true,
			Speakers: true,
		},
	}
	reg := &device.Registration{
		Device:    &device.Device{ID: "dev-1", UserID: "user-1", Name: "Pixel", IsActive: true},
		AuthToken: token.Token{Value: "jwt", ExpiresAt: time.Now().Add(time.Hour)},
	}
	svc.On("Register", mock.Anything, "user-1", want).Return(reg, nil).Once()

	resp := api.Post("/devices/register", map[string]any{
		"name":        "Pixel",
		"device_type": "mobile",
		"platform":    "android",
		"capabilities": map[string]any{
			"touch":    true,
			"camera":   true,
			"speakers": true,
		},
	})

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	env := decode(t, resp.Body.Bytes())
	assert.True(t, env.Success)
	var got device.Registration
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "dev-1", got.Device.ID)
	assert.Equal(t, "jwt", got.AuthToken.Value)
	svc.AssertExpectations(t)
}

func TestHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "device limit",
			err:        apperr.WithDetails(apperr.DeviceLimitExceeded, "active device limit exceeded", map[string]int{"limit": 10}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "DEVICE_LIMIT_EXCEEDED",
		},
		{
			name: "validation",
			err: apperr.WithDetails(apperr.ValidationFailed, "device capabilities validation failed", device.ValidationResult{
				Errors: []string{"AR devices must support AR"},
			}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "duplicate id",
			err:        device.ErrAlreadyExists,
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, svc := setup(t)
			svc.On("Register", mock.Anything, "user-1", mock.Anything).Return(nil, tt.err).Once()

			resp := api.Post("/devices/register", map[string]any{
				"name":        "Quest",
				"device_type": "ar",
				"platform":    "android",
			})

			assert.Equal(t, tt.wantStatus, resp.Code)
			env := decode(t, resp.Body.Bytes())
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestHandler_Register_MissingName(t *testing.T) {
	api, svc := setup(t)

	resp := api.Post("/devices/register", map[string]any{
		"device_type": "web",
		"platform":    "web",
	})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode(t, resp.Body.Bytes()).Error.Code)
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_List(t *testing.T) {
	api, svc := setup(t)
	svc.On("ListForUser", mock.Anything, "user-1", true).Return([]*device.Device{{ID: "dev-1"}, {ID: "dev-2"}}, nil).Once()
	svc.On("ListForUser", mock.Anything, "user-1", false).Return(nil, nil).Once()

	resp := api.Get("/devices/user?active_only=true")
	require.Equal(t, http.StatusOK, resp.Code)
	var devices []*device.Device
	require.NoError(t, json.Unmarshal(decode(t, resp.Body.Bytes()).Data, &devices))
	assert.Len(t, devices, 2)

	resp = api.Get("/devices/user")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, string(decode(t, resp.Body.Bytes()).Data))
	svc.AssertExpectations(t)
}

func TestHandler_Get(t *testing.T) {
	api, svc := setup(t)
	svc.On("Get", mock.Anything, "user-1", "dev-1").Return(&device.Device{ID: "dev-1", UserID: "user-1"}, nil).Once()
	svc.On("Get", mock.Anything, "user-1", "dev-9").Return(nil, device.ErrForbidden).Once()
	svc.On("Get", mock.Anything, "user-1", "nope").Return(nil, device.ErrNotFound).Once()

	assert.Equal(t, http.StatusOK, api.Get("/devices/dev-1").Code)
	assert.Equal(t, http.StatusForbidden, api.Get("/devices/dev-9").Code)
	assert.Equal(t, http.StatusNotFound, api.Get("/devices/nope").Code)
	svc.AssertExpectations(t)
}

func TestHandler_Update(t *testing.T) {
	api, svc := setup(t)
	name := "Renamed"
	gps := true
	want := device.UpdateRequest{
		Name:         &name,
		Capabilities: &device.CapabilitiesPatch{GPS: &gps},
	}
	svc.On("Update", mock.Anything, "user-1", "dev-1", want).Return(&device.Device{ID: "dev-1", Name: name}, nil).Once()

	resp := api.Put("/devices/dev-1", map[string]any{
		"name":         "Renamed",
		"capabilities": map[string]any{"gps": true},
	})

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var got device.Device
	require.NoError(t, json.Unmarshal(decode(t, resp.Body.Bytes()).Data, &got))
	assert.Equal(t, "Renamed", got.Name)
	svc.AssertExpectations(t)
}

func TestHandler_ActivateDeactivateDelete(t *testing.T) {
	api, svc := setup(t)
	svc.On("Activate", mock.Anything, "user-1", "dev-1").Return(nil, device.ErrLimitExceeded).Once()
	svc.On("Deactivate", mock.Anything, "user-1", "dev-1").Return(&device.Device{ID: "dev-1"}, nil).Once()
	svc.On("Delete", mock.Anything, "user-1", "dev-1").Return(nil).Once()

	resp := api.Post("/devices/dev-1/activate")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "DEVICE_LIMIT_EXCEEDED", decode(t, resp.Body.Bytes()).Error.Code)

	assert.Equal(t, http.StatusOK, api.Post("/devices/dev-1/deactivate").Code)

	resp = api.Delete("/devices/dev-1")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode(t, resp.Body.Bytes()).Success)
	svc.AssertExpectations(t)
}

func TestHandler_RefreshToken(t *testing.T) {
	api, svc := setup(t)
	svc.On("RefreshToken", mock.Anything, "old-token").Return(token.Token{Value: "new-token"}, nil).Once()
	svc.On("RefreshToken", mock.Anything, "expired").Return(token.Token{}, apperr.E(apperr.TokenExpired, "token expired")).Once()

	resp := api.Post("/devices/token/refresh", "Authorization: Bearer old-token")
	require.Equal(t, http.StatusOK, resp.Code)
	var got RefreshResponse
	require.NoError(t, json.Unmarshal(decode(t, resp.Body.Bytes()).Data, &got))
	assert.Equal(t, "new-token", got.AuthToken.Value)

	resp = api.Post("/devices/token/refresh", "Authorization: Bearer expired")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decode(t, resp.Body.Bytes()).Error.Code)
	svc.AssertExpectations(t)
}

func TestHandler_NoUserInContext(t *testing.T) {
	response.Install()
	_, api := humatest.New(t)
	svc := &MockService{}
	NewHandler(svc, logger.Discard(), nil, nil).SetupRoutes(api)

	resp := api.Get("/devices/user")

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	svc.AssertNotCalled(t, "ListForUser", mock.Anything, mock.Anything, mock.Anything)
}
