package auth

import (
	"context"
	"strings"

	"devicesync/internal/app/server/api/http/response"
	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/device"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// UserVerifier проверяет пользовательский токен и возвращает id пользователя
type UserVerifier interface {
	Verify(token string) (string, error)
}

// DeviceAuthenticator проверяет токен устройства и само устройство
type DeviceAuthenticator interface {
	AuthenticateDevice(ctx context.Context, token string) (*device.Device, error)
}

type Auth struct {
	users   UserVerifier
	devices DeviceAuthenticator
	log     *slog.Logger
}

func New(users UserVerifier, devices DeviceAuthenticator, log *slog.Logger) *Auth {
	return &Auth{
		users:   users,
		devices: devices,
		log:     log.With(slog.String("component", "auth_middleware")),
	}
}

type contextKey string

const (
	UserIDKey contextKey = "userID"
	DeviceKey contextKey = "device"
)

var errNoBearer = apperr.E(apperr.Unauthorized, "missing bearer token")

// Middleware пропускает запросы с действующим пользовательским токеном
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token, ok := bearer(ctx)
		if !ok {
			a.reject(ctx, errNoBearer)
			return
		}

		userID, err := a.users.Verify(token)
		if err != nil {
			a.reject(ctx, err)
			return
		}

		next(huma.WithContext(ctx, WithUserID(ctx.Context(), userID)))
	}
}

// DeviceMiddleware пропускает запросы с токеном активного устройства.
// В контекст кладутся устройство и его владелец.
func (a *Auth) DeviceMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token, ok := bearer(ctx)
		if !ok {
			a.reject(ctx, errNoBearer)
			return
		}

		d, err := a.devices.AuthenticateDevice(ctx.Context(), token)
		if err != nil {
			a.reject(ctx, err)
			return
		}

		newCtx := WithDevice(WithUserID(ctx.Context(), d.UserID), d)
		next(huma.WithContext(ctx, newCtx))
	}
}

func (a *Auth) reject(ctx huma.Context, err error) {
	a.log.Debug("request rejected",
		slog.String("path", ctx.URL().Path),
		slog.String("error", err.Error()),
	)
	response.Write(ctx, response.From(a.log, err))
}

func bearer(ctx huma.Context) (string, bool) {
	header := ctx.Header("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

func WithDevice(ctx context.Context, d *device.Device) context.Context {
	return context.WithValue(ctx, DeviceKey, d)
}

// GetDevice устройство, аутентифицированное DeviceMiddleware
func GetDevice(ctx context.Context) (*device.Device, bool) {
	d, ok := ctx.Value(DeviceKey).(*device.Device)
	return d, ok && d != nil
}
