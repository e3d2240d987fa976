package device

import (
	"context"
	"strings"

	"devicesync/internal/app/server/api/http/middleware/auth"
	"devicesync/internal/app/server/api/http/response"
	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/device"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

var errNoUser = apperr.E(apperr.Unauthorized, "user not authenticated")

type Handler struct {
	service          device.Servicer
	log              *slog.Logger
	middleware       huma.Middlewares
	deviceMiddleware huma.Middlewares
}

// NewHandler middleware применяется к операциям пользователя,
// deviceMiddleware к операциям, которые вызывает само устройство
func NewHandler(service device.Servicer, log *slog.Logger, middleware, deviceMiddleware huma.Middlewares) *Handler {
	return &Handler{
		service:          service,
		log:              log.With(slog.String("handler", "device")),
		middleware:       middleware,
		deviceMiddleware: deviceMiddleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.refreshTokenOp(), h.refreshToken)
	huma.Register(api, h.getOp(), h.get)
	huma.Register(api, h.updateOp(), h.update)
	huma.Register(api, h.activateOp(), h.activate)
	huma.Register(api, h.deactivateOp(), h.deactivate)
	huma.Register(api, h.deleteOp(), h.delete)
}

func (h *Handler) register(ctx context.Context, input *registerInput) (*registerOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, response.From(h.log, errNoUser)
	}

	reg, err := h.service.Register(ctx, userID, input.Body.toRequest())
	if err != nil {
		return nil, response.From(h.log, err)
	}
	return &registerOutput{Body: response.OK(reg)}, nil
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, response.From(h.log, errNoUser)
	}

	devices, err := h.service.ListForUser(ctx, userID, input.ActiveOnly)
	if err != nil {
		return nil, response.From(h.log, err)
	}
	if devices == nil {
		devices = []*device.Device{}
	}
	return &listOutput{Body: response.OK(devices)}, nil
}

func (h *Handler) get(ctx context.Context, input *idInput) (*deviceOutput, error) {
	return h.withDevice(ctx, func(userID string) (*device.Device, error) {
		return h.service.Get(ctx, userID, input.ID)
	})
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*deviceOutput, error) {
	return h.withDevice(ctx, func(userID string) (*device.Device, error) {
		return h.service.Update(ctx, userID, input.ID, input.Body)
	})
}

func (h *Handler) activate(ctx context.Context, input *idInput) (*deviceOutput, error) {
	return h.withDevice(ctx, func(userID string) (*device.Device, error) {
		return h.service.Activate(ctx, userID, input.ID)
	})
}

func (h *Handler) deactivate(ctx context.Context, input *idInput) (*deviceOutput, error) {
	return h.withDevice(ctx, func(userID string) (*device.Device, error) {
		return h.service.Deactivate(ctx, userID, input.ID)
	})
}

func (h *Handler) delete(ctx context.Context, input *idInput) (*deleteOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, response.From(h.log, errNoUser)
	}

	if err := h.service.Delete(ctx, userID, input.ID); err != nil {
		return nil, response.From(h.log, err)
	}
	return &deleteOutput{Body: response.OK(response.Ack{Message: "device deleted"})}, nil
}

func (h *Handler) refreshToken(ctx context.Context, input *refreshInput) (*refreshOutput, error) {
	old := strings.TrimSpace(strings.TrimPrefix(input.Authorization, "Bearer "))

	tok, err := h.service.RefreshToken(ctx, old)
	if err != nil {
		return nil, response.From(h.log, err)
	}
	return &refreshOutput{Body: response.OK(RefreshResponse{AuthToken: tok})}, nil
}

func (h *Handler) withDevice(ctx context.Context, fn func(userID string) (*device.Device, error)) (*deviceOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, response.From(h.log, errNoUser)
	}

	d, err := fn(userID)
	if err != nil {
		return nil, response.From(h.log, err)
	}
	return &deviceOutput{Body: response.OK(d)}, nil
}
