package realtime

import (
	"context"

	"devicesync/internal/app/server/api/http/middleware/auth"
	"devicesync/internal/app/server/api/http/response"
	"devicesync/internal/domain/apperr"
	"devicesync/internal/realtime"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Registry сведения о живых соединениях
type Registry interface {
	Stats() realtime.Stats
	UserConnectedDevices(userID string) []string
}

type Handler struct {
	registry   Registry
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(registry Registry, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		registry:   registry,
		log:        log.With(slog.String("handler", "realtime")),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.statsOp(), h.stats)
	huma.Register(api, h.connectedOp(), h.connected)
}

func (h *Handler) stats(_ context.Context, _ *struct{}) (*statsOutput, error) {
	return &statsOutput{Body: response.OK(h.registry.Stats())}, nil
}

func (h *Handler) connected(ctx context.Context, _ *struct{}) (*connectedOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, response.From(h.log, apperr.E(apperr.Unauthorized, "user not authenticated"))
	}

	ids := h.registry.UserConnectedDevices(userID)
	if ids == nil {
		ids = []string{}
	}
	return &connectedOutput{Body: response.OK(ConnectedDevices{DeviceIDs: ids})}, nil
}
