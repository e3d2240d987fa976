package health

import (
	"context"
	"time"

	"devicesync/internal/app/server/api/http/response"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

const (
	statusOK       = "OK"
	statusDegraded = "DEGRADED"
	statusDown     = "UNAVAILABLE"
	pingTimeout    = 2 * time.Second
)

// Pinger проверка доступности хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	storage    Pinger
	log        *slog.Logger
	middleware huma.Middlewares
}

// NewHandler storage может быть nil, тогда хранилище не проверяется
func NewHandler(storage Pinger, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		storage:    storage,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	res := Response{Status: statusOK, Storage: statusOK, Time: time.Now().UTC()}
	if h.storage == nil {
		return &Output{Body: response.OK(res)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := h.storage.Ping(ctx); err != nil {
		h.log.Warn("storage ping failed", slog.String("error", err.Error()))
		res.Status = statusDegraded
		res.Storage = statusDown
	}
	return &Output{Body: response.OK(res)}, nil
}
