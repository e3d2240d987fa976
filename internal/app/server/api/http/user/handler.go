package user

import (
	"context"

	"devicesync/internal/app/server/api/http/response"
	"devicesync/internal/domain/user"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    user.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service user.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With(slog.String("handler", "user")),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
	huma.Register(api, h.loginOp(), h.login)
}

func (h *Handler) register(ctx context.Context, input *credentialsInput) (*registerOutput, error) {
	u, err := h.service.Register(ctx, input.Body)
	if err != nil {
		return nil, response.From(h.log, err)
	}

	return &registerOutput{
		Body: response.OK(RegisterResponse{UserID: u.ID, Login: u.Login}),
	}, nil
}

func (h *Handler) login(ctx context.Context, input *credentialsInput) (*loginOutput, error) {
	session, err := h.service.Login(ctx, input.Body)
	if err != nil {
		return nil, response.From(h.log, err)
	}

	return &loginOutput{Body: response.OK(session)}, nil
}
