package sync

import (
	"context"

	"devicesync/internal/app/server/api/http/middleware/auth"
	"devicesync/internal/app/server/api/http/response"
	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/offline"
	"devicesync/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

var (
	errNoUser   = apperr.E(apperr.Unauthorized, "user not authenticated")
	errNoDevice = apperr.E(apperr.Unauthorized, "device not authenticated")
)

type Handler struct {
	service          sync.Servicer
	offline          offline.Servicer
	log              *slog.Logger
	middleware       huma.Middlewares
	deviceMiddleware huma.Middlewares
}

// NewHandler middleware защищает чтение данных и разрешение конфликтов,
// deviceMiddleware операции, которые присылает устройство
func NewHandler(service sync.Servicer, offline offline.Servicer, log *slog.Logger, middleware, deviceMiddleware huma.Middlewares) *Handler {
	return &Handler{
		service:          service,
		offline:          offline,
		log:              log.With(slog.String("handler", "sync")),
		middleware:       middleware,
		deviceMiddleware: deviceMiddleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.syncOp(), h.sync)
	huma.Register(api, h.storeOfflineOp(), h.storeOffline)
	huma.Register(api, h.replayOfflineOp(), h.replayOffline)
	huma.Register(api, h.pendingOfflineOp(), h.pendingOffline)
	huma.Register(api, h.dataOp(), h.data)
	huma.Register(api, h.conflictsOp(), h.conflicts)
	huma.Register(api, h.resolveOp(), h.resolve)
}

func (h *Handler) sync(ctx context.Context, input *syncInput) (*resultOutput, error) {
	d, ok := auth.GetDevice(ctx)
	if !ok {
		return nil, response.From(h.log, errNoDevice)
	}

	reqs := make([]sync.Request, 0, len(input.Body.Items))
	for _, item := range input.Body.Items {
		deviceID := item.DeviceID
		if deviceID == "" {
			deviceID = d.ID
		}
		reqs = append(reqs, sync.Request{
			DeviceID:     deviceID,
			DataType:     item.DataType,
			Payload:      item.Payload.Raw(),
			Version:      item.Version,
			LastModified: item.LastModified,
		})
	}

	res, err := h.service.SyncBatch(ctx, d.UserID, reqs)
	if err != nil {
		return nil, response.From(h.log, err)
	}
	return &resultOutput{Body: response.OK(res)}, nil
}

func (h *Handler) storeOffline(ctx context.Context, input *offlineInput) (*operationsOutput, error) {
	d, ok := auth.GetDevice(ctx)
	if !ok {
		return nil, response.From(h.log, errNoDevice)
	}

	in := make([]offline.Input, 0, len(input.Body.Operations))
	for _, op := range input.Body.Operations {
		in = append(in, offline.Input{
			DataType:        op.DataType,
			Kind:            op.Operation,
			Payload:         op.Payload.Raw(),
			ClientTimestamp: op.Timestamp,
		})
	}

	ops, err := h.offline.Store(ctx, d.UserID, d.ID, in)
	if err != nil {
		return nil, response.From(h.log, err)
	}
	return &operationsOutput{Body: response.OK(ops)}, nil
}

func (h *Handler) replayOffline(ctx context.Context, _ *struct{}) (*resultOutput, error) {
	d, ok := auth.GetDevice(ctx)
	if !ok {
		return nil, response.From(h.log, errNoDevice)
	}

	res, err := h.offline.Replay(ctx, d.UserID, d.ID)
	if err != nil {
		return nil, response.From(h.log, err)
	}
	return &resultOutput{Body: response.OK(res)}, nil
}

func (h *Handler) pendingOffline(ctx context.Context, _ *struct{}) (*operationsOutput, error) {
	d, ok := auth.GetDevice(ctx)
	if !ok {
		return nil, response.From(h.log, errNoDevice)
	}

	ops, err := h.offline.Pending(ctx, d.UserID, d.ID)
	if err != nil {
		return nil, response.From(h.log, err)
	}
	if ops == nil {
		ops = []*offline.Operation{}
	}
	return &operationsOutput{Body: response.OK(ops)}, nil
}

func (h *Handler) data(ctx context.Context, input *dataInput) (*dataOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, response.From(h.log, errNoUser)
	}

	records, err := h.service.GetUserSyncData(ctx, userID, sync.Filter{
		DataType: sync.DataType(input.DataType),
		DeviceID: input.DeviceID,
	})
	if err != nil {
		return nil, response.From(h.log, err)
	}
	return &dataOutput{Body: response.OK(records)}, nil
}

func (h *Handler) conflicts(ctx context.Context, _ *struct{}) (*conflictsOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, response.From(h.log, errNoUser)
	}

	conflicts, err := h.service.GetConflicts(ctx, userID)
	if err != nil {
		return nil, response.From(h.log, err)
	}
	return &conflictsOutput{Body: response.OK(conflicts)}, nil
}

func (h *Handler) resolve(ctx context.Context, input *resolveInput) (*recordOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, response.From(h.log, errNoUser)
	}

	rec, err := h.service.ResolveConflict(ctx, userID, sync.ResolveRequest{
		ConflictID:    input.Body.ConflictID,
		Strategy:      input.Body.Strategy,
		MergedPayload: input.Body.MergedData.Raw(),
	})
	if err != nil {
		return nil, response.From(h.log, err)
	}
	return &recordOutput{Body: response.OK(rec)}, nil
}
