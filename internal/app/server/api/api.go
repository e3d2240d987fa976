// Package api собирает HTTP-поверхность сервиса.
//
//	POST /auth/register, /auth/login                     публичные
//	POST /devices/register, GET /devices/user             пользователь
//	GET|PUT|DELETE /devices/{id}, POST /devices/{id}/...  пользователь
//	POST /devices/token/refresh                           устройство
//	POST /sync/sync, /sync/offline, /sync/offline/sync    устройство
//	GET /sync/data, /sync/conflicts                       пользователь
//	POST /sync/conflicts/resolve                          пользователь
//	GET /realtime/stats, /realtime/devices                пользователь
//	GET /ws?token=...                                     токен устройства
package api

import (
	"net/http"

	deviceAPI "devicesync/internal/app/server/api/http/device"
	healthAPI "devicesync/internal/app/server/api/http/health"
	"devicesync/internal/app/server/api/http/middleware"
	"devicesync/internal/app/server/api/http/middleware/auth"
	"devicesync/internal/app/server/api/http/middleware/logger"
	realtimeAPI "devicesync/internal/app/server/api/http/realtime"
	"devicesync/internal/app/server/api/http/response"
	syncAPI "devicesync/internal/app/server/api/http/sync"
	userAPI "devicesync/internal/app/server/api/http/user"
	"devicesync/internal/domain/device"
	"devicesync/internal/domain/offline"
	"devicesync/internal/domain/sync"
	"devicesync/internal/domain/user"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"
)

const WebsocketPath = "/ws"

// Deps сервисы, которые публикует API
type Deps struct {
	// Storage проверяется health-check; может быть nil
	Storage    healthAPI.Pinger
	Users      user.Servicer
	UserTokens auth.UserVerifier
	Devices    device.Servicer
	Sync       sync.Servicer
	Offline    offline.Servicer
	Realtime   realtimeAPI.Registry
	// Websocket обработчик постоянных соединений устройств
	Websocket http.Handler
}

type Handlers struct {
	Health   *healthAPI.Handler
	User     *userAPI.Handler
	Device   *deviceAPI.Handler
	Sync     *syncAPI.Handler
	Realtime *realtimeAPI.Handler
}

// New создает *chi.Mux со всеми операциями huma и websocket-точкой
func New(deps Deps, log *slog.Logger) *chi.Mux {
	response.Install()

	mux := chi.NewMux()
	mux.Use(chimw.Recoverer)

	config := huma.DefaultConfig("Devicesync API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}

	API := humachi.New(mux, config)

	h := handlers(deps, log)
	h.Health.SetupRoutes(API)
	h.User.SetupRoutes(API)
	h.Device.SetupRoutes(API)
	h.Sync.SetupRoutes(API)
	h.Realtime.SetupRoutes(API)

	if deps.Websocket != nil {
		mux.Handle(WebsocketPath, deps.Websocket)
	}

	return mux
}

func handlers(deps Deps, log *slog.Logger) *Handlers {
	authMW := auth.New(deps.UserTokens, deps.Devices, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	healthHandler := healthAPI.NewHandler(deps.Storage, log, middlewares.Add(loggerMW.Middleware()).GetAllAndClear())

	userHandler := userAPI.NewHandler(deps.Users, log, middlewares.Add(loggerMW.Middleware()).GetAllAndClear())

	userMWs := middlewares.Add(loggerMW.Middleware(), authMW.Middleware()).GetAllAndClear()
	deviceMWs := middlewares.Add(loggerMW.Middleware(), authMW.DeviceMiddleware()).GetAllAndClear()

	return &Handlers{
		Health:   healthHandler,
		User:     userHandler,
		Device:   deviceAPI.NewHandler(deps.Devices, log, userMWs, deviceMWs),
		Sync:     syncAPI.NewHandler(deps.Sync, deps.Offline, log, userMWs, deviceMWs),
		Realtime: realtimeAPI.NewHandler(deps.Realtime, log, userMWs),
	}
}
