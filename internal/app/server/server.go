// Package server собирает сервис синхронизации из хранилища, доменных
// сервисов, реестра соединений и HTTP-поверхности.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"devicesync/internal/app/server/api"
	healthAPI "devicesync/internal/app/server/api/http/health"
	"devicesync/internal/config"
	"devicesync/internal/domain/device"
	"devicesync/internal/domain/offline"
	"devicesync/internal/domain/sync"
	"devicesync/internal/domain/token"
	"devicesync/internal/domain/user"
	"devicesync/internal/infrastructure/storage/memory"
	"devicesync/internal/infrastructure/storage/postgres"
	"devicesync/internal/realtime"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type repositories struct {
	users   user.Repository
	devices device.Repository
	records sync.Repository
	offline offline.Repository
	pinger  healthAPI.Pinger
	close   func() error
}

// App собранный сервер
type App struct {
	cfg *config.Config
	log *slog.Logger

	repos   *repositories
	devices *device.Service
	offline *offline.Service
	hub     *realtime.Hub
	server  *http.Server
}

// New подключает хранилище и связывает сервисы
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	deviceTokens := token.NewService([]byte(cfg.Auth.DeviceTokenSecret), cfg.Auth.DeviceTokenTTL)
	userTokens := token.NewUserTokens([]byte(cfg.Auth.UserTokenSecret), cfg.Auth.UserTokenTTL)

	deviceService := device.NewService(repos.devices, deviceTokens, device.NewCapabilityValidator(), log,
		&device.ServiceConfig{MaxDevicesPerUser: cfg.Devices.MaxPerUser})

	hub := realtime.NewHub(deviceService, log, realtime.Config{
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
		WriteTimeout:      cfg.Realtime.ConnectionTimeout,
	})
	deviceService.SetStatusNotifier(hub)

	syncService := sync.NewService(repos.records, repos.devices, hub, log, &sync.ServiceConfig{
		BatchSize:  cfg.Sync.BatchSize,
		MaxRetries: cfg.Sync.MaxRetries,
	})
	offlineService := offline.NewService(repos.offline, syncService, log,
		&offline.ServiceConfig{BatchSize: cfg.Sync.BatchSize})
	userService := user.NewService(repos.users, user.NewCredentialsValidator(), userTokens, log)

	mux := api.New(api.Deps{
		Storage:    repos.pinger,
		Users:      userService,
		UserTokens: userTokens,
		Devices:    deviceService,
		Sync:       syncService,
		Offline:    offlineService,
		Realtime:   hub,
		Websocket:  hub,
	}, log)

	return &App{
		cfg:     cfg,
		log:     log,
		repos:   repos,
		devices: deviceService,
		offline: offlineService,
		hub:     hub,
		server: &http.Server{
			Addr:              cfg.Server.RunAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repositories, error) {
	switch cfg.DB.Driver {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return &repositories{
			users:   memory.NewUserRepository(),
			devices: memory.NewDeviceRepository(),
			records: memory.NewSyncRepository(),
			offline: memory.NewOfflineRepository(),
			close:   func() error { return nil },
		}, nil
	case config.StoragePostgres:
		st, err := postgres.New(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pool := st.Pool()
		return &repositories{
			users:   postgres.NewUserRepository(pool, log),
			devices: postgres.NewDeviceRepository(pool, log),
			records: postgres.NewSyncRepository(pool, log),
			offline: postgres.NewOfflineRepository(pool, log),
			pinger:  st,
			close:   st.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.DB.Driver)
	}
}

// Run обслуживает запросы до отмены ctx, затем останавливает сервер,
// закрывает соединения устройств и хранилище
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server started", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.hub.Run(gctx)
	})

	g.Go(func() error {
		a.janitor(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	err := g.Wait()
	if cerr := a.repos.close(); cerr != nil {
		a.log.Error("failed to close storage", slog.String("error", cerr.Error()))
	}
	return err
}

func (a *App) shutdown() error {
	a.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.hub.Shutdown(ctx); err != nil {
		a.log.Warn("realtime shutdown", slog.String("error", err.Error()))
	}
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// janitor периодически деактивирует неактивные устройства
// и чистит синхронизированные офлайн-операции
func (a *App) janitor(ctx context.Context) {
	if a.cfg.Cleanup.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(a.cfg.Cleanup.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.cleanup(ctx)
		}
	}
}

func (a *App) cleanup(ctx context.Context) {
	if a.cfg.Devices.InactivityThreshold > 0 {
		if _, err := a.devices.DeactivateInactive(ctx, a.cfg.Devices.InactivityThreshold); err != nil {
			a.log.Error("deactivate inactive devices", slog.String("error", err.Error()))
		}
	}
	if a.cfg.Cleanup.OfflineRetention > 0 {
		if _, err := a.offline.Purge(ctx, a.cfg.Cleanup.OfflineRetention); err != nil {
			a.log.Error("purge offline operations", slog.String("error", err.Error()))
		}
	}
}
