// Package client приложение устройства: вход пользователя, регистрация
// устройства, синхронизация, локальная очередь офлайн-изменений и
// прием событий реального времени.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"devicesync/internal/app/client/config"
	"devicesync/internal/domain/device"
	"devicesync/internal/domain/offline"
	"devicesync/internal/domain/sync"
	"devicesync/internal/domain/token"
	"devicesync/internal/domain/user"
	"devicesync/internal/realtime"

	"golang.org/x/exp/slog"
)

// flushChunk число операций в одном запросе при выгрузке очереди
const flushChunk = sync.DefaultBatchSize

var (
	ErrNotLoggedIn = errors.New("not logged in: run `devicesync login` first")
	ErrNoDevice    = errors.New("device is not registered: run `devicesync device register` first")
)

type App struct {
	config  *config.Config
	log     *slog.Logger
	http    *HTTPClient
	storage *SQLiteStorage
	watcher *Watcher
	now     func() time.Time
}

// FlushResult итог выгрузки очереди
type FlushResult struct {
	Uploaded int
	Replay   *sync.Result
}

// New открывает локальное хранилище и восстанавливает сохраненные токены
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	storage, err := NewSQLiteStorage(cfg.DataPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:  cfg,
		log:     log,
		http:    NewHTTPClient(cfg, log),
		storage: storage,
		watcher: NewWatcher(cfg.WebsocketURL(), log),
		now:     time.Now,
	}

	ctx := context.Background()
	userToken, err := storage.Credential(ctx, KeyUserToken)
	if err != nil {
		storage.Close()
		return nil, err
	}
	deviceToken, err := storage.Credential(ctx, KeyDeviceToken)
	if err != nil {
		storage.Close()
		return nil, err
	}
	a.http.SetUserToken(userToken)
	a.http.SetDeviceToken(deviceToken)

	return a, nil
}

func (a *App) Close() error {
	return a.storage.Close()
}

func (a *App) CheckConnection(ctx context.Context) error {
	return a.http.HealthCheck(ctx)
}

func (a *App) Register(ctx context.Context, creds user.Credentials) error {
	return a.http.Register(ctx, creds)
}

// Login входит и сохраняет пользовательский токен
func (a *App) Login(ctx context.Context, creds user.Credentials) (*user.Session, error) {
	s, err := a.http.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := a.storage.SetCredential(ctx, KeyLogin, s.Login); err != nil {
		return nil, err
	}
	if err := a.storage.SetCredential(ctx, KeyUserToken, s.Token.Value); err != nil {
		return nil, err
	}
	a.http.SetUserToken(s.Token.Value)
	return s, nil
}

// Logout забывает все токены; очередь изменений сохраняется
func (a *App) Logout(ctx context.Context) error {
	a.http.SetUserToken("")
	a.http.SetDeviceToken("")
	return a.storage.DeleteCredentials(ctx, KeyLogin, KeyUserToken, KeyDeviceID, KeyDeviceToken)
}

// RegisterDevice регистрирует это устройство и сохраняет его токен
func (a *App) RegisterDevice(ctx context.Context, req device.RegisterRequest) (*device.Registration, error) {
	if err := a.requireUser(ctx); err != nil {
		return nil, err
	}
	if req.DeviceID == "" {
		id, err := a.storage.Credential(ctx, KeyDeviceID)
		if err != nil {
			return nil, err
		}
		req.DeviceID = id
	}

	reg, err := a.http.RegisterDevice(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := a.storage.SetCredential(ctx, KeyDeviceID, reg.Device.ID); err != nil {
		return nil, err
	}
	if err := a.storage.SetCredential(ctx, KeyDeviceToken, reg.AuthToken.Value); err != nil {
		return nil, err
	}
	a.http.SetDeviceToken(reg.AuthToken.Value)
	return reg, nil
}

func (a *App) DeviceID(ctx context.Context) (string, error) {
	id, err := a.storage.Credential(ctx, KeyDeviceID)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoDevice
	}
	return id, nil
}

func (a *App) RefreshDeviceToken(ctx context.Context) (token.Token, error) {
	if err := a.requireDevice(ctx); err != nil {
		return token.Token{}, err
	}
	tok, err := a.http.RefreshDeviceToken(ctx)
	if err != nil {
		return token.Token{}, err
	}
	if err := a.storage.SetCredential(ctx, KeyDeviceToken, tok.Value); err != nil {
		return token.Token{}, err
	}
	a.http.SetDeviceToken(tok.Value)
	return tok, nil
}

func (a *App) Devices(ctx context.Context, activeOnly bool) ([]*device.Device, error) {
	if err := a.requireUser(ctx); err != nil {
		return nil, err
	}
	return a.http.Devices(ctx, activeOnly)
}

// Push отправляет одно изменение от имени этого устройства
func (a *App) Push(ctx context.Context, dataType sync.DataType, payload json.RawMessage, version int) (*sync.Result, error) {
	if err := a.requireDevice(ctx); err != nil {
		return nil, err
	}
	return a.http.Sync(ctx, []sync.Request{{
		DataType:     dataType,
		Payload:      payload,
		Version:      version,
		LastModified: a.now().UTC(),
	}})
}

// Record сохраняет изменение в локальную очередь без обращения к серверу
func (a *App) Record(ctx context.Context, dataType sync.DataType, kind offline.Kind, payload json.RawMessage) error {
	if !dataType.Valid() {
		return fmt.Errorf("unknown data type %q", dataType)
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown operation %q", kind)
	}
	_, err := a.storage.Enqueue(ctx, offline.Input{
		DataType:        dataType,
		Kind:            kind,
		Payload:         payload,
		ClientTimestamp: a.now().UTC(),
	})
	return err
}

func (a *App) Outbox(ctx context.Context) ([]OutboxEntry, error) {
	return a.storage.Outbox(ctx)
}

// Flush передает очередь серверу частями и запускает проигрывание.
// Запись удаляется из очереди только после того, как сервер ее сохранил.
func (a *App) Flush(ctx context.Context) (*FlushResult, error) {
	if err := a.requireDevice(ctx); err != nil {
		return nil, err
	}

	entries, err := a.storage.Outbox(ctx)
	if err != nil {
		return nil, err
	}

	res := &FlushResult{}
	for start := 0; start < len(entries); start += flushChunk {
		end := min(start+flushChunk, len(entries))
		chunk := entries[start:end]

		inputs := make([]offline.Input, len(chunk))
		seqs := make([]int64, len(chunk))
		for i, e := range chunk {
			inputs[i] = e.Input
			seqs[i] = e.Seq
		}

		if _, err := a.http.StoreOffline(ctx, inputs); err != nil {
			return res, fmt.Errorf("upload outbox: %w", err)
		}
		if err := a.storage.Remove(ctx, seqs); err != nil {
			return res, err
		}
		res.Uploaded += len(chunk)
	}

	res.Replay, err = a.http.ReplayOffline(ctx)
	if err != nil {
		return res, fmt.Errorf("replay offline operations: %w", err)
	}
	a.log.Info("outbox flushed",
		"uploaded", res.Uploaded,
		"synced", len(res.Replay.Synced),
		"conflicts", len(res.Replay.Conflicts),
	)
	return res, nil
}

func (a *App) Data(ctx context.Context, f sync.Filter) ([]*sync.Record, error) {
	if err := a.requireUser(ctx); err != nil {
		return nil, err
	}
	return a.http.Data(ctx, f)
}

func (a *App) Conflicts(ctx context.Context) ([]*sync.Conflict, error) {
	if err := a.requireUser(ctx); err != nil {
		return nil, err
	}
	return a.http.Conflicts(ctx)
}

func (a *App) Resolve(ctx context.Context, req sync.ResolveRequest) (*sync.Record, error) {
	if err := a.requireUser(ctx); err != nil {
		return nil, err
	}
	return a.http.ResolveConflict(ctx, req)
}

// Watch принимает события реального времени до отмены ctx
func (a *App) Watch(ctx context.Context, handle func(realtime.Message)) error {
	if err := a.requireDevice(ctx); err != nil {
		return err
	}
	tok, err := a.storage.Credential(ctx, KeyDeviceToken)
	if err != nil {
		return err
	}
	return a.watcher.Watch(ctx, tok, handle)
}

func (a *App) requireUser(ctx context.Context) error {
	tok, err := a.storage.Credential(ctx, KeyUserToken)
	if err != nil {
		return err
	}
	if tok == "" {
		return ErrNotLoggedIn
	}
	return nil
}

func (a *App) requireDevice(ctx context.Context) error {
	tok, err := a.storage.Credential(ctx, KeyDeviceToken)
	if err != nil {
		return err
	}
	if tok == "" {
		return ErrNoDevice
	}
	return nil
}
