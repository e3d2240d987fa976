package sync

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"devicesync/internal/domain/apperr"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/exp/slog"
)

const (
	DefaultBatchSize  = 100
	DefaultMaxRetries = 3
	defaultRetryBase  = 20 * time.Millisecond
)

// Servicer интерфейс движка синхронизации
type Servicer interface {
	// SyncBatch обрабатывает пакет изменений; ошибки отдельных элементов попадают в Result.Failed
	SyncBatch(ctx context.Context, userID string, reqs []Request) (*Result, error)

	// ResolveConflict разрешает конфликт выбранной стратегией
	ResolveConflict(ctx context.Context, userID string, req ResolveRequest) (*Record, error)

	// GetUserSyncData возвращает данные пользователя без конфликтных записей
	GetUserSyncData(ctx context.Context, userID string, f Filter) ([]*Record, error)

	// GetConflicts возвращает неразрешенные конфликты пользователя
	GetConflicts(ctx context.Context, userID string) ([]*Conflict, error)
}

// Notifier доставка событий синхронизации на устройства пользователя
type Notifier interface {
	BroadcastSyncUpdate(ctx context.Context, userID string, payload any, excludeDeviceID string)
	NotifyConflict(ctx context.Context, userID string, payload any)
}

// ServiceConfig конфигурация движка синхронизации
type ServiceConfig struct {
	BatchSize  int
	MaxRetries int
	RetryBase  time.Duration
}

// Service реализация движка синхронизации
type Service struct {
	repo     Repository
	devices  Devices
	notifier Notifier
	log      *slog.Logger
	config   ServiceConfig
	now      func() time.Time
}

// NewService создает движок синхронизации; notifier может быть nil
func NewService(repo Repository, devices Devices, notifier Notifier, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{MaxRetries: DefaultMaxRetries}
	}
	cfg := *config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}

	return &Service{
		repo:     repo,
		devices:  devices,
		notifier: notifier,
		log:      log.With(slog.String("component", "sync_engine")),
		config:   cfg,
		now:      time.Now,
	}
}

// SyncBatch применяет изменения по порядку, каждое независимо от остальных.
// Пакет доводится до конца, даже если клиент отключился.
func (s *Service) SyncBatch(ctx context.Context, userID string, reqs []Request) (*Result, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if len(reqs) > s.config.BatchSize {
		return nil, apperr.WithDetails(apperr.ValidationFailed, "sync batch is too large", map[string]int{
			"size":  len(reqs),
			"limit": s.config.BatchSize,
		})
	}

	ctx = context.WithoutCancel(ctx)

	res := &Result{
		Synced:    make([]*Record, 0, len(reqs)),
		Conflicts: make([]*Conflict, 0),
	}
	owned := make(map[string]error)
	var touched []string

	for i, req := range reqs {
		rec, conflict, err := s.syncItem(ctx, userID, req, owned)
		if err != nil {
			s.log.Warn("sync item skipped",
				"user_id", userID,
				"device_id", req.DeviceID,
				"data_type", req.DataType,
				"index", i,
				"error", err,
			)
			res.Failed = append(res.Failed, ItemError{
				Index:    i,
				DeviceID: req.DeviceID,
				DataType: req.DataType,
				Error:    err.Error(),
			})
			continue
		}

		if !slices.Contains(touched, req.DeviceID) {
			touched = append(touched, req.DeviceID)
		}
		if conflict != nil {
			res.Conflicts = append(res.Conflicts, conflict)
			continue
		}
		res.Synced = append(res.Synced, rec)
	}

	now := s.now()
	for _, id := range touched {
		if err := s.devices.TouchLastSync(ctx, id, now); err != nil {
			s.log.Warn("failed to update device last sync", "device_id", id, "error", err)
		}
	}

	if s.notifier != nil {
		for _, rec := range res.Synced {
			s.notifier.BroadcastSyncUpdate(ctx, userID, UpdateEvent{SourceDeviceID: rec.DeviceID, Record: rec}, rec.DeviceID)
		}
		for _, c := range res.Conflicts {
			s.notifier.NotifyConflict(ctx, userID, ConflictEvent{Event: ConflictDetected, Conflict: c})
		}
	}

	s.log.Debug("sync batch processed",
		"user_id", userID,
		"requests", len(reqs),
		"synced", len(res.Synced),
		"conflicts", len(res.Conflicts),
		"failed", len(res.Failed),
	)
	return res, nil
}

func (s *Service) syncItem(ctx context.Context, userID string, req Request, owned map[string]error) (*Record, *Conflict, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	err, checked := owned[req.DeviceID]
	if !checked {
		err = s.checkDevice(ctx, userID, req.DeviceID)
		owned[req.DeviceID] = err
	}
	if err != nil {
		return nil, nil, err
	}

	existing, err := s.repo.Latest(ctx, req.DeviceID, req.DataType)
	if err != nil && !apperr.Is(err, apperr.NotFound) {
		return nil, nil, apperr.Wrap(apperr.Internal, "load latest sync record", err)
	}

	now := s.now()

	if existing == nil {
		rec := &Record{
			ID:           uuid.NewString(),
			UserID:       userID,
			DeviceID:     req.DeviceID,
			DataType:     req.DataType,
			Payload:      req.Payload,
			Version:      req.Version,
			LastModified: req.LastModified,
			Status:       StatusSynced,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.withRetry(ctx, func(ctx context.Context) error { return s.repo.Create(ctx, rec) }); err != nil {
			return nil, nil, apperr.Wrap(apperr.Internal, "create sync record", err)
		}
		return rec, nil, nil
	}

	rec := *existing
	rec.UpdatedAt = now

	if existing.Version >= req.Version && existing.LastModified.After(req.LastModified) {
		rec.Status = StatusConflict
		rec.ClientPayload = req.Payload
		rec.ClientVersion = req.Version
		rec.ConflictAt = &now
		if err := s.withRetry(ctx, func(ctx context.Context) error { return s.repo.Save(ctx, &rec) }); err != nil {
			return nil, nil, apperr.Wrap(apperr.Internal, "mark sync conflict", err)
		}
		return nil, ConflictFromRecord(&rec), nil
	}

	rec.Version = max(existing.Version, req.Version) + 1
	rec.Payload = req.Payload
	rec.LastModified = req.LastModified
	rec.Status = StatusSynced
	rec.Resolution = ""
	clearConflict(&rec)

	if err := s.withRetry(ctx, func(ctx context.Context) error { return s.repo.Save(ctx, &rec) }); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "update sync record", err)
	}
	return &rec, nil, nil
}

func (s *Service) checkDevice(ctx context.Context, userID, deviceID string) error {
	d, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return apperr.E(apperr.NotFound, "device not found")
		}
		return apperr.Wrap(apperr.Internal, "get device", err)
	}
	if d.UserID != userID {
		return apperr.E(apperr.Forbidden, "device does not belong to user")
	}
	return nil
}

// ResolveConflict разрешает конфликт: server_wins оставляет данные сервера,
// client_wins и merge сохраняют переданный merged payload
func (s *Service) ResolveConflict(ctx context.Context, userID string, req ResolveRequest) (*Record, error) {
	if !req.Strategy.Valid() {
		return nil, ErrUnknownStrategy
	}

	existing, err := s.repo.Get(ctx, req.ConflictID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, apperr.Wrap(apperr.Internal, "get sync record", err)
	}
	if existing.UserID != userID {
		return nil, ErrForbidden
	}
	if existing.Status != StatusConflict {
		return nil, ErrNotInConflict
	}

	rec := *existing
	if req.Strategy != StrategyServerWins {
		if len(req.MergedPayload) == 0 || string(req.MergedPayload) == "null" {
			return nil, ErrMergedRequired
		}
		if !json.Valid(req.MergedPayload) {
			return nil, apperr.E(apperr.ValidationFailed, "merged payload is not valid JSON")
		}
		rec.Payload = req.MergedPayload
	}

	now := s.now()
	rec.Version++
	rec.Status = StatusSynced
	rec.Resolution = req.Strategy
	rec.LastModified = now
	rec.UpdatedAt = now
	clearConflict(&rec)

	if err := s.withRetry(ctx, func(ctx context.Context) error { return s.repo.Save(ctx, &rec) }); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "save resolved record", err)
	}

	s.log.Info("sync conflict resolved",
		"user_id", userID,
		"conflict_id", rec.ID,
		"resolution", req.Strategy,
		"version", rec.Version,
	)

	if s.notifier != nil {
		s.notifier.NotifyConflict(ctx, userID, ConflictEvent{
			Event:    ConflictResolved,
			Record:   &rec,
			Strategy: req.Strategy,
		})
	}
	return &rec, nil
}

// GetUserSyncData возвращает данные пользователя, конфликтные записи не попадают в выборку
func (s *Service) GetUserSyncData(ctx context.Context, userID string, f Filter) ([]*Record, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if f.DataType != "" && !f.DataType.Valid() {
		return nil, apperr.E(apperr.ValidationFailed, "unknown data type")
	}

	records, err := s.repo.List(ctx, userID, f)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list sync records", err)
	}
	if records == nil {
		records = []*Record{}
	}
	return records, nil
}

// GetConflicts возвращает конфликты пользователя
func (s *Service) GetConflicts(ctx context.Context, userID string) ([]*Conflict, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	records, err := s.repo.ListConflicts(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list sync conflicts", err)
	}

	conflicts := make([]*Conflict, 0, len(records))
	for _, r := range records {
		conflicts = append(conflicts, ConflictFromRecord(r))
	}
	return conflicts, nil
}

// withRetry повторяет запись в хранилище только для инфраструктурных ошибок
func (s *Service) withRetry(ctx context.Context, op func(context.Context) error) error {
	b := retry.WithMaxRetries(uint64(s.config.MaxRetries), retry.NewExponential(s.config.RetryBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err != nil && apperr.KindOf(err) == apperr.Internal {
			return retry.RetryableError(err)
		}
		return err
	})
}

func validateRequest(req Request) error {
	switch {
	case req.DeviceID == "":
		return apperr.E(apperr.ValidationFailed, "device_id is required")
	case !req.DataType.Valid():
		return apperr.E(apperr.ValidationFailed, "unknown data type")
	case req.Version < 1:
		return apperr.E(apperr.ValidationFailed, "version must be at least 1")
	case req.LastModified.IsZero():
		return apperr.E(apperr.ValidationFailed, "last_modified is required")
	case len(req.Payload) == 0 || !json.Valid(req.Payload):
		return apperr.E(apperr.ValidationFailed, "payload must be valid JSON")
	}
	return nil
}

func clearConflict(r *Record) {
	r.ClientPayload = nil
	r.ClientVersion = 0
	r.ConflictAt = nil
}
