package offline

import (
	"context"
	"encoding/json"
	"time"

	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/sync"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Servicer интерфейс очереди офлайн-операций
type Servicer interface {
	Store(ctx context.Context, userID, deviceID string, ops []Input) ([]*Operation, error)
	Replay(ctx context.Context, userID, deviceID string) (*sync.Result, error)
	Pending(ctx context.Context, userID, deviceID string) ([]*Operation, error)
}

// Syncer движок, через который проигрываются операции
type Syncer interface {
	SyncBatch(ctx context.Context, userID string, reqs []sync.Request) (*sync.Result, error)
}

// ServiceConfig конфигурация очереди
type ServiceConfig struct {
	// BatchSize размер пакета при проигрывании, не больше лимита движка
	BatchSize int
}

// Service реализация очереди офлайн-операций
type Service struct {
	repo   Repository
	engine Syncer
	log    *slog.Logger
	config ServiceConfig
	now    func() time.Time
}

// NewService создает очередь офлайн-операций
func NewService(repo Repository, engine Syncer, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	cfg := *config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = sync.DefaultBatchSize
	}

	return &Service{
		repo:   repo,
		engine: engine,
		log:    log.With(slog.String("component", "offline_queue")),
		config: cfg,
		now:    time.Now,
	}
}

// Store сохраняет операции устройства как несинхронизированные; дубликаты не отбрасываются
func (s *Service) Store(ctx context.Context, userID, deviceID string, in []Input) ([]*Operation, error) {
	if userID == "" || deviceID == "" {
		return nil, apperr.E(apperr.Unauthorized, "device not authenticated")
	}
	if len(in) == 0 {
		return nil, apperr.E(apperr.ValidationFailed, "no operations to store")
	}

	now := s.now()
	ops := make([]*Operation, 0, len(in))
	for i, op := range in {
		if err := validateInput(op); err != nil {
			return nil, apperr.WithDetails(apperr.ValidationFailed, err.Error(), map[string]int{"index": i})
		}

		payload := op.Payload
		if len(payload) == 0 {
			payload = json.RawMessage("null")
		}
		ts := op.ClientTimestamp
		if ts.IsZero() {
			ts = now
		}

		ops = append(ops, &Operation{
			ID:              uuid.NewString(),
			UserID:          userID,
			DeviceID:        deviceID,
			DataType:        op.DataType,
			Kind:            op.Kind,
			Payload:         payload,
			ClientTimestamp: ts,
			CreatedAt:       now,
		})
	}

	if err := s.repo.CreateBatch(ctx, ops); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "store offline operations", err)
	}

	s.log.Debug("offline operations stored", "user_id", userID, "device_id", deviceID, "count", len(ops))
	return ops, nil
}

// Replay проигрывает накопленные операции устройства через движок синхронизации.
// Операции захватываются до отправки, поэтому параллельные вызовы не проиграют одну
// операцию дважды. Каждая уходит с версией 1 и остается синхронизированной независимо
// от результата: конфликт разрешается через движок, а не повторным проигрыванием.
// Если движок отказал целиком, непроигранные операции возвращаются в очередь.
func (s *Service) Replay(ctx context.Context, userID, deviceID string) (*sync.Result, error) {
	if userID == "" || deviceID == "" {
		return nil, apperr.E(apperr.Unauthorized, "device not authenticated")
	}

	claimed, err := s.repo.ClaimPending(ctx, userID, deviceID, s.now())
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "claim offline operations", err)
	}

	total := &sync.Result{
		Synced:    []*sync.Record{},
		Conflicts: []*sync.Conflict{},
	}

	for start := 0; start < len(claimed); start += s.config.BatchSize {
		end := min(start+s.config.BatchSize, len(claimed))
		chunk := claimed[start:end]

		reqs := make([]sync.Request, 0, len(chunk))
		for _, op := range chunk {
			reqs = append(reqs, sync.Request{
				DeviceID:     op.DeviceID,
				DataType:     op.DataType,
				Payload:      op.Payload,
				Version:      1,
				LastModified: op.ClientTimestamp,
			})
		}

		res, err := s.engine.SyncBatch(ctx, userID, reqs)
		if err != nil {
			s.release(ctx, claimed[start:])
			return nil, err
		}

		total.Synced = append(total.Synced, res.Synced...)
		total.Conflicts = append(total.Conflicts, res.Conflicts...)
		for _, f := range res.Failed {
			f.Index += start
			total.Failed = append(total.Failed, f)
		}
	}

	if len(claimed) > 0 {
		s.log.Info("offline operations replayed",
			"user_id", userID,
			"device_id", deviceID,
			"operations", len(claimed),
			"synced", len(total.Synced),
			"conflicts", len(total.Conflicts),
		)
	}
	return total, nil
}

func (s *Service) release(ctx context.Context, ops []*Operation) {
	ids := make([]string, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, op.ID)
	}
	if err := s.repo.Release(context.WithoutCancel(ctx), ids); err != nil {
		s.log.Error("failed to release offline operations", "count", len(ids), "error", err)
	}
}

// Pending возвращает несинхронизированные операции устройства
func (s *Service) Pending(ctx context.Context, userID, deviceID string) ([]*Operation, error) {
	if userID == "" || deviceID == "" {
		return nil, apperr.E(apperr.Unauthorized, "device not authenticated")
	}

	ops, err := s.repo.ListPending(ctx, deviceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list offline operations", err)
	}

	own := make([]*Operation, 0, len(ops))
	for _, op := range ops {
		if op.UserID == userID {
			own = append(own, op)
		}
	}
	return own, nil
}

// Purge удаляет синхронизированные операции старше retention
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int, error) {
	n, err := s.repo.PurgeSynced(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "purge offline operations", err)
	}
	if n > 0 {
		s.log.Info("offline operations purged", "count", n, "retention", retention)
	}
	return n, nil
}

func validateInput(op Input) error {
	switch {
	case !op.DataType.Valid():
		return apperr.E(apperr.ValidationFailed, "unknown data type")
	case !op.Kind.Valid():
		return apperr.E(apperr.ValidationFailed, "unknown operation")
	case op.Kind != KindDelete && len(op.Payload) == 0:
		return apperr.E(apperr.ValidationFailed, "payload is required")
	case len(op.Payload) > 0 && !json.Valid(op.Payload):
		return apperr.E(apperr.ValidationFailed, "payload must be valid JSON")
	}
	return nil
}
