package device

import (
	"context"
	"strings"
	"time"

	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/token"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const DefaultMaxDevicesPerUser = 10

// Servicer интерфейс сервиса устройств
type Servicer interface {
	Register(ctx context.Context, userID string, req RegisterRequest) (*Registration, error)
	Get(ctx context.Context, userID, deviceID string) (*Device, error)
	ListForUser(ctx context.Context, userID string, activeOnly bool) ([]*Device, error)
	Update(ctx context.Context, userID, deviceID string, req UpdateRequest) (*Device, error)
	Activate(ctx context.Context, userID, deviceID string) (*Device, error)
	Deactivate(ctx context.Context, userID, deviceID string) (*Device, error)
	Delete(ctx context.Context, userID, deviceID string) error
	RefreshToken(ctx context.Context, oldToken string) (token.Token, error)
	AuthenticateDevice(ctx context.Context, tokenString string) (*Device, error)
}

// TokenIssuer выпуск и проверка токенов устройств
type TokenIssuer interface {
	Issue(deviceID, userID string) (token.Token, error)
	Verify(tokenString string) (token.Identity, error)
	Refresh(old string) (token.Token, error)
}

// StatusNotifier доставка статусов на подключенные устройства
type StatusNotifier interface {
	NotifyDeviceStatus(ctx context.Context, deviceID string, payload any)
	DisconnectDevice(deviceID, reason string)
}

// ServiceConfig конфигурация сервиса устройств
type ServiceConfig struct {
	MaxDevicesPerUser int
}

// Service реализация сервиса устройств
type Service struct {
	repo      Repository
	tokens    TokenIssuer
	validator Validator
	notifier  StatusNotifier
	log       *slog.Logger
	config    ServiceConfig
	now       func() time.Time
}

// NewService создает сервис устройств
func NewService(repo Repository, tokens TokenIssuer, validator Validator, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	cfg := *config
	if cfg.MaxDevicesPerUser <= 0 {
		cfg.MaxDevicesPerUser = DefaultMaxDevicesPerUser
	}

	return &Service{
		repo:      repo,
		tokens:    tokens,
		validator: validator,
		log:       log.With(slog.String("component", "device_service")),
		config:    cfg,
		now:       time.Now,
	}
}

// SetStatusNotifier подключает доставку статусов (реестр соединений создается позже сервиса)
func (s *Service) SetStatusNotifier(n StatusNotifier) {
	s.notifier = n
}

// Register регистрирует устройство пользователя и выпускает для него токен
func (s *Service) Register(ctx context.Context, userID string, req RegisterRequest) (*Registration, error) {
	if userID == "" {
		return nil, ErrNotAuthorized
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperr.E(apperr.ValidationFailed, "device name is required")
	}

	active, err := s.repo.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "count active devices", err)
	}
	if active >= s.config.MaxDevicesPerUser {
		return nil, apperr.WithDetails(apperr.DeviceLimitExceeded, ErrLimitExceeded.Message, map[string]int{
			"active": active,
			"limit":  s.config.MaxDevicesPerUser,
		})
	}

	res := s.validator.Validate(req.Type, req.Platform, req.Capabilities)
	if !res.IsValid {
		s.log.Debug("device validation failed", "user_id", userID, "errors", res.Errors)
		return nil, validationError(res)
	}
	if len(res.Warnings) > 0 {
		s.log.Warn("device registered with capability warnings",
			"user_id", userID,
			"device_type", req.Type,
			"warnings", res.Warnings,
		)
	}

	id := req.DeviceID
	if id == "" {
		id = uuid.NewString()
	}

	now := s.now()
	d := &Device{
		ID:           id,
		UserID:       userID,
		Type:         req.Type,
		Platform:     req.Platform,
		Name:         req.Name,
		Model:        req.Model,
		OSVersion:    req.OSVersion,
		AppVersion:   req.AppVersion,
		Capabilities: req.Capabilities,
		Metadata:     req.Metadata,
		IsActive:     true,
		RegisteredAt: now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, d); err != nil {
		if apperr.Is(err, apperr.Conflict) {
			return nil, ErrAlreadyExists
		}
		return nil, apperr.Wrap(apperr.Internal, "create device", err)
	}

	tok, err := s.tokens.Issue(d.ID, userID)
	if err != nil {
		return nil, err
	}

	s.log.Info("device registered", "user_id", userID, "device_id", d.ID, "device_type", d.Type)

	return &Registration{
		Device:    d,
		AuthToken: tok,
		Warnings:  res.Warnings,
	}, nil
}

// Get возвращает устройство пользователя
func (s *Service) Get(ctx context.Context, userID, deviceID string) (*Device, error) {
	d, err := s.repo.Get(ctx, deviceID)
	if err != nil {
		return nil, s.storeErr("get device", err)
	}
	if d.UserID != userID {
		return nil, ErrForbidden
	}
	return d, nil
}

// ListForUser возвращает устройства пользователя
func (s *Service) ListForUser(ctx context.Context, userID string, activeOnly bool) ([]*Device, error) {
	devices, err := s.repo.ListByUser(ctx, userID, activeOnly)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list devices", err)
	}
	return devices, nil
}

// Update частично обновляет устройство; при изменении возможностей
// повторно проверяет итоговый набор
func (s *Service) Update(ctx context.Context, userID, deviceID string, req UpdateRequest) (*Device, error) {
	current, err := s.Get(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, apperr.E(apperr.ValidationFailed, "device name must not be empty")
	}

	if req.Capabilities != nil {
		merged := req.Capabilities.Apply(current.Capabilities)
		res := s.validator.Validate(current.Type, current.Platform, merged)
		if !res.IsValid {
			return nil, validationError(res)
		}
		if len(res.Warnings) > 0 {
			s.log.Warn("device updated with capability warnings", "device_id", deviceID, "warnings", res.Warnings)
		}
	}

	updated, err := s.repo.Update(ctx, deviceID, Patch{
		Name:         req.Name,
		Model:        req.Model,
		OSVersion:    req.OSVersion,
		AppVersion:   req.AppVersion,
		Capabilities: req.Capabilities,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return nil, s.storeErr("update device", err)
	}

	s.notify(ctx, deviceID, StatusUpdated, "")
	return updated, nil
}

// Activate включает устройство
func (s *Service) Activate(ctx context.Context, userID, deviceID string) (*Device, error) {
	current, err := s.Get(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}

	if !current.IsActive {
		active, err := s.repo.CountActiveByUser(ctx, userID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "count active devices", err)
		}
		if active >= s.config.MaxDevicesPerUser {
			return nil, ErrLimitExceeded
		}
	}

	return s.setActive(ctx, deviceID, true, StatusActivated)
}

// Deactivate мягко отключает устройство и закрывает его соединение
func (s *Service) Deactivate(ctx context.Context, userID, deviceID string) (*Device, error) {
	if _, err := s.Get(ctx, userID, deviceID); err != nil {
		return nil, err
	}

	d, err := s.setActive(ctx, deviceID, false, StatusDeactivated)
	if err != nil {
		return nil, err
	}
	s.disconnect(deviceID, StatusDeactivated)
	return d, nil
}

// Delete удаляет устройство безвозвратно
func (s *Service) Delete(ctx context.Context, userID, deviceID string) error {
	if _, err := s.Get(ctx, userID, deviceID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, deviceID); err != nil {
		return s.storeErr("delete device", err)
	}

	s.notify(ctx, deviceID, StatusDeleted, "")
	s.disconnect(deviceID, StatusDeleted)
	s.log.Info("device deleted", "user_id", userID, "device_id", deviceID)
	return nil
}

// RefreshToken выпускает новый токен по действующему токену активного устройства
func (s *Service) RefreshToken(ctx context.Context, oldToken string) (token.Token, error) {
	if _, err := s.AuthenticateDevice(ctx, oldToken); err != nil {
		return token.Token{}, err
	}
	return s.tokens.Refresh(oldToken)
}

// AuthenticateDevice проверяет токен и возвращает активное устройство, которому он выдан
func (s *Service) AuthenticateDevice(ctx context.Context, tokenString string) (*Device, error) {
	id, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	d, err := s.repo.Get(ctx, id.DeviceID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, apperr.E(apperr.Unauthorized, "device not registered")
		}
		return nil, apperr.Wrap(apperr.Internal, "get device", err)
	}
	if d.UserID != id.UserID {
		return nil, apperr.E(apperr.Unauthorized, "token does not match device owner")
	}
	if !d.IsActive {
		return nil, ErrInactive
	}
	return d, nil
}

// DeactivateInactive отключает устройства, не проявлявшие активности дольше threshold
func (s *Service) DeactivateInactive(ctx context.Context, threshold time.Duration) (int, error) {
	stale, err := s.repo.ListUnseenSince(ctx, s.now().Add(-threshold))
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "list inactive devices", err)
	}

	deactivated := 0
	for _, d := range stale {
		if !d.IsActive {
			continue
		}
		if _, err := s.setActive(ctx, d.ID, false, StatusDeactivated); err != nil {
			s.log.Error("failed to deactivate inactive device", "device_id", d.ID, "error", err)
			continue
		}
		s.disconnect(d.ID, "inactive")
		deactivated++
	}

	if deactivated > 0 {
		s.log.Info("inactive devices deactivated", "count", deactivated, "threshold", threshold)
	}
	return deactivated, nil
}

func (s *Service) setActive(ctx context.Context, deviceID string, active bool, status string) (*Device, error) {
	d, err := s.repo.Update(ctx, deviceID, Patch{IsActive: &active})
	if err != nil {
		return nil, s.storeErr("set device active", err)
	}
	s.notify(ctx, deviceID, status, "")
	return d, nil
}

func (s *Service) notify(ctx context.Context, deviceID, status, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyDeviceStatus(ctx, deviceID, StatusEvent{
		DeviceID: deviceID,
		Status:   status,
		Reason:   reason,
	})
}

func (s *Service) disconnect(deviceID, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.DisconnectDevice(deviceID, reason)
}

func (s *Service) storeErr(op string, err error) error {
	if apperr.Is(err, apperr.NotFound) {
		return ErrNotFound
	}
	return apperr.Wrap(apperr.Internal, op, err)
}
