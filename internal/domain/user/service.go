package user

import (
	"context"
	"strings"
	"time"

	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/token"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	Register(ctx context.Context, creds Credentials) (*User, error)
	Login(ctx context.Context, creds Credentials) (*Session, error)
}

// TokenIssuer выпуск пользовательских токенов
type TokenIssuer interface {
	Issue(userID string) (token.Token, error)
}

type Service struct {
	repo      Repository
	validator Validator
	tokens    TokenIssuer
	log       *slog.Logger
	cost      int
}

func NewService(repo Repository, validator Validator, tokens TokenIssuer, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		tokens:    tokens,
		log:       log.With(slog.String("component", "user_service")),
		cost:      bcrypt.DefaultCost,
	}
}

// Register создает пользователя с bcrypt-хэшем пароля
func (s *Service) Register(ctx context.Context, creds Credentials) (*User, error) {
	login := strings.TrimSpace(creds.Login)
	if err := s.validator.ValidateRegister(login, creds.Password); err != nil {
		s.log.Debug("validation failed", "login", login, "error", err)
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "hash password", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if apperr.Is(err, apperr.Conflict) {
			return nil, ErrAlreadyExists
		}
		return nil, apperr.Wrap(apperr.Internal, "create user", err)
	}

	s.log.Info("user registered", "user_id", u.ID, "login", u.Login)
	return u, nil
}

// Login проверяет пароль и выпускает пользовательский токен
func (s *Service) Login(ctx context.Context, creds Credentials) (*Session, error) {
	login := strings.TrimSpace(creds.Login)
	if err := s.validator.ValidateLogin(login); err != nil {
		return nil, ErrInvalidAuth
	}

	u, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, ErrInvalidAuth
		}
		return nil, apperr.Wrap(apperr.Internal, "find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, ErrInvalidAuth
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}

	return &Session{UserID: u.ID, Login: u.Login, Token: tok}, nil
}
