// Package token выпускает и проверяет подписанные токены, связывающие
// устройство с пользователем. Токены stateless: валидность определяется
// только подписью и сроком действия, серверного списка отзыва нет.
package token

import (
	"errors"
	"time"

	"devicesync/internal/domain/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeDevice = "device"
	TypeUser   = "user"
)

var (
	ErrInvalidToken = apperr.E(apperr.InvalidToken, "invalid token")
	ErrTokenExpired = apperr.E(apperr.TokenExpired, "token expired")
)

// Claims утверждения токена
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Type   string `json:"typ"`
}

// Token выпущенный токен
type Token struct {
	Value     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Identity проверенная привязка токена
type Identity struct {
	DeviceID string
	UserID   string
	TokenID  string
}

// Codec подписывает и проверяет токены одного типа
type Codec struct {
	secret []byte
	ttl    time.Duration
	typ    string
	now    func() time.Time
}

// Option настраивает Codec
type Option func(*Codec)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func newCodec(typ string, secret []byte, ttl time.Duration, opts ...Option) *Codec {
	c := &Codec{
		secret: secret,
		ttl:    ttl,
		typ:    typ,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) issue(subject, userID string) (Token, error) {
	now := c.now().Truncate(time.Second)
	exp := now.Add(c.ttl)
	id := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: userID,
		Type:   c.typ,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return Token{}, apperr.Wrap(apperr.Internal, "sign token", err)
	}

	return Token{
		Value:     signed,
		TokenID:   id,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

func (c *Codec) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, apperr.Wrap(apperr.InvalidToken, "invalid token", err)
	}

	if !parsed.Valid || claims.Type != c.typ {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Service токены устройств
type Service struct {
	codec *Codec
}

// NewService создает сервис токенов устройств
func NewService(secret []byte, ttl time.Duration, opts ...Option) *Service {
	return &Service{codec: newCodec(TypeDevice, secret, ttl, opts...)}
}

// Issue выпускает новый токен для пары (устройство, пользователь)
func (s *Service) Issue(deviceID, userID string) (Token, error) {
	if deviceID == "" || userID == "" {
		return Token{}, apperr.E(apperr.ValidationFailed, "device id and user id are required")
	}
	return s.codec.issue(deviceID, userID)
}

// Verify проверяет подпись, тип и срок действия токена
func (s *Service) Verify(tokenString string) (Identity, error) {
	claims, err := s.codec.parse(tokenString)
	if err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" || claims.UserID == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		DeviceID: claims.Subject,
		UserID:   claims.UserID,
		TokenID:  claims.ID,
	}, nil
}

// Refresh выпускает новый токен для той же привязки. Старый токен
// остается действительным до истечения своего срока.
func (s *Service) Refresh(old string) (Token, error) {
	id, err := s.Verify(old)
	if err != nil {
		return Token{}, err
	}
	return s.codec.issue(id.DeviceID, id.UserID)
}

// UserTokens токены пользователей, выдаваемые провайдером идентификации
type UserTokens struct {
	codec *Codec
}

// NewUserTokens создает кодек пользовательских токенов
func NewUserTokens(secret []byte, ttl time.Duration, opts ...Option) *UserTokens {
	return &UserTokens{codec: newCodec(TypeUser, secret, ttl, opts...)}
}

// Issue выпускает токен пользователя
func (u *UserTokens) Issue(userID string) (Token, error) {
	if userID == "" {
		return Token{}, apperr.E(apperr.ValidationFailed, "user id is required")
	}
	return u.codec.issue(userID, userID)
}

// Verify возвращает id пользователя из токена
func (u *UserTokens) Verify(tokenString string) (string, error) {
	claims, err := u.codec.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
