package user

import (
	"context"
)

// Repository хранилище пользователей.
// Create возвращает apperr.Conflict для занятого логина, FindByLogin — apperr.NotFound.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByLogin(ctx context.Context, login string) (*User, error)
}
