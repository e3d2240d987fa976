package memory

import (
	"context"
	"sync"

	"devicesync/internal/domain/apperr"
	"devicesync/internal/domain/user"
)

type UserRepository struct {
	mu      sync.RWMutex
	byLogin map[string]*user.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byLogin: make(map[string]*user.User)}
}

func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byLogin[u.Login]; ok {
		return apperr.E(apperr.Conflict, "login is already taken")
	}
	c := *u
	r.byLogin[u.Login] = &c
	return nil
}

func (r *UserRepository) FindByLogin(_ context.Context, login string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byLogin[login]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "user not found")
	}
	c := *u
	return &c, nil
}
