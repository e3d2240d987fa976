package user

import "devicesync/internal/domain/apperr"

var (
	ErrNotFound      = apperr.E(apperr.NotFound, "user not found")
	ErrInvalidAuth   = apperr.E(apperr.Unauthorized, "invalid credentials")
	ErrAlreadyExists = apperr.E(apperr.Conflict, "login is already taken")
)
