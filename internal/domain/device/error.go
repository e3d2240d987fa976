package device

import "devicesync/internal/domain/apperr"

var (
	ErrNotFound       = apperr.E(apperr.NotFound, "device not found")
	ErrForbidden      = apperr.E(apperr.Forbidden, "device does not belong to user")
	ErrInactive       = apperr.E(apperr.Unauthorized, "device is not active")
	ErrAlreadyExists  = apperr.E(apperr.Conflict, "device already exists")
	ErrLimitExceeded  = apperr.E(apperr.DeviceLimitExceeded, "active device limit exceeded")
	ErrNotAuthorized  = apperr.E(apperr.Unauthorized, "user not authenticated")
	ErrInvalidRequest = apperr.E(apperr.ValidationFailed, "invalid device request")
)

// validationError ошибка валидации возможностей с полным списком замечаний
func validationError(res ValidationResult) error {
	return apperr.WithDetails(apperr.ValidationFailed, "device capabilities validation failed", res)
}
