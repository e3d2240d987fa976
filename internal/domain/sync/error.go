package sync

import "devicesync/internal/domain/apperr"

var (
	ErrRecordNotFound   = apperr.E(apperr.NotFound, "sync record not found")
	ErrForbidden        = apperr.E(apperr.Forbidden, "sync record does not belong to user")
	ErrNotInConflict    = apperr.E(apperr.InvalidState, "sync record is not in conflict")
	ErrMergedRequired   = apperr.E(apperr.ValidationFailed, "merged payload is required for this resolution")
	ErrUnknownStrategy  = apperr.E(apperr.ValidationFailed, "unknown resolution strategy")
	ErrNotAuthenticated = apperr.E(apperr.Unauthorized, "user not authenticated")
)
