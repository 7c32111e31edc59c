package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountInactive = errors.New("account is inactive")
	ErrAccountLocked   = errors.New("account is temporarily locked")

	// Throttling
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Session and request integrity
	ErrSessionMissing  = errors.New("no active session")
	ErrSessionTimedOut = errors.New("session timed out")
	ErrCSRFInvalid     = errors.New("invalid CSRF token")

	// Bulk notifications
	ErrBatchInProgress = errors.New("another batch is already running")
)
