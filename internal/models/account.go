package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is a login identity. FailedAttempts and LockedUntil are owned by the
// login throttle; Active is owned by administrators.
type Account struct {
	ID             string
	Username       string
	PasswordHash   string
	Email          string
	FullName       string
	Role           string // "user" or "admin"
	Active         bool
	FailedAttempts int
	LastFailedAt   *time.Time
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
	SessionEpoch   int64 // bumped to revoke every issued session
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsAdmin reports whether the account carries the admin role
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// LockoutState is the throttle-relevant slice of an account after a counter update
type LockoutState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// SystemSettings is the administrator-editable configuration
type SystemSettings struct {
	DefaultUserActive bool `json:"default_user_active"`
}
