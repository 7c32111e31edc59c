package models

import (
	"strings"
	"time"
)

// SecurityEventKind names a security-relevant occurrence
type SecurityEventKind string

const (
	EventLoginFailed        SecurityEventKind = "LOGIN_FAILED"
	EventLoginSuccess       SecurityEventKind = "LOGIN_SUCCESS"
	EventAccountLocked      SecurityEventKind = "ACCOUNT_LOCKED"
	EventRateLimitExceeded  SecurityEventKind = "RATE_LIMIT_EXCEEDED"
	EventCSRFFailed         SecurityEventKind = "CSRF_VALIDATION_FAILED"
	EventSessionTimeout     SecurityEventKind = "SESSION_TIMEOUT"
	EventInactiveSession    SecurityEventKind = "INACTIVE_ACCOUNT_SESSION"
	EventAccountRegistered  SecurityEventKind = "ACCOUNT_REGISTERED"
	EventAccountActivated   SecurityEventKind = "ACCOUNT_ACTIVATED"
	EventAccountDeactivated SecurityEventKind = "ACCOUNT_DEACTIVATED"
	EventRoleChanged        SecurityEventKind = "ROLE_CHANGED"
	EventSettingsChanged    SecurityEventKind = "SETTINGS_CHANGED"
	EventBatchRejected      SecurityEventKind = "NOTIFICATION_BATCH_REJECTED"
)

// IsSecurityIssue reports whether the kind counts towards the admin "security issues" figure
func (k SecurityEventKind) IsSecurityIssue() bool {
	s := string(k)
	return strings.Contains(s, "FAILED") || strings.Contains(s, "LOCKED")
}

// SecurityEvent is an append-only audit record. It is never updated after insert.
type SecurityEvent struct {
	ID         string            `db:"id" json:"id"`
	Kind       SecurityEventKind `db:"kind" json:"kind"`
	AccountID  *string           `db:"account_id" json:"account_id,omitempty"`
	IPAddress  string            `db:"ip_address" json:"ip_address"`
	UserAgent  string            `db:"user_agent" json:"user_agent"`
	Details    string            `db:"details" json:"details"`
	OccurredAt time.Time         `db:"occurred_at" json:"occurred_at"`
}

// AuditStats are the rolling counters shown on the admin logs overview
type AuditStats struct {
	Since              time.Time `json:"since"`
	SecurityIssues     int       `json:"security_issues"`
	FailedLogins       int       `json:"failed_logins"`
	NotificationsSent  int       `json:"notifications_sent"`
	NotificationErrors int       `json:"notification_errors"`
}

// Requester identifies the client behind an audited action
type Requester struct {
	IPAddress string
	UserAgent string
}
