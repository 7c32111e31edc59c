package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is the operational mirror of a persisted audit row
type AuditEvent struct {
	AuditType string // "login", "security" or "notification"
	EventType string
	AccountID string
	Username  string
	IPAddress string
	UserAgent string
	Success   bool
	Details   string
}

// AuditLogger writes audit events to the structured log. The database row is the
// authoritative copy; this is the one operators tail.
type AuditLogger struct {
	logger *slog.Logger
	env    string
}

func NewAuditLogger(logger *slog.Logger, env string) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		env:    env,
	}
}

func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", event.AuditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", event.AccountID))
	}
	if event.Username != "" {
		attrs = append(attrs, RedactedAttr("username", event.Username, al.env))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.Details != "" {
		attrs = append(attrs, slog.String("details", event.Details))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogPersistFailure records that an audit row could not be written
func (al *AuditLogger) LogPersistFailure(ctx context.Context, event AuditEvent, err error) {
	al.logger.LogAttrs(ctx, slog.LevelError, "failed to persist audit event",
		slog.String("audit_type", event.AuditType),
		slog.String("event_type", event.EventType),
		slog.String("error", err.Error()),
	)
}
