package services

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/BradenHooton/subsignature/pkg/logger"
)

const (
	DefaultOverviewLimit = 50
	MaxOverviewLimit     = 500
)

// AuditStore is the append-only persistence behind AuditService
type AuditStore interface {
	CreateLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CreateSecurityEvent(ctx context.Context, event *models.SecurityEvent) error
	CreateNotificationLog(ctx context.Context, entry *models.NotificationLog) error
	ListLoginAttempts(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
	ListSecurityEvents(ctx context.Context, limit int) ([]*models.SecurityEvent, error)
	ListNotificationLogs(ctx context.Context, limit int) ([]*models.NotificationLog, error)
	Stats(ctx context.Context, since time.Time) (*models.AuditStats, error)
}

// AuditService handles audit logging with dual-write pattern (slog + database).
// A failed database write is logged and never fails the audited operation.
type AuditService struct {
	store  AuditStore
	mirror *logger.AuditLogger
	now    func() time.Time
}

func NewAuditService(store AuditStore, mirror *logger.AuditLogger) *AuditService {
	return &AuditService{
		store:  store,
		mirror: mirror,
		now:    time.Now,
	}
}

// RecordLoginAttempt appends one login attempt row
func (s *AuditService) RecordLoginAttempt(ctx context.Context, username string, succeeded bool, who models.Requester) {
	attempt := &models.LoginAttempt{
		IPAddress:  who.IPAddress,
		Username:   username,
		Succeeded:  succeeded,
		UserAgent:  who.UserAgent,
		OccurredAt: s.now(),
	}

	event := logger.AuditEvent{
		AuditType: "login",
		EventType: "login_attempt",
		Username:  username,
		IPAddress: who.IPAddress,
		UserAgent: who.UserAgent,
		Success:   succeeded,
	}
	s.mirror.Log(ctx, event)

	if err := s.store.CreateLoginAttempt(ctx, attempt); err != nil {
		s.mirror.LogPersistFailure(ctx, event, err)
	}
}

// RecordSecurityEvent appends one security event row. accountID may be nil.
func (s *AuditService) RecordSecurityEvent(ctx context.Context, kind models.SecurityEventKind, accountID *string, who models.Requester, details string) {
	row := &models.SecurityEvent{
		Kind:       kind,
		AccountID:  accountID,
		IPAddress:  who.IPAddress,
		UserAgent:  who.UserAgent,
		Details:    details,
		OccurredAt: s.now(),
	}

	event := logger.AuditEvent{
		AuditType: "security",
		EventType: string(kind),
		IPAddress: who.IPAddress,
		UserAgent: who.UserAgent,
		Success:   !kind.IsSecurityIssue() && kind != models.EventRateLimitExceeded,
		Details:   details,
	}
	if accountID != nil {
		event.AccountID = *accountID
	}
	s.mirror.Log(ctx, event)

	if err := s.store.CreateSecurityEvent(ctx, row); err != nil {
		s.mirror.LogPersistFailure(ctx, event, err)
	}
}

// RecordNotification appends the outcome of one dispatched item. The returned error
// means the row was not persisted; the structured mirror still has it.
func (s *AuditService) RecordNotification(ctx context.Context, signatureID, recipient, status, message string) error {
	row := &models.NotificationLog{
		SignatureID: signatureID,
		Recipient:   recipient,
		Status:      status,
		Message:     message,
		OccurredAt:  s.now(),
	}

	event := logger.AuditEvent{
		AuditType: "notification",
		EventType: status,
		Success:   status == models.NotificationSuccess,
		Details:   fmt.Sprintf("signature=%s recipient=%s: %s", signatureID, logger.SanitizedEmail(recipient), message),
	}
	s.mirror.Log(ctx, event)

	if err := s.store.CreateNotificationLog(ctx, row); err != nil {
		s.mirror.LogPersistFailure(ctx, event, err)
		return fmt.Errorf("failed to persist notification log: %w", err)
	}
	return nil
}

// AuditOverview is the admin logs page payload
type AuditOverview struct {
	Stats            *models.AuditStats        `json:"stats"`
	SecurityEvents   []*models.SecurityEvent   `json:"security_events"`
	LoginAttempts    []*models.LoginAttempt    `json:"login_attempts"`
	NotificationLogs []*models.NotificationLog `json:"notification_logs"`
}

// Overview returns 24h counters and the latest limit rows of each audit table.
// limit is clamped to [1, MaxOverviewLimit]; zero selects DefaultOverviewLimit.
func (s *AuditService) Overview(ctx context.Context, limit int) (*AuditOverview, error) {
	switch {
	case limit <= 0:
		limit = DefaultOverviewLimit
	case limit > MaxOverviewLimit:
		limit = MaxOverviewLimit
	}

	stats, err := s.store.Stats(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	events, err := s.store.ListSecurityEvents(ctx, limit)
	if err != nil {
		return nil, err
	}

	attempts, err := s.store.ListLoginAttempts(ctx, limit)
	if err != nil {
		return nil, err
	}

	logs, err := s.store.ListNotificationLogs(ctx, limit)
	if err != nil {
		return nil, err
	}

	return &AuditOverview{
		Stats:            stats,
		SecurityEvents:   events,
		LoginAttempts:    attempts,
		NotificationLogs: logs,
	}, nil
}
