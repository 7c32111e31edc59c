package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/subsignature/internal/database"
	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository appends to and reads from the login, security and notification
// audit tables. Rows are never updated after insert.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{pool: db.Pool}
}

func (r *AuditRepository) CreateLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.OccurredAt.IsZero() {
		attempt.OccurredAt = time.Now()
	}

	query := `
		INSERT INTO login_attempts (id, ip_address, username, succeeded, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		attempt.ID, attempt.IPAddress, attempt.Username, attempt.Succeeded, attempt.UserAgent, attempt.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", database.MapPostgresError(err))
	}
	return nil
}

func (r *AuditRepository) CreateSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	query := `
		INSERT INTO security_events (id, event_kind, account_id, ip_address, user_agent, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID, string(event.Kind), event.AccountID, event.IPAddress, event.UserAgent, event.Details, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record security event: %w", database.MapPostgresError(err))
	}
	return nil
}

func (r *AuditRepository) CreateNotificationLog(ctx context.Context, entry *models.NotificationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}

	query := `
		INSERT INTO notification_logs (id, signature_id, recipient, status, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.SignatureID, entry.Recipient, entry.Status, entry.Message, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record notification log: %w", database.MapPostgresError(err))
	}
	return nil
}

func (r *AuditRepository) ListLoginAttempts(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, ip_address, username, succeeded, user_agent, occurred_at
		FROM login_attempts ORDER BY occurred_at DESC LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}
	return collectRows(rows, func(row rowScanner) (*models.LoginAttempt, error) {
		var a models.LoginAttempt
		err := row.Scan(&a.ID, &a.IPAddress, &a.Username, &a.Succeeded, &a.UserAgent, &a.OccurredAt)
		return &a, err
	})
}

func (r *AuditRepository) ListSecurityEvents(ctx context.Context, limit int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, event_kind, account_id, ip_address, user_agent, details, occurred_at
		FROM security_events ORDER BY occurred_at DESC LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	return collectRows(rows, func(row rowScanner) (*models.SecurityEvent, error) {
		var e models.SecurityEvent
		err := row.Scan(&e.ID, &e.Kind, &e.AccountID, &e.IPAddress, &e.UserAgent, &e.Details, &e.OccurredAt)
		return &e, err
	})
}

func (r *AuditRepository) ListNotificationLogs(ctx context.Context, limit int) ([]*models.NotificationLog, error) {
	query := `
		SELECT id, signature_id, recipient, status, message, occurred_at
		FROM notification_logs ORDER BY occurred_at DESC LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification logs: %w", err)
	}
	return collectRows(rows, func(row rowScanner) (*models.NotificationLog, error) {
		var l models.NotificationLog
		err := row.Scan(&l.ID, &l.SignatureID, &l.Recipient, &l.Status, &l.Message, &l.OccurredAt)
		return &l, err
	})
}

// Stats aggregates the admin overview counters since the given instant
func (r *AuditRepository) Stats(ctx context.Context, since time.Time) (*models.AuditStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM security_events
			 WHERE occurred_at >= $1 AND (event_kind LIKE '%FAILED%' OR event_kind LIKE '%LOCKED%')),
			(SELECT COUNT(*) FROM login_attempts WHERE occurred_at >= $1 AND NOT succeeded),
			(SELECT COUNT(*) FROM notification_logs WHERE occurred_at >= $1 AND status = $2),
			(SELECT COUNT(*) FROM notification_logs WHERE occurred_at >= $1 AND status = $3)
	`

	var s models.AuditStats
	err := r.pool.QueryRow(ctx, query, since, models.NotificationSuccess, models.NotificationError).Scan(
		&s.SecurityIssues, &s.FailedLogins, &s.NotificationsSent, &s.NotificationErrors,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit stats: %w", err)
	}
	s.Since = since
	return &s, nil
}

func collectRows[T any](rows pgx.Rows, scan func(rowScanner) (*T, error)) ([]*T, error) {
	defer rows.Close()

	out := make([]*T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
