package services

import (
	"context"

	"github.com/BradenHooton/subsignature/internal/models"
)

// Auditor is the append-only recorder the control plane and dispatcher write to.
// Implementations never fail the caller; persistence errors are logged. Notification
// rows additionally report the failure so a batch can surface it.
type Auditor interface {
	RecordLoginAttempt(ctx context.Context, username string, succeeded bool, who models.Requester)
	RecordSecurityEvent(ctx context.Context, kind models.SecurityEventKind, accountID *string, who models.Requester, details string)
	RecordNotification(ctx context.Context, signatureID, recipient, status, message string) error
}

var _ Auditor = (*AuditService)(nil)
