package models

import "time"

// Signature is the stored record a notification is rendered from
type Signature struct {
	ID        string
	OwnerID   string
	Name      string
	Role      string
	Email     string
	Phone     string
	Template  string
	CreatedAt time.Time
}

const (
	NotificationSuccess = "success"
	NotificationError   = "error"
)

// NotificationLog records the outcome of one attempted item of a batch send
type NotificationLog struct {
	ID          string    `db:"id" json:"id"`
	SignatureID string    `db:"signature_id" json:"signature_id"`
	Recipient   string    `db:"recipient" json:"recipient"`
	Status      string    `db:"status" json:"status"`
	Message     string    `db:"message" json:"message"`
	OccurredAt  time.Time `db:"occurred_at" json:"occurred_at"`
}

// Progress stream statuses
const (
	ProgressStart      = "start"
	ProgressSuccess    = "success"
	ProgressError      = "error"
	ProgressFinished   = "finished"
	ProgressFatalError = "fatal_error"
)

// Progress is the position of an event within its batch
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ProgressEvent is one record of the bulk-send progress stream
type ProgressEvent struct {
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Progress    *Progress `json:"progress"`
	SignatureID string    `json:"signature_id,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	// AuditFailed marks an item whose notification log row could not be written
	AuditFailed bool      `json:"audit_failed,omitempty"`
}

// IsTerminal reports whether no events follow this one
func (e ProgressEvent) IsTerminal() bool {
	return e.Status == ProgressFinished || e.Status == ProgressFatalError
}
