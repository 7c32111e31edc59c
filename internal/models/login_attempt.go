package models

import "time"

// LoginAttempt is one append-only record per login try
type LoginAttempt struct {
	ID         string    `db:"id" json:"id"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	Username   string    `db:"username" json:"username"`
	Succeeded  bool      `db:"succeeded" json:"succeeded"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
