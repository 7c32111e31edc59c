package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/subsignature/internal/models"
)

// CounterStore keeps fixed windows keyed by an opaque string.
//
// Hit counts one action under key and returns the count of the window it landed
// in. A missing or expired window (now - start >= window) is replaced by a fresh
// one with count 1. Denied calls still count; only expiry resets a window.
type CounterStore interface {
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
}

// RateLimiter throttles sensitive actions per (action, ip)
type RateLimiter struct {
	store  CounterStore
	audit  Auditor
	logger *slog.Logger
	now    func() time.Time
}

func NewRateLimiter(store CounterStore, audit Auditor, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		store:  store,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

func rateLimitKey(action, ip string) string {
	return fmt.Sprintf("%s:%s", action, ip)
}

// CheckLimit counts the action and reports whether it is within limit for the
// current window. Store failures allow the action.
func (l *RateLimiter) CheckLimit(ctx context.Context, action string, who models.Requester, limit int, window time.Duration) bool {
	count, err := l.store.Hit(ctx, rateLimitKey(action, who.IPAddress), window, l.now())
	if err != nil {
		l.logger.ErrorContext(ctx, "rate limit store unavailable, allowing request",
			slog.String("action", action),
			slog.String("ip_address", who.IPAddress),
			slog.Any("error", err),
		)
		return true
	}

	if count > limit {
		l.audit.RecordSecurityEvent(ctx, models.EventRateLimitExceeded, nil, who,
			fmt.Sprintf("Action: %s", action))
		return false
	}
	return true
}
