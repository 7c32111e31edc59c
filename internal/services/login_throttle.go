package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/subsignature/internal/models"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 900 * time.Second
)

// LockoutStore is the slice of the credential store the throttle mutates
type LockoutStore interface {
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	IncrementFailedAttempts(ctx context.Context, username string, at time.Time) (*models.LockoutState, error)
	LockAccount(ctx context.Context, username string, until time.Time) (bool, error)
	ClearLockout(ctx context.Context, username string, now time.Time) error
	RecordSuccessfulLogin(ctx context.Context, username string, at time.Time) error
}

// LoginThrottle is the per-account lockout state machine.
//
//	Unlocked: failed_attempts < threshold
//	Locked:   failed_attempts >= threshold and now < locked_until
//
// The lock is set in the same call that observes the threshold failure. Expired
// locks are cleared lazily by the next IsLocked. Success always resets.
type LoginThrottle struct {
	accounts  LockoutStore
	audit     Auditor
	logger    *slog.Logger
	threshold int
	lockFor   time.Duration
	now       func() time.Time
}

func NewLoginThrottle(accounts LockoutStore, audit Auditor, logger *slog.Logger, threshold int, lockFor time.Duration) *LoginThrottle {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	if lockFor <= 0 {
		lockFor = DefaultLockoutDuration
	}
	return &LoginThrottle{
		accounts:  accounts,
		audit:     audit,
		logger:    logger,
		threshold: threshold,
		lockFor:   lockFor,
		now:       time.Now,
	}
}

// IsLocked reports whether username is currently locked out. It may transition
// state: an expired lock is cleared, and a row over the threshold without a lock
// gets one. Unknown usernames are never locked.
func (t *LoginThrottle) IsLocked(ctx context.Context, username string, who models.Requester) (bool, error) {
	account, err := t.accounts.GetByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load lockout state: %w", err)
	}

	if account.FailedAttempts < t.threshold {
		return false, nil
	}

	now := t.now()

	if account.LockedUntil == nil {
		if err := t.lock(ctx, account.Username, &account.ID, now, who); err != nil {
			return false, err
		}
		return true, nil
	}

	if now.Before(*account.LockedUntil) {
		return true, nil
	}

	if err := t.accounts.ClearLockout(ctx, account.Username, now); err != nil {
		return false, fmt.Errorf("failed to clear expired lock: %w", err)
	}
	t.logger.InfoContext(ctx, "account lock expired", slog.String("account_id", account.ID))
	return false, nil
}

// AttemptOutcome describes one finished login try
type AttemptOutcome struct {
	Username  string
	AccountID string // empty when the username matched no account
	Succeeded bool
	Requester models.Requester
}

// RecordAttempt appends the attempt record and applies the outcome to the account:
// failures count towards the lock, success resets it.
func (t *LoginThrottle) RecordAttempt(ctx context.Context, outcome AttemptOutcome) error {
	t.audit.RecordLoginAttempt(ctx, outcome.Username, outcome.Succeeded, outcome.Requester)

	now := t.now()
	var accountID *string
	if outcome.AccountID != "" {
		accountID = &outcome.AccountID
	}

	if outcome.Succeeded {
		if err := t.accounts.RecordSuccessfulLogin(ctx, outcome.Username, now); err != nil {
			return fmt.Errorf("failed to reset lockout state: %w", err)
		}
		t.audit.RecordSecurityEvent(ctx, models.EventLoginSuccess, accountID, outcome.Requester,
			"Username: "+outcome.Username)
		return nil
	}

	t.audit.RecordSecurityEvent(ctx, models.EventLoginFailed, accountID, outcome.Requester,
		"Username: "+outcome.Username)

	state, err := t.accounts.IncrementFailedAttempts(ctx, outcome.Username, now)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to increment failed attempts: %w", err)
	}

	if state.FailedAttempts >= t.threshold && state.LockedUntil == nil {
		return t.lock(ctx, outcome.Username, accountID, now, outcome.Requester)
	}
	return nil
}

// lock sets locked_until once; only the caller whose update applied emits ACCOUNT_LOCKED
func (t *LoginThrottle) lock(ctx context.Context, username string, accountID *string, now time.Time, who models.Requester) error {
	until := now.Add(t.lockFor)

	applied, err := t.accounts.LockAccount(ctx, username, until)
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}
	if !applied {
		return nil
	}

	t.audit.RecordSecurityEvent(ctx, models.EventAccountLocked, accountID, who,
		fmt.Sprintf("Username: %s, locked until %s", username, until.UTC().Format(time.RFC3339)))
	return nil
}
