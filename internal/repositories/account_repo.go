package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/subsignature/internal/database"
	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository is the credential store. Every statement is parameterized.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const accountColumns = `id, username, password_hash, email, full_name, role, active,
	failed_attempts, last_failed_at, locked_until, last_login_at, session_epoch, created_at, updated_at`

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account

	err := scanner.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.Email, &a.FullName, &a.Role, &a.Active,
		&a.FailedAttempts, &a.LastFailedAt, &a.LockedUntil, &a.LastLoginAt, &a.SessionEpoch,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if !isUUID(id) {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, username))
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	if account.Role == "" {
		account.Role = models.RoleUser
	}

	query := `
		INSERT INTO accounts (id, username, password_hash, email, full_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		account.ID, account.Username, account.PasswordHash, account.Email, account.FullName,
		account.Role, account.Active, account.CreatedAt, account.UpdatedAt,
	))
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	if !isUUID(id) {
		return models.ErrNotFound
	}
	return r.execOne(ctx, `UPDATE accounts SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

func (r *AccountRepository) SetRole(ctx context.Context, id, role string) error {
	if !isUUID(id) {
		return models.ErrNotFound
	}
	return r.execOne(ctx, `UPDATE accounts SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
}

// IncrementFailedAttempts bumps the counter atomically and returns the new lockout state.
// Unknown usernames return ErrNotFound.
func (r *AccountRepository) IncrementFailedAttempts(ctx context.Context, username string, at time.Time) (*models.LockoutState, error) {
	query := `
		UPDATE accounts
		SET failed_attempts = failed_attempts + 1, last_failed_at = $2, updated_at = $2
		WHERE username = $1
		RETURNING failed_attempts, locked_until
	`

	var state models.LockoutState
	err := r.pool.QueryRow(ctx, query, username, at).Scan(&state.FailedAttempts, &state.LockedUntil)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &state, nil
}

// LockAccount sets locked_until only if no lock is present, so exactly one concurrent
// caller observes true.
func (r *AccountRepository) LockAccount(ctx context.Context, username string, until time.Time) (bool, error) {
	query := `
		UPDATE accounts
		SET locked_until = $2, updated_at = NOW()
		WHERE username = $1 AND locked_until IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, username, until)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClearLockout resets an expired lock. The expiry guard keeps a fresh lock set by a
// concurrent locker from being cleared.
func (r *AccountRepository) ClearLockout(ctx context.Context, username string, now time.Time) error {
	query := `
		UPDATE accounts
		SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE username = $1 AND (locked_until IS NULL OR locked_until <= $2)
	`

	_, err := r.pool.Exec(ctx, query, username, now)
	return database.MapPostgresError(err)
}

// RecordSuccessfulLogin unconditionally clears the lockout state and stamps last_login_at
func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, username string, at time.Time) error {
	query := `
		UPDATE accounts
		SET failed_attempts = 0, locked_until = NULL, last_login_at = $2, updated_at = $2
		WHERE username = $1
	`

	return r.execOne(ctx, query, username, at)
}

func (r *AccountRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// BumpSessionEpoch invalidates every session issued for id so far
func (r *AccountRepository) BumpSessionEpoch(ctx context.Context, id string) error {
	if !isUUID(id) {
		return models.ErrNotFound
	}
	return r.execOne(ctx,
		`UPDATE accounts SET session_epoch = session_epoch + 1, updated_at = NOW() WHERE id = $1`, id)
}

const settingDefaultActive = "default_user_active"

// DefaultActive reads the system-wide default for newly registered accounts.
// A missing setting means active; migrations seed it as inactive.
func (r *AccountRepository) DefaultActive(ctx context.Context) (bool, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT setting_value FROM system_settings WHERE setting_key = $1`, settingDefaultActive,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read default_user_active: %w", err)
	}
	return value == "1", nil
}

// SetDefaultActive upserts the default_user_active setting
func (r *AccountRepository) SetDefaultActive(ctx context.Context, active bool) error {
	value := "0"
	if active {
		value = "1"
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO system_settings (setting_key, setting_value) VALUES ($1, $2)
		 ON CONFLICT (setting_key) DO UPDATE SET setting_value = EXCLUDED.setting_value`,
		settingDefaultActive, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write default_user_active: %w", err)
	}
	return nil
}

// isUUID guards lookups by id so malformed ids read as missing rows instead of
// invalid_text_representation errors.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
