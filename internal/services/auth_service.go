package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/BradenHooton/subsignature/internal/auth"
	"github.com/BradenHooton/subsignature/internal/models"
	pkgauth "github.com/BradenHooton/subsignature/pkg/auth"
)

const (
	RegistrationAction        = "registration"
	DefaultRegistrationLimit  = 5
	DefaultRegistrationWindow = 900 * time.Second
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// AccountStore is the credential store as seen by login and registration
type AccountStore interface {
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	DefaultActive(ctx context.Context) (bool, error)
}

// AuthService handles authentication business logic
type AuthService struct {
	accounts  AccountStore
	throttle  *LoginThrottle
	limiter   *RateLimiter
	audit     Auditor
	delay     *auth.TimingDelay
	logger    *slog.Logger
	regLimit  int
	regWindow time.Duration
}

type AuthServiceConfig struct {
	RegistrationLimit  int
	RegistrationWindow time.Duration
}

func NewAuthService(accounts AccountStore, throttle *LoginThrottle, limiter *RateLimiter, audit Auditor, delay *auth.TimingDelay, logger *slog.Logger, cfg AuthServiceConfig) *AuthService {
	if cfg.RegistrationLimit <= 0 {
		cfg.RegistrationLimit = DefaultRegistrationLimit
	}
	if cfg.RegistrationWindow <= 0 {
		cfg.RegistrationWindow = DefaultRegistrationWindow
	}
	return &AuthService{
		accounts:  accounts,
		throttle:  throttle,
		limiter:   limiter,
		audit:     audit,
		delay:     delay,
		logger:    logger,
		regLimit:  cfg.RegistrationLimit,
		regWindow: cfg.RegistrationWindow,
	}
}

// Login verifies credentials behind the lockout gate.
//
// Returns ErrAccountLocked while the lock holds (even for the right password),
// ErrUnauthorized for unknown users and wrong passwords, and ErrAccountInactive
// for a correct password on a deactivated account.
func (s *AuthService) Login(ctx context.Context, username, password string, who models.Requester) (*models.Account, error) {
	start := time.Now()
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.delay.WaitFrom(ctx, start)
		return nil, models.ErrUnauthorized
	}

	locked, err := s.throttle.IsLocked(ctx, username, who)
	if err != nil {
		return nil, err
	}
	if locked {
		if err := s.throttle.RecordAttempt(ctx, AttemptOutcome{Username: username, Requester: who}); err != nil {
			s.logger.ErrorContext(ctx, "failed to record locked login attempt", slog.Any("error", err))
		}
		s.delay.WaitFrom(ctx, start)
		return nil, models.ErrAccountLocked
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if account == nil {
		_ = pkgauth.CompareDummy(password)
		return nil, s.fail(ctx, start, AttemptOutcome{Username: username, Requester: who})
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, s.fail(ctx, start, AttemptOutcome{Username: username, AccountID: account.ID, Requester: who})
	}

	if !account.Active {
		s.audit.RecordLoginAttempt(ctx, username, false, who)
		s.audit.RecordSecurityEvent(ctx, models.EventLoginFailed, &account.ID, who,
			"Username: "+username+", account inactive")
		s.delay.WaitFrom(ctx, start)
		return nil, models.ErrAccountInactive
	}

	if err := s.throttle.RecordAttempt(ctx, AttemptOutcome{
		Username: username, AccountID: account.ID, Succeeded: true, Requester: who,
	}); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "login succeeded", slog.String("account_id", account.ID))
	return account, nil
}

func (s *AuthService) fail(ctx context.Context, start time.Time, outcome AttemptOutcome) error {
	if err := s.throttle.RecordAttempt(ctx, outcome); err != nil {
		s.logger.ErrorContext(ctx, "failed to record failed login", slog.Any("error", err))
	}
	s.delay.WaitFrom(ctx, start)
	return models.ErrUnauthorized
}

// RegisterInput carries a self-service sign-up
type RegisterInput struct {
	Username string
	Password string
	Email    string
	FullName string
}

// Register creates an account, throttled per IP. New accounts take the system
// default active flag, which is inactive unless an administrator changed it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, who models.Requester) (*models.Account, error) {
	if !s.limiter.CheckLimit(ctx, RegistrationAction, who, s.regLimit, s.regWindow) {
		return nil, models.ErrRateLimitExceeded
	}

	in.Username = strings.TrimSpace(in.Username)
	if !usernamePattern.MatchString(in.Username) {
		return nil, fmt.Errorf("%w: username must be 3-20 letters, digits or underscores", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	active, err := s.accounts.DefaultActive(ctx)
	if err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        strings.TrimSpace(in.Email),
		FullName:     strings.TrimSpace(in.FullName),
		Role:         models.RoleUser,
		Active:       active,
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordSecurityEvent(ctx, models.EventAccountRegistered, &account.ID, who,
		fmt.Sprintf("Username: %s, active: %t", account.Username, account.Active))
	return account, nil
}
