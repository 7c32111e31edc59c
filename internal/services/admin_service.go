package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/subsignature/internal/models"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// AccountAdminStore is the credential store as seen by administrators. The active
// flag is only ever written through here.
type AccountAdminStore interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetRole(ctx context.Context, id, role string) error
	DefaultActive(ctx context.Context) (bool, error)
	SetDefaultActive(ctx context.Context, active bool) error
}

// AdminService handles account administration
type AdminService struct {
	accounts AccountAdminStore
	audit    Auditor
	logger   *slog.Logger
}

func NewAdminService(accounts AccountAdminStore, audit Auditor, logger *slog.Logger) *AdminService {
	return &AdminService{
		accounts: accounts,
		audit:    audit,
		logger:   logger,
	}
}

// SetActive activates or deactivates targetID. Administrators cannot change their
// own account. A deactivated account's sessions end on their next request.
func (s *AdminService) SetActive(ctx context.Context, actor *models.Account, targetID string, active bool, who models.Requester) (*models.Account, error) {
	if err := s.guard(actor, targetID); err != nil {
		return nil, err
	}

	if err := s.accounts.SetActive(ctx, targetID, active); err != nil {
		return nil, err
	}

	kind := models.EventAccountDeactivated
	if active {
		kind = models.EventAccountActivated
	}
	s.audit.RecordSecurityEvent(ctx, kind, &targetID, who, fmt.Sprintf("By admin %s", actor.ID))

	return s.accounts.GetByID(ctx, targetID)
}

// SetRole promotes or demotes targetID. Administrators cannot change their own role.
func (s *AdminService) SetRole(ctx context.Context, actor *models.Account, targetID, role string, who models.Requester) (*models.Account, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: role must be %q or %q", models.ErrBadRequest, models.RoleUser, models.RoleAdmin)
	}
	if err := s.guard(actor, targetID); err != nil {
		return nil, err
	}

	if err := s.accounts.SetRole(ctx, targetID, role); err != nil {
		return nil, err
	}

	s.audit.RecordSecurityEvent(ctx, models.EventRoleChanged, &targetID, who,
		fmt.Sprintf("Role: %s, by admin %s", role, actor.ID))
	s.logger.InfoContext(ctx, "account role changed",
		slog.String("target_id", targetID),
		slog.String("role", role),
		slog.String("actor_id", actor.ID),
	)

	return s.accounts.GetByID(ctx, targetID)
}

// ListAccounts pages through every account, newest first
func (s *AdminService) ListAccounts(ctx context.Context, actor *models.Account, limit, offset int) ([]*models.Account, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	limit, offset = pageBounds(limit, offset)
	return s.accounts.List(ctx, limit, offset)
}

// Settings reads the system configuration administrators can change
func (s *AdminService) Settings(ctx context.Context, actor *models.Account) (*models.SystemSettings, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	active, err := s.accounts.DefaultActive(ctx)
	if err != nil {
		return nil, err
	}
	return &models.SystemSettings{DefaultUserActive: active}, nil
}

// SetDefaultActive decides whether new registrations start active
func (s *AdminService) SetDefaultActive(ctx context.Context, actor *models.Account, active bool, who models.Requester) (*models.SystemSettings, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if err := s.accounts.SetDefaultActive(ctx, active); err != nil {
		return nil, err
	}

	s.audit.RecordSecurityEvent(ctx, models.EventSettingsChanged, &actor.ID, who,
		fmt.Sprintf("default_user_active=%t, by admin %s", active, actor.ID))
	s.logger.InfoContext(ctx, "system settings changed",
		slog.Bool("default_user_active", active),
		slog.String("actor_id", actor.ID),
	)

	return &models.SystemSettings{DefaultUserActive: active}, nil
}

func pageBounds(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *AdminService) guard(actor *models.Account, targetID string) error {
	if !actor.IsAdmin() {
		return models.ErrForbidden
	}
	if actor.ID == targetID {
		return fmt.Errorf("%w: administrators cannot change their own account", models.ErrForbidden)
	}
	return nil
}
