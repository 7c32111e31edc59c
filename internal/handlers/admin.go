package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/subsignature/internal/auth"
	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/BradenHooton/subsignature/internal/services"
	pkghttp "github.com/BradenHooton/subsignature/pkg/http"
)

// AdminServiceInterface defines account administration
type AdminServiceInterface interface {
	SetActive(ctx context.Context, actor *models.Account, targetID string, active bool, who models.Requester) (*models.Account, error)
	SetRole(ctx context.Context, actor *models.Account, targetID, role string, who models.Requester) (*models.Account, error)
	ListAccounts(ctx context.Context, actor *models.Account, limit, offset int) ([]*models.Account, error)
	Settings(ctx context.Context, actor *models.Account) (*models.SystemSettings, error)
	SetDefaultActive(ctx context.Context, actor *models.Account, active bool, who models.Requester) (*models.SystemSettings, error)
}

// AuditOverviewer produces the admin logs page
type AuditOverviewer interface {
	Overview(ctx context.Context, limit int) (*services.AuditOverview, error)
}

// AdminHandler handles admin HTTP requests
type AdminHandler struct {
	admin    AdminServiceInterface
	audit    AuditOverviewer
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(admin AdminServiceInterface, audit AuditOverviewer, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		audit:    audit,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// UpdateStatusRequest represents the request body for activating or deactivating an account
type UpdateStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// UpdateRoleRequest represents the request body for a role change
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// UpdateSettingsRequest carries the system configuration an admin may change
type UpdateSettingsRequest struct {
	DefaultUserActive *bool `json:"default_user_active" validate:"required"`
}

// ListUsersResponse is one page of accounts
type ListUsersResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

// ListUsers handles GET /admin/users. Accepts ?limit=N (default 50, max 500) and ?offset=N.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	session := auth.SessionFromContext(r.Context())
	accounts, err := h.admin.ListAccounts(r.Context(), session.Account, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := ListUsersResponse{Accounts: make([]AccountResponse, 0, len(accounts))}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, toAccountResponse(a))
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Settings handles GET /admin/settings
func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	settings, err := h.admin.Settings(r.Context(), session.Account)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PATCH /admin/settings
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	session := auth.SessionFromContext(r.Context())
	settings, err := h.admin.SetDefaultActive(r.Context(), session.Account, *req.DefaultUserActive, requester(r, h.ipConfig))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, settings)
}

// UpdateStatus handles PATCH /admin/users/{id}/status
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	session := auth.SessionFromContext(r.Context())
	account, err := h.admin.SetActive(r.Context(), session.Account, chi.URLParam(r, "id"), *req.Active, requester(r, h.ipConfig))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

// UpdateRole handles PATCH /admin/users/{id}/role
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	session := auth.SessionFromContext(r.Context())
	account, err := h.admin.SetRole(r.Context(), session.Account, chi.URLParam(r, "id"), req.Role, requester(r, h.ipConfig))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

// Logs handles GET /admin/logs. Accepts optional ?limit=N (default 50, max 500).
func (h *AdminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 1)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	overview, err := h.audit.Overview(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load audit overview", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to retrieve audit logs")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, overview)
}

// queryInt reads an optional integer parameter no smaller than min; absent means 0
func queryInt(r *http.Request, key string, min int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		if min == 1 {
			return 0, fmt.Errorf("%s must be a positive integer", key)
		}
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", 1); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func (h *AdminHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "You cannot change this account")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		h.logger.ErrorContext(r.Context(), "account update failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
