package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/subsignature/internal/auth"
	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/BradenHooton/subsignature/internal/services"
	pkghttp "github.com/BradenHooton/subsignature/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string, who models.Requester) (*models.Account, error)
	Register(ctx context.Context, in services.RegisterInput, who models.Requester) (*models.Account, error)
}

// SessionManager starts and ends cookie sessions
type SessionManager interface {
	Establish(w http.ResponseWriter, r *http.Request, account *models.Account) (string, error)
	Destroy(w http.ResponseWriter, r *http.Request) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionManager
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, sessions SessionManager, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"full_name" validate:"max=100"`
}

// AccountResponse is the public view of an account
type AccountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

func toAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		FullName: a.FullName,
		Role:     a.Role,
		Active:   a.Active,
	}
}

// LoginResponse carries the session's CSRF token for subsequent mutations
type LoginResponse struct {
	Account   AccountResponse `json:"account"`
	CSRFToken string          `json:"csrf_token"`
}

// CSRFResponse is returned by GET /auth/csrf
type CSRFResponse struct {
	CSRFToken string `json:"csrf_token"`
}

func requester(r *http.Request, ipConfig *pkghttp.IPConfig) models.Requester {
	return models.Requester{
		IPAddress: pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent: r.UserAgent(),
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	account, err := h.service.Login(r.Context(), req.Username, req.Password, requester(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid username or password")
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteAccountLocked(w, "Too many failed login attempts. Please try again later.")
		case errors.Is(err, models.ErrAccountInactive):
			pkghttp.WriteForbidden(w, "Your account is not active. Please contact an administrator.")
		default:
			h.logger.ErrorContext(r.Context(), "login failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	token, err := h.sessions.Establish(w, r, account)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to establish session", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Account: toAccountResponse(account), CSRFToken: token})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to destroy session", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CSRFToken handles GET /auth/csrf. The token is fixed for the session's lifetime.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	pkghttp.WriteJSON(w, http.StatusOK, CSRFResponse{CSRFToken: session.CSRFToken})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toAccountResponse(session.Account))
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	account, err := h.service.Register(r.Context(), services.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
	}, requester(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimitExceeded):
			pkghttp.WriteTooManyRequests(w, "Too many registration attempts. Please try again later.")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Username is already taken")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, strings.TrimPrefix(err.Error(), models.ErrBadRequest.Error()+": "))
		default:
			h.logger.ErrorContext(r.Context(), "registration failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toAccountResponse(account))
}
