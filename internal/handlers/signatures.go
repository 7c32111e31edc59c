package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/subsignature/internal/auth"
	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/BradenHooton/subsignature/internal/services"
	pkghttp "github.com/BradenHooton/subsignature/pkg/http"
)

// SignatureServiceInterface manages and renders stored signatures
type SignatureServiceInterface interface {
	Create(ctx context.Context, actor *models.Account, in services.SignatureInput) (*models.Signature, error)
	List(ctx context.Context, actor *models.Account, limit, offset int) ([]*models.Signature, error)
	Delete(ctx context.Context, actor *models.Account, id string) error
	Preview(ctx context.Context, actor *models.Account, id string) (string, error)
}

// SignatureHandler serves signature records and their previews
type SignatureHandler struct {
	service SignatureServiceInterface
	logger  *slog.Logger
}

func NewSignatureHandler(service SignatureServiceInterface, logger *slog.Logger) *SignatureHandler {
	return &SignatureHandler{service: service, logger: logger}
}

// CreateSignatureRequest is a new signature. The owner is the session's account.
type CreateSignatureRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Role     string `json:"role" validate:"max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"max=50"`
	Template string `json:"template" validate:"required,max=100"`
}

// SignatureResponse is a stored signature
type SignatureResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Template  string    `json:"template"`
	CreatedAt time.Time `json:"created_at"`
}

func toSignatureResponse(s *models.Signature) SignatureResponse {
	return SignatureResponse{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Name:      s.Name,
		Role:      s.Role,
		Email:     s.Email,
		Phone:     s.Phone,
		Template:  s.Template,
		CreatedAt: s.CreatedAt,
	}
}

// ListSignaturesResponse is one page of signatures
type ListSignaturesResponse struct {
	Signatures []SignatureResponse `json:"signatures"`
}

// Create handles POST /signatures
func (h *SignatureHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSignatureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if !services.ValidTemplateName(req.Template) {
		pkghttp.WriteBadRequest(w, "validation failed: Template: must be a plain .html file name")
		return
	}

	session := auth.SessionFromContext(r.Context())
	sig, err := h.service.Create(r.Context(), session.Account, services.SignatureInput{
		Name:     req.Name,
		Role:     req.Role,
		Email:    req.Email,
		Phone:    req.Phone,
		Template: req.Template,
	})
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Unknown template")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create signature", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, toSignatureResponse(sig))
}

// List handles GET /signatures. Administrators see every record.
func (h *SignatureHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	session := auth.SessionFromContext(r.Context())
	sigs, err := h.service.List(r.Context(), session.Account, limit, offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list signatures", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := ListSignaturesResponse{Signatures: make([]SignatureResponse, 0, len(sigs))}
	for _, s := range sigs {
		resp.Signatures = append(resp.Signatures, toSignatureResponse(s))
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /signatures/{id}
func (h *SignatureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	if err := h.service.Delete(r.Context(), session.Account, chi.URLParam(r, "id")); err != nil {
		h.writeLookupError(w, r, "failed to delete signature", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview handles GET /signatures/{id}/preview
func (h *SignatureHandler) Preview(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	html, err := h.service.Preview(r.Context(), session.Account, chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, r, "signature preview failed", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (h *SignatureHandler) writeLookupError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, models.ErrNotFound) {
		pkghttp.WriteNotFound(w, "Signature not found")
		return
	}
	h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	pkghttp.WriteInternalError(w, "Internal server error")
}
