package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/subsignature/internal/models"
)

// SignatureStore persists signature records
type SignatureStore interface {
	SignatureReader
	Create(ctx context.Context, sig *models.Signature) (*models.Signature, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Signature, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Signature, error)
	Delete(ctx context.Context, id string) error
}

// SignatureInput is a new signature as submitted by its owner
type SignatureInput struct {
	Name     string
	Role     string
	Email    string
	Phone    string
	Template string
}

// SignatureService manages signatures and serves them rendered to their owners
type SignatureService struct {
	signatures SignatureStore
	templates  TemplateProvider
	logger     *slog.Logger
}

func NewSignatureService(signatures SignatureStore, templates TemplateProvider, logger *slog.Logger) *SignatureService {
	return &SignatureService{
		signatures: signatures,
		templates:  templates,
		logger:     logger,
	}
}

// Create stores a signature owned by actor. The template must be a plain file name
// that the template backend can resolve right now.
func (s *SignatureService) Create(ctx context.Context, actor *models.Account, in SignatureInput) (*models.Signature, error) {
	if actor == nil {
		return nil, models.ErrUnauthorized
	}
	if !ValidTemplateName(in.Template) {
		return nil, fmt.Errorf("%w: invalid template name", models.ErrBadRequest)
	}

	result, err := s.templates.Resolve(ctx, in.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template: %w", err)
	}
	if _, ok := result.Content(); !ok {
		return nil, fmt.Errorf("%w: unknown template %q", models.ErrBadRequest, in.Template)
	}

	sig, err := s.signatures.Create(ctx, &models.Signature{
		OwnerID:  actor.ID,
		Name:     in.Name,
		Role:     in.Role,
		Email:    in.Email,
		Phone:    in.Phone,
		Template: in.Template,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "signature created",
		slog.String("signature_id", sig.ID),
		slog.String("owner_id", actor.ID),
	)
	return sig, nil
}

// List returns actor's own signatures, or every signature for an administrator
func (s *SignatureService) List(ctx context.Context, actor *models.Account, limit, offset int) ([]*models.Signature, error) {
	if actor == nil {
		return nil, models.ErrUnauthorized
	}
	limit, offset = pageBounds(limit, offset)
	if actor.IsAdmin() {
		return s.signatures.ListAll(ctx, limit, offset)
	}
	return s.signatures.ListByOwner(ctx, actor.ID, limit, offset)
}

// Delete removes id. Only the owner or an administrator may delete; anyone else
// gets ErrNotFound.
func (s *SignatureService) Delete(ctx context.Context, actor *models.Account, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.signatures.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "signature deleted",
		slog.String("signature_id", id),
		slog.String("actor_id", actor.ID),
	)
	return nil
}

// Preview renders id exactly as the dispatcher would attach it. Only the owner or an
// administrator may preview; anyone else gets ErrNotFound.
func (s *SignatureService) Preview(ctx context.Context, actor *models.Account, id string) (string, error) {
	sig, err := s.owned(ctx, actor, id)
	if err != nil {
		return "", err
	}

	result, err := s.templates.Resolve(ctx, sig.Template)
	if err != nil {
		return "", err
	}
	tpl, ok := result.Content()
	if !ok {
		return "", fmt.Errorf("%w: template %q", models.ErrNotFound, sig.Template)
	}

	return RenderSignature(tpl, sig), nil
}

func (s *SignatureService) owned(ctx context.Context, actor *models.Account, id string) (*models.Signature, error) {
	sig, err := s.signatures.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil || (sig.OwnerID != actor.ID && !actor.IsAdmin()) {
		return nil, models.ErrNotFound
	}
	return sig, nil
}
