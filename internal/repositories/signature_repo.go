package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/subsignature/internal/database"
	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SignatureRepository struct {
	pool *pgxpool.Pool
}

func NewSignatureRepository(db *database.DB) *SignatureRepository {
	return &SignatureRepository{pool: db.Pool}
}

const signatureColumns = `id, owner_id, name, role, email, phone, template, created_at`

func scanSignatureRow(row rowScanner) (*models.Signature, error) {
	var s models.Signature
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Role, &s.Email, &s.Phone, &s.Template, &s.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

func (r *SignatureRepository) GetByID(ctx context.Context, id string) (*models.Signature, error) {
	if !isUUID(id) {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE id = $1`
	return scanSignatureRow(r.pool.QueryRow(ctx, query, id))
}

func (r *SignatureRepository) Create(ctx context.Context, sig *models.Signature) (*models.Signature, error) {
	sig.ID = uuid.New().String()
	sig.CreatedAt = time.Now()

	query := `
		INSERT INTO signatures (id, owner_id, name, role, email, phone, template, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + signatureColumns

	created, err := scanSignatureRow(r.pool.QueryRow(ctx, query,
		sig.ID, sig.OwnerID, sig.Name, sig.Role, sig.Email, sig.Phone, sig.Template, sig.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create signature: %w", err)
	}
	return created, nil
}

// ListByOwner returns ownerID's signatures, newest first
func (r *SignatureRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Signature, error) {
	if !isUUID(ownerID) {
		return []*models.Signature{}, nil
	}
	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE owner_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, query, ownerID, limit, offset)
}

// ListAll returns every signature, newest first
func (r *SignatureRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.Signature, error) {
	query := `SELECT ` + signatureColumns + ` FROM signatures ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.list(ctx, query, limit, offset)
}

func (r *SignatureRepository) list(ctx context.Context, query string, args ...any) ([]*models.Signature, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signatures: %w", err)
	}
	defer rows.Close()

	sigs := make([]*models.Signature, 0)
	for rows.Next() {
		s, err := scanSignatureRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		sigs = append(sigs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return sigs, nil
}

// Delete removes id. Its notification log rows stay behind.
func (r *SignatureRepository) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return models.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM signatures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete signature: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
