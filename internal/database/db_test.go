package database

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/subsignature/internal/config"
	"github.com/BradenHooton/subsignature/internal/models"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("query: %w", pgx.ErrNoRows), models.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, models.ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, models.ErrBadRequest},
		{"not null violation", &pgconn.PgError{Code: "23502"}, models.ErrBadRequest},
		{"check violation", &pgconn.PgError{Code: "23514"}, models.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapPostgresError(tt.in))
		})
	}
}

func TestMapPostgresError_PassesThroughUnknown(t *testing.T) {
	orig := errors.New("connection reset")
	assert.Same(t, orig, MapPostgresError(orig))

	pgErr := &pgconn.PgError{Code: "40001"}
	assert.Same(t, pgErr, MapPostgresError(pgErr))
}

func TestApplyPoolLimits(t *testing.T) {
	pc, err := pgxpool.ParseConfig("host=localhost user=postgres dbname=subsignature")
	require.NoError(t, err)
	defaultMax, defaultLifetime := pc.MaxConns, pc.MaxConnLifetime

	applyPoolLimits(pc, &config.DatabaseConfig{})
	assert.Equal(t, defaultMax, pc.MaxConns)
	assert.Equal(t, defaultLifetime, pc.MaxConnLifetime)

	applyPoolLimits(pc, &config.DatabaseConfig{
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: time.Minute,
	})
	assert.EqualValues(t, 25, pc.MaxConns)
	assert.EqualValues(t, 5, pc.MinConns)
	assert.Equal(t, 5*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, time.Minute, pc.MaxConnIdleTime)

	// a floor above the ceiling is ignored
	applyPoolLimits(pc, &config.DatabaseConfig{MinConns: 40})
	assert.EqualValues(t, 5, pc.MinConns)
}
