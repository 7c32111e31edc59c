package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/subsignature/internal/models"
)

type failingTemplates struct{ err error }

func (f failingTemplates) Resolve(context.Context, string) (TemplateResult, error) {
	return NotFound(), f.err
}

var (
	sigOwner = &models.Account{ID: "acct-owner", Username: "owner", Role: models.RoleUser, Active: true}
	sigOther = &models.Account{ID: "acct-other", Username: "other", Role: models.RoleUser, Active: true}
	sigAdmin = &models.Account{ID: "acct-root", Username: "root", Role: models.RoleAdmin, Active: true}
)

func newSignatureFixture(sigs ...*models.Signature) (*SignatureService, *memSignatures) {
	store := newMemSignatures(sigs...)
	templates := mapTemplates{"signature_default.html": "<b>{{NAME}}</b>", "compact.html": "{{NAME}}"}
	return NewSignatureService(store, templates, testLogger()), store
}

func TestSignatureService_Create(t *testing.T) {
	svc, store := newSignatureFixture()
	ctx := context.Background()

	sig, err := svc.Create(ctx, sigOwner, SignatureInput{
		Name: "Jane Doe", Role: "CTO", Email: "jane@example.com", Phone: "555-0100", Template: "compact.html",
	})
	require.NoError(t, err)
	assert.Equal(t, sigOwner.ID, sig.OwnerID, "owner comes from the session, never the body")
	assert.Equal(t, "compact.html", sig.Template)

	stored, err := store.GetByID(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", stored.Name)
}

func TestSignatureService_CreateRejectsTemplates(t *testing.T) {
	svc, store := newSignatureFixture()
	ctx := context.Background()

	tests := []struct {
		name     string
		template string
	}{
		{"path traversal", "../etc/passwd"},
		{"subdirectory", "nested/signature.html"},
		{"wrong extension", "signature.php"},
		{"unknown file", "missing.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, sigOwner, SignatureInput{Name: "Jane", Email: "jane@example.com", Template: tt.template})
			assert.ErrorIs(t, err, models.ErrBadRequest)
		})
	}
	assert.Empty(t, store.byID)

	broken := NewSignatureService(store, failingTemplates{err: errors.New("bucket unreachable")}, testLogger())
	_, err := broken.Create(ctx, sigOwner, SignatureInput{Name: "Jane", Template: "signature_default.html"})
	assert.ErrorContains(t, err, "bucket unreachable")
	assert.NotErrorIs(t, err, models.ErrBadRequest)

	_, err = svc.Create(ctx, nil, SignatureInput{Name: "Jane", Template: "signature_default.html"})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestSignatureService_List(t *testing.T) {
	svc, store := newSignatureFixture(
		&models.Signature{ID: "s1", OwnerID: sigOwner.ID, Name: "Mine"},
		&models.Signature{ID: "s2", OwnerID: sigOther.ID, Name: "Theirs"},
		&models.Signature{ID: "s3", OwnerID: sigOwner.ID, Name: "Mine too"},
	)
	ctx := context.Background()

	own, err := svc.List(ctx, sigOwner, 0, 0)
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, "s1", own[0].ID)
	assert.Equal(t, "s3", own[1].ID)
	assert.Equal(t, DefaultPageLimit, store.lastLimit)

	all, err := svc.List(ctx, sigAdmin, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := svc.List(ctx, sigAdmin, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "s2", page[0].ID)

	_, err = svc.List(ctx, sigAdmin, MaxPageLimit+1, 0)
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit, store.lastLimit)
}

func TestSignatureService_Delete(t *testing.T) {
	svc, store := newSignatureFixture(
		&models.Signature{ID: "s1", OwnerID: sigOwner.ID},
		&models.Signature{ID: "s2", OwnerID: sigOwner.ID},
	)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, sigOther, "s1"), models.ErrNotFound, "other users cannot tell it exists")
	assert.Contains(t, store.byID, "s1")

	require.NoError(t, svc.Delete(ctx, sigOwner, "s1"))
	assert.NotContains(t, store.byID, "s1")

	require.NoError(t, svc.Delete(ctx, sigAdmin, "s2"))
	assert.ErrorIs(t, svc.Delete(ctx, sigAdmin, "s2"), models.ErrNotFound)
}

func TestSignatureService_Preview(t *testing.T) {
	svc, _ := newSignatureFixture(&models.Signature{
		ID: "s1", OwnerID: sigOwner.ID, Name: "<Jane>", Template: "signature_default.html",
	})
	ctx := context.Background()

	html, err := svc.Preview(ctx, sigOwner, "s1")
	require.NoError(t, err)
	assert.Equal(t, "<b>&lt;Jane&gt;</b>", html)

	_, err = svc.Preview(ctx, sigAdmin, "s1")
	assert.NoError(t, err)

	_, err = svc.Preview(ctx, sigOther, "s1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
