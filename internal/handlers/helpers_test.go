package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/subsignature/internal/auth"
	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/BradenHooton/subsignature/internal/services"
	pkghttp "github.com/BradenHooton/subsignature/pkg/http"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockAuthService struct {
	LoginFunc    func(ctx context.Context, username, password string, who models.Requester) (*models.Account, error)
	RegisterFunc func(ctx context.Context, in services.RegisterInput, who models.Requester) (*models.Account, error)
}

func (m *MockAuthService) Login(ctx context.Context, username, password string, who models.Requester) (*models.Account, error) {
	return m.LoginFunc(ctx, username, password, who)
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput, who models.Requester) (*models.Account, error) {
	return m.RegisterFunc(ctx, in, who)
}

type MockSessions struct {
	EstablishFunc func(w http.ResponseWriter, r *http.Request, account *models.Account) (string, error)
	DestroyFunc   func(w http.ResponseWriter, r *http.Request) error
}

func (m *MockSessions) Establish(w http.ResponseWriter, r *http.Request, account *models.Account) (string, error) {
	return m.EstablishFunc(w, r, account)
}

func (m *MockSessions) Destroy(w http.ResponseWriter, r *http.Request) error {
	return m.DestroyFunc(w, r)
}

type MockAdminService struct {
	SetActiveFunc        func(ctx context.Context, actor *models.Account, targetID string, active bool, who models.Requester) (*models.Account, error)
	SetRoleFunc          func(ctx context.Context, actor *models.Account, targetID, role string, who models.Requester) (*models.Account, error)
	ListAccountsFunc     func(ctx context.Context, actor *models.Account, limit, offset int) ([]*models.Account, error)
	SettingsFunc         func(ctx context.Context, actor *models.Account) (*models.SystemSettings, error)
	SetDefaultActiveFunc func(ctx context.Context, actor *models.Account, active bool, who models.Requester) (*models.SystemSettings, error)
}

func (m *MockAdminService) SetActive(ctx context.Context, actor *models.Account, targetID string, active bool, who models.Requester) (*models.Account, error) {
	return m.SetActiveFunc(ctx, actor, targetID, active, who)
}

func (m *MockAdminService) SetRole(ctx context.Context, actor *models.Account, targetID, role string, who models.Requester) (*models.Account, error) {
	return m.SetRoleFunc(ctx, actor, targetID, role, who)
}

func (m *MockAdminService) ListAccounts(ctx context.Context, actor *models.Account, limit, offset int) ([]*models.Account, error) {
	return m.ListAccountsFunc(ctx, actor, limit, offset)
}

func (m *MockAdminService) Settings(ctx context.Context, actor *models.Account) (*models.SystemSettings, error) {
	return m.SettingsFunc(ctx, actor)
}

func (m *MockAdminService) SetDefaultActive(ctx context.Context, actor *models.Account, active bool, who models.Requester) (*models.SystemSettings, error) {
	return m.SetDefaultActiveFunc(ctx, actor, active, who)
}

type MockAuditOverviewer struct {
	OverviewFunc func(ctx context.Context, limit int) (*services.AuditOverview, error)
}

func (m *MockAuditOverviewer) Overview(ctx context.Context, limit int) (*services.AuditOverview, error) {
	return m.OverviewFunc(ctx, limit)
}

type MockSignatureService struct {
	CreateFunc  func(ctx context.Context, actor *models.Account, in services.SignatureInput) (*models.Signature, error)
	ListFunc    func(ctx context.Context, actor *models.Account, limit, offset int) ([]*models.Signature, error)
	DeleteFunc  func(ctx context.Context, actor *models.Account, id string) error
	PreviewFunc func(ctx context.Context, actor *models.Account, id string) (string, error)
}

func (m *MockSignatureService) Create(ctx context.Context, actor *models.Account, in services.SignatureInput) (*models.Signature, error) {
	return m.CreateFunc(ctx, actor, in)
}

func (m *MockSignatureService) List(ctx context.Context, actor *models.Account, limit, offset int) ([]*models.Signature, error) {
	return m.ListFunc(ctx, actor, limit, offset)
}

func (m *MockSignatureService) Delete(ctx context.Context, actor *models.Account, id string) error {
	return m.DeleteFunc(ctx, actor, id)
}

func (m *MockSignatureService) Preview(ctx context.Context, actor *models.Account, id string) (string, error) {
	return m.PreviewFunc(ctx, actor, id)
}

type MockDispatcher struct {
	DispatchFunc func(ctx context.Context, req services.BatchRequest, emit services.EmitFunc) (services.BatchResult, error)
}

func (m *MockDispatcher) Dispatch(ctx context.Context, req services.BatchRequest, emit services.EmitFunc) (services.BatchResult, error) {
	return m.DispatchFunc(ctx, req, emit)
}

type MockPinger struct {
	Err error
}

func (m *MockPinger) HealthCheck(context.Context) error {
	return m.Err
}

var (
	adminAccount = &models.Account{ID: "acct-admin", Username: "admin", Role: models.RoleAdmin, Active: true}
	userAccount  = &models.Account{ID: "acct-alice", Username: "alice", Email: "alice@example.com", Role: models.RoleUser, Active: true}
)

func newTestRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "test-agent")
	return req
}

func withSession(req *http.Request, account *models.Account, csrfToken string) *http.Request {
	return req.WithContext(auth.WithSession(req.Context(), &auth.Session{Account: account, CSRFToken: csrfToken}))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, w.Code)

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, code, resp.Error)
}
