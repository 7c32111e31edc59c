package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/subsignature/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type securityEventRecord struct {
	Kind      models.SecurityEventKind
	AccountID *string
	Who       models.Requester
	Details   string
}

type loginAttemptRecord struct {
	Username  string
	Succeeded bool
	Who       models.Requester
}

type notificationRecord struct {
	SignatureID string
	Recipient   string
	Status      string
	Message     string
}

// recordingAuditor keeps everything written to it in memory
type recordingAuditor struct {
	mu            sync.Mutex
	attempts      []loginAttemptRecord
	events        []securityEventRecord
	notifications []notificationRecord

	failNotifications map[string]bool
}

func (a *recordingAuditor) RecordLoginAttempt(_ context.Context, username string, succeeded bool, who models.Requester) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts = append(a.attempts, loginAttemptRecord{Username: username, Succeeded: succeeded, Who: who})
}

func (a *recordingAuditor) RecordSecurityEvent(_ context.Context, kind models.SecurityEventKind, accountID *string, who models.Requester, details string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, securityEventRecord{Kind: kind, AccountID: accountID, Who: who, Details: details})
}

func (a *recordingAuditor) RecordNotification(_ context.Context, signatureID, recipient, status, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failNotifications != nil && a.failNotifications[signatureID] {
		return errors.New("notification_logs unavailable")
	}
	a.notifications = append(a.notifications, notificationRecord{
		SignatureID: signatureID, Recipient: recipient, Status: status, Message: message,
	})
	return nil
}

func (a *recordingAuditor) kinds() []models.SecurityEventKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.SecurityEventKind, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Kind)
	}
	return out
}

func (a *recordingAuditor) count(kind models.SecurityEventKind) int {
	n := 0
	for _, k := range a.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

// fakeAccountStore is an in-memory credential store with the same update rules
// as the Postgres repository. The Func fields override individual methods.
type fakeAccountStore struct {
	mu            sync.Mutex
	byID          map[string]*models.Account
	defaultActive bool
	lastLimit     int
	lastOffset    int

	GetByUsernameFunc func(ctx context.Context, username string) (*models.Account, error)
	CreateFunc        func(ctx context.Context, account *models.Account) (*models.Account, error)
}

func newFakeAccountStore(accounts ...*models.Account) *fakeAccountStore {
	s := &fakeAccountStore{byID: make(map[string]*models.Account)}
	for _, a := range accounts {
		s.byID[a.ID] = a
	}
	return s
}

func (s *fakeAccountStore) find(username string) *models.Account {
	for _, a := range s.byID {
		if a.Username == username {
			return a
		}
	}
	return nil
}

func (s *fakeAccountStore) snapshot(a *models.Account) *models.Account {
	c := *a
	return &c
}

func (s *fakeAccountStore) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	if s.GetByUsernameFunc != nil {
		return s.GetByUsernameFunc(ctx, username)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.find(username)
	if a == nil {
		return nil, models.ErrNotFound
	}
	return s.snapshot(a), nil
}

func (s *fakeAccountStore) GetByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.snapshot(a), nil
}

func (s *fakeAccountStore) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if s.CreateFunc != nil {
		return s.CreateFunc(ctx, account)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(account.Username) != nil {
		return nil, models.ErrConflict
	}
	created := s.snapshot(account)
	created.ID = "acct-" + account.Username
	s.byID[created.ID] = created
	return s.snapshot(created), nil
}

func (s *fakeAccountStore) DefaultActive(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultActive, nil
}

func (s *fakeAccountStore) SetDefaultActive(_ context.Context, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultActive = active
	return nil
}

// List orders by username so pages are deterministic
func (s *fakeAccountStore) List(_ context.Context, limit, offset int) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit, s.lastOffset = limit, offset
	all := make([]*models.Account, 0, len(s.byID))
	for _, a := range s.byID {
		all = append(all, s.snapshot(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	if offset >= len(all) {
		return []*models.Account{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *fakeAccountStore) IncrementFailedAttempts(_ context.Context, username string, at time.Time) (*models.LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.find(username)
	if a == nil {
		return nil, models.ErrNotFound
	}
	a.FailedAttempts++
	a.LastFailedAt = &at
	return &models.LockoutState{FailedAttempts: a.FailedAttempts, LockedUntil: a.LockedUntil}, nil
}

func (s *fakeAccountStore) LockAccount(_ context.Context, username string, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.find(username)
	if a == nil || a.LockedUntil != nil {
		return false, nil
	}
	a.LockedUntil = &until
	return true, nil
}

func (s *fakeAccountStore) ClearLockout(_ context.Context, username string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.find(username)
	if a == nil {
		return nil
	}
	if a.LockedUntil == nil || !a.LockedUntil.After(now) {
		a.FailedAttempts = 0
		a.LockedUntil = nil
	}
	return nil
}

func (s *fakeAccountStore) RecordSuccessfulLogin(_ context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.find(username)
	if a == nil {
		return models.ErrNotFound
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.LastLoginAt = &at
	return nil
}

func (s *fakeAccountStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	a.Active = active
	return nil
}

func (s *fakeAccountStore) SetRole(_ context.Context, id, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	a.Role = role
	return nil
}

func (s *fakeAccountStore) account(username string) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.find(username); a != nil {
		return s.snapshot(a)
	}
	return nil
}

// mockCounterStore implements CounterStore for testing
type mockCounterStore struct {
	HitFunc func(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
}

func (m *mockCounterStore) Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	if m.HitFunc != nil {
		return m.HitFunc(ctx, key, window, now)
	}
	return 1, nil
}

var requester = models.Requester{IPAddress: "203.0.113.7", UserAgent: "test-agent"}

// memSignatures is an in-memory SignatureStore listing in insertion order
type memSignatures struct {
	mu    sync.Mutex
	order []string
	byID  map[string]*models.Signature
	next  int

	lastLimit  int
	lastOffset int
}

func newMemSignatures(sigs ...*models.Signature) *memSignatures {
	m := &memSignatures{byID: make(map[string]*models.Signature)}
	for _, sig := range sigs {
		m.order = append(m.order, sig.ID)
		m.byID[sig.ID] = sig
	}
	return m
}

func (m *memSignatures) GetByID(_ context.Context, id string) (*models.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *sig
	return &c, nil
}

func (m *memSignatures) Create(_ context.Context, sig *models.Signature) (*models.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	c := *sig
	c.ID = fmt.Sprintf("sig-%d", m.next)
	m.order = append(m.order, c.ID)
	m.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (m *memSignatures) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Signature, error) {
	return m.list(ownerID, limit, offset), nil
}

func (m *memSignatures) ListAll(ctx context.Context, limit, offset int) ([]*models.Signature, error) {
	return m.list("", limit, offset), nil
}

func (m *memSignatures) list(ownerID string, limit, offset int) []*models.Signature {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit, m.lastOffset = limit, offset
	out := make([]*models.Signature, 0)
	for _, id := range m.order {
		sig, ok := m.byID[id]
		if !ok || (ownerID != "" && sig.OwnerID != ownerID) {
			continue
		}
		c := *sig
		out = append(out, &c)
	}
	if offset >= len(out) {
		return []*models.Signature{}
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memSignatures) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}
