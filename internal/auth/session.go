package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"

	"github.com/BradenHooton/subsignature/internal/models"
)

const (
	DefaultIdleTimeout = 900 * time.Second

	sessionAccountID    = "account_id"
	sessionLastActivity = "last_activity"
	sessionCSRFToken    = "csrf_token"
	sessionEpoch        = "session_epoch"
)

// AccountReader re-reads account state on every authenticated request. Bumping an
// account's session epoch invalidates every cookie issued before the bump.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	BumpSessionEpoch(ctx context.Context, id string) error
}

// NewCookieStore builds the signed cookie store backing sessions
func NewCookieStore(secret string, maxAge time.Duration, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	// sets the cookie attribute and the codecs' timestamp limit together
	store.MaxAge(int(maxAge.Seconds()))
	return store
}

// Session is the verified state of an authenticated request
type Session struct {
	Account   *models.Account
	CSRFToken string
}

// SessionGuard enforces session presence, the idle timeout and the live
// active-flag check.
type SessionGuard struct {
	store    sessions.Store
	name     string
	idle     time.Duration
	accounts AccountReader
	csrf     *CSRFGuard
	now      func() time.Time
}

func NewSessionGuard(store sessions.Store, name string, idle time.Duration, accounts AccountReader, csrf *CSRFGuard) *SessionGuard {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &SessionGuard{
		store:    store,
		name:     name,
		idle:     idle,
		accounts: accounts,
		csrf:     csrf,
		now:      time.Now,
	}
}

// get tolerates undecodable cookies: the store still hands back a fresh session
func (g *SessionGuard) get(r *http.Request) *sessions.Session {
	s, _ := g.store.Get(r, g.name)
	if s == nil {
		s = sessions.NewSession(g.store, g.name)
		s.IsNew = true
	}
	if s.Options == nil {
		s.Options = &sessions.Options{Path: "/", HttpOnly: true}
	}
	return s
}

// Establish starts an authenticated session for account and returns its CSRF token
func (g *SessionGuard) Establish(w http.ResponseWriter, r *http.Request, account *models.Account) (string, error) {
	token, err := g.csrf.NewToken()
	if err != nil {
		return "", err
	}

	s := g.get(r)
	s.Values = map[interface{}]interface{}{
		sessionAccountID:    account.ID,
		sessionLastActivity: g.now().UnixNano(),
		sessionCSRFToken:    token,
		sessionEpoch:        account.SessionEpoch,
	}

	if err := s.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return token, nil
}

// Check validates the session for one request:
//  1. no account marker: ErrSessionMissing
//  2. idle longer than the timeout: destroyed, ErrSessionTimedOut
//  3. account gone or epoch revoked: destroyed, ErrSessionMissing
//  4. account inactive: destroyed, ErrAccountInactive
//
// Otherwise the activity timestamp is refreshed.
func (g *SessionGuard) Check(w http.ResponseWriter, r *http.Request) (*Session, error) {
	s := g.get(r)

	accountID, ok := s.Values[sessionAccountID].(string)
	if !ok || accountID == "" {
		return nil, models.ErrSessionMissing
	}

	now := g.now()
	last, _ := s.Values[sessionLastActivity].(int64)
	if now.Sub(time.Unix(0, last)) > g.idle {
		g.destroy(w, r, s)
		return nil, models.ErrSessionTimedOut
	}

	account, err := g.accounts.GetByID(r.Context(), accountID)
	if errors.Is(err, models.ErrNotFound) {
		g.destroy(w, r, s)
		return nil, models.ErrSessionMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session account: %w", err)
	}

	if epoch, _ := s.Values[sessionEpoch].(int64); epoch != account.SessionEpoch {
		g.destroy(w, r, s)
		return nil, models.ErrSessionMissing
	}

	if !account.Active {
		g.destroy(w, r, s)
		return &Session{Account: account}, models.ErrAccountInactive
	}

	token, _ := s.Values[sessionCSRFToken].(string)
	if token == "" {
		if token, err = g.csrf.NewToken(); err != nil {
			return nil, err
		}
		s.Values[sessionCSRFToken] = token
	}

	s.Values[sessionLastActivity] = now.UnixNano()
	if err := s.Save(r, w); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &Session{Account: account, CSRFToken: token}, nil
}

// Destroy ends the session. When the request carries an authenticated session the
// account's epoch is bumped first, so copies of the cookie stop working everywhere.
// Any cookie for this session already queued on w is replaced by the deletion.
func (g *SessionGuard) Destroy(w http.ResponseWriter, r *http.Request) error {
	s := g.get(r)
	if accountID, ok := s.Values[sessionAccountID].(string); ok && accountID != "" {
		if err := g.accounts.BumpSessionEpoch(r.Context(), accountID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
	}
	return g.destroy(w, r, s)
}

func (g *SessionGuard) destroy(w http.ResponseWriter, r *http.Request, s *sessions.Session) error {
	dropQueuedCookie(w.Header(), g.name)
	s.Values = make(map[interface{}]interface{})
	s.Options.MaxAge = -1
	return s.Save(r, w)
}

func dropQueuedCookie(h http.Header, name string) {
	queued := h.Values("Set-Cookie")
	if len(queued) == 0 {
		return
	}
	kept := queued[:0:0]
	for _, line := range queued {
		if !strings.HasPrefix(line, name+"=") {
			kept = append(kept, line)
		}
	}
	h.Del("Set-Cookie")
	for _, line := range kept {
		h.Add("Set-Cookie", line)
	}
}
