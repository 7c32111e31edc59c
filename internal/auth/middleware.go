package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/subsignature/internal/models"
	pkghttp "github.com/BradenHooton/subsignature/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	sessionContextKey contextKey = "session"
)

// EventRecorder receives the security events raised by session enforcement
type EventRecorder interface {
	RecordSecurityEvent(ctx context.Context, kind models.SecurityEventKind, accountID *string, who models.Requester, details string)
}

// RequireSession runs SessionGuard.Check and injects the verified session into the
// request context. Timeouts and deactivations are recorded as security events.
func RequireSession(guard *SessionGuard, events EventRecorder, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := guard.Check(w, r)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
				return
			}

			who := models.Requester{
				IPAddress: pkghttp.ExtractClientIP(r, ipConfig),
				UserAgent: r.UserAgent(),
			}

			switch {
			case errors.Is(err, models.ErrSessionMissing):
				pkghttp.WriteUnauthorized(w, "authentication required")
			case errors.Is(err, models.ErrSessionTimedOut):
				events.RecordSecurityEvent(r.Context(), models.EventSessionTimeout, nil, who, "Idle timeout exceeded")
				pkghttp.WriteSessionExpired(w, "session expired due to inactivity")
			case errors.Is(err, models.ErrAccountInactive):
				var accountID *string
				if session != nil && session.Account != nil {
					accountID = &session.Account.ID
				}
				events.RecordSecurityEvent(r.Context(), models.EventInactiveSession, accountID, who, "Session terminated for inactive account")
				pkghttp.WriteForbidden(w, "account is inactive")
			default:
				logger.ErrorContext(r.Context(), "session check failed", slog.Any("error", err))
				pkghttp.WriteInternalError(w, "internal server error")
			}
		})
	}
}

// RequireRole enforces role-based access control. The role comes from the account
// re-read by RequireSession, so promotions and demotions apply immediately.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil || session.Account == nil {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}

			if session.Account.Role != role {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the verified session, or nil outside RequireSession
func SessionFromContext(ctx context.Context) *Session {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return session
}

// WithSession returns a copy of ctx carrying session
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
