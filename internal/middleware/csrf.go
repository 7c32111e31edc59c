package middleware

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/subsignature/internal/auth"
	"github.com/BradenHooton/subsignature/internal/models"
	pkghttp "github.com/BradenHooton/subsignature/pkg/http"
)

// CSRFHeader carries the session's anti-forgery token on state-changing requests
const CSRFHeader = "X-CSRF-Token"

// RequireCSRF rejects state-changing requests whose X-CSRF-Token does not match the
// token of the session injected by auth.RequireSession. It must run after it.
func RequireCSRF(guard *auth.CSRFGuard, events auth.EventRecorder, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			session := auth.SessionFromContext(r.Context())
			expected := ""
			var accountID *string
			if session != nil {
				expected = session.CSRFToken
				if session.Account != nil {
					accountID = &session.Account.ID
				}
			}

			if err := guard.Verify(expected, r.Header.Get(CSRFHeader)); err != nil {
				logger.WarnContext(r.Context(), "CSRF token validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				events.RecordSecurityEvent(r.Context(), models.EventCSRFFailed, accountID, models.Requester{
					IPAddress: pkghttp.ExtractClientIP(r, ipConfig),
					UserAgent: r.UserAgent(),
				}, r.Method+" "+r.URL.Path)
				pkghttp.WriteError(w, http.StatusForbidden, "csrf_invalid", "invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
