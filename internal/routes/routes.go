package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/subsignature/internal/auth"
	"github.com/BradenHooton/subsignature/internal/handlers"
	"github.com/BradenHooton/subsignature/internal/middleware"
	pkghttp "github.com/BradenHooton/subsignature/pkg/http"
)

// Handlers groups everything the router dispatches to
type Handlers struct {
	Auth          *handlers.AuthHandler
	Admin         *handlers.AdminHandler
	Signatures    *handlers.SignatureHandler
	Notifications *handlers.NotificationHandler
	Health        *handlers.HealthHandler
}

// Security groups the session and CSRF enforcement shared by protected routes
type Security struct {
	Sessions       *auth.SessionGuard
	CSRF           *auth.CSRFGuard
	Events         auth.EventRecorder
	IPConfig       *pkghttp.IPConfig
	LoginPerMinute int
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, sec Security, logger *slog.Logger) {
	loginLimit := middleware.DefaultLoginRateLimit(sec.IPConfig)
	if sec.LoginPerMinute > 0 {
		loginLimit.RequestsPerMinute = sec.LoginPerMinute
	}
	requireCSRF := middleware.RequireCSRF(sec.CSRF, sec.Events, sec.IPConfig, logger)

	// Public routes
	router.Get("/health", h.Health.Health)
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/login", h.Auth.Login)
	router.Post("/auth/register", h.Auth.Register)

	// Session required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(sec.Sessions, sec.Events, sec.IPConfig, logger))

		r.Get("/auth/csrf", h.Auth.CSRFToken)
		r.Get("/auth/me", h.Auth.Me)
		r.With(requireCSRF).Post("/auth/logout", h.Auth.Logout)

		r.Get("/signatures", h.Signatures.List)
		r.With(requireCSRF).Post("/signatures", h.Signatures.Create)
		r.With(requireCSRF).Delete("/signatures/{id}", h.Signatures.Delete)
		r.Get("/signatures/{id}/preview", h.Signatures.Preview)

		r.Route("/admin", func(r chi.Router) {
			// the dispatcher checks the role and the token itself so that every
			// rejection is audited and reported in-stream
			r.Post("/notifications/send", h.Notifications.Send)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole("admin"))

				r.Get("/logs", h.Admin.Logs)
				r.Get("/users", h.Admin.ListUsers)
				r.With(requireCSRF).Patch("/users/{id}/status", h.Admin.UpdateStatus)
				r.With(requireCSRF).Patch("/users/{id}/role", h.Admin.UpdateRole)
				r.Get("/settings", h.Admin.Settings)
				r.With(requireCSRF).Patch("/settings", h.Admin.UpdateSettings)
			})
		})
	})
}
