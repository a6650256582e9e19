package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check of /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/accounts", func(r chi.Router) {
			// Public account lifecycle
			r.Post("/register", s.handleRegister)
			r.Post("/verify-email", s.handleVerifyEmail)
			r.Get("/verify-email", s.handleVerifyEmail)
			r.Post("/authenticate", s.handleAuthenticate)
			r.Post("/refresh-token", s.handleRefreshToken)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/validate-reset-token", s.handleValidateResetToken)
			r.Post("/reset-password", s.handleResetPassword)
			r.Post("/delete-self", s.handleDeleteSelf)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)

				r.Post("/revoke-token", s.handleRevokeToken)

				r.With(s.requireAdmin).Get("/", s.handleListAccounts)
				r.With(s.requireAdmin).Post("/", s.handleCreateAccount)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetAccount)
					r.Put("/", s.handleUpdateAccount)
					r.Patch("/", s.handleUpdateAccount)
					r.Delete("/", s.handleDeleteAccount)
					r.Get("/refresh-tokens", s.handleListSessions)
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.requireAdmin)

			r.Get("/audit", s.handleListAuditLogs)
			r.Get("/metrics", s.handleMetrics)
		})
	})

	return r
}

// handleHealth reports the server status and the state of each
// infrastructure component. It always answers 200 so that a degraded
// optional dependency does not take the service out of a load balancer.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := make(map[string]string, len(s.checks))

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()

		if err != nil {
			status = "degraded"
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
