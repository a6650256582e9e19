// Package api implements the HTTP REST API of the account service.
//
// This package provides:
//   - Public endpoints for registration, email verification, authentication,
//     token refresh and password reset
//   - Bearer-authenticated endpoints for account management and sessions
//   - Admin-only audit log and metrics endpoints
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Security
//
// Access tokens are HS256 JWTs sent as "Authorization: Bearer". The bearer
// middleware reloads the account on every request, so a deleted or demoted
// account loses access at once. Refresh tokens are set in an HttpOnly,
// SameSite=Strict cookie and never appear in a response body.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Start also runs a background loop that purges long-expired refresh tokens.
package api
