package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-accounts/internal/account"
	"github.com/nerrad567/gray-logic-accounts/internal/auth"
)

// refreshCookieName is the HttpOnly cookie carrying the raw refresh token.
const refreshCookieName = "refreshToken"

// ─── Request/Response Types ────────────────────────────────────────

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type sessionsResponse struct {
	Tokens []auth.RefreshToken `json:"tokens"`
	Count  int                 `json:"count"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleAuthenticate checks credentials, sets the refresh cookie and returns
// the account details with a JWT.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	res, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.setRefreshCookie(w, res)
	writeJSON(w, http.StatusOK, res)
}

// handleRefreshToken rotates the presented refresh token.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	res, err := s.accounts.Refresh(r.Context(), refreshTokenFrom(r, req.Token), clientIP(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.setRefreshCookie(w, res)
	writeJSON(w, http.StatusOK, res)
}

// handleRevokeToken revokes a refresh token owned by the caller. Admins may
// revoke any token.
func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	err := s.accounts.Revoke(r.Context(), actorFromContext(r.Context()), refreshTokenFrom(r, req.Token), clientIP(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, "Token revoked")
}

// handleListSessions returns the active refresh tokens of an account.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.accounts.ListSessions(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Tokens: tokens, Count: len(tokens)})
}

// ─── Cookie helpers ────────────────────────────────────────────────

// setRefreshCookie stores the new refresh token in an HttpOnly cookie that
// lives as long as the token.
func (s *Server) setRefreshCookie(w http.ResponseWriter, res *account.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    res.RefreshToken,
		Path:     "/",
		Expires:  res.RefreshExpiry,
		MaxAge:   max(int(time.Until(res.RefreshExpiry).Seconds()), 1),
		HttpOnly: true,
		Secure:   s.cfg.TLS.Enabled,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshTokenFrom prefers the cookie over a token given in the body.
func refreshTokenFrom(r *http.Request, body string) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return body
}
