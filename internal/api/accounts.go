package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-accounts/internal/account"
)

// Success messages of the public lifecycle endpoints. Registration and
// forgot-password answer the same whether or not the email is known.
const (
	msgRegistered     = "Registration successful, please check your email for verification instructions"
	msgVerified       = "Verification successful, you can now login"
	msgResetRequested = "Please check your email for password reset instructions"
	msgTokenValid     = "Token is valid"
	msgPasswordReset  = "Password reset successful, you can now login"
	msgDeleted        = "Account deleted successfully"
)

// ─── Request/Response Types ────────────────────────────────────────

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type accountsResponse struct {
	Accounts []account.Details `json:"accounts"`
	Count    int               `json:"count"`
}

// ─── Public lifecycle ──────────────────────────────────────────────

// handleRegister creates an unverified account and mails a verification token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterInput
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if err := s.accounts.Register(r.Context(), req, s.mailOrigin(r), clientIP(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, msgRegistered)
}

// handleVerifyEmail consumes a verification token from the JSON body (POST)
// or the token query parameter (GET, the link variant).
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if r.Method == http.MethodGet {
		req.Token = r.URL.Query().Get("token")
	} else if !decodeJSON(w, r, &req, false) {
		return
	}

	if err := s.accounts.VerifyEmail(r.Context(), req.Token, clientIP(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, msgVerified)
}

// handleForgotPassword mails a reset token if the email is registered.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if err := s.accounts.ForgotPassword(r.Context(), req.Email, s.mailOrigin(r), clientIP(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, msgResetRequested)
}

// handleValidateResetToken reports whether a reset token is still usable.
func (s *Server) handleValidateResetToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if err := s.accounts.ValidateResetToken(r.Context(), req.Token); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, msgTokenValid)
}

// handleResetPassword sets a new password with a reset token.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req account.ResetPasswordInput
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if err := s.accounts.ResetPassword(r.Context(), req, clientIP(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeMessage(w, msgPasswordReset)
}

// handleDeleteSelf deletes the account matching the posted credentials.
func (s *Server) handleDeleteSelf(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if err := s.accounts.DeleteSelf(r.Context(), req.Email, req.Password, clientIP(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	clearRefreshCookie(w)
	writeMessage(w, msgDeleted)
}

// ─── Account management ────────────────────────────────────────────

// handleListAccounts returns all accounts. Admin only.
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.accounts.List(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountsResponse{Accounts: list, Count: len(list)})
}

// handleCreateAccount creates a verified account with a chosen role. Admin only.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req account.CreateInput
	if !decodeJSON(w, r, &req, false) {
		return
	}

	d, err := s.accounts.Create(r.Context(), actorFromContext(r.Context()), req, clientIP(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// handleGetAccount returns one account.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	d, err := s.accounts.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUpdateAccount applies a partial update. PUT and PATCH behave the same.
func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req account.UpdateInput
	if !decodeJSON(w, r, &req, false) {
		return
	}

	d, err := s.accounts.Update(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), req, clientIP(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDeleteAccount deletes an account.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.accounts.Delete(r.Context(), actor, id, clientIP(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if id == actor.ID {
		clearRefreshCookie(w)
	}
	writeMessage(w, msgDeleted)
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
