package account

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-accounts/internal/audit"
	"github.com/nerrad567/gray-logic-accounts/internal/auth"
)

// Authenticate checks credentials and starts a new session.
//
// Unknown email, unverified account and wrong password all fail with the
// same AuthenticationError. Attempts are rate limited per email and source
// address.
func (s *Service) Authenticate(ctx context.Context, email, password, sourceIP string) (*AuthResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	email = NormaliseEmail(email)
	limitKey := email + "|" + sourceIP
	if err := s.allow(ctx, s.opts.LoginRule, limitKey); err != nil {
		s.metric(metricLogin, outcomeRateLimited)
		return nil, err
	}

	a, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		if KindOf(err) == KindAuthentication {
			s.loginFailed(ctx, a, email, sourceIP)
		}
		return nil, err
	}

	if err := s.limiter.Reset(ctx, s.opts.LoginRule, limitKey); err != nil {
		s.logger.WarnContext(ctx, "resetting login limit", "error", err)
	}

	res, err := s.startSession(ctx, a, "", sourceIP)
	if err != nil {
		return nil, err
	}

	s.metric(metricLogin, outcomeSuccess)
	s.record(ctx, audit.Entry{
		Action:     audit.ActionLoginSucceeded,
		EntityType: audit.EntityAccount,
		EntityID:   a.ID,
		ActorID:    a.ID,
		SourceIP:   sourceIP,
	})
	return res, nil
}

// checkCredentials returns the account for email if password matches and
// the account is verified. On AuthenticationError the account is also
// returned when it exists, for auditing.
func (s *Service) checkCredentials(ctx context.Context, email, password string) (*Account, error) {
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		s.hasher.VerifyDummy(password)
		return nil, AuthenticationError()
	}
	if err != nil {
		return nil, s.internal(ctx, "authenticate: lookup", err)
	}

	ok, err := s.hasher.Verify(password, a.PasswordHash)
	if err != nil {
		return nil, s.internal(ctx, "authenticate: verify hash of "+a.ID, err)
	}
	if !ok || !IsVerified(a) {
		return a, AuthenticationError()
	}
	return a, nil
}

func (s *Service) loginFailed(ctx context.Context, a *Account, email, sourceIP string) {
	s.metric(metricLogin, outcomeFailure)

	e := audit.Entry{
		Action:     audit.ActionLoginFailed,
		EntityType: audit.EntityAccount,
		SourceIP:   sourceIP,
		Details:    map[string]any{"email": email},
	}
	if a != nil {
		e.EntityID = a.ID
	}
	s.record(ctx, e)
}

// startSession issues an access token and a refresh token in familyID (a
// new family when empty) and stores the refresh token.
func (s *Service) startSession(ctx context.Context, a *Account, familyID, sourceIP string) (*AuthResult, error) {
	raw, rt, err := s.issuer.NewRefreshToken(a.ID, familyID, sourceIP)
	if err != nil {
		return nil, s.internal(ctx, "issue refresh token", err)
	}
	if err := s.tokens.Create(ctx, rt); err != nil {
		return nil, s.internal(ctx, "store refresh token", err)
	}
	return s.authResult(ctx, a, raw, rt)
}

func (s *Service) authResult(ctx context.Context, a *Account, raw string, rt *auth.RefreshToken) (*AuthResult, error) {
	access, expires, err := s.issuer.IssueAccessToken(a.ID, a.Role)
	if err != nil {
		return nil, s.internal(ctx, "issue access token", err)
	}
	return &AuthResult{
		Details:       a.Details(),
		JWTToken:      access,
		JWTExpires:    expires,
		RefreshToken:  raw,
		RefreshExpiry: rt.ExpiresAt,
	}, nil
}

// Refresh exchanges an active refresh token for a new token pair. The old
// token is rotated: revoked and linked to its successor.
//
// Presenting a token that was already rotated or revoked, before it would
// have expired, is treated as theft and revokes every token in its family.
func (s *Service) Refresh(ctx context.Context, rawToken, sourceIP string) (*AuthResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if rawToken == "" {
		return nil, TokenError(msgInvalidToken, auth.ErrTokenInvalid)
	}

	old, err := s.tokens.GetByHash(ctx, auth.HashToken(rawToken))
	if errors.Is(err, auth.ErrTokenNotFound) {
		s.metric(metricRefresh, outcomeFailure)
		return nil, TokenError(msgInvalidToken, err)
	}
	if err != nil {
		return nil, s.internal(ctx, "refresh: lookup", err)
	}

	now := s.now()
	if !old.IsActive(now) {
		if old.RevokedAt != nil && !old.IsExpired(now) {
			s.reuseDetected(ctx, old, sourceIP)
		} else {
			s.metric(metricRefresh, outcomeFailure)
		}
		return nil, TokenError(msgInvalidToken, auth.ErrTokenInvalid)
	}

	a, err := s.accounts.GetByID(ctx, old.AccountID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, TokenError(msgInvalidToken, err)
	}
	if err != nil {
		return nil, s.internal(ctx, "refresh: account", err)
	}

	raw, next, err := s.issuer.NewRefreshToken(a.ID, old.FamilyID, sourceIP)
	if err != nil {
		return nil, s.internal(ctx, "refresh: issue", err)
	}
	err = s.tokens.Rotate(ctx, old.ID, sourceIP, next)
	if errors.Is(err, auth.ErrTokenInvalid) {
		// A concurrent refresh with the same token won the guarded update.
		s.metric(metricRefresh, outcomeFailure)
		return nil, TokenError(msgInvalidToken, err)
	}
	if err != nil {
		return nil, s.internal(ctx, "refresh: rotate", err)
	}

	res, err := s.authResult(ctx, a, raw, next)
	if err != nil {
		return nil, err
	}

	s.metric(metricRefresh, outcomeSuccess)
	s.record(ctx, audit.Entry{
		Action:     audit.ActionTokenRefreshed,
		EntityType: audit.EntityRefreshToken,
		EntityID:   old.ID,
		ActorID:    a.ID,
		SourceIP:   sourceIP,
		Details:    map[string]any{"replaced_by": next.ID},
	})
	return res, nil
}

func (s *Service) reuseDetected(ctx context.Context, t *auth.RefreshToken, sourceIP string) {
	n, err := s.tokens.RevokeFamily(ctx, t.FamilyID, sourceIP)
	if err != nil {
		s.logger.ErrorContext(ctx, "revoking token family after reuse", "token_id", t.ID, "error", err)
	}

	s.logger.WarnContext(ctx, "refresh token reuse detected",
		"token_id", t.ID,
		"account_id", t.AccountID,
		"revoked", n,
		"source_ip", sourceIP,
	)
	s.metric(metricRefresh, outcomeReuse)
	s.record(ctx, audit.Entry{
		Action:     audit.ActionTokenReuseDetected,
		EntityType: audit.EntityRefreshToken,
		EntityID:   t.ID,
		ActorID:    t.AccountID,
		SourceIP:   sourceIP,
		Details:    map[string]any{"family_id": t.FamilyID, "revoked": n},
	})
}

// Revoke revokes a refresh token owned by the actor, or any token when the
// actor is an Admin. Revoking an already revoked token fails with KindToken.
func (s *Service) Revoke(ctx context.Context, actor Actor, rawToken, sourceIP string) error {
	if rawToken == "" {
		return ValidationError(map[string]string{"token": "Token is required"})
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := s.tokens.GetByHash(ctx, auth.HashToken(rawToken))
	if errors.Is(err, auth.ErrTokenNotFound) {
		return NotFoundError(msgTokenNotFound)
	}
	if err != nil {
		return s.internal(ctx, "revoke: lookup", err)
	}
	if err := authorize(actor, t.AccountID); err != nil {
		return err
	}

	switch err := s.tokens.Revoke(ctx, t.ID, sourceIP); {
	case errors.Is(err, auth.ErrTokenRevoked):
		s.metric(metricRevoke, outcomeFailure)
		return TokenError(msgTokenAlreadyRevoked, err)
	case errors.Is(err, auth.ErrTokenNotFound):
		return NotFoundError(msgTokenNotFound)
	case err != nil:
		return s.internal(ctx, "revoke", err)
	}

	s.metric(metricRevoke, outcomeSuccess)
	s.record(ctx, audit.Entry{
		Action:     audit.ActionTokenRevoked,
		EntityType: audit.EntityRefreshToken,
		EntityID:   t.ID,
		ActorID:    actor.ID,
		SourceIP:   sourceIP,
	})
	return nil
}

// ListSessions returns the active refresh tokens of account id.
func (s *Service) ListSessions(ctx context.Context, actor Actor, id string) ([]auth.RefreshToken, error) {
	if err := authorize(actor, id); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.lookup(ctx, id); err != nil {
		return nil, err
	}
	tokens, err := s.tokens.ListActiveByAccount(ctx, id)
	if err != nil {
		return nil, s.internal(ctx, "list sessions", err)
	}
	return tokens, nil
}

// PurgeExpiredTokens deletes refresh tokens that expired longer ago than
// the retention window and returns how many were removed.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.tokens.DeleteExpired(ctx, s.now().Add(-s.opts.TokenRetention))
	if err != nil {
		return 0, s.internal(ctx, "purge expired tokens", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired refresh tokens", "count", n)
	}
	return n, nil
}
