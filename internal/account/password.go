package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/nerrad567/gray-logic-accounts/internal/audit"
	"github.com/nerrad567/gray-logic-accounts/internal/auth"
)

// ForgotPassword mails a single-use reset token to email if it belongs to
// an account. It succeeds either way; only a malformed address or an
// exhausted rate limit produce an error.
func (s *Service) ForgotPassword(ctx context.Context, email, origin, sourceIP string) error {
	email = NormaliseEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return ValidationError(map[string]string{"email": err.Error()})
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.allow(ctx, s.opts.ResetRule, email); err != nil {
		s.metric(metricForgot, outcomeRateLimited)
		return err
	}

	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		s.metric(metricForgot, outcomeFailure)
		return nil
	}
	if err != nil {
		return s.internal(ctx, "forgot password: lookup", err)
	}

	token, err := auth.RandomToken(resetTokenBytes)
	if err != nil {
		return s.internal(ctx, "forgot password: token", err)
	}
	now := s.now().UTC()
	err = s.accounts.SetResetToken(ctx, a.ID, token, now.Add(s.opts.ResetTokenTTL), now)
	if errors.Is(err, ErrAccountNotFound) {
		s.metric(metricForgot, outcomeFailure)
		return nil
	}
	if err != nil {
		return s.internal(ctx, "forgot password: store token", err)
	}

	s.metric(metricForgot, outcomeSuccess)
	s.record(ctx, audit.Entry{
		Action:     audit.ActionResetRequested,
		EntityType: audit.EntityAccount,
		EntityID:   a.ID,
		SourceIP:   sourceIP,
	})

	msg, berr := resetMessage(a.Email, token, origin, humanDuration(s.opts.ResetTokenTTL))
	s.deliver(ctx, "forgot password", msg, berr)
	return nil
}

// ValidateResetToken reports whether token is a current reset token.
func (s *Service) ValidateResetToken(ctx context.Context, token string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	a, err := s.accounts.GetByResetToken(ctx, token)
	if errors.Is(err, ErrAccountNotFound) {
		return TokenError(msgInvalidToken, ErrTokenNotMatched)
	}
	if err != nil {
		return s.internal(ctx, "validate reset token", err)
	}
	if a.ResetTokenExpiresAt == nil || !s.now().Before(*a.ResetTokenExpiresAt) {
		return TokenError(msgInvalidToken, auth.ErrTokenExpired)
	}
	return nil
}

// ResetPassword sets a new password using a reset token. The token is
// consumed and every refresh token of the account is revoked. A reset also
// counts as email verification.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput, sourceIP string) error {
	if err := in.Validate(); err != nil {
		return validationFailure(err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return s.internal(ctx, "reset password: hash", err)
	}

	id, err := s.accounts.ConsumeResetToken(ctx, in.Token, hash, s.now().UTC())
	if errors.Is(err, ErrTokenNotMatched) {
		s.metric(metricReset, outcomeFailure)
		return TokenError(msgInvalidToken, err)
	}
	if err != nil {
		return s.internal(ctx, "reset password", err)
	}

	revoked, err := s.tokens.RevokeAllForAccount(ctx, id, sourceIP)
	if err != nil {
		return s.internal(ctx, "reset password: revoke sessions of "+id, err)
	}

	s.metric(metricReset, outcomeSuccess)
	s.record(ctx, audit.Entry{
		Action:     audit.ActionPasswordReset,
		EntityType: audit.EntityAccount,
		EntityID:   id,
		ActorID:    id,
		SourceIP:   sourceIP,
		Details:    map[string]any{"revoked_sessions": revoked},
	})
	return nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}
