package account

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-accounts/internal/audit"
	"github.com/nerrad567/gray-logic-accounts/internal/auth"
)

// Register creates an unverified account and mails a verification token.
//
// The result is the same whether or not the email is already registered;
// in that case no account is created and the owner gets an "already
// registered" mail instead. origin is the web origin used to build links and
// may be empty, in which case raw tokens are mailed.
func (s *Service) Register(ctx context.Context, in RegisterInput, origin, sourceIP string) error {
	if err := in.Validate(); err != nil {
		return validationFailure(err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	email := NormaliseEmail(in.Email)

	existing, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		// Hash anyway so the response time does not reveal the duplicate.
		_, _ = s.hasher.Hash(in.Password) //nolint:errcheck // timing only
		s.alreadyRegistered(ctx, existing, origin, sourceIP)
		return nil
	case !errors.Is(err, ErrAccountNotFound):
		return s.internal(ctx, "register: lookup", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return s.internal(ctx, "register: hash password", err)
	}
	token, err := auth.RandomToken(verificationTokenBytes)
	if err != nil {
		return s.internal(ctx, "register: verification token", err)
	}

	now := s.now().UTC()
	a := &Account{
		ID:                newAccountID(),
		Title:             in.Title,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Email:             email,
		PasswordHash:      hash,
		AcceptTerms:       in.AcceptTerms,
		VerificationToken: token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.accounts.Create(ctx, a)
	if errors.Is(err, ErrEmailExists) {
		// Lost a race with a concurrent registration of the same address.
		if existing, lerr := s.accounts.GetByEmail(ctx, email); lerr == nil {
			s.alreadyRegistered(ctx, existing, origin, sourceIP)
		}
		return nil
	}
	if err != nil {
		return s.internal(ctx, "register: create", err)
	}

	s.record(ctx, audit.Entry{
		Action:     audit.ActionAccountRegistered,
		EntityType: audit.EntityAccount,
		EntityID:   a.ID,
		ActorID:    a.ID,
		SourceIP:   sourceIP,
		Details:    map[string]any{"role": string(a.Role)},
	})
	s.metric(metricRegister, outcomeSuccess)
	s.logger.InfoContext(ctx, "account registered", "account_id", a.ID, "role", a.Role)

	msg, berr := verificationMessage(a.Email, token, origin)
	s.deliver(ctx, "register", msg, berr)
	return nil
}

func (s *Service) alreadyRegistered(ctx context.Context, a *Account, origin, sourceIP string) {
	s.metric(metricRegister, outcomeDuplicate)
	s.logger.InfoContext(ctx, "registration for existing email", "account_id", a.ID)

	msg, berr := alreadyRegisteredMessage(a.Email, origin)
	s.deliver(ctx, "register: already registered", msg, berr)

	s.record(ctx, audit.Entry{
		Action:     audit.ActionAccountRegistered,
		EntityType: audit.EntityAccount,
		EntityID:   a.ID,
		SourceIP:   sourceIP,
		Details:    map[string]any{"duplicate": true},
	})
}

// VerifyEmail consumes a verification token. A token works once; an unknown
// or already used token fails with KindToken.
func (s *Service) VerifyEmail(ctx context.Context, token, sourceIP string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := s.accounts.ConsumeVerificationToken(ctx, token, s.now().UTC())
	if errors.Is(err, ErrTokenNotMatched) {
		s.metric(metricVerify, outcomeFailure)
		return TokenError(msgVerificationFailed, err)
	}
	if err != nil {
		return s.internal(ctx, "verify email", err)
	}

	s.metric(metricVerify, outcomeSuccess)
	s.record(ctx, audit.Entry{
		Action:     audit.ActionAccountVerified,
		EntityType: audit.EntityAccount,
		EntityID:   id,
		ActorID:    id,
		SourceIP:   sourceIP,
	})
	return nil
}
