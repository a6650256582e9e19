package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-accounts/internal/audit"
	"github.com/nerrad567/gray-logic-accounts/internal/auth"
)

// List returns every account. Admin only.
func (s *Service) List(ctx context.Context, actor Actor) ([]Details, error) {
	if !actor.IsAdmin() {
		return nil, AuthorizationError()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, s.internal(ctx, "list accounts", err)
	}

	details := make([]Details, 0, len(accounts))
	for i := range accounts {
		details = append(details, accounts[i].Details())
	}
	return details, nil
}

// Get returns account id. Users may only read their own account.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*Details, error) {
	if err := authorize(actor, id); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	a, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	d := a.Details()
	return &d, nil
}

// Create adds an account with an admin-chosen role. Admin only. The account
// is created verified.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput, sourceIP string) (*Details, error) {
	if !actor.IsAdmin() {
		return nil, AuthorizationError()
	}
	if err := in.Validate(); err != nil {
		return nil, validationFailure(err)
	}
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return nil, ValidationError(map[string]string{"role": "must be Admin or User"})
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	email := NormaliseEmail(in.Email)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "create account: hash", err)
	}

	now := s.now().UTC()
	a := &Account{
		ID:           newAccountID(),
		Title:        in.Title,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		VerifiedAt:   &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.accounts.Create(ctx, a)
	if errors.Is(err, ErrEmailExists) {
		return nil, emailConflict(email)
	}
	if err != nil {
		return nil, s.internal(ctx, "create account", err)
	}

	s.record(ctx, audit.Entry{
		Action:     audit.ActionAccountCreated,
		EntityType: audit.EntityAccount,
		EntityID:   a.ID,
		ActorID:    actor.ID,
		SourceIP:   sourceIP,
		Details:    map[string]any{"role": string(a.Role)},
	})

	d := a.Details()
	return &d, nil
}

// Update applies a partial update to account id. Users may update only
// themselves and may not change roles.
func (s *Service) Update(ctx context.Context, actor Actor, id string, in UpdateInput, sourceIP string) (*Details, error) {
	if err := authorize(actor, id); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, validationFailure(err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	a, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		c       ProfileChanges
		changed []string
	)

	if in.Role != nil {
		role, err := auth.ParseRole(*in.Role)
		if err != nil {
			return nil, ValidationError(map[string]string{"role": "must be Admin or User"})
		}
		if role != a.Role {
			if !actor.IsAdmin() {
				return nil, AuthorizationError()
			}
			c.Role = &role
			changed = append(changed, "role")
		}
	}

	if in.Email != nil {
		email := NormaliseEmail(*in.Email)
		if email != a.Email {
			if err := s.ensureEmailFree(ctx, email); err != nil {
				return nil, err
			}
			c.Email = &email
			changed = append(changed, "email")
		}
	}

	for _, f := range []struct {
		name    string
		in      *string
		current string
		dst     **string
	}{
		{"title", in.Title, a.Title, &c.Title},
		{"firstName", in.FirstName, a.FirstName, &c.FirstName},
		{"lastName", in.LastName, a.LastName, &c.LastName},
	} {
		if f.in != nil && *f.in != f.current {
			*f.dst = f.in
			changed = append(changed, f.name)
		}
	}

	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, s.internal(ctx, "update account: hash", err)
		}
		c.PasswordHash = &hash
		changed = append(changed, "password")
	}

	if c.Empty() {
		d := a.Details()
		return &d, nil
	}

	updated, err := s.accounts.UpdateProfile(ctx, id, c, s.now().UTC())
	switch {
	case errors.Is(err, ErrEmailExists) && c.Email != nil:
		return nil, emailConflict(*c.Email)
	case errors.Is(err, ErrAccountNotFound):
		return nil, NotFoundError(msgAccountNotFound)
	case err != nil:
		return nil, s.internal(ctx, "update account", err)
	}

	s.record(ctx, audit.Entry{
		Action:     audit.ActionAccountUpdated,
		EntityType: audit.EntityAccount,
		EntityID:   id,
		ActorID:    actor.ID,
		SourceIP:   sourceIP,
		Details:    map[string]any{"fields": changed},
	})

	d := updated.Details()
	return &d, nil
}

// Delete removes account id. Users may only delete themselves. The
// account's refresh tokens are removed with it.
func (s *Service) Delete(ctx context.Context, actor Actor, id, sourceIP string) error {
	if err := authorize(actor, id); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.delete(ctx, id, actor.ID, sourceIP)
}

// DeleteSelf removes the account identified by email after re-checking its
// password. A mismatch fails with the same AuthenticationError as
// Authenticate.
func (s *Service) DeleteSelf(ctx context.Context, email, password, sourceIP string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	email = NormaliseEmail(email)
	if err := s.allow(ctx, s.opts.LoginRule, email+"|"+sourceIP); err != nil {
		return err
	}

	a, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		if KindOf(err) == KindAuthentication {
			s.loginFailed(ctx, a, email, sourceIP)
		}
		return err
	}

	return s.delete(ctx, a.ID, a.ID, sourceIP)
}

func (s *Service) delete(ctx context.Context, id, actorID, sourceIP string) error {
	err := s.accounts.Delete(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return NotFoundError(msgAccountNotFound)
	}
	if err != nil {
		return s.internal(ctx, "delete account", err)
	}

	s.logger.InfoContext(ctx, "account deleted", "account_id", id, "actor_id", actorID)
	s.record(ctx, audit.Entry{
		Action:     audit.ActionAccountDeleted,
		EntityType: audit.EntityAccount,
		EntityID:   id,
		ActorID:    actorID,
		SourceIP:   sourceIP,
	})
	return nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return emailConflict(email)
	case errors.Is(err, ErrAccountNotFound):
		return nil
	default:
		return s.internal(ctx, "email lookup", err)
	}
}

func emailConflict(email string) *Error {
	return ConflictError(fmt.Sprintf("Email '%s' is already registered", email))
}
