package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-accounts/internal/auth"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/database"
)

// Repository defines the interface for account persistence operations.
type Repository interface {
	// Create inserts a. When a.Role is empty the store assigns Admin to the
	// first account ever inserted and User to every later one, in the same
	// statement, and writes the chosen role back to a.
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByResetToken(ctx context.Context, token string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	Delete(ctx context.Context, id string) error

	// UpdateProfile writes only the columns set in c and returns the stored
	// account as it is after the write.
	UpdateProfile(ctx context.Context, id string, c ProfileChanges, now time.Time) (*Account, error)

	// SetResetToken replaces the reset token and its expiry, leaving every
	// other column untouched.
	SetResetToken(ctx context.Context, id, token string, expires, now time.Time) error

	// ConsumeVerificationToken marks the matching account verified, clears
	// the token and returns the account ID.
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (string, error)

	// ConsumeResetToken sets passwordHash on the account whose reset token
	// matches and has not expired at now, stamps the reset time, clears the
	// token and returns the account ID.
	ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (string, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed account repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const accountColumns = `id, title, first_name, last_name, email, password_hash, accept_terms, role,
	verification_token, verified_at, reset_token, reset_token_expires_at, password_reset_at,
	created_at, updated_at`

// Create inserts a new account.
func (r *SQLiteRepository) Create(ctx context.Context, a *Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}

	const query = `INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?,
			COALESCE(?, CASE WHEN EXISTS (SELECT 1 FROM accounts) THEN 'User' ELSE 'Admin' END),
			?, ?, ?, ?, ?, ?, ?)
		RETURNING role`

	var role string
	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Title, a.FirstName, a.LastName, a.Email, a.PasswordHash, a.AcceptTerms,
		database.NullString(string(a.Role)),
		database.NullString(a.VerificationToken), database.NullTime(a.VerifiedAt),
		database.NullString(a.ResetToken), database.NullTime(a.ResetTokenExpiresAt),
		database.NullTime(a.PasswordResetAt),
		database.FormatTime(a.CreatedAt), database.FormatTime(a.UpdatedAt),
	).Scan(&role)
	if err != nil {
		return mapWriteError("inserting account", err)
	}

	a.Role = auth.Role(role)
	return nil
}

// GetByID returns a single account by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail returns the account registered with email. The lookup is
// case-insensitive because emails are stored lower-cased.
func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getOne(ctx, "email", NormaliseEmail(email))
}

// GetByResetToken returns the account holding token, expired or not.
func (r *SQLiteRepository) GetByResetToken(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrAccountNotFound
	}
	return r.getOne(ctx, "reset_token", token)
}

func (r *SQLiteRepository) getOne(ctx context.Context, column, value string) (*Account, error) {
	//nolint:gosec // column is one of a fixed set chosen by the caller
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = ?`, value)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("getting account by %s: %w", column, err)
	}
	return a, nil
}

// List returns all accounts ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("listing accounts: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accounts, nil
}

// ProfileChanges names the account columns an update writes. Nil fields keep
// their stored value.
type ProfileChanges struct {
	Title        *string
	FirstName    *string
	LastName     *string
	Email        *string
	PasswordHash *string
	Role         *auth.Role
}

// Empty reports whether c changes nothing.
func (c ProfileChanges) Empty() bool {
	return c.Title == nil && c.FirstName == nil && c.LastName == nil &&
		c.Email == nil && c.PasswordHash == nil && c.Role == nil
}

// UpdateProfile applies c to account id in a single statement. Columns not
// named in c are never written, so concurrent token consumption or a reset
// password is not overwritten with a stale copy.
func (r *SQLiteRepository) UpdateProfile(ctx context.Context, id string, c ProfileChanges, now time.Time) (*Account, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if c.Title != nil {
		set("title", *c.Title)
	}
	if c.FirstName != nil {
		set("first_name", *c.FirstName)
	}
	if c.LastName != nil {
		set("last_name", *c.LastName)
	}
	if c.Email != nil {
		set("email", NormaliseEmail(*c.Email))
	}
	if c.PasswordHash != nil {
		set("password_hash", *c.PasswordHash)
	}
	if c.Role != nil {
		set("role", string(*c.Role))
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	set("updated_at", database.FormatTime(now))
	args = append(args, id)

	//nolint:gosec // column names come from the fixed list above
	row := r.db.QueryRowContext(ctx,
		`UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ? RETURNING `+accountColumns,
		args...)
	a, err := scanAccount(row)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, mapWriteError("updating account "+id, err)
	}
	return a, nil
}

// SetResetToken stores a fresh reset token for account id.
func (r *SQLiteRepository) SetResetToken(ctx context.Context, id, token string, expires, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET reset_token = ?, reset_token_expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		token, database.FormatTime(expires), database.FormatTime(now), id)
	if err != nil {
		return mapWriteError("storing reset token for "+id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // always available on SQLite
		return ErrAccountNotFound
	}
	return nil
}

// Delete removes an account. Its refresh tokens go with it (ON DELETE CASCADE).
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // always available on SQLite
		return ErrAccountNotFound
	}
	return nil
}

// ConsumeVerificationToken verifies the account holding token.
func (r *SQLiteRepository) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (string, error) {
	if token == "" {
		return "", ErrTokenNotMatched
	}
	ts := database.FormatTime(now)

	var id string
	err := r.db.QueryRowContext(ctx,
		`UPDATE accounts SET verified_at = ?, verification_token = NULL, updated_at = ?
		 WHERE verification_token = ?
		 RETURNING id`,
		ts, ts, token).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenNotMatched
	}
	if err != nil {
		return "", fmt.Errorf("consuming verification token: %w", err)
	}
	return id, nil
}

// ConsumeResetToken completes a password reset and marks the account
// verified. The expiry comparison is strict: a token is unusable at exactly
// its expiry instant.
func (r *SQLiteRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (string, error) {
	if token == "" {
		return "", ErrTokenNotMatched
	}
	ts := database.FormatTime(now)

	var id string
	err := r.db.QueryRowContext(ctx,
		`UPDATE accounts SET password_hash = ?, password_reset_at = ?,
			verified_at = COALESCE(verified_at, ?), verification_token = NULL,
			reset_token = NULL, reset_token_expires_at = NULL, updated_at = ?
		 WHERE reset_token = ? AND reset_token_expires_at > ?
		 RETURNING id`,
		passwordHash, ts, ts, ts, token, ts).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenNotMatched
	}
	if err != nil {
		return "", fmt.Errorf("consuming reset token: %w", err)
	}
	return id, nil
}

// mapWriteError turns a unique violation on the email index into
// ErrEmailExists. Collisions on the token indexes stay internal errors.
func mapWriteError(op string, err error) error {
	if database.IsUniqueViolation(err) {
		msg := err.Error()
		if !strings.Contains(msg, "verification_token") && !strings.Contains(msg, "reset_token") {
			return ErrEmailExists
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*Account, error) {
	var (
		a                                 Account
		role                              string
		verificationToken, resetToken     sql.NullString
		verifiedAt, resetExpires, resetAt sql.NullString
		createdAt, updatedAt              string
	)
	err := s.Scan(&a.ID, &a.Title, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash,
		&a.AcceptTerms, &role,
		&verificationToken, &verifiedAt, &resetToken, &resetExpires, &resetAt,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	if a.Role, err = auth.ParseRole(role); err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, err)
	}
	a.VerificationToken = verificationToken.String
	a.ResetToken = resetToken.String
	a.VerifiedAt = database.TimePtr(verifiedAt)
	a.ResetTokenExpiresAt = database.TimePtr(resetExpires)
	a.PasswordResetAt = database.TimePtr(resetAt)

	if a.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of %s: %w", a.ID, err)
	}
	if a.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at of %s: %w", a.ID, err)
	}
	return &a, nil
}
