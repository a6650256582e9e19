package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/database"
)

// TokenRepository persists refresh tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Rotate(ctx context.Context, oldID, sourceIP string, next *RefreshToken) error
	Revoke(ctx context.Context, id, sourceIP string) error
	RevokeFamily(ctx context.Context, familyID, sourceIP string) (int64, error)
	RevokeAllForAccount(ctx context.Context, accountID, sourceIP string) (int64, error)
	ListActiveByAccount(ctx context.Context, accountID string) ([]RefreshToken, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db, now: time.Now}
}

// SetClock replaces the time source used for activity predicates.
func (r *SQLiteTokenRepository) SetClock(now func() time.Time) {
	r.now = now
}

const tokenColumns = `id, account_id, family_id, token_hash, expires_at, created_at,
	created_by_ip, revoked_at, revoked_by_ip, replaced_by`

// Create inserts a new refresh token.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	return insertToken(ctx, r.db, token)
}

func insertToken(ctx context.Context, q database.DBTX, t *RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.FamilyID, t.TokenHash,
		database.FormatTime(t.ExpiresAt), database.FormatTime(t.CreatedAt),
		t.CreatedByIP, database.NullTime(t.RevokedAt),
		database.NullString(t.RevokedByIP), database.NullString(t.ReplacedBy),
	)
	if database.IsUniqueViolation(err) {
		return ErrTokenCollision
	}
	if err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

// GetByHash looks a token up by the SHA-256 digest of its raw value.
func (r *SQLiteTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, tokenHash)
	return scanToken(row)
}

// Rotate revokes the token oldID, marking it replaced by next, and inserts
// next, all in one transaction. The revoke only matches an active token, so
// of two concurrent refreshes with the same token exactly one succeeds; the
// other gets ErrTokenInvalid and nothing is inserted.
func (r *SQLiteTokenRepository) Rotate(ctx context.Context, oldID, sourceIP string, next *RefreshToken) error {
	now := database.FormatTime(r.now())

	return database.WithTx(ctx, r.db, nil, func(ctx context.Context, tx database.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE refresh_tokens
			 SET revoked_at = ?, revoked_by_ip = ?, replaced_by = ?
			 WHERE id = ? AND revoked_at IS NULL AND expires_at > ?`,
			now, sourceIP, next.ID, oldID, now)
		if err != nil {
			return fmt.Errorf("revoking rotated token: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // always available on SQLite
			return ErrTokenInvalid
		}
		return insertToken(ctx, tx, next)
	})
}

// Revoke revokes a single token. Revoking a token that is already revoked
// returns ErrTokenRevoked; an unknown id returns ErrTokenNotFound.
func (r *SQLiteTokenRepository) Revoke(ctx context.Context, id, sourceIP string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ?, revoked_by_ip = ?
		 WHERE id = ? AND revoked_at IS NULL`,
		database.FormatTime(r.now()), sourceIP, id)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 { //nolint:errcheck // always available on SQLite
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM refresh_tokens WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return ErrTokenRevoked
}

// RevokeFamily revokes every still-unrevoked token descended from the same
// login. Used when a consumed token is presented again.
func (r *SQLiteTokenRepository) RevokeFamily(ctx context.Context, familyID, sourceIP string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ?, revoked_by_ip = ?
		 WHERE family_id = ? AND revoked_at IS NULL`,
		database.FormatTime(r.now()), sourceIP, familyID)
	if err != nil {
		return 0, fmt.Errorf("revoking token family: %w", err)
	}
	return res.RowsAffected()
}

// RevokeAllForAccount revokes every unrevoked token of an account. Used on
// password reset and account deletion.
func (r *SQLiteTokenRepository) RevokeAllForAccount(ctx context.Context, accountID, sourceIP string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ?, revoked_by_ip = ?
		 WHERE account_id = ? AND revoked_at IS NULL`,
		database.FormatTime(r.now()), sourceIP, accountID)
	if err != nil {
		return 0, fmt.Errorf("revoking account tokens: %w", err)
	}
	return res.RowsAffected()
}

// ListActiveByAccount returns the unrevoked, unexpired tokens of an account,
// newest first.
func (r *SQLiteTokenRepository) ListActiveByAccount(ctx context.Context, accountID string) ([]RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens
		 WHERE account_id = ? AND revoked_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC`,
		accountID, database.FormatTime(r.now()))
	if err != nil {
		return nil, fmt.Errorf("listing active tokens: %w", err)
	}
	defer rows.Close()

	tokens := []RefreshToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tokens: %w", err)
	}
	return tokens, nil
}

// DeleteExpired removes tokens that expired before the given instant and
// returns how many were removed. Callers pass now minus a retention window so
// that recently rotated tokens stay around for replay detection.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ?`, database.FormatTime(before))
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(s scanner) (*RefreshToken, error) {
	var (
		t                    RefreshToken
		expiresAt, createdAt string
		revokedAt            sql.NullString
		revokedBy, replaced  sql.NullString
	)
	err := s.Scan(&t.ID, &t.AccountID, &t.FamilyID, &t.TokenHash, &expiresAt, &createdAt,
		&t.CreatedByIP, &revokedAt, &revokedBy, &replaced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning refresh token: %w", err)
	}

	if t.ExpiresAt, err = database.ParseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	t.CreatedAt, _ = database.ParseTime(createdAt) //nolint:errcheck // written by insertToken
	t.RevokedAt = database.TimePtr(revokedAt)
	t.RevokedByIP = revokedBy.String
	t.ReplacedBy = replaced.String
	return &t, nil
}
