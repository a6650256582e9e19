package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-accounts/internal/auth"
)

var repoEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newAccount(email string) *Account {
	return &Account{
		ID:           newAccountID(),
		Title:        "Mx",
		FirstName:    "Sam",
		LastName:     "Doe",
		Email:        email,
		PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderplacehol",
		AcceptTerms:  true,
		CreatedAt:    repoEpoch,
	}
}

func TestSQLiteRepository_CreateAssignsRoles(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	first := newAccount("first@example.com")
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, auth.RoleAdmin, first.Role)

	second := newAccount("second@example.com")
	require.NoError(t, repo.Create(ctx, second))
	assert.Equal(t, auth.RoleUser, second.Role)

	explicit := newAccount("explicit@example.com")
	explicit.Role = auth.RoleAdmin
	require.NoError(t, repo.Create(ctx, explicit))
	assert.Equal(t, auth.RoleAdmin, explicit.Role)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, got.Role)
	assert.True(t, got.CreatedAt.Equal(repoEpoch))
	assert.True(t, got.AcceptTerms)
}

func TestSQLiteRepository_ConcurrentFirstRegistration(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, newAccount(fmt.Sprintf("user%d@example.com", i)))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, n)

	admins := 0
	for _, a := range all {
		if a.Role == auth.RoleAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}

func TestSQLiteRepository_DuplicateEmail(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newAccount("dup@example.com")))
	err := repo.Create(ctx, newAccount("dup@example.com"))
	assert.ErrorIs(t, err, ErrEmailExists)

	other := newAccount("other@example.com")
	require.NoError(t, repo.Create(ctx, other))
	dup := "DUP@example.com"
	_, err = repo.UpdateProfile(ctx, other.ID, ProfileChanges{Email: &dup}, repoEpoch)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestSQLiteRepository_Lookups(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	a := newAccount("lookup@example.com")
	require.NoError(t, repo.Create(ctx, a))

	got, err := repo.GetByEmail(ctx, "  LookUp@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = repo.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = repo.GetByID(ctx, "acc-missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = repo.GetByResetToken(ctx, "")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSQLiteRepository_UpdateProfileAndDelete(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	a := newAccount("update@example.com")
	require.NoError(t, repo.Create(ctx, a))

	name := "Samantha"
	role := auth.RoleAdmin
	later := repoEpoch.Add(time.Minute)
	got, err := repo.UpdateProfile(ctx, a.ID, ProfileChanges{FirstName: &name, Role: &role}, later)
	require.NoError(t, err)
	assert.Equal(t, "Samantha", got.FirstName)
	assert.Equal(t, a.LastName, got.LastName)
	assert.Equal(t, auth.RoleAdmin, got.Role)
	assert.True(t, got.UpdatedAt.Equal(later))

	// Nothing to change reads the row back without writing.
	same, err := repo.UpdateProfile(ctx, a.ID, ProfileChanges{}, repoEpoch.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, same.UpdatedAt.Equal(later))

	expires := repoEpoch.Add(time.Hour)
	require.NoError(t, repo.SetResetToken(ctx, a.ID, "reset-abc", expires, later))
	byToken, err := repo.GetByResetToken(ctx, "reset-abc")
	require.NoError(t, err)
	assert.Equal(t, "Samantha", byToken.FirstName)
	require.NotNil(t, byToken.ResetTokenExpiresAt)
	assert.True(t, byToken.ResetTokenExpiresAt.Equal(expires))

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), ErrAccountNotFound)
	_, err = repo.UpdateProfile(ctx, a.ID, ProfileChanges{FirstName: &name}, later)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.ErrorIs(t, repo.SetResetToken(ctx, a.ID, "reset-def", expires, later), ErrAccountNotFound)
}

func TestSQLiteRepository_WritesLeaveOtherColumnsAlone(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	a := newAccount("columns@example.com")
	a.VerificationToken = "verify-abc"
	require.NoError(t, repo.Create(ctx, a))

	// A stale reader that last saw the old hash and the pending verification
	// token must not restore either when it writes.
	stale, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)

	expires := repoEpoch.Add(time.Hour)
	require.NoError(t, repo.SetResetToken(ctx, a.ID, "reset-abc", expires, repoEpoch))
	_, err = repo.ConsumeVerificationToken(ctx, "verify-abc", repoEpoch)
	require.NoError(t, err)
	_, err = repo.ConsumeResetToken(ctx, "reset-abc", "new-hash", repoEpoch)
	require.NoError(t, err)

	require.NoError(t, repo.SetResetToken(ctx, stale.ID, "reset-def", expires, repoEpoch))
	name := "Samuel"
	_, err = repo.UpdateProfile(ctx, stale.ID, ProfileChanges{FirstName: &name}, repoEpoch)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Empty(t, got.VerificationToken)
	assert.True(t, IsVerified(got))
	assert.Equal(t, "reset-def", got.ResetToken)
	assert.Equal(t, "Samuel", got.FirstName)

	_, err = repo.ConsumeVerificationToken(ctx, "verify-abc", repoEpoch)
	assert.ErrorIs(t, err, ErrTokenNotMatched)
}

func TestSQLiteRepository_DeleteCascadesTokens(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	tokens := auth.NewTokenRepository(db)
	ctx := context.Background()

	a := newAccount("cascade@example.com")
	require.NoError(t, repo.Create(ctx, a))

	issuer, err := auth.NewIssuer(testSecret, time.Minute, time.Hour)
	require.NoError(t, err)
	raw, rt, err := issuer.NewRefreshToken(a.ID, "", testIP)
	require.NoError(t, err)
	require.NoError(t, tokens.Create(ctx, rt))

	require.NoError(t, repo.Delete(ctx, a.ID))
	_, err = tokens.GetByHash(ctx, auth.HashToken(raw))
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)
}

func TestSQLiteRepository_ConsumeVerificationToken(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	a := newAccount("verify@example.com")
	a.VerificationToken = "verify-abc"
	require.NoError(t, repo.Create(ctx, a))

	id, err := repo.ConsumeVerificationToken(ctx, "verify-abc", repoEpoch)
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, IsVerified(got))
	assert.Empty(t, got.VerificationToken)

	_, err = repo.ConsumeVerificationToken(ctx, "verify-abc", repoEpoch)
	assert.ErrorIs(t, err, ErrTokenNotMatched)
	_, err = repo.ConsumeVerificationToken(ctx, "", repoEpoch)
	assert.ErrorIs(t, err, ErrTokenNotMatched)
}

func TestSQLiteRepository_ConsumeResetToken(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	expires := repoEpoch.Add(time.Hour)
	a := newAccount("reset@example.com")
	a.ResetToken = "reset-abc"
	a.ResetTokenExpiresAt = &expires
	require.NoError(t, repo.Create(ctx, a))

	// Unusable at exactly the expiry instant.
	_, err := repo.ConsumeResetToken(ctx, "reset-abc", "new-hash", expires)
	require.ErrorIs(t, err, ErrTokenNotMatched)

	id, err := repo.ConsumeResetToken(ctx, "reset-abc", "new-hash", expires.Add(-time.Nanosecond))
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Empty(t, got.ResetToken)
	assert.Nil(t, got.ResetTokenExpiresAt)
	assert.NotNil(t, got.PasswordResetAt)
	assert.True(t, IsVerified(got))

	_, err = repo.ConsumeResetToken(ctx, "reset-abc", "other-hash", repoEpoch)
	assert.ErrorIs(t, err, ErrTokenNotMatched)
}

// =============================================================================
// Driver failure paths
// =============================================================================

func newMockRepo(t *testing.T) (*SQLiteRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return NewSQLiteRepository(db), mock
}

func TestSQLiteRepository_UniqueViolationMapsToEmailExists(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO accounts").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})

	err := repo.Create(context.Background(), newAccount("x@example.com"))
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepository_DriverErrorsAreWrapped(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("disk I/O error")

	mock.ExpectQuery("SELECT .* FROM accounts ORDER BY").WillReturnError(boom)
	_, err := repo.List(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "listing accounts")

	mock.ExpectQuery("UPDATE accounts SET verified_at").WillReturnError(boom)
	_, err = repo.ConsumeVerificationToken(context.Background(), "tok", repoEpoch)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTokenNotMatched)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepository_UpdateNoRows(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE accounts SET reset_token").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetResetToken(context.Background(), "acc-1", "tok", repoEpoch, repoEpoch), ErrAccountNotFound)

	title := "Dr"
	mock.ExpectQuery("UPDATE accounts SET title = \\?, updated_at = \\? WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := repo.UpdateProfile(context.Background(), "acc-1", ProfileChanges{Title: &title}, repoEpoch)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	mock.ExpectExec("DELETE FROM accounts").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "acc-1"), ErrAccountNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
