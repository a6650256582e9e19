package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-accounts/migrations"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// testDB opens a temp-file SQLite database with the real migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

// seedAccount inserts a bare account row so refresh tokens have an owner.
func seedAccount(t *testing.T, db *sql.DB, id string) {
	t.Helper()

	now := database.FormatTime(time.Now())
	_, err := db.Exec(`INSERT INTO accounts
		(id, title, first_name, last_name, email, password_hash, accept_terms, role, created_at, updated_at)
		VALUES (?, 'Mx', 'Test', 'User', ?, 'x', 1, 'User', ?, ?)`,
		id, id+"@example.com", now, now)
	if err != nil {
		t.Fatalf("seeding account %s: %v", id, err)
	}
}

// testIssuer returns an Issuer with a controllable clock.
func testIssuer(t *testing.T, now *time.Time) *Issuer {
	t.Helper()

	iss, err := NewIssuer(testSecret, 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	if now != nil {
		iss.SetClock(func() time.Time { return *now })
	}
	return iss
}
