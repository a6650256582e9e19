package database

import (
	"context"
	"errors"
	"testing"
)

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestWithTx_Commit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE tx_test (id INTEGER PRIMARY KEY, v TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE: %v", err)
	}

	err := WithTx(ctx, db.DB, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO tx_test (v) VALUES (?)", "kept")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	if n := countRows(t, db, "tx_test"); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE tx_test (id INTEGER PRIMARY KEY, v TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE: %v", err)
	}

	sentinel := errors.New("boom")
	err := WithTx(ctx, db.DB, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO tx_test (v) VALUES (?)", "discarded"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithTx() error = %v, want %v", err, sentinel)
	}

	if n := countRows(t, db, "tx_test"); n != 0 {
		t.Errorf("rows = %d, want 0 after rollback", n)
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE tx_test (id INTEGER PRIMARY KEY, v TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE: %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = WithTx(ctx, db.DB, nil, func(ctx context.Context, tx DBTX) error { //nolint:errcheck // panics
			if _, err := tx.ExecContext(ctx, "INSERT INTO tx_test (v) VALUES (?)", "discarded"); err != nil {
				return err
			}
			panic("mid-transaction")
		})
	}()

	if n := countRows(t, db, "tx_test"); n != 0 {
		t.Errorf("rows = %d, want 0 after panic", n)
	}
}
