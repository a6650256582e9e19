// Package database opens the account store's SQLite database and applies
// its schema migrations.
//
// The store holds accounts, refresh tokens and the audit log. Timestamps are
// stored as RFC3339 text in UTC, tables are STRICT, and every query uses
// bound parameters.
//
// Security Considerations:
//   - The database file is chmod 0600 after opening; it contains password hashes
//   - Refresh tokens are stored only as SHA-256 digests, never raw
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded by the top-level migrations package and named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql.
//
// WithTx runs a function inside a transaction and is used by the token
// repository so that revoking the presented refresh token and inserting its
// successor commit together.
package database
