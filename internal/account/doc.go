// Package account implements the account lifecycle: registration, email
// verification, authentication, refresh token rotation, password reset and
// role-gated account management.
//
// The Service is the only entry point. It owns validation, authorisation
// and error mapping; persistence, hashing, token issuance, mail delivery,
// rate limiting and auditing are injected through Deps:
//
//	svc, err := account.NewService(account.Deps{
//	    Accounts: account.NewSQLiteRepository(db.DB),
//	    Tokens:   auth.NewTokenRepository(db.DB),
//	    Hasher:   hasher,
//	    Issuer:   issuer,
//	    Mailer:   sender,
//	    Logger:   logger,
//	}, account.Options{})
//
// Every error returned by the Service is an *Error carrying a Kind, so the
// HTTP layer maps failures without inspecting messages.
//
// # Security Properties
//
//   - Registration and forgot-password answer identically whether or not the
//     email is known. The real owner of a taken address gets a mail instead.
//   - Authentication fails with one error for unknown email, unverified
//     account and wrong password, and verifies against a dummy hash when the
//     email is unknown.
//   - Verification and reset tokens are consumed by a guarded UPDATE, so a
//     token works at most once even under concurrent use.
//   - A refresh token presented after it was rotated or revoked revokes its
//     whole family.
package account
