// Package auth holds the credential and token primitives of the account
// service.
//
// It provides:
//   - Hasher: bcrypt (default) or Argon2id password hashing with
//     algorithm detection on verify
//   - Issuer: HS256 JWT access tokens and opaque 256-bit refresh tokens
//   - TokenRepository: refresh token persistence with guarded, transactional
//     rotation and family-wide revocation for replay detection
//
// Roles form a closed set of two: Admin and User.
package auth
