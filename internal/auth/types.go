package auth

import (
	"errors"
	"fmt"
	"time"
)

// Role is the authorisation tier of an account. The set is closed.
type Role string

const (
	// RoleAdmin can list, create, modify and delete any account and read the
	// audit log. The first account ever registered gets this role.
	RoleAdmin Role = "Admin"

	// RoleUser can only act on its own account.
	RoleUser Role = "User"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// ParseRole converts s to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// RefreshToken is a stored refresh token. The raw value is handed to the
// client once and only its SHA-256 digest is kept.
//
// Tokens issued by rotating one another share a FamilyID, which lets a
// replayed token revoke every descendant.
type RefreshToken struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"accountId"`
	FamilyID    string     `json:"-"`
	TokenHash   string     `json:"-"` // never serialised
	ExpiresAt   time.Time  `json:"expires"`
	CreatedAt   time.Time  `json:"created"`
	CreatedByIP string     `json:"createdByIp"`
	RevokedAt   *time.Time `json:"revoked,omitempty"`
	RevokedByIP string     `json:"revokedByIp,omitempty"`
	ReplacedBy  string     `json:"replacedByToken,omitempty"`
}

// IsExpired reports whether the token has expired at now. A token expires at
// exactly ExpiresAt.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsActive reports whether the token can still be exchanged at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && !t.IsExpired(now)
}

// IsRotated reports whether the token was consumed by a refresh.
func (t *RefreshToken) IsRotated() bool {
	return t.ReplacedBy != ""
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrTokenInvalid)
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrTokenInvalid)
	ErrTokenRevoked   = errors.New("token has already been revoked")
	ErrTokenNotFound  = errors.New("token not found")
	ErrTokenCollision = errors.New("token hash already exists")

	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidHash      = errors.New("invalid password hash")
	ErrUnsupportedHash  = errors.New("unsupported password hash algorithm")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length")
	ErrEmptySecret      = errors.New("signing secret is empty")
	ErrUnknownAlgorithm = errors.New("unknown password algorithm")
)
