package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// refreshTokenBytes is the entropy of a refresh token (256 bits).
const refreshTokenBytes = 32

// Claims are the access token claims: the standard set plus the account role.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// AccountID returns the subject of the token.
func (c *Claims) AccountID() string {
	return c.Subject
}

// Issuer signs and checks access tokens and mints refresh tokens.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer returns an Issuer signing HS256 tokens with secret.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// SetClock replaces the time source. Tests use it to age tokens.
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

// RefreshTTL returns the lifetime of newly minted refresh tokens.
func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// IssueAccessToken signs a short-lived token for accountID and returns it
// with its expiry. Access tokens are checked by signature alone.
func (i *Issuer) IssueAccessToken(accountID string, role Role) (string, time.Time, error) {
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	now := i.now()
	expires := now.Add(i.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expires, nil
}

// VerifyAccessToken checks the signature and expiry of token and returns its
// claims. Every failure wraps ErrTokenInvalid; expired and malformed tokens
// are further distinguished by ErrTokenExpired and ErrTokenMalformed.
func (i *Issuer) VerifyAccessToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: bad role", ErrTokenInvalid)
	}
	return claims, nil
}

// NewRefreshToken mints a refresh token for accountID. The raw value goes to
// the client; the returned record carries only its hash. An empty familyID
// starts a new rotation chain.
func (i *Issuer) NewRefreshToken(accountID, familyID, sourceIP string) (string, *RefreshToken, error) {
	raw, err := RandomToken(refreshTokenBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generating refresh token: %w", err)
	}
	if familyID == "" {
		familyID = uuid.NewString()
	}

	now := i.now().UTC()
	return raw, &RefreshToken{
		ID:          "rt-" + uuid.NewString(),
		AccountID:   accountID,
		FamilyID:    familyID,
		TokenHash:   HashToken(raw),
		ExpiresAt:   now.Add(i.refreshTTL),
		CreatedAt:   now,
		CreatedByIP: sourceIP,
	}, nil
}

// RandomToken returns n bytes from crypto/rand, hex encoded.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the SHA-256 digest of a raw token, hex encoded.
// Raw tokens are never stored.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
