package account

import (
	"time"

	"github.com/nerrad567/gray-logic-accounts/internal/auth"
)

// Account is a stored account. PasswordHash and the token fields never leave
// the package; callers get Details.
type Account struct {
	ID           string
	Title        string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	AcceptTerms  bool
	Role         auth.Role

	VerificationToken string
	VerifiedAt        *time.Time

	ResetToken          string
	ResetTokenExpiresAt *time.Time
	PasswordResetAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsVerified reports whether a has confirmed ownership of its email, either
// through the verification link or by completing a password reset.
func IsVerified(a *Account) bool {
	return a.VerifiedAt != nil || a.PasswordResetAt != nil
}

// Details is the public view of an account.
type Details struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Email      string     `json:"email"`
	Role       auth.Role  `json:"role"`
	IsVerified bool       `json:"isVerified"`
	Created    time.Time  `json:"created"`
	Updated    *time.Time `json:"updated,omitempty"`
}

// Details returns the public view of a.
func (a *Account) Details() Details {
	d := Details{
		ID:         a.ID,
		Title:      a.Title,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Email:      a.Email,
		Role:       a.Role,
		IsVerified: IsVerified(a),
		Created:    a.CreatedAt,
	}
	if !a.UpdatedAt.IsZero() && !a.UpdatedAt.Equal(a.CreatedAt) {
		updated := a.UpdatedAt
		d.Updated = &updated
	}
	return d
}

// Actor is the authenticated caller of a privileged operation, taken from
// the access token.
type Actor struct {
	ID   string
	Role auth.Role
}

// IsAdmin reports whether the actor holds the Admin role.
func (a Actor) IsAdmin() bool {
	switch a.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleUser:
		return false
	default:
		return false
	}
}

// AuthResult is returned by Authenticate and Refresh. RefreshToken is the raw
// value and is delivered to the client as a cookie, never in the body.
type AuthResult struct {
	Details
	JWTToken      string    `json:"jwtToken"`
	JWTExpires    time.Time `json:"jwtExpires"`
	RefreshToken  string    `json:"-"`
	RefreshExpiry time.Time `json:"-"`
}

// RegisterInput is a self-service registration request.
type RegisterInput struct {
	Title           string `json:"title"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AcceptTerms     bool   `json:"acceptTerms"`
}

// CreateInput is an admin request to create an account directly.
type CreateInput struct {
	Title           string `json:"title"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// UpdateInput is a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Title           *string `json:"title,omitempty"`
	FirstName       *string `json:"firstName,omitempty"`
	LastName        *string `json:"lastName,omitempty"`
	Email           *string `json:"email,omitempty"`
	Role            *string `json:"role,omitempty"`
	Password        *string `json:"password,omitempty"`
	ConfirmPassword *string `json:"confirmPassword,omitempty"`
}

// ResetPasswordInput completes a password reset.
type ResetPasswordInput struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}
