package account

import (
	"errors"
	"fmt"
	"time"
)

// Repository sentinels.
var (
	// ErrAccountNotFound is returned when no account matches a lookup.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailExists is returned when an insert or update hits the unique
	// email index.
	ErrEmailExists = errors.New("email already registered")

	// ErrTokenNotMatched is returned when a verification or reset token does
	// not match an account, or the reset token has expired.
	ErrTokenNotMatched = errors.New("token did not match")
)

// Kind classifies a service failure.
type Kind int

// Failure kinds returned by the Service.
const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindToken
	KindRateLimited
	KindDelivery
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindToken:
		return "token"
	case KindRateLimited:
		return "rate_limited"
	case KindDelivery:
		return "delivery"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single error type returned by the Service.
//
// Message is safe to show to clients. Err holds the cause for logging and
// errors.Is; for KindInternal it must never be shown.
type Error struct {
	Kind    Kind
	Message string

	// Fields maps request field names to messages for KindValidation.
	Fields map[string]string

	// RetryAfter is set for KindRateLimited.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Messages shared by several operations. They are deliberately identical
// across causes.
const (
	msgBadCredentials      = "Email or password is incorrect"
	msgVerificationFailed  = "Verification failed"
	msgInvalidToken        = "Invalid token"
	msgUnauthorized        = "Unauthorized"
	msgInternal            = "An internal error occurred"
	msgTooManyAttempts     = "Too many attempts, try again later"
	msgValidationFailed    = "Validation failed"
	msgAccountNotFound     = "Account not found"
	msgTokenNotFound       = "Token not found"
	msgTokenAlreadyRevoked = "Token has already been revoked"
)

// ValidationError reports client-fixable problems keyed by field name.
func ValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msgValidationFailed, Fields: fields}
}

// AuthenticationError is the uniform bad-credentials failure.
func AuthenticationError() *Error {
	return &Error{Kind: KindAuthentication, Message: msgBadCredentials}
}

// AuthorizationError reports that the actor may not perform the operation.
func AuthorizationError() *Error {
	return &Error{Kind: KindAuthorization, Message: msgUnauthorized}
}

// NotFoundError reports a missing resource.
func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// ConflictError reports a uniqueness conflict.
func ConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// TokenError reports an unusable verification, reset or refresh token.
func TokenError(message string, cause error) *Error {
	return &Error{Kind: KindToken, Message: message, Err: cause}
}

// RateLimitedError reports an exhausted attempt budget.
func RateLimitedError(retryAfter time.Duration, cause error) *Error {
	return &Error{Kind: KindRateLimited, Message: msgTooManyAttempts, RetryAfter: retryAfter, Err: cause}
}

// DeliveryError wraps a mail transport failure.
func DeliveryError(cause error) *Error {
	return &Error{Kind: KindDelivery, Message: "Message delivery failed", Err: cause}
}

// InternalError wraps an unexpected failure behind a generic message.
func InternalError(op string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msgInternal, Err: fmt.Errorf("%s: %w", op, cause)}
}
