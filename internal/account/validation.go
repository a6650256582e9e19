package account

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/nerrad567/gray-logic-accounts/internal/auth"
)

// Validation constants.
const (
	minPasswordLength = 6
	maxNameLength     = 100
	maxEmailLength    = 254
)

// NormaliseEmail trims and lower-cases an address for storage and lookup.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var (
	nameRules = []validation.Rule{validation.Length(1, maxNameLength)}

	emailRules = []validation.Rule{validation.Length(3, maxEmailLength), is.Email}

	passwordRules = []validation.Rule{
		validation.Length(minPasswordLength, 0),
		validation.By(maxBytes(auth.MaxPasswordBytes)),
	}

	roleRule = validation.In(string(auth.RoleAdmin), string(auth.RoleUser)).Error("must be Admin or User")
)

// Validate checks a registration request.
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, append([]validation.Rule{validation.Required}, nameRules...)...),
		validation.Field(&in.FirstName, append([]validation.Rule{validation.Required}, nameRules...)...),
		validation.Field(&in.LastName, append([]validation.Rule{validation.Required}, nameRules...)...),
		validation.Field(&in.Email, append([]validation.Rule{validation.Required}, emailRules...)...),
		validation.Field(&in.Password, append([]validation.Rule{validation.Required}, passwordRules...)...),
		validation.Field(&in.ConfirmPassword, validation.Required, validation.By(matches(in.Password))),
		validation.Field(&in.AcceptTerms, validation.Required.Error("must be accepted")),
	)
}

// Validate checks an admin create request.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, append([]validation.Rule{validation.Required}, nameRules...)...),
		validation.Field(&in.FirstName, append([]validation.Rule{validation.Required}, nameRules...)...),
		validation.Field(&in.LastName, append([]validation.Rule{validation.Required}, nameRules...)...),
		validation.Field(&in.Email, append([]validation.Rule{validation.Required}, emailRules...)...),
		validation.Field(&in.Role, validation.Required, roleRule),
		validation.Field(&in.Password, append([]validation.Rule{validation.Required}, passwordRules...)...),
		validation.Field(&in.ConfirmPassword, validation.Required, validation.By(matches(in.Password))),
	)
}

// Validate checks a partial update. Absent fields are not validated, but a
// present field may not be blank.
func (in UpdateInput) Validate() error {
	password := ""
	if in.Password != nil {
		password = *in.Password
	}

	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, append([]validation.Rule{validation.NilOrNotEmpty}, nameRules...)...),
		validation.Field(&in.FirstName, append([]validation.Rule{validation.NilOrNotEmpty}, nameRules...)...),
		validation.Field(&in.LastName, append([]validation.Rule{validation.NilOrNotEmpty}, nameRules...)...),
		validation.Field(&in.Email, append([]validation.Rule{validation.NilOrNotEmpty}, emailRules...)...),
		validation.Field(&in.Role, validation.NilOrNotEmpty, roleRule),
		validation.Field(&in.Password, append([]validation.Rule{validation.NilOrNotEmpty}, passwordRules...)...),
		validation.Field(&in.ConfirmPassword, validation.By(func(value any) error {
			if in.Password == nil {
				return nil
			}
			return matches(password)(value)
		})),
	)
}

// Validate checks a password reset request.
func (in ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Token, validation.Required),
		validation.Field(&in.Password, append([]validation.Rule{validation.Required}, passwordRules...)...),
		validation.Field(&in.ConfirmPassword, validation.Required, validation.By(matches(in.Password))),
	)
}

// matches requires the value to equal want.
func matches(want string) validation.RuleFunc {
	return func(value any) error {
		v, isNil := validation.Indirect(value)
		s, _ := v.(string) //nolint:errcheck // non-strings never match
		if isNil || s != want {
			return errors.New("passwords do not match")
		}
		return nil
	}
}

// maxBytes caps the encoded length of a string. bcrypt ignores input past
// 72 bytes, so longer passwords are rejected instead of silently truncated.
func maxBytes(n int) validation.RuleFunc {
	return func(value any) error {
		v, isNil := validation.Indirect(value)
		if s, ok := v.(string); ok && !isNil && len(s) > n {
			return errors.New("is too long")
		}
		return nil
	}
}

// validationFailure converts an ozzo error into a KindValidation *Error
// keyed by JSON field name.
func validationFailure(err error) *Error {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return InternalError("validating input", err)
	}

	fields := make(map[string]string, len(verrs))
	for field, ferr := range verrs {
		if ferr != nil {
			fields[field] = ferr.Error()
		}
	}
	return ValidationError(fields)
}
