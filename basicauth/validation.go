package basicauth

import (
	"github.com/go-playground/validator/v10"

	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

const maxCredentialLength = 256

// Validation messages reported by /api/v1/basicAuthValidationErrors.
const (
	MsgInvalidUsername = "Invalid username for Basic Authentication. Please provide a valid email address."
	MsgMissingUsername = "No user name set for Basic Authentication. Please provide a user name."
	MsgTooLong         = "The length of email or password should not exceed 256 characters."
	MsgInvalidPassword = "Invalid password for Basic Authentication. The password must have 8 chars, one upper, one lower and one number"
	MsgMissingPassword = "No password set for Basic Authentication. Please provide a password."
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Credentials are the basic-auth username (an email) and password.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Empty reports that neither username nor password is set.
func (c Credentials) Empty() bool {
	return c.Username == "" && c.Password == ""
}

// Validate returns the problems with c; nil means valid.
func (c Credentials) Validate() []string {
	var errs []string
	if c.Username == "" {
		errs = append(errs, MsgMissingUsername)
	}
	if c.Password == "" {
		errs = append(errs, MsgMissingPassword)
	}
	if len(errs) > 0 {
		return errs
	}

	if len(c.Username) > maxCredentialLength || len(c.Password) > maxCredentialLength {
		return []string{MsgTooLong}
	}
	if err := validate.Var(c.Username, "required,email"); err != nil {
		errs = append(errs, MsgInvalidUsername)
	}
	if err := users.ValidatePasswordStrength(c.Password); err != nil {
		errs = append(errs, MsgInvalidPassword)
	}
	return errs
}
