package users

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is a console role. Providers may emit either the role name
// ("admin") or its provider value ("kestra-admin").
type RoleType string

const (
	RoleAdmin    RoleType = "admin"    // Full access to every feature
	RoleOperator RoleType = "operator" // Access limited to the configured operator permissions
)

var providerRoleValues = map[RoleType]string{
	RoleAdmin:    "kestra-admin",
	RoleOperator: "kestra-operator",
}

// ProviderValue returns the role name expected in provider claims.
func (r RoleType) ProviderValue() string {
	return providerRoleValues[r]
}

// ParseRole matches a claim value case-insensitively against role names and
// provider values. Unknown values report false.
func ParseRole(value string) (RoleType, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	for role, providerValue := range providerRoleValues {
		if v == string(role) || v == providerValue {
			return role, true
		}
	}
	return "", false
}

// UserInfo is the profile returned by GET /api/v1/user/me and cached by the
// console session.
type UserInfo struct {
	Authenticated bool     `json:"authenticated"`
	Username      string   `json:"username,omitempty"`
	Email         string   `json:"email,omitempty"`
	Name          string   `json:"name,omitempty"`
	Roles         []string `json:"roles"`
	Permissions   []string `json:"permissions"`
	IsAdmin       bool     `json:"isAdmin,omitempty"`
}

// HasRole matches role names case-insensitively. A nil profile has no roles.
func (u *UserInfo) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasPermission matches permission keys exactly.
func (u *UserInfo) HasPermission(permission string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Admin returns the cached admin flag; it is not derived from roles.
func (u *UserInfo) Admin() bool {
	return u != nil && u.IsAdmin
}

// Clone returns a deep copy.
func (u *UserInfo) Clone() *UserInfo {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	c.Permissions = append([]string(nil), u.Permissions...)
	return &c
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
