package auth

import (
	"strings"

	errors "github.com/frahmantamala/hrms-identity/internal"
	"github.com/frahmantamala/hrms-identity/internal/core/common/validation"
	"github.com/frahmantamala/hrms-identity/internal/user"
)

type RegisterDTO struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName *string  `json:"firstName,omitempty"`
	LastName  *string  `json:"lastName,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Normalize trims identifiers. Passwords are left untouched.
func (d *RegisterDTO) Normalize() {
	d.Username = strings.TrimSpace(d.Username)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.FirstName = trimOptional(d.FirstName)
	d.LastName = trimOptional(d.LastName)
}

func (d RegisterDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	validation.ValidateUsername(v, d.Username)
	validation.ValidateEmail(v, d.Email)
	validation.ValidatePassword(v, d.Password)
	v.Field("firstName", d.FirstName).MaxLength(100)
	v.Field("lastName", d.LastName).MaxLength(100)
	v.Field("roles", d.Roles).Custom(func(value interface{}) *errors.AppError {
		for _, r := range value.([]string) {
			if _, err := user.ParseRole(r); err != nil {
				return errors.NewValidationFieldError("roles", "unknown role "+r, errors.ErrCodeInvalidRole)
			}
		}
		return nil
	})
	return v.Validate()
}

// ParsedRoles assumes Validate passed.
func (d RegisterDTO) ParsedRoles() []user.Role {
	roles := make([]user.Role, 0, len(d.Roles))
	for _, r := range d.Roles {
		if parsed, err := user.ParseRole(r); err == nil {
			roles = append(roles, parsed)
		}
	}
	return user.NormalizeRoles(roles)
}

func (d *LoginDTO) Normalize() {
	d.Username = strings.TrimSpace(d.Username)
}

func (d LoginDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required()
	v.Field("password", d.Password).Required()
	return v.Validate()
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
