package user

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	userDatamodel "github.com/frahmantamala/hrms-identity/internal/core/datamodel/user"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrUnknownRole       = errors.New("unknown role")
)

// AuthorityPrefix is prepended to role names on the wire.
const AuthorityPrefix = "ROLE_"

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleHR       Role = "HR"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

var knownRoles = map[Role]struct{}{
	RoleEmployee: {},
	RoleHR:       {},
	RoleManager:  {},
	RoleAdmin:    {},
}

func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// Authority returns the prefixed form carried in tokens, e.g. ROLE_ADMIN.
func (r Role) Authority() string {
	return AuthorityPrefix + string(r)
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts "admin", "ADMIN" or "ROLE_ADMIN".
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, AuthorityPrefix)
	r := Role(name)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// NormalizeRoles de-duplicates and sorts roles. An empty set becomes {EMPLOYEE};
// that default applies to new accounts only.
func NormalizeRoles(roles []Role) []Role {
	out := UniqueRoles(roles)
	if len(out) == 0 {
		out = append(out, RoleEmployee)
	}
	return out
}

// UniqueRoles de-duplicates and sorts roles without adding any.
func UniqueRoles(roles []Role) []Role {
	seen := make(map[Role]struct{}, len(roles))
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func Authorities(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Authority())
	}
	return out
}

// Identity is a registered account.
type Identity struct {
	ID                    int64
	Username              string
	Email                 string
	PasswordHash          string `json:"-"`
	EmployeeID            *uuid.UUID
	FirstName             *string
	LastName              *string
	Roles                 []Role
	Enabled               bool
	AccountNonExpired     bool
	AccountNonLocked      bool
	CredentialsNonExpired bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewIdentity returns an active account with default roles applied.
func NewIdentity(username, email, passwordHash string, roles ...Role) *Identity {
	return &Identity{
		Username:              username,
		Email:                 email,
		PasswordHash:          passwordHash,
		Roles:                 NormalizeRoles(roles),
		Enabled:               true,
		AccountNonExpired:     true,
		AccountNonLocked:      true,
		CredentialsNonExpired: true,
	}
}

// CanLogin is true only when every status flag allows it.
func (i *Identity) CanLogin() bool {
	return i.Enabled && i.AccountNonExpired && i.AccountNonLocked && i.CredentialsNonExpired
}

func (i *Identity) HasRole(r Role) bool {
	for _, have := range i.Roles {
		if have == r {
			return true
		}
	}
	return false
}

type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Create inserts the identity and its roles atomically, returning
	// ErrDuplicateUsername or ErrDuplicateEmail when either is taken.
	Create(ctx context.Context, identity *Identity) error
	UpdatePassword(ctx context.Context, username, passwordHash string, credentialsNonExpired bool) error
}

func ToDataModel(i *Identity) *userDatamodel.User {
	roles := make([]userDatamodel.UserRole, 0, len(i.Roles))
	for _, r := range NormalizeRoles(i.Roles) {
		roles = append(roles, userDatamodel.UserRole{UserID: i.ID, Role: string(r)})
	}
	return &userDatamodel.User{
		ID:                    i.ID,
		Username:              i.Username,
		Email:                 i.Email,
		PasswordHash:          i.PasswordHash,
		EmployeeID:            i.EmployeeID,
		FirstName:             i.FirstName,
		LastName:              i.LastName,
		Enabled:               i.Enabled,
		AccountNonExpired:     i.AccountNonExpired,
		AccountNonLocked:      i.AccountNonLocked,
		CredentialsNonExpired: i.CredentialsNonExpired,
		Roles:                 roles,
		CreatedAt:             i.CreatedAt,
		UpdatedAt:             i.UpdatedAt,
	}
}

// FromDataModel drops stored roles it does not recognise. An account whose
// stored roles are all unknown comes back with no roles at all.
func FromDataModel(u *userDatamodel.User) *Identity {
	roles := make([]Role, 0, len(u.Roles))
	for _, ur := range u.Roles {
		if r, err := ParseRole(ur.Role); err == nil {
			roles = append(roles, r)
		}
	}
	return &Identity{
		ID:                    u.ID,
		Username:              u.Username,
		Email:                 u.Email,
		PasswordHash:          u.PasswordHash,
		EmployeeID:            u.EmployeeID,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		Roles:                 UniqueRoles(roles),
		Enabled:               u.Enabled,
		AccountNonExpired:     u.AccountNonExpired,
		AccountNonLocked:      u.AccountNonLocked,
		CredentialsNonExpired: u.CredentialsNonExpired,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}
