package authz

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/frahmantamala/hrms-identity/internal/token"
	"github.com/frahmantamala/hrms-identity/internal/user"
)

// Principal is who is making the current request. It is immutable; accessors
// return copies.
type Principal struct {
	username   string
	roles      []string
	employeeID *uuid.UUID
	firstName  *string
	lastName   *string
}

// FromIdentity builds the principal for an account loaded from the identity store.
func FromIdentity(i *user.Identity) Principal {
	return Principal{
		username:   i.Username,
		roles:      user.Authorities(user.UniqueRoles(i.Roles)),
		employeeID: copyUUID(i.EmployeeID),
		firstName:  copyString(i.FirstName),
		lastName:   copyString(i.LastName),
	}
}

// FromClaims builds the principal from verified token claims alone. Roles are
// normalised to their ROLE_ form; values that are not known roles are dropped.
func FromClaims(c *token.Claims) (Principal, error) {
	if c == nil || strings.TrimSpace(c.Subject) == "" {
		return Principal{}, errors.New("claims carry no subject")
	}
	roles := make([]user.Role, 0, len(c.Roles))
	for _, raw := range c.Roles {
		if r, err := user.ParseRole(raw); err == nil {
			roles = append(roles, r)
		}
	}
	p := Principal{
		username:   c.Subject,
		roles:      []string{},
		employeeID: copyUUID(c.EmployeeID),
		firstName:  copyString(c.FirstName),
		lastName:   copyString(c.LastName),
	}
	if len(roles) > 0 {
		p.roles = user.Authorities(dedupe(roles))
	}
	return p, nil
}

func (p Principal) Username() string { return p.username }

func (p Principal) Roles() []string {
	out := make([]string, len(p.roles))
	copy(out, p.roles)
	return out
}

func (p Principal) EmployeeID() (uuid.UUID, bool) {
	if p.employeeID == nil {
		return uuid.Nil, false
	}
	return *p.employeeID, true
}

func (p Principal) FirstName() (string, bool) { return deref(p.firstName) }
func (p Principal) LastName() (string, bool)  { return deref(p.lastName) }

// DisplayName joins first and last name with a space, or returns whichever
// one is present.
func (p Principal) DisplayName() (string, bool) {
	first, hasFirst := p.FirstName()
	last, hasLast := p.LastName()
	switch {
	case hasFirst && hasLast:
		return first + " " + last, true
	case hasFirst:
		return first, true
	case hasLast:
		return last, true
	default:
		return "", false
	}
}

// HasRole matches name either as given or with the ROLE_ prefix. Matching is
// case sensitive.
func (p Principal) HasRole(name string) bool {
	if name == "" {
		return false
	}
	prefixed := user.AuthorityPrefix + name
	for _, r := range p.roles {
		if r == name || r == prefixed {
			return true
		}
	}
	return false
}

func (p Principal) HasAnyRole(names ...string) bool {
	for _, n := range names {
		if p.HasRole(n) {
			return true
		}
	}
	return false
}

func dedupe(roles []user.Role) []user.Role {
	seen := make(map[user.Role]struct{}, len(roles))
	out := make([]user.Role, 0, len(roles))
	for _, r := range roles {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
