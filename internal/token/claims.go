package token

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type distinguishes access tokens from refresh tokens. Both share one claim schema.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

func (t Type) Valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

var (
	ErrDecode       = errors.New("token: malformed claims")
	ErrInvalidToken = errors.New("token: invalid token")
	ErrExpiredToken = errors.New("token: token expired")
)

// Claims is the canonical claim set carried by every token.
type Claims struct {
	TokenType  Type       `json:"token_type"`
	Roles      []string   `json:"roles"`
	EmployeeID *uuid.UUID `json:"employee_id,omitempty"`
	FirstName  *string    `json:"first_name,omitempty"`
	LastName   *string    `json:"last_name,omitempty"`
	jwt.RegisteredClaims
}

// Subject is the identity snapshot a token is minted for.
type Subject struct {
	Username   string
	Roles      []string
	EmployeeID *uuid.UUID
	FirstName  *string
	LastName   *string
}

// Validate reports missing required claims. It satisfies jwt.ClaimsValidator.
func (c *Claims) Validate() error {
	switch {
	case strings.TrimSpace(c.Subject) == "":
		return fmt.Errorf("%w: subject missing", ErrDecode)
	case c.IssuedAt == nil:
		return fmt.Errorf("%w: issued-at missing", ErrDecode)
	case c.ExpiresAt == nil:
		return fmt.Errorf("%w: expires-at missing", ErrDecode)
	case c.TokenType == "":
		return fmt.Errorf("%w: token type missing", ErrDecode)
	case !c.TokenType.Valid():
		return fmt.Errorf("%w: unknown token type %q", ErrDecode, c.TokenType)
	case !c.ExpiresAt.After(c.IssuedAt.Time):
		return fmt.Errorf("%w: expiry precedes issued-at", ErrDecode)
	}
	return nil
}

// normalized returns a copy with a sorted, de-duplicated, non-nil role list.
func (c *Claims) normalized() *Claims {
	cp := *c
	cp.Roles = dedupeRoles(c.Roles)
	return &cp
}

func dedupeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}
