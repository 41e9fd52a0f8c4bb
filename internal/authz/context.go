package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrMissingEmployeeID = errors.New("no employee id for the current principal")

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func IsAuthenticated(ctx context.Context) bool {
	_, ok := PrincipalFrom(ctx)
	return ok
}

func CurrentUsername(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return "", false
	}
	return p.Username(), true
}

// CurrentRoles is empty, never nil, for anonymous requests.
func CurrentRoles(ctx context.Context) []string {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return []string{}
	}
	return p.Roles()
}

func HasRole(ctx context.Context, name string) bool {
	p, ok := PrincipalFrom(ctx)
	return ok && p.HasRole(name)
}

func HasAnyRole(ctx context.Context, names ...string) bool {
	p, ok := PrincipalFrom(ctx)
	return ok && p.HasAnyRole(names...)
}

func CurrentEmployeeID(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.EmployeeID()
}

func CurrentEmployeeIDOrErr(ctx context.Context) (uuid.UUID, error) {
	id, ok := CurrentEmployeeID(ctx)
	if !ok {
		return uuid.Nil, ErrMissingEmployeeID
	}
	return id, nil
}

func CurrentEmployeeName(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return "", false
	}
	return p.DisplayName()
}
