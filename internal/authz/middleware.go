package authz

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/frahmantamala/hrms-identity/internal"
	"github.com/frahmantamala/hrms-identity/internal/token"
	"github.com/frahmantamala/hrms-identity/internal/transport"
	"github.com/frahmantamala/hrms-identity/pkg/logger"
)

// Authenticate puts the Principal from the bearer token on the request
// context, or answers 401.
func Authenticate(rec *Reconstructor) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(nil)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, err := rec.PrincipalFromToken(transport.BearerToken(r))
			if err != nil {
				logger.From(ctx).WarnContext(ctx, "authentication failed", "path", r.URL.Path, "error", err)
				base.WriteAppError(w, r, unauthorized(err))
				return
			}

			ctx = WithPrincipal(ctx, p)
			ctx = logger.With(ctx, "username", p.Username())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets the request through only if the principal holds name.
func RequireRole(name string) func(http.Handler) http.Handler {
	return RequireAnyRole(name)
}

// RequireAnyRole answers 401 without a principal and 403 when none of names match.
func RequireAnyRole(names ...string) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(nil)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := PrincipalFrom(ctx)
			if !ok {
				logger.From(ctx).WarnContext(ctx, "authorization check failed: no principal in context")
				base.WriteAppError(w, r, apperrors.ErrMissingToken)
				return
			}
			if !p.HasAnyRole(names...) {
				logger.From(ctx).WarnContext(ctx, "access denied: insufficient role",
					slog.String("username", p.Username()),
					slog.Any("required_roles", names),
					slog.Any("roles", p.Roles()))
				base.WriteAppError(w, r, apperrors.ErrInsufficientRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(err error) error {
	switch {
	case errors.Is(err, ErrMissingToken):
		return apperrors.ErrMissingToken
	case errors.Is(err, token.ErrExpiredToken):
		return apperrors.ErrTokenExpired
	default:
		return apperrors.ErrInvalidToken
	}
}
