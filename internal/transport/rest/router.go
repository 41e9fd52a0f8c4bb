package rest

import (
	"net"
	"net/http"

	"github.com/go-chi/chi"

	apperrors "github.com/frahmantamala/hrms-identity/internal"
	"github.com/frahmantamala/hrms-identity/internal/auth"
	"github.com/frahmantamala/hrms-identity/internal/authz"
	"github.com/frahmantamala/hrms-identity/internal/obs"
	"github.com/frahmantamala/hrms-identity/internal/profile"
	"github.com/frahmantamala/hrms-identity/internal/provisioning"
	"github.com/frahmantamala/hrms-identity/internal/transport"
	"github.com/frahmantamala/hrms-identity/internal/transport/middleware"
	"github.com/frahmantamala/hrms-identity/internal/transport/swagger"
	"github.com/frahmantamala/hrms-identity/internal/user"
)

// Routes holds everything the router mounts. Handlers left nil are not
// mounted, which is how a resource server drops the identity endpoints.
type Routes struct {
	Base           *transport.BaseHandler
	Reconstructor  *authz.Reconstructor
	Health         *HealthHandler
	Auth           *auth.Handler
	Profile        *profile.Handler
	Provisioning   *provisioning.Handler
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins string
	TrustedProxies []*net.IPNet
	MetricsPath    string
	OpenAPI        []byte
}

func RegisterAllRoutes(router *chi.Mux, rt Routes) {
	// Apply global middleware
	router.Use(middleware.RealIP(rt.TrustedProxies))
	router.Use(middleware.CORS(rt.AllowedOrigins))
	router.Use(middleware.SecurityHeaders)
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery(rt.Base))
	router.Use(obs.Instrument)

	if rt.MetricsPath != "" {
		router.Handle(rt.MetricsPath, obs.Handler())
	}

	if len(rt.OpenAPI) > 0 {
		router.Handle(swagger.SpecPath, swagger.SpecHandler(rt.OpenAPI))
		router.Handle("/swagger/*", swagger.Handler())
	}

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		if rt.Health != nil {
			r.Get("/health", rt.Health.Health)
			r.Get("/ping", rt.Health.Ping)
		}

		if rt.Auth != nil {
			r.Route("/auth", func(ar chi.Router) {
				ar.Get("/health", rt.Auth.Health)
				ar.Group(func(lr chi.Router) {
					if rt.RateLimiter != nil {
						lr.Use(rt.RateLimiter.Middleware)
					}
					lr.Post("/register", rt.Auth.Register)
					lr.Post("/login", rt.Auth.Login)
					lr.Post("/refresh", rt.Auth.Refresh)
				})
			})
		}

		// Protected routes that require a valid access token
		r.Group(func(pr chi.Router) {
			pr.Use(authz.Authenticate(rt.Reconstructor))

			if rt.Profile != nil {
				pr.Route("/users", func(ur chi.Router) {
					ur.Get("/me", rt.Profile.Me)
					ur.Get("/me/employee-id", rt.Profile.MyEmployeeID)
					ur.With(authz.RequireRole(user.RoleAdmin.String())).Get("/admin", rt.Profile.Admin)
					ur.With(authz.RequireAnyRole(user.RoleHR.String(), user.RoleAdmin.String())).Get("/hr", rt.Profile.HR)
					ur.With(authz.RequireAnyRole(user.RoleManager.String(), user.RoleAdmin.String())).Get("/manager", rt.Profile.Manager)
				})
			}

			if rt.Provisioning != nil {
				pr.With(authz.RequireAnyRole(user.RoleHR.String(), user.RoleAdmin.String())).
					Post("/internal/events/employee-created", rt.Provisioning.PublishEmployeeCreated)
			}
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.Base.WriteAppError(w, r, apperrors.NewNotFoundError("resource not found", "ROUTE_NOT_FOUND"))
	})
}
