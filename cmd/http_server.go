package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/hrms-identity/api"
	"github.com/frahmantamala/hrms-identity/internal"
	"github.com/frahmantamala/hrms-identity/internal/auth"
	"github.com/frahmantamala/hrms-identity/internal/authz"
	"github.com/frahmantamala/hrms-identity/internal/core/events"
	"github.com/frahmantamala/hrms-identity/internal/obs"
	"github.com/frahmantamala/hrms-identity/internal/profile"
	"github.com/frahmantamala/hrms-identity/internal/provisioning"
	"github.com/frahmantamala/hrms-identity/internal/token"
	"github.com/frahmantamala/hrms-identity/internal/transport"
	"github.com/frahmantamala/hrms-identity/internal/transport/middleware"
	"github.com/frahmantamala/hrms-identity/internal/transport/rest"
	"github.com/frahmantamala/hrms-identity/internal/transport/swagger"
	userPostgres "github.com/frahmantamala/hrms-identity/internal/user/postgres"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server. In auth mode it issues tokens; in resource mode it only verifies them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer(cmd.Context())
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Redis    *goredis.Client
	EventBus *events.EventBus
	Router   *chi.Mux
	Logger   *slog.Logger
}

func (d *Dependencies) Close() {
	if d.EventBus != nil {
		d.EventBus.Wait()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("Database close error", "error", err)
		}
	}
}

func startHTTPServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	cfg := deps.Config.Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "mode", cfg.Mode)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig.String())
		shutdownCtx, cancel := internal.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	deps.Logger.Info("Server stopped")
	return nil
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := setupLogger(config.Observability.Logging)
	deps := &Dependencies{Config: config, Logger: lg, Router: chi.NewRouter()}

	if _, err := swagger.Load(ctx, api.OpenAPI); err != nil {
		return nil, err
	}

	signer, err := buildSigner(config.Security)
	if err != nil {
		return nil, fmt.Errorf("failed to build token signer: %w", err)
	}
	verifier, err := token.NewVerifier(signer, config.Security.Issuer)
	if err != nil {
		return nil, err
	}

	proxies, err := config.Server.ProxyNetworks()
	if err != nil {
		return nil, err
	}

	base := transport.NewBaseHandler(lg)
	routes := rest.Routes{
		Base:           base,
		Reconstructor:  authz.NewReconstructor(verifier),
		Profile:        profile.NewHandler(),
		AllowedOrigins: config.Server.AllowedOrigins,
		TrustedProxies: proxies,
		OpenAPI:        api.OpenAPI,
	}
	if config.Observability.Metrics.Enabled {
		obs.Register(nil)
		routes.MetricsPath = config.Observability.Metrics.Path
	}

	checks := map[string]rest.Pinger{}

	if config.Redis.Enabled {
		deps.Redis, err = newRedisClient(ctx, config.Redis)
		if err != nil {
			return nil, err
		}
		checks["redis"] = redisPinger{client: deps.Redis}
	}

	if config.Server.Mode == internal.ModeAuth {
		if err := wireAuthServer(deps, signer, verifier, &routes); err != nil {
			deps.Close()
			return nil, err
		}
		checks["postgres"] = deps.DB
	}

	routes.Health = rest.NewHealthHandler(config.Server.Mode, checks)
	rest.RegisterAllRoutes(deps.Router, routes)
	return deps, nil
}

func wireAuthServer(deps *Dependencies, signer token.Signer, verifier *token.Verifier, routes *rest.Routes) error {
	config := deps.Config
	db, err := initDB(config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.DB = db

	gdb, err := openGorm(db)
	if err != nil {
		return err
	}
	users := userPostgres.NewUserRepository(gdb)
	hasher := auth.NewBcryptHasher(config.Security.BCryptCost)

	issuer, err := buildIssuer(config.Security, signer)
	if err != nil {
		return fmt.Errorf("failed to build token issuer: %w", err)
	}

	svc, err := auth.NewService(users, hasher, issuer, verifier, buildRefreshGuard(*config, deps.Redis), deps.Logger)
	if err != nil {
		return err
	}
	routes.Auth = auth.NewHandler(svc)

	deps.EventBus = events.NewEventBus(deps.Logger)
	provisioning.NewProvisioner(users, hasher, deps.Logger).RegisterEventHandlers(deps.EventBus)
	routes.Provisioning = provisioning.NewHandler(deps.EventBus)

	if config.Server.RateLimit.Enabled {
		routes.RateLimiter = middleware.NewRateLimiter(routes.Base, config.Server.RateLimit.RequestsPerSecond, config.Server.RateLimit.Burst)
	}
	return nil
}
