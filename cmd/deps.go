package cmd

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/hrms-identity/internal"
	"github.com/frahmantamala/hrms-identity/internal/auth"
	authRedis "github.com/frahmantamala/hrms-identity/internal/auth/redis"
	"github.com/frahmantamala/hrms-identity/internal/token"
	"github.com/frahmantamala/hrms-identity/pkg/logger"
)

func setupLogger(cfg internal.LoggingConfig) *slog.Logger {
	return logger.Setup(logger.Options{Format: cfg.Format, Level: cfg.Level})
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return dbConn, nil
}

// openGorm shares the sqlx pool with gorm.
func openGorm(db *sqlx.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return gdb, nil
}

func newRedisClient(ctx context.Context, cfg internal.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// redisPinger adapts the redis client to the health checker.
type redisPinger struct {
	client *goredis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func buildSigner(cfg internal.SecurityConfig) (token.Signer, error) {
	if cfg.UsesHMAC() {
		signer, err := token.NewHMACSigner([]byte(cfg.JWTSecret))
		if err != nil {
			return nil, err
		}
		return signer, nil
	}

	var err error
	var signer *token.RSASigner
	if cfg.JWTPrivateKey != "" {
		priv, perr := cfg.GetPrivateKey()
		if perr != nil {
			return nil, fmt.Errorf("load private key: %w", perr)
		}
		signer, err = token.NewRSASigner(priv, nil)
	} else {
		pub, perr := cfg.GetPublicKey()
		if perr != nil {
			return nil, fmt.Errorf("load public key: %w", perr)
		}
		signer, err = token.NewRSASigner(nil, pub)
	}
	if err != nil {
		return nil, err
	}
	return signer, nil
}

func buildIssuer(cfg internal.SecurityConfig, signer token.Signer) (*token.Issuer, error) {
	return token.NewIssuer(signer, token.Config{
		Issuer:     cfg.Issuer,
		AccessTTL:  cfg.AccessTokenDuration,
		RefreshTTL: cfg.RefreshTokenDuration,
	})
}

// buildRefreshGuard picks redis when a client is available so every replica
// sees the same spent tokens. A nil guard disables single use.
func buildRefreshGuard(cfg internal.Config, client *goredis.Client) auth.RefreshGuard {
	if !cfg.Security.RefreshSingleUse {
		return nil
	}
	if client != nil {
		return authRedis.NewRefreshGuard(client, cfg.Redis.KeyPrefix)
	}
	return auth.NewMemoryRefreshGuard()
}
