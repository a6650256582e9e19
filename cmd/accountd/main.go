// accountd is the account management service.
//
// It serves registration, email verification, JWT authentication with
// rotating refresh tokens, password reset and account administration over a
// JSON HTTP API backed by SQLite.
//
// Optional infrastructure:
//   - Redis for login and password reset rate limiting
//   - SMTP for verification and reset mail
//   - MQTT for publishing audit events
//   - InfluxDB for authentication outcome metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/nerrad567/gray-logic-accounts/migrations"

	"github.com/nerrad567/gray-logic-accounts/internal/account"
	"github.com/nerrad567/gray-logic-accounts/internal/api"
	"github.com/nerrad567/gray-logic-accounts/internal/audit"
	"github.com/nerrad567/gray-logic-accounts/internal/auth"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-accounts/internal/mail"
	"github.com/nerrad567/gray-logic-accounts/internal/ratelimit"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// startupCheckTimeout bounds the infrastructure checks run before serving.
const startupCheckTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service together and blocks until ctx is cancelled.
// Deferred Close calls run in reverse order of construction.
func run(ctx context.Context) error { //nolint:funlen,gocognit // linear startup sequence
	log := logging.Default()
	log.Info("starting accountd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	checks := map[string]api.HealthChecker{"database": db}

	// Rate limiting
	var limiter ratelimit.Limiter = ratelimit.Noop{}
	if cfg.Security.RateLimit.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				log.Error("error closing redis client", "error", closeErr)
			}
		}()
		redisLimiter := ratelimit.NewRedisLimiter(rdb, cfg.Redis.KeyPrefix)
		limiter = redisLimiter
		checks["redis"] = redisLimiter
		log.Info("rate limiting enabled", "redis", cfg.Redis.Addr)
	} else {
		log.Warn("rate limiting disabled")
	}

	// Audit events over MQTT. The broker being down is not fatal: entries
	// are still persisted.
	var publisher audit.Publisher
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			log.Warn("mqtt connection failed, audit events will not be published", "error", mqttErr)
		} else {
			defer func() {
				log.Info("closing mqtt connection")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing mqtt", "error", closeErr)
				}
			}()
			mqttClient.SetLogger(log)
			publisher = mqttClient
			checks["mqtt"] = mqttClient
			log.Info("mqtt connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			)
		}
	}

	// Authentication metrics
	var metrics account.Metrics
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("influxdb disabled")
	case err != nil:
		log.Warn("influxdb connection failed, metrics disabled", "error", err)
	default:
		defer func() {
			log.Info("closing influxdb connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing influxdb", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(writeErr error) {
			log.Error("influxdb write error", "error", writeErr)
		})
		metrics = influxClient
		checks["influxdb"] = influxClient
		log.Info("influxdb connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	var mailer mail.Sender
	if cfg.SMTP.Enabled {
		mailer = mail.NewSMTPSender(cfg.SMTP)
		log.Info("smtp mail enabled", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
	} else {
		mailer = mail.NewOutbox(log)
		log.Warn("smtp disabled, outgoing mail is only logged")
	}

	hasher, err := auth.NewHasher(cfg.Security.Password.Algorithm, cfg.Security.Password.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}
	issuer, err := auth.NewIssuer(cfg.Security.JWT.Secret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}

	auditRepo := audit.NewSQLiteRepository(db.DB)
	dispatcher := audit.NewDispatcher(auditRepo, publisher, log)
	dispatcher.Start()
	defer dispatcher.Stop()

	deps := account.Deps{
		Accounts: account.NewSQLiteRepository(db.DB),
		Tokens:   auth.NewTokenRepository(db.DB),
		Hasher:   hasher,
		Issuer:   issuer,
		Mailer:   mailer,
		Limiter:  limiter,
		Audit:    dispatcher,
		Metrics:  metrics,
		Logger:   log,
	}
	accounts, err := account.NewService(deps, accountOptions(cfg))
	if err != nil {
		return fmt.Errorf("creating account service: %w", err)
	}

	server, err := api.New(api.Deps{
		Config:        cfg.API,
		Logger:        log,
		Accounts:      accounts,
		Issuer:        issuer,
		AuditRepo:     auditRepo,
		DB:            db,
		AuditStats:    dispatcher,
		Checks:        checks,
		PurgeInterval: time.Duration(cfg.Accounts.PurgeInterval) * time.Minute,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := healthCheck(ctx, checks, log); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("accountd started successfully")

	<-ctx.Done()
	log.Info("shutdown signal received, stopping services")

	return nil
}

// accountOptions converts the configured minutes, seconds and hours into the
// service's durations.
func accountOptions(cfg *config.Config) account.Options {
	opts := account.Options{
		ResetTokenTTL:    cfg.ResetTokenTTL(),
		OperationTimeout: time.Duration(cfg.Accounts.OperationTimeout) * time.Second,
		TokenRetention:   time.Duration(cfg.Accounts.TokenRetention) * time.Hour,
	}
	if rl := cfg.Security.RateLimit; rl.Enabled {
		opts.LoginRule = ratelimit.Rule{
			Name:   "login",
			Limit:  rl.LoginAttempts,
			Window: time.Duration(rl.LoginWindow) * time.Second,
		}
		opts.ResetRule = ratelimit.Rule{
			Name:   "reset",
			Limit:  rl.ResetAttempts,
			Window: time.Duration(rl.ResetWindow) * time.Second,
		}
	}
	return opts
}

// getConfigPath returns the configuration file path.
// Checks ACCOUNTD_CONFIG environment variable first, then uses default.
func getConfigPath() string {
	if path := os.Getenv("ACCOUNTD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure before serving traffic. Only the
// database is required; other components are logged when unhealthy.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker, log *logging.Logger) error {
	checkCtx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()

	for name, c := range checks {
		err := c.HealthCheck(checkCtx)
		switch {
		case err == nil:
		case name == "database":
			return fmt.Errorf("%s: %w", name, err)
		default:
			log.Warn("component unhealthy at startup", "component", name, "error", err)
		}
	}
	return nil
}
