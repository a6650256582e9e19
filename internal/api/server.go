package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-accounts/internal/account"
	"github.com/nerrad567/gray-logic-accounts/internal/audit"
	"github.com/nerrad567/gray-logic-accounts/internal/auth"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by every infrastructure component whose state
// is reported by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Accounts *account.Service
	Issuer   *auth.Issuer

	// AuditRepo backs GET /audit. Optional.
	AuditRepo audit.Repository

	// DB and AuditStats are reported by /metrics. Optional.
	DB         *database.DB
	AuditStats AuditStats

	// Checks are reported by /health, keyed by component name. A failing
	// check degrades the status but does not fail the request.
	Checks map[string]HealthChecker

	// PurgeInterval is how often expired refresh tokens are deleted. Zero
	// disables the purge loop.
	PurgeInterval time.Duration

	Version string
}

// Server is the HTTP API server for the account service.
//
// It is created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	logger        *logging.Logger
	accounts      *account.Service
	issuer        *auth.Issuer
	auditRepo     audit.Repository
	db            *database.DB
	auditStats    AuditStats
	checks        map[string]HealthChecker
	purgeInterval time.Duration
	version       string
	startTime     time.Time

	server *http.Server
	cancel context.CancelFunc // stops the purge loop on Close()
	done   chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Accounts == nil {
		return nil, fmt.Errorf("account service is required")
	}
	if deps.Issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}

	return &Server{
		cfg:           deps.Config,
		logger:        deps.Logger.With("component", "api"),
		accounts:      deps.Accounts,
		issuer:        deps.Issuer,
		auditRepo:     deps.AuditRepo,
		db:            deps.DB,
		auditStats:    deps.AuditStats,
		checks:        deps.Checks,
		purgeInterval: deps.PurgeInterval,
		version:       deps.Version,
		startTime:     time.Now(),
	}, nil
}

// Handler returns the fully wired router. Start uses it; tests may serve it
// directly with httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections and launches the token purge
// loop. The listener runs in a background goroutine until Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.done = make(chan struct{})
	go s.purgeLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// purgeLoop deletes long-expired refresh tokens every purgeInterval until
// ctx is cancelled.
func (s *Server) purgeLoop(ctx context.Context) {
	defer close(s.done)
	if s.purgeInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.accounts.PurgeExpiredTokens(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("refresh token purge failed", "error", err)
			}
		}
	}
}
