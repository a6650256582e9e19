package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-accounts/internal/audit"
	"github.com/nerrad567/gray-logic-accounts/internal/auth"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-accounts/internal/mail"
	"github.com/nerrad567/gray-logic-accounts/internal/ratelimit"
)

// Defaults applied by NewService to zero Options fields.
const (
	DefaultResetTokenTTL    = time.Hour
	DefaultOperationTimeout = 10 * time.Second
	DefaultTokenRetention   = 7 * 24 * time.Hour

	// verificationTokenBytes and resetTokenBytes size the random tokens
	// mailed to users.
	verificationTokenBytes = 32
	resetTokenBytes        = 32
)

// Metric actions and outcomes passed to Metrics.RecordAuthEvent.
const (
	metricRegister     = "register"
	metricVerify       = "verify_email"
	metricLogin        = "login"
	metricRefresh      = "refresh"
	metricRevoke       = "revoke"
	metricForgot       = "forgot_password"
	metricReset        = "reset_password"
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
	outcomeDuplicate   = "duplicate"
	outcomeRateLimited = "rate_limited"
	outcomeReuse       = "reuse_detected"
)

// Auditor records audit entries. *audit.Dispatcher satisfies it.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// Metrics counts authentication outcomes. *influxdb.Client satisfies it.
type Metrics interface {
	RecordAuthEvent(action, outcome string)
}

// Deps holds the collaborators of the Service. Mailer, Limiter, Audit and
// Metrics are optional.
type Deps struct {
	Accounts Repository
	Tokens   auth.TokenRepository
	Hasher   *auth.Hasher
	Issuer   *auth.Issuer
	Mailer   mail.Sender
	Limiter  ratelimit.Limiter
	Audit    Auditor
	Metrics  Metrics
	Logger   *logging.Logger
}

// Options tunes the Service. Zero values take the package defaults; a zero
// rule Limit disables that rate limit.
type Options struct {
	ResetTokenTTL    time.Duration
	OperationTimeout time.Duration
	TokenRetention   time.Duration
	LoginRule        ratelimit.Rule
	ResetRule        ratelimit.Rule
}

// Service implements the account lifecycle.
//
// Thread Safety: All methods are safe for concurrent use. Consistency under
// concurrent requests is delegated to the store's unique indexes and
// guarded updates.
type Service struct {
	accounts Repository
	tokens   auth.TokenRepository
	hasher   *auth.Hasher
	issuer   *auth.Issuer
	mailer   mail.Sender
	limiter  ratelimit.Limiter
	audit    Auditor
	metrics  Metrics
	logger   *logging.Logger
	opts     Options
	now      func() time.Time
}

// NewService creates a Service from deps.
func NewService(deps Deps, opts Options) (*Service, error) {
	switch {
	case deps.Accounts == nil:
		return nil, errors.New("account repository is required")
	case deps.Tokens == nil:
		return nil, errors.New("token repository is required")
	case deps.Hasher == nil:
		return nil, errors.New("password hasher is required")
	case deps.Issuer == nil:
		return nil, errors.New("token issuer is required")
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	}

	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = DefaultResetTokenTTL
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = DefaultOperationTimeout
	}
	if opts.TokenRetention <= 0 {
		opts.TokenRetention = DefaultTokenRetention
	}
	if opts.LoginRule.Name == "" {
		opts.LoginRule.Name = "login"
	}
	if opts.ResetRule.Name == "" {
		opts.ResetRule.Name = "reset"
	}

	s := &Service{
		accounts: deps.Accounts,
		tokens:   deps.Tokens,
		hasher:   deps.Hasher,
		issuer:   deps.Issuer,
		mailer:   deps.Mailer,
		limiter:  deps.Limiter,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With("component", "account"),
		opts:     opts,
		now:      time.Now,
	}
	if s.mailer == nil {
		s.mailer = mail.NewOutbox(deps.Logger)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.Noop{}
	}
	return s, nil
}

// SetClock replaces the time source. The issuer and token store keep their
// own clocks.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.OperationTimeout)
}

func (s *Service) record(ctx context.Context, e audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, e)
	}
}

func (s *Service) metric(action, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAuthEvent(action, outcome)
	}
}

// internal logs err and returns the generic internal failure.
func (s *Service) internal(ctx context.Context, op string, err error) *Error {
	s.logger.ErrorContext(ctx, "account operation failed", "op", op, "error", err)
	return InternalError(op, err)
}

// deliver sends msg. A failure is logged as a delivery error and swallowed:
// the state change that triggered the mail has already been committed.
func (s *Service) deliver(ctx context.Context, op string, msg mail.Message, buildErr error) {
	if buildErr != nil {
		s.logger.ErrorContext(ctx, "building mail", "op", op, "error", buildErr)
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		derr := DeliveryError(err)
		s.logger.WarnContext(ctx, "mail delivery failed",
			"op", op,
			"kind", derr.Kind.String(),
			"subject", msg.Subject,
			"error", err,
		)
	}
}

// allow applies rule to key. The limiter fails open when its store is
// unreachable.
func (s *Service) allow(ctx context.Context, rule ratelimit.Rule, key string) error {
	err := s.limiter.Allow(ctx, rule, key)
	if err == nil {
		return nil
	}

	var le *ratelimit.LimitError
	if errors.As(err, &le) {
		return RateLimitedError(le.RetryAfter, err)
	}
	if errors.Is(err, ratelimit.ErrUnavailable) {
		s.logger.WarnContext(ctx, "rate limiter unavailable, allowing request", "rule", rule.Name, "error", err)
		return nil
	}
	return s.internal(ctx, "rate limit "+rule.Name, err)
}

// authorize allows an actor to act on account id if it is that account or
// an Admin.
func authorize(actor Actor, id string) error {
	switch actor.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleUser:
		if actor.ID != "" && actor.ID == id {
			return nil
		}
		return AuthorizationError()
	default:
		return AuthorizationError()
	}
}

// lookup maps repository not-found errors to NotFoundError.
func (s *Service) lookup(ctx context.Context, id string) (*Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, NotFoundError(msgAccountNotFound)
	}
	if err != nil {
		return nil, s.internal(ctx, "get account", err)
	}
	return a, nil
}

// newAccountID returns a fresh opaque account ID.
func newAccountID() string {
	return "acc-" + uuid.NewString()
}
