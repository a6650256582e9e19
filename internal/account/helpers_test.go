package account

import (
	"context"
	"database/sql"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nerrad567/gray-logic-accounts/internal/audit"
	"github.com/nerrad567/gray-logic-accounts/internal/auth"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-accounts/internal/mail"
	"github.com/nerrad567/gray-logic-accounts/internal/ratelimit"
	_ "github.com/nerrad567/gray-logic-accounts/migrations"
)

const (
	testSecret   = "account-test-secret-at-least-32-chars"
	testIP       = "203.0.113.7"
	testPassword = "correct-horse"
)

// memAuditor collects audit entries synchronously.
type memAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memAuditor) Record(_ context.Context, e audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memAuditor) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

func (m *memAuditor) last(action string) (audit.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Action == action {
			return m.entries[i], true
		}
	}
	return audit.Entry{}, false
}

// memMetrics counts action/outcome pairs.
type memMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memMetrics) RecordAuthEvent(action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[action+"/"+outcome]++
}

func (m *memMetrics) count(action, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[action+"/"+outcome]
}

// fixture wires a Service over a temp-file database, an Outbox mailer and a
// miniredis-backed limiter, all sharing one controllable clock.
type fixture struct {
	svc      *Service
	db       *sql.DB
	accounts *SQLiteRepository
	tokens   *auth.SQLiteTokenRepository
	issuer   *auth.Issuer
	outbox   *mail.Outbox
	auditor  *memAuditor
	metrics  *memMetrics
	redis    *miniredis.Miniredis
	deps     Deps
	opts     Options

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "account-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	require.NoError(t, db.Migrate(context.Background()))
	return db.DB
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		db:      testDB(t),
		outbox:  mail.NewOutbox(nil),
		auditor: &memAuditor{},
		metrics: &memMetrics{},
		now:     time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	f.accounts = NewSQLiteRepository(f.db)
	f.tokens = auth.NewTokenRepository(f.db)
	f.tokens.SetClock(f.clock)

	var err error
	f.issuer, err = auth.NewIssuer(testSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	f.issuer.SetClock(f.clock)

	hasher, err := auth.NewHasher(auth.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	f.redis, err = miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(f.redis.Close)
	rdb := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
	t.Cleanup(func() { rdb.Close() }) //nolint:errcheck // test cleanup

	f.deps = Deps{
		Accounts: f.accounts,
		Tokens:   f.tokens,
		Hasher:   hasher,
		Issuer:   f.issuer,
		Mailer:   f.outbox,
		Limiter:  ratelimit.NewRedisLimiter(rdb, "test"),
		Audit:    f.auditor,
		Metrics:  f.metrics,
		Logger:   logging.Discard(),
	}
	f.opts = opts
	f.svc = f.serviceWith(t, f.accounts)
	return f
}

// serviceWith returns a second Service over the fixture's dependencies but
// reading and writing accounts through repo.
func (f *fixture) serviceWith(t *testing.T, repo Repository) *Service {
	t.Helper()

	deps := f.deps
	deps.Accounts = repo
	svc, err := NewService(deps, f.opts)
	require.NoError(t, err)
	svc.SetClock(f.clock)
	return svc
}

// interleavingRepo runs hook once, just after the first account lookup
// returns, standing in for a request that lands between a read and a write.
type interleavingRepo struct {
	Repository
	once sync.Once
	hook func()
}

func (r *interleavingRepo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	a, err := r.Repository.GetByEmail(ctx, email)
	r.once.Do(r.hook)
	return a, err
}

func (r *interleavingRepo) GetByID(ctx context.Context, id string) (*Account, error) {
	a, err := r.Repository.GetByID(ctx, id)
	r.once.Do(r.hook)
	return a, err
}

func registerInput(email string) RegisterInput {
	return RegisterInput{
		Title:           "Dr",
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
		AcceptTerms:     true,
	}
}

var codeToken = regexp.MustCompile(`<code>([0-9a-f]{16,})</code>`)

// mailedToken extracts the raw token from the last mail sent to to.
func (f *fixture) mailedToken(t *testing.T, to string) string {
	t.Helper()

	msgs := f.outbox.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].To != to {
			continue
		}
		m := codeToken.FindStringSubmatch(msgs[i].HTML)
		require.NotNil(t, m, "no token in mail %q", msgs[i].Subject)
		return m[1]
	}
	t.Fatalf("no mail sent to %s", to)
	return ""
}

// registerVerified registers and verifies email and returns the account.
func (f *fixture) registerVerified(t *testing.T, email string) *Account {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.svc.Register(ctx, registerInput(email), "", testIP))
	require.NoError(t, f.svc.VerifyEmail(ctx, f.mailedToken(t, email), testIP))

	a, err := f.accounts.GetByEmail(ctx, email)
	require.NoError(t, err)
	return a
}

func actorOf(a *Account) Actor {
	return Actor{ID: a.ID, Role: a.Role}
}
