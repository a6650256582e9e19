package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/config"
)

const testJWTSecret = "test-secret-for-development-only-0123456789"

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("ACCOUNTD_CONFIG", path)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("ACCOUNTD_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_MissingSecret verifies the configuration is validated before
// anything is opened.
func TestRun_MissingSecret(t *testing.T) {
	writeConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "accounts.db")+`"
`)
	t.Setenv("ACCOUNTD_JWT_SECRET", "")

	err := run(context.Background())
	if err == nil {
		t.Fatal("run() should fail without a JWT secret")
	}
	if !strings.Contains(err.Error(), "security.jwt.secret") {
		t.Errorf("error = %v, want jwt secret validation failure", err)
	}
}

// TestRun_UnwritableDatabasePath verifies run fails when the database cannot
// be created.
func TestRun_UnwritableDatabasePath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}

	writeConfig(t, `
database:
  path: "`+filepath.Join(blocker, "accounts.db")+`"
security:
  jwt:
    secret: "`+testJWTSecret+`"
`)

	err := run(context.Background())
	if err == nil {
		t.Fatal("run() should fail when the database directory cannot be created")
	}
	if !strings.Contains(err.Error(), "opening database") {
		t.Errorf("error = %v, want opening database failure", err)
	}
}

// TestRun_StartsAndStops verifies a minimal configuration starts the server
// and shuts down cleanly when the context is cancelled.
func TestRun_StartsAndStops(t *testing.T) {
	port := freePort(t)
	writeConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "accounts.db")+`"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: `+strconv.Itoa(port)+`
logging:
  level: error
security:
  jwt:
    secret: "`+testJWTSecret+`"
  password:
    algorithm: bcrypt
    bcrypt_cost: 4
`)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 100*time.Millisecond)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("server did not start listening: %v (run: %v)", err, <-errCh)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("ACCOUNTD_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("ACCOUNTD_CONFIG", "/etc/accountd.yaml")
	if got := getConfigPath(); got != "/etc/accountd.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
}

func TestAccountOptions(t *testing.T) {
	cfg := &config.Config{}
	cfg.Accounts.ResetTokenTTL = 60
	cfg.Accounts.OperationTimeout = 10
	cfg.Accounts.TokenRetention = 24
	cfg.Security.RateLimit = config.RateLimitConfig{
		LoginAttempts: 10,
		LoginWindow:   300,
		ResetAttempts: 3,
		ResetWindow:   3600,
	}

	opts := accountOptions(cfg)
	if opts.ResetTokenTTL != time.Hour || opts.OperationTimeout != 10*time.Second || opts.TokenRetention != 24*time.Hour {
		t.Errorf("durations = %+v", opts)
	}
	if opts.LoginRule.Limit != 0 || opts.ResetRule.Limit != 0 {
		t.Errorf("rules should be zero while rate limiting is disabled: %+v", opts)
	}

	cfg.Security.RateLimit.Enabled = true
	opts = accountOptions(cfg)
	if opts.LoginRule.Limit != 10 || opts.LoginRule.Window != 5*time.Minute {
		t.Errorf("LoginRule = %+v", opts.LoginRule)
	}
	if opts.ResetRule.Limit != 3 || opts.ResetRule.Window != time.Hour {
		t.Errorf("ResetRule = %+v", opts.ResetRule)
	}
}
