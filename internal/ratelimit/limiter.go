package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is a named attempt budget.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Limiter checks and records attempts.
type Limiter interface {
	// Allow records one attempt for key under rule and fails once the
	// window's budget is spent.
	Allow(ctx context.Context, rule Rule, key string) error

	// Reset clears the counter for key, e.g. after a successful login.
	Reset(ctx context.Context, rule Rule, key string) error
}

// RedisLimiter implements Limiter with INCR and EXPIRE NX in one MULTI.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLimiter returns a limiter storing counters under prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, rule Rule, key string) error {
	if rule.Limit <= 0 {
		return nil
	}
	k := l.key(rule, key)

	// Fixed window: NX keeps the expiry set by the first hit, and a counter
	// left without one by an interrupted earlier call still gets it.
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, rule.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	count := incr.Val()

	if count <= int64(rule.Limit) {
		return nil
	}

	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		ttl = rule.Window
	}
	return &LimitError{Rule: rule.Name, RetryAfter: ttl}
}

// Reset implements Limiter.
func (l *RedisLimiter) Reset(ctx context.Context, rule Rule, key string) error {
	if err := l.client.Del(ctx, l.key(rule, key)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// HealthCheck pings Redis.
func (l *RedisLimiter) HealthCheck(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (l *RedisLimiter) key(rule Rule, key string) string {
	return l.prefix + ":rl:" + rule.Name + ":" + strings.ToLower(key)
}

// Noop never limits. It is used when rate limiting is disabled.
type Noop struct{}

// Allow implements Limiter.
func (Noop) Allow(context.Context, Rule, string) error { return nil }

// Reset implements Limiter.
func (Noop) Reset(context.Context, Rule, string) error { return nil }
