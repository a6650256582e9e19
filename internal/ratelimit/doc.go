// Package ratelimit throttles credential endpoints with fixed-window counters
// in Redis.
//
// The first hit in a window creates the counter and sets its TTL; later hits
// only increment it. Once the count exceeds the rule's limit, Allow returns
// an error wrapping ErrRateLimited until the key expires.
//
//	l := ratelimit.NewRedisLimiter(client, "accountd")
//	rule := ratelimit.Rule{Name: "login", Limit: 10, Window: 5 * time.Minute}
//	if err := l.Allow(ctx, rule, email+"|"+ip); err != nil { ... }
package ratelimit
