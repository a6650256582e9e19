package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is returned when a key has exhausted its window.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable wraps Redis failures. Callers decide whether to fail open.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// LimitError carries how long the caller should wait before retrying.
type LimitError struct {
	Rule       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s, retry after %s", ErrRateLimited, e.Rule, e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) hold.
func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}
