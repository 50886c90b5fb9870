package orchestrator

import (
	"context"
	"strings"
	"time"
)

// TransientError is implemented by errors that carry enough detail for the
// stage-level retry policy to classify them.
type TransientError interface {
	error
	Retryable() bool
	HTTPStatus() int
	Code() string
}

var retryableHTTPStatuses = map[int]bool{
	0: true, 408: true, 409: true, 425: true, 429: true,
	500: true, 502: true, 503: true, 504: true,
}

var retryableCodes = map[string]bool{
	"ECONNRESET": true, "ETIMEDOUT": true, "ECONNREFUSED": true,
	"ENOTFOUND": true, "EAI_AGAIN": true,
	"UND_ERR_CONNECT_TIMEOUT": true, "UND_ERR_HEADERS_TIMEOUT": true, "UND_ERR_SOCKET": true,
}

var retryableMessageFragments = []string{
	"fetch failed", "network", "socket hang up", "timed out", "timeout",
	"connection reset", "temporarily unavailable",
}

// IsTransient decides whether err should be retried at the stage level, per
// §4.3's transient-failure classification: an explicit Retryable() true, a
// retryable HTTP-like status, a retryable error code, or a message fragment
// match.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if te, ok := err.(TransientError); ok {
		if te.Retryable() {
			return true
		}
		if retryableHTTPStatuses[te.HTTPStatus()] {
			return true
		}
		if retryableCodes[te.Code()] {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range retryableMessageFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// AbortError is raised when the run's abort signal fires between retry
// attempts or mid-backoff-sleep.
type AbortError struct{}

func (AbortError) Error() string { return "AbortError" }

// RetryPolicy configures the stage-level transient retry loop.
type RetryPolicy struct {
	MaxAttempts int           // default 3
	BaseDelay   time.Duration // default 1500ms
}

// DefaultRetryPolicy matches spec §4.3's defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 1500 * time.Millisecond}
}

// WithRetry runs fn up to policy.MaxAttempts times, backing off
// baseDelay·2^(attempt-1) between attempts, racing the sleep against
// ctx.Done(). A non-transient error or an exhausted retry budget is
// returned as-is; cancellation during a sleep or between attempts returns
// AbortError.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseDelay := policy.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 1500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return AbortError{}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			return lastErr
		}

		delay := baseDelay * time.Duration(1<<uint(attempt-1))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return AbortError{}
		}
	}
	return lastErr
}
