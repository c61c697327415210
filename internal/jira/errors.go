package jira

import (
	"fmt"
	"time"
)

// StatusError is a non-retryable upstream rejection (4xx other than 401
// and 429). The upstream status code and message are preserved for the
// caller.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("jira returned %d", e.Status)
	}
	return fmt.Sprintf("jira returned %d: %s", e.Status, e.Message)
}

// AuthError reports a credential rejected by the upstream after one forced
// re-resolution, ruling out a stale cache.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("jira rejected credentials (%d) after refresh", e.Status)
}

// RateLimitError reports upstream throttling. RetryAfter carries the
// upstream's hint when present, or the next computed backoff delay.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("jira rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "jira rate limit exceeded"
}

// TransientError reports a network failure or 5xx response. Retried by the
// client; surfaced only once retries are exhausted.
type TransientError struct {
	Status int // 0 for network-level failures
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("jira transient failure (%d)", e.Status)
	}
	return fmt.Sprintf("jira request failed: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
