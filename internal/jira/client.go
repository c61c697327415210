// Package jira is the authenticated HTTP client for the upstream Jira
// Cloud REST API (v3): request signing, bounded retry with backoff,
// rate-limit handling, and typed failures.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/bobmcallan/jira-bridge/internal/cache"
	"github.com/bobmcallan/jira-bridge/internal/common"
	"github.com/bobmcallan/jira-bridge/internal/creds"
)

const apiPrefix = "/rest/api/3"

// maxResponseSize caps response bodies to prevent OOM from unexpectedly large responses.
const maxResponseSize = 50 << 20 // 50MB

// RetryPolicy bounds the client's retry behavior for throttled and
// transient failures. State is per-request; there are no global counters.
type RetryPolicy struct {
	Retries    uint // retries after the initial attempt
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

// DefaultRetryPolicy returns the production policy: 3 retries with delays
// 1s, 2s, 4s, capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:    3,
		BaseDelay:  time.Second,
		Multiplier: 2,
		MaxDelay:   30 * time.Second,
	}
}

// Client performs authenticated calls against the Jira REST API.
type Client struct {
	resolver   *creds.Resolver
	httpClient *http.Client
	logger     *common.Logger
	policy     RetryPolicy
	cache      *cache.ResponseCache
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithCacheTTL overrides the GET response cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = cache.New(ttl, 256) }
}

// New creates a Client over the given credential resolver.
func New(resolver *creds.Resolver, logger *common.Logger, opts ...Option) *Client {
	c := &Client{
		resolver: resolver,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
		policy: DefaultRetryPolicy(),
		cache:  cache.New(30*time.Second, 256),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// unauthorizedError marks a 401 observed before the forced credential
// refresh has been attempted. Never escapes the client.
type unauthorizedError struct {
	status int
}

func (e *unauthorizedError) Error() string {
	return fmt.Sprintf("jira returned %d", e.status)
}

// get performs a GET request. When cacheable, a fresh cached body is
// returned without a round-trip.
func (c *Client) get(ctx context.Context, path string, query url.Values, cacheable bool) ([]byte, error) {
	key := requestKey(path, query)
	if cacheable {
		if b, ok := c.cache.Get(key); ok {
			c.logger.Debug().Str("path", key).Msg("upstream cache hit")
			return b, nil
		}
	}
	body, err := c.do(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.cache.Set(key, body)
	}
	return body, nil
}

// post performs a POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, query url.Values, data interface{}) ([]byte, error) {
	return c.doJSON(ctx, http.MethodPost, path, query, data)
}

// put performs a PUT request with a JSON body.
func (c *Client) put(ctx context.Context, path string, query url.Values, data interface{}) ([]byte, error) {
	return c.doJSON(ctx, http.MethodPut, path, query, data)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, data interface{}) ([]byte, error) {
	var payload []byte
	if data != nil {
		var err error
		payload, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	return c.do(ctx, method, requestKey(path, query), payload)
}

// do sends one logical request, retrying throttled and transient failures
// under the client's policy. A 401 triggers exactly one credential
// re-resolution; a second rejection surfaces as AuthError.
func (c *Client) do(ctx context.Context, method, pathWithQuery string, payload []byte) ([]byte, error) {
	cred, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	refreshed := false
	body, err := retry.DoWithData(func() ([]byte, error) {
		b, err := c.attempt(ctx, cred, method, pathWithQuery, payload)

		var uerr *unauthorizedError
		if errors.As(err, &uerr) {
			if refreshed {
				return nil, &AuthError{Status: uerr.status}
			}
			refreshed = true
			c.logger.Warn().Str("path", pathWithQuery).Msg("credentials rejected, forcing re-resolution")
			c.resolver.Invalidate(cred)
			var rerr error
			cred, rerr = c.resolver.Resolve(ctx)
			if rerr != nil {
				return nil, rerr
			}
			b, err = c.attempt(ctx, cred, method, pathWithQuery, payload)
			if errors.As(err, &uerr) {
				return nil, &AuthError{Status: uerr.status}
			}
		}
		return b, err
	},
		retry.RetryIf(retryable),
		retry.Attempts(c.policy.Retries+1),
		retry.DelayType(retry.DelayTypeFunc(c.retryDelay)),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter == 0 {
			// No upstream hint: suggest the next backoff step.
			rl.RetryAfter = c.backoffDelay(c.policy.Retries)
		}
		return nil, err
	}
	return body, nil
}

// attempt performs a single HTTP exchange and classifies the outcome.
func (c *Client) attempt(ctx context.Context, cred creds.Credential, method, pathWithQuery string, payload []byte) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, cred.BaseURL+pathWithQuery, bodyReader)
	if err != nil {
		return nil, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(cred.Email + ":" + cred.APIToken))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error().Str("method", method).Str("path", pathWithQuery).Int64("duration_ms", duration.Milliseconds()).Str("error", err.Error()).Msg("upstream request failed")
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug().Str("method", method).Str("path", pathWithQuery).Int("status", resp.StatusCode).Int64("duration_ms", duration.Milliseconds()).Msg("upstream response")

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &unauthorizedError{status: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return nil, &TransientError{Status: resp.StatusCode}
	case resp.StatusCode >= 400:
		return nil, &StatusError{Status: resp.StatusCode, Message: parseErrorMessage(body)}
	}

	return body, nil
}

// retryable reports whether the client should retry after err. Throttling
// and transient failures retry; everything else surfaces immediately.
func retryable(err error) bool {
	var rl *RateLimitError
	var tr *TransientError
	return errors.As(err, &rl) || errors.As(err, &tr)
}

// retryDelay computes the wait before retry n (0-based). An upstream
// Retry-After hint wins over the exponential default.
func (c *Client) retryDelay(n uint, err error, _ *retry.Config) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		if rl.RetryAfter > c.policy.MaxDelay {
			return c.policy.MaxDelay
		}
		return rl.RetryAfter
	}
	return c.backoffDelay(n)
}

// backoffDelay is BaseDelay * Multiplier^n, capped at MaxDelay.
func (c *Client) backoffDelay(n uint) time.Duration {
	d := float64(c.policy.BaseDelay) * math.Pow(c.policy.Multiplier, float64(n))
	if max := float64(c.policy.MaxDelay); d > max {
		d = max
	}
	return time.Duration(d)
}

// requestKey joins path and encoded query into the canonical request path.
func requestKey(path string, query url.Values) string {
	if len(query) > 0 {
		return path + "?" + query.Encode()
	}
	return path
}

// parseRetryAfter parses a Retry-After header given in seconds.
func parseRetryAfter(h string) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	secs, err := strconv.Atoi(h)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// parseErrorMessage extracts a meaningful message from a Jira error body:
// {"errorMessages":[...],"errors":{"field":"problem"}}.
func parseErrorMessage(body []byte) string {
	var errResp struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		var parts []string
		parts = append(parts, errResp.ErrorMessages...)
		for field, msg := range errResp.Errors {
			parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
