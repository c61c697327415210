// Package creds resolves and caches the upstream Jira credential.
// Resolution is single-flight: concurrent invocations hitting an empty or
// invalidated cache share one resolution instead of each re-resolving.
package creds

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/jira-bridge/internal/config"
)

// Credential is the authentication material for the upstream API.
// Shared read-only across concurrent invocations once resolved.
type Credential struct {
	BaseURL  string
	Email    string
	APIToken string
	Expiry   time.Time // zero means no expiry (API tokens)
}

// Expired reports whether the credential has passed its expiry.
func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && now.After(c.Expiry)
}

// ConfigError reports missing upstream configuration. Fatal until an
// operator supplies the named environment values.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing Jira configuration: %s", strings.Join(e.Missing, ", "))
}

// Source produces a Credential, typically from configuration.
type Source func() (Credential, error)

// FromConfig builds a Source over the loaded Jira settings. The settings
// are normally environment-supplied (JIRA_URL, JIRA_EMAIL, JIRA_API_TOKEN).
func FromConfig(cfg config.JiraConfig) Source {
	return func() (Credential, error) {
		var missing []string
		if cfg.URL == "" {
			missing = append(missing, "JIRA_URL")
		}
		if cfg.Email == "" {
			missing = append(missing, "JIRA_EMAIL")
		}
		if cfg.APIToken == "" {
			missing = append(missing, "JIRA_API_TOKEN")
		}
		if len(missing) > 0 {
			return Credential{}, &ConfigError{Missing: missing}
		}
		return Credential{
			BaseURL:  strings.TrimRight(cfg.URL, "/"),
			Email:    cfg.Email,
			APIToken: cfg.APIToken,
		}, nil
	}
}

// Resolver caches a resolved Credential for the process lifetime and
// re-resolves it on demand after invalidation.
type Resolver struct {
	source Source
	group  singleflight.Group
	mu     sync.RWMutex
	cached *Credential
}

// NewResolver creates a Resolver over the given source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the cached credential, or resolves one via the source.
// Concurrent callers with a cold cache share a single resolution. The
// resolving call runs detached from ctx so a cancelled waiter never leaves
// the single-flight slot held; other waiters still receive the result.
func (r *Resolver) Resolve(ctx context.Context) (Credential, error) {
	if c, ok := r.cachedValid(); ok {
		return c, nil
	}

	ch := r.group.DoChan("credential", func() (interface{}, error) {
		// Recheck inside the flight: a concurrent caller may have
		// completed resolution between our cache miss and here.
		if c, ok := r.cachedValid(); ok {
			return c, nil
		}
		cred, err := r.source()
		if err != nil {
			return Credential{}, err
		}
		r.mu.Lock()
		r.cached = &cred
		r.mu.Unlock()
		return cred, nil
	})

	select {
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	}
}

// Invalidate clears the cache if it still holds the rejected credential.
// A credential resolved after the rejection is left in place.
func (r *Resolver) Invalidate(rejected Credential) {
	r.mu.Lock()
	if r.cached != nil && r.cached.Email == rejected.Email && r.cached.APIToken == rejected.APIToken {
		r.cached = nil
	}
	r.mu.Unlock()
}

func (r *Resolver) cachedValid() (Credential, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cached != nil && !r.cached.Expired(time.Now()) {
		return *r.cached, true
	}
	return Credential{}, false
}
