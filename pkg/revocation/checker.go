package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/slogx"
)

var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "revocation_checks_total",
	Help: "Denylist lookups by outcome.",
}, []string{"outcome"})

const (
	outcomeAllowed     = "allowed"
	outcomeRevoked     = "revoked"
	outcomeCached      = "cached"
	outcomeUnavailable = "unavailable"
	outcomeFailOpen    = "fail_open"
)

// CheckerOptions configures a Checker.
type CheckerOptions struct {
	// Policy applies when the store errors. The zero value is FailClosed.
	Policy Policy

	// MaxStaleness bounds how long a lookup result is served from memory.
	// Zero disables caching of lookups; revocations made through the
	// Checker are still cached until they expire.
	MaxStaleness time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Checker answers "is this session revoked" for verifiers and the issuer.
// It is safe for concurrent use.
type Checker struct {
	store  Store
	policy Policy
	maxAge time.Duration
	now    func() time.Time

	cache sync.Map // sid -> cacheEntry
}

type cacheEntry struct {
	revoked bool
	expires time.Time
}

// NewChecker wraps store.
func NewChecker(store Store, opts CheckerOptions) *Checker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Checker{
		store:  store,
		policy: opts.Policy,
		maxAge: opts.MaxStaleness,
		now:    opts.Now,
	}
}

// Policy returns the configured failure policy.
func (c *Checker) Policy() Policy { return c.policy }

// Check returns nil when sessionID may be used, jwtx.ErrRevoked when it is
// denylisted, and jwtx.ErrRevocationUnavailable when the store failed under
// FailClosed. An empty session id is never checked.
func (c *Checker) Check(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	now := c.now()
	if v, ok := c.cache.Load(sessionID); ok {
		e := v.(cacheEntry)
		if now.Before(e.expires) {
			checksTotal.WithLabelValues(outcomeCached).Inc()
			if e.revoked {
				return jwtx.Wrap(jwtx.ErrorKindRevoked, fmt.Errorf("session %s", sessionID))
			}
			return nil
		}
		c.cache.Delete(sessionID)
	}

	revoked, err := c.store.IsRevoked(ctx, sessionID)
	if err != nil {
		if c.policy == FailOpen {
			checksTotal.WithLabelValues(outcomeFailOpen).Inc()
			slogx.FromContext(ctx).Warn("revocation store unavailable, accepting token",
				"policy", c.policy.String(),
				"error_kind", jwtx.ErrorKindRevocationUnavailable,
				"err", err,
			)
			return nil
		}
		checksTotal.WithLabelValues(outcomeUnavailable).Inc()
		return jwtx.Wrap(jwtx.ErrorKindRevocationUnavailable, err)
	}

	if c.maxAge > 0 {
		c.cache.Store(sessionID, cacheEntry{revoked: revoked, expires: now.Add(c.maxAge)})
	}

	if revoked {
		checksTotal.WithLabelValues(outcomeRevoked).Inc()
		return jwtx.Wrap(jwtx.ErrorKindRevoked, fmt.Errorf("session %s", sessionID))
	}
	checksTotal.WithLabelValues(outcomeAllowed).Inc()
	return nil
}

// Revoke writes through to the store and primes the cache, so this process
// observes the revocation immediately.
func (c *Checker) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if err := c.store.Revoke(ctx, sessionID, until); err != nil {
		return fmt.Errorf("revocation: revoke %s: %w", sessionID, err)
	}
	c.cache.Store(sessionID, cacheEntry{revoked: true, expires: until})
	return nil
}

// PurgeExpired forwards to the store when it supports purging and drops
// stale cache entries either way.
func (c *Checker) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	c.cache.Range(func(k, v any) bool {
		if !now.Before(v.(cacheEntry).expires) {
			c.cache.Delete(k)
		}
		return true
	})

	p, ok := c.store.(Purger)
	if !ok {
		return 0, nil
	}
	return p.PurgeExpired(ctx, now)
}
