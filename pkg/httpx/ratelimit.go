package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/retrade/authmesh/pkg/slogx"
)

var rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_rate_limited_total",
	Help: "Requests refused with 429, by limit profile.",
}, []string{"profile"})

// RateLimitConfig is a token bucket refilled at RequestsPerWindow per Window.
type RateLimitConfig struct {
	Name              string
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Profiles, each overridable through RATELIMIT_<NAME>_REQUESTS,
// RATELIMIT_<NAME>_WINDOW_SEC and RATELIMIT_<NAME>_BURST.
var (
	// StrictLimit guards credential checks: login, register, 2FA.
	StrictLimit = RateLimitConfig{Name: "strict", RequestsPerWindow: 5, Window: time.Minute, Burst: 5}
	// ModerateLimit covers refresh and account changes.
	ModerateLimit = RateLimitConfig{Name: "moderate", RequestsPerWindow: 20, Window: time.Minute, Burst: 20}
	// LenientLimit covers authenticated reads.
	LenientLimit = RateLimitConfig{Name: "lenient", RequestsPerWindow: 100, Window: time.Minute, Burst: 100}
	// PublicLimit covers JWKS and health, which dependent services poll.
	PublicLimit = RateLimitConfig{Name: "public", RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
)

func init() {
	for _, p := range []*RateLimitConfig{&StrictLimit, &ModerateLimit, &LenientLimit, &PublicLimit} {
		*p = RateLimitFromEnv(*p)
	}
}

type rateLimitEnv struct {
	Requests  int `env:"REQUESTS"`
	WindowSec int `env:"WINDOW_SEC"`
	Burst     int `env:"BURST"`
}

// RateLimitFromEnv applies the RATELIMIT_<NAME>_* overrides to def. Values
// that are missing, malformed or not positive keep the default.
func RateLimitFromEnv(def RateLimitConfig) RateLimitConfig {
	var e rateLimitEnv
	prefix := "RATELIMIT_" + strings.ToUpper(def.Name) + "_"
	if err := env.ParseWithOptions(&e, env.Options{Prefix: prefix}); err != nil {
		slog.Warn("ignoring malformed rate limit override", "profile", def.Name, "error", err)
		return def
	}

	out := def
	if e.Requests > 0 {
		out.RequestsPerWindow = e.Requests
	}
	if e.WindowSec > 0 {
		out.Window = time.Duration(e.WindowSec) * time.Second
	}
	if e.Burst > 0 {
		out.Burst = e.Burst
	}
	return out
}

// KeyExtractor picks the bucket a request is charged to. An empty key means
// the request is not limited.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor uses the first X-Forwarded-For hop, then X-Real-IP, then
// the peer address.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserIDKeyExtractor uses the authenticated subject.
func UserIDKeyExtractor(r *http.Request) string {
	return UserIDFromContext(r.Context())
}

// CompositeKeyExtractor joins the non-empty keys of every extractor.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

const maxKeyBodyBytes = 64 << 10

// JSONFieldKeyExtractor reads a top-level string field of a JSON body,
// lower-cased, and puts the body back for the handler.
func JSONFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxKeyBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) != nil {
			return ""
		}
		var v string
		if json.Unmarshal(fields[field], &v) != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds one limiter per key. Keys idle for longer than a full refill
// are dropped during the next sweep.
type buckets struct {
	mu        sync.Mutex
	byKey     map[string]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

func newBuckets(cfg RateLimitConfig) *buckets {
	return &buckets{
		byKey:     make(map[string]*bucket),
		limit:     rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:     cfg.Burst,
		idle:      cfg.Window,
		lastSweep: time.Now(),
	}
}

// reserve charges one token to key and returns how long the caller must wait
// before the next one, zero when the request may proceed.
func (b *buckets) reserve(key string, now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) > b.idle {
		for k, bk := range b.byKey {
			if now.Sub(bk.lastSeen) > b.idle {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	bk, ok := b.byKey[key]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.byKey[key] = bk
	}
	bk.lastSeen = now

	if bk.limiter.AllowN(now, 1) {
		return 0
	}
	r := bk.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return max(delay, time.Second)
}

// RateLimitMiddleware refuses requests over cfg with 429 and Retry-After.
func RateLimitMiddleware(cfg RateLimitConfig, keyOf KeyExtractor) Middleware {
	b := newBuckets(cfg)
	rejected := rejectionsTotal.WithLabelValues(cfg.Name)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)
			if key == "" {
				slogx.FromContext(r.Context()).Warn("rate limit key missing, request not limited", "profile", cfg.Name)
				next.ServeHTTP(w, r)
				return
			}

			wait := b.reserve(key, time.Now())
			if wait == 0 {
				next.ServeHTTP(w, r)
				return
			}

			rejected.Inc()
			retry := int((wait + time.Second - 1) / time.Second)
			slogx.FromContext(r.Context()).Warn("rate limit exceeded", "profile", cfg.Name, "retry_after", retry)

			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())
			ErrRateLimited.WriteError(w)
		})
	}
}

// RateLimitByIP limits per client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitByUser limits per authenticated account and address. It must run
// after AuthnMiddleware.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", UserIDKeyExtractor, IPKeyExtractor))
}

// RateLimitByIPAndJSONField limits per address and body field, so guessing
// one username does not lock out every other account behind the same NAT.
func RateLimitByIPAndJSONField(cfg RateLimitConfig, field string) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", IPKeyExtractor, JSONFieldKeyExtractor(field)))
}
