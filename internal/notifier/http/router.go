// Package http is the notifier's HTTP surface. Every route except the probes
// trusts ACCESS tokens minted by the auth service and verified locally.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/identsync"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/slogx"
)

// IdentityCache is the part of the local identity table the handlers need.
type IdentityCache interface {
	Upsert(ctx context.Context, id identsync.AccountIdentity) (identsync.AccountIdentity, error)
	Ping(ctx context.Context) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	access       *authn.Verifier
	keys         *jwtx.KeySet
	cookies      httpx.CookieConfig
	cache        IdentityCache
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	// Revocation is the shared denylist store, nil when not configured.
	Revocation Pinger
}

func NewRouter(
	access *authn.Verifier,
	keys *jwtx.KeySet,
	cache IdentityCache,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		access:       access,
		keys:         keys,
		cookies:      httpx.CookieConfig{Names: authn.DefaultCookieNames},
		cache:        cache,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	return r
}

func (r *Router) ApplyRoutes() {
	me := &MeHandler{Cache: r.cache}
	r.Mux.Handle("GET /v1/me",
		httpx.Chain(http.HandlerFunc(me.HandleMe),
			httpx.AuthnMiddleware(r.access, &r.cookies),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	// The handshake authenticates from the CONNECT frame, not the upgrade
	ws := &StompHandler{Access: r.access, Cache: r.cache}
	r.Mux.Handle("GET /ws",
		httpx.Chain(ws.Handler(),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.cache, r.keys, r.Revocation),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /metrics", promhttp.Handler())
}

// ServeHTTP applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
