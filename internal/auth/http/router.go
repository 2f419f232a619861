package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/retrade/authmesh/api/auth" // Swagger docs
	"github.com/retrade/authmesh/internal/auth/service"
	"github.com/retrade/authmesh/internal/auth/store"
	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	access       *authn.Verifier
	keys         map[jwtx.Kind]*jwtx.KeySet
	cookies      httpx.CookieConfig
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store              store.Store
	Accounts           *service.AccountService
	Sessions           *service.SessionService
	MFAService         *service.MFAService
	KeyRotationService *service.KeyRotationService

	// Revocation is the shared denylist, nil when revocations stay in store.
	Revocation interface{ Ping(context.Context) error }
}

// NewRouter builds a router. access verifies ACCESS tokens, keys holds the
// verification keys of every kind and keys[jwtx.KindAccess] is published as
// the JWKS.
func NewRouter(
	access *authn.Verifier,
	keys map[jwtx.Kind]*jwtx.KeySet,
	cookies httpx.CookieConfig,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		access:       access,
		keys:         keys,
		cookies:      cookies,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccounts()
	r.registerSession()
	r.registerMFA()
	r.registerKeyRotation()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Retrade Authentication Service API
//	@version		0.1.0
//	@description	Session tokens for the Retrade marketplace.
//	@description
//	@description				ACCESS tokens verify offline against the JWKS endpoint or a shared secret.
//
//	@contact.name				Retrade Platform Team
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authed verifies the ACCESS token from the bearer header or cookie.
func (r *Router) authed(h http.Handler, extra ...httpx.Middleware) http.Handler {
	return httpx.Chain(h, append([]httpx.Middleware{httpx.AuthnMiddleware(r.access, &r.cookies)}, extra...)...)
}

func (r *Router) registerAccounts() {
	h := &AccountsHandler{Accounts: r.Accounts}

	// Public signup - strict rate limit by IP
	r.Mux.Handle("POST /v1/accounts",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("PUT /v1/accounts/me/username",
		r.authed(http.HandlerFunc(h.HandleRename), httpx.RateLimitByUser(httpx.ModerateLimit)),
	)

	// Password checks are brute-forceable, so strict
	r.Mux.Handle("POST /v1/auth/password",
		r.authed(http.HandlerFunc(h.HandleChangePassword), httpx.RateLimitByUser(httpx.StrictLimit)),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{
		Sessions: r.Sessions,
		Access:   r.access,
		Cookies:  r.cookies,
	}

	// Rate limited by IP + username to slow credential stuffing
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "username"),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// The pending token is not an ACCESS token, so the caller is keyed by IP
	r.Mux.Handle("POST /v1/auth/2fa/complete",
		httpx.Chain(http.HandlerFunc(h.HandleCompleteTwoFactor),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout", r.authed(http.HandlerFunc(h.HandleLogout)))

	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			h.RenewingAuthn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /v1/mfa/totp/enroll",
		r.authed(http.HandlerFunc(h.HandleEnroll), httpx.RateLimitByUser(httpx.ModerateLimit)),
	)

	// Strict to stop brute force of TOTP codes
	r.Mux.Handle("POST /v1/mfa/totp/enable",
		r.authed(http.HandlerFunc(h.HandleEnable), httpx.RateLimitByUser(httpx.StrictLimit)),
	)
	r.Mux.Handle("DELETE /v1/mfa/totp",
		r.authed(http.HandlerFunc(h.HandleDisable), httpx.RateLimitByUser(httpx.StrictLimit)),
	)
}

func (r *Router) registerKeyRotation() {
	h := &KeyRotationHandler{KeyRotationService: r.KeyRotationService}

	r.Mux.Handle("POST /v1/keys/rotate",
		r.authed(http.HandlerFunc(h.HandleRotate),
			httpx.RequireAnyRole(service.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/keys",
		r.authed(http.HandlerFunc(h.HandleListKeys),
			httpx.RequireAnyRole(service.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Public endpoint with high limit; verifiers poll it
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys[jwtx.KindAccess]),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.Revocation),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /metrics", promhttp.Handler())
}
