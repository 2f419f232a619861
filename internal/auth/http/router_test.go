package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/retrade/authmesh/internal/auth/domain"
	authhttp "github.com/retrade/authmesh/internal/auth/http"
	"github.com/retrade/authmesh/internal/auth/service"
	"github.com/retrade/authmesh/internal/auth/store/drivers/sqlite"
	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/revocation"
	"github.com/retrade/authmesh/pkg/tokens"
)

type testServer struct {
	*httptest.Server
	client    *authsdk.SDKClient
	bootstrap *service.BootstrapService
}

func init() {
	// Tests log in far more often than a person would.
	relaxed := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	httpx.StrictLimit = relaxed
	httpx.ModerateLimit = relaxed
	httpx.LenientLimit = relaxed
}

// serverOptions tweaks newServerWith. The zero value matches newServer(t, nil).
type serverOptions struct {
	accessKeys *jwtx.KeyManager

	// denylist replaces the store's own revoked_sessions table.
	denylist revocation.Store

	// revocationPing is reported by readiness as the shared denylist.
	revocationPing func(context.Context) error
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// newServer runs the full router. A nil accessKeys selects a shared secret.
func newServer(t *testing.T, accessKeys *jwtx.KeyManager) *testServer {
	t.Helper()
	return newServerWith(t, serverOptions{accessKeys: accessKeys})
}

func newServerWith(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	accessKeys := opts.accessKeys

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	static := func(secret string) *jwtx.KeyManager {
		km, err := jwtx.NewStaticKeyManager([]byte(secret))
		require.NoError(t, err)
		return km
	}
	if accessKeys == nil {
		accessKeys = static("access-secret-access-secret-0123")
	}
	keys := map[jwtx.Kind]*jwtx.KeyManager{
		jwtx.KindAccess:           accessKeys,
		jwtx.KindRefresh:          static("refresh-secret-refresh-secret-012"),
		jwtx.KindTwoFactorPending: static("pending-secret-pending-secret-012"),
	}
	codecs := map[jwtx.Kind]*jwtx.Codec{}
	keySets := map[jwtx.Kind]*jwtx.KeySet{}
	for kind, km := range keys {
		codecs[kind] = jwtx.NewCodec(km, jwtx.CodecOptions{Issuer: "authmesh"})
		keySets[kind] = km.KeySet
	}

	denylist := opts.denylist
	if denylist == nil {
		denylist = st.RevokedSessions()
	}
	checker := revocation.NewChecker(denylist, revocation.CheckerOptions{})
	mfa := &service.MFAService{Store: st, Issuer: "authmesh"}
	issuer, err := tokens.NewIssuer(tokens.Config{
		Access:     codecs[jwtx.KindAccess],
		Refresh:    codecs[jwtx.KindRefresh],
		TwoFactor:  codecs[jwtx.KindTwoFactorPending],
		Revocation: checker,
		Proof:      mfa,
	})
	require.NoError(t, err)

	access, err := authn.NewVerifier(authn.Config{Codec: codecs[jwtx.KindAccess], Revocation: checker})
	require.NoError(t, err)

	sessions := &service.SessionService{Store: st, Tokens: issuer, Revocation: checker}
	mfa.Sessions = sessions
	accounts := &service.AccountService{Store: st, Sessions: sessions}

	router := authhttp.NewRouter(access, keySets,
		httpx.CookieConfig{Names: authn.DefaultCookieNames},
		"test", st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router.Accounts = accounts
	router.Sessions = sessions
	router.MFAService = mfa
	router.KeyRotationService = &service.KeyRotationService{
		KeyManager: accessKeys,
		Scope:      jwtx.KindAccess,
	}
	if opts.revocationPing != nil {
		router.Revocation = pingFunc(opts.revocationPing)
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		Server:    srv,
		client:    authsdk.NewSDKClient(srv.URL),
		bootstrap: &service.BootstrapService{Store: st, Accounts: accounts},
	}
}

func requireStatus(t *testing.T, err error, status int) *httpx.APIError {
	t.Helper()
	var apiErr *httpx.APIError
	require.True(t, errors.As(err, &apiErr), "want *httpx.APIError, got %v", err)
	require.Equal(t, status, apiErr.StatusCode)
	return apiErr
}

func TestRegisterLoginAndMe(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)

	alice, err := srv.client.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, service.DefaultRoles, alice.Roles)
	require.False(t, alice.TwoFactorEnabled)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := srv.client.Register(ctx, "alice", "correct-horse")
		require.Equal(t, "username_taken", requireStatus(t, err, http.StatusConflict).Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := srv.client.Login(ctx, "alice", "wrong-horse")
		require.Equal(t, "invalid_credentials", requireStatus(t, err, http.StatusUnauthorized).Code)
	})

	t.Run("unknown account looks the same", func(t *testing.T) {
		_, _, err := srv.client.Login(ctx, "mallory", "wrong-horse")
		require.Equal(t, "invalid_credentials", requireStatus(t, err, http.StatusUnauthorized).Code)
	})

	t.Run("me", func(t *testing.T) {
		session, set, err := srv.client.Login(ctx, "alice", "correct-horse")
		require.NoError(t, err)
		require.False(t, set.TwoFactorRequired)
		require.True(t, session.HasRole("SELLER"))

		me, err := session.Me(ctx)
		require.NoError(t, err)
		require.Equal(t, alice.ID, me.Subject)
		require.Equal(t, "alice", me.Username)
		require.NotEmpty(t, me.SessionID)
	})

	t.Run("rename", func(t *testing.T) {
		session, _, err := srv.client.Login(ctx, "alice", "correct-horse")
		require.NoError(t, err)

		renamed, err := session.Rename(ctx, "alice_w")
		require.NoError(t, err)
		require.Equal(t, "alice_w", renamed.Username)

		_, _, err = srv.client.Login(ctx, "alice_w", "correct-horse")
		require.NoError(t, err)
	})
}

func TestUniformUnauthorized(t *testing.T) {
	srv := newServer(t, nil)

	for name, header := range map[string]string{
		"missing":   "",
		"malformed": "Bearer not-a-token",
		"basic":     "Basic YWxpY2U6cGFzcw==",
	} {
		t.Run(name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/auth/me", nil)
			require.NoError(t, err)
			if header != "" {
				req.Header.Set("Authorization", header)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, map[string]string{"error": "unauthorized"}, body)
		})
	}

	t.Run("refresh token as access", func(t *testing.T) {
		ctx := context.Background()
		_, err := srv.client.Register(ctx, "bob", "correct-horse")
		require.NoError(t, err)
		_, set, err := srv.client.Login(ctx, "bob", "correct-horse")
		require.NoError(t, err)

		session := srv.client.NewSession(tokens.TokenSet{Tokens: map[jwtx.Kind]jwtx.Token{
			jwtx.KindAccess: {Raw: set.Raw(jwtx.KindRefresh), Kind: jwtx.KindAccess},
		}})
		_, err = session.Me(ctx)
		requireStatus(t, err, http.StatusUnauthorized)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)

	_, err := srv.client.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	session, set, err := srv.client.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, session.Logout(ctx))

	_, err = session.Me(ctx)
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = srv.client.Refresh(ctx, set.Raw(jwtx.KindRefresh))
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)

	_, err := srv.client.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	_, set, err := srv.client.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	refreshed, err := srv.client.Refresh(ctx, set.Raw(jwtx.KindRefresh))
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.Raw(jwtx.KindAccess))
	require.Empty(t, refreshed.Raw(jwtx.KindRefresh))

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := srv.client.Refresh(ctx, set.Raw(jwtx.KindAccess))
		requireStatus(t, err, http.StatusUnauthorized)
	})

	t.Run("no credential", func(t *testing.T) {
		_, err := srv.client.Refresh(ctx, "")
		requireStatus(t, err, http.StatusUnauthorized)
	})
}

func TestTwoFactorLogin(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)

	_, err := srv.client.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	session, _, err := srv.client.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	enroll, err := session.EnrollTOTP(ctx)
	require.NoError(t, err)
	require.Contains(t, enroll.URL, "otpauth://")

	require.Error(t, session.EnableTOTP(ctx, "000000"))
	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, session.EnableTOTP(ctx, code))

	_, pending, err := srv.client.Login(ctx, "alice", "correct-horse")
	require.ErrorIs(t, err, authsdk.ErrTwoFactorRequired)
	require.True(t, pending.TwoFactorRequired)
	require.Empty(t, pending.Raw(jwtx.KindAccess))
	require.NotEmpty(t, pending.Raw(jwtx.KindTwoFactorPending))

	t.Run("pending token is not an access token", func(t *testing.T) {
		s := srv.client.NewSession(tokens.TokenSet{Tokens: map[jwtx.Kind]jwtx.Token{
			jwtx.KindAccess: {Raw: pending.Raw(jwtx.KindTwoFactorPending), Kind: jwtx.KindAccess},
		}})
		_, err := s.Me(ctx)
		requireStatus(t, err, http.StatusUnauthorized)
	})

	t.Run("wrong code", func(t *testing.T) {
		_, err := srv.client.CompleteTwoFactor(ctx, pending, "000000")
		require.Equal(t, "invalid_code", requireStatus(t, err, http.StatusUnauthorized).Code)
	})

	t.Run("right code", func(t *testing.T) {
		code, err := totp.GenerateCode(enroll.Secret, time.Now())
		require.NoError(t, err)

		full, err := srv.client.CompleteTwoFactor(ctx, pending, code)
		require.NoError(t, err)
		me, err := full.Me(ctx)
		require.NoError(t, err)
		require.Equal(t, "alice", me.Username)
	})
}

func TestCookies(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)

	_, err := srv.client.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	browser := &http.Client{Jar: jar}
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	resp, err := browser.Post(srv.URL+"/v1/auth/login", "application/json",
		strings.NewReader(`{"username":"alice","password":"correct-horse"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	names := map[string]string{}
	for _, c := range jar.Cookies(u) {
		names[c.Name] = c.Value
	}
	require.Contains(t, names, "ACCESS_TOKEN")
	require.Contains(t, names, "REFRESH_TOKEN")

	t.Run("cookie authenticates", func(t *testing.T) {
		resp, err := browser.Get(srv.URL + "/v1/auth/me")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("refresh cookie renews access", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/auth/me", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "ACCESS_TOKEN", Value: "expired"})
		req.AddCookie(&http.Cookie{Name: "REFRESH_TOKEN", Value: names["REFRESH_TOKEN"]})

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var renewed *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == "ACCESS_TOKEN" && c.Value != "" {
				renewed = c
			}
		}
		require.NotNil(t, renewed)
		require.True(t, renewed.HttpOnly)
		require.Equal(t, "/", renewed.Path)
	})

	t.Run("bad cookie is cleared", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/auth/me", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "ACCESS_TOKEN", Value: "garbage"})

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var cleared bool
		for _, c := range resp.Cookies() {
			if c.Name == "ACCESS_TOKEN" && c.MaxAge < 0 {
				cleared = true
			}
		}
		require.True(t, cleared)
	})

	t.Run("logout clears cookies", func(t *testing.T) {
		resp, err := browser.Post(srv.URL+"/v1/auth/logout", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Empty(t, jar.Cookies(u))
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)

	_, err := srv.client.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	first, _, err := srv.client.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	second, _, err := srv.client.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	require.Error(t, first.ChangePassword(ctx, "wrong-horse", "battery-staple"))
	require.NoError(t, first.ChangePassword(ctx, "correct-horse", "battery-staple"))

	_, err = second.Me(ctx)
	requireStatus(t, err, http.StatusUnauthorized)

	_, _, err = srv.client.Login(ctx, "alice", "battery-staple")
	require.NoError(t, err)
}

func TestKeys(t *testing.T) {
	ctx := context.Background()

	login := func(t *testing.T, srv *testServer) (admin, seller *authsdk.Session) {
		_, err := srv.bootstrap.Bootstrap(ctx, domain.BootstrapData{AdminUsername: "root", AdminPassword: "correct-horse"})
		require.NoError(t, err)
		_, err = srv.client.Register(ctx, "alice", "correct-horse")
		require.NoError(t, err)

		admin, _, err = srv.client.Login(ctx, "root", "correct-horse")
		require.NoError(t, err)
		seller, _, err = srv.client.Login(ctx, "alice", "correct-horse")
		require.NoError(t, err)
		return admin, seller
	}

	t.Run("shared secret", func(t *testing.T) {
		srv := newServer(t, nil)
		admin, seller := login(t, srv)

		_, err := seller.RotateKey(ctx)
		requireStatus(t, err, http.StatusForbidden)

		_, err = admin.RotateKey(ctx)
		requireStatus(t, err, http.StatusNotImplemented)

		jwks, err := srv.client.GetJWKS(ctx)
		require.NoError(t, err)
		require.Empty(t, jwks.Keys)
	})

	t.Run("ephemeral EdDSA", func(t *testing.T) {
		km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmEdDSA})
		require.NoError(t, err)
		srv := newServer(t, km)
		admin, seller := login(t, srv)

		before, etag, err := srv.client.GetJWKSIfChanged(ctx, "")
		require.NoError(t, err)
		require.Len(t, before.Keys, 1)
		require.NotEmpty(t, etag)

		unchanged, same, err := srv.client.GetJWKSIfChanged(ctx, etag)
		require.NoError(t, err)
		require.Nil(t, unchanged)
		require.Equal(t, etag, same)

		rotated, err := admin.RotateKey(ctx)
		require.NoError(t, err)
		require.True(t, rotated.NewKey.Current)

		after, newTag, err := srv.client.GetJWKSIfChanged(ctx, etag)
		require.NoError(t, err)
		require.NotEqual(t, etag, newTag)
		require.Len(t, after.Keys, 2)
		require.Equal(t, rotated.NewKey.Kid, after.Keys[0].Kid)

		// Tokens signed by the previous key still verify.
		_, err = seller.Me(ctx)
		require.NoError(t, err)

		keys, err := admin.ListKeys(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 2)
	})
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)

	live, err := srv.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := srv.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
	require.Empty(t, ready.Checks.Revocation)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("shared denylist reported", func(t *testing.T) {
		srv := newServerWith(t, serverOptions{revocationPing: func(context.Context) error { return nil }})
		ready, err := srv.client.GetReadiness(ctx)
		require.NoError(t, err)
		require.Equal(t, "ok", ready.Checks.Revocation)
	})

	t.Run("unreachable denylist is not ready", func(t *testing.T) {
		srv := newServerWith(t, serverOptions{revocationPing: func(context.Context) error {
			return errors.New("connection refused")
		}})
		_, err := srv.client.GetReadiness(ctx)
		requireStatus(t, err, http.StatusServiceUnavailable)
	})
}
