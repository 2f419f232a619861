package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newAccessVerifier(t *testing.T) (*authn.Verifier, *jwtx.Codec) {
	t.Helper()
	km, err := jwtx.NewStaticKeyManager([]byte(strings.Repeat("x", 32)))
	require.NoError(t, err)
	codec := jwtx.NewCodec(km, jwtx.CodecOptions{})
	v, err := authn.NewVerifier(authn.Config{Codec: codec})
	require.NoError(t, err)
	return v, codec
}

func mint(t *testing.T, codec *jwtx.Codec, kind jwtx.Kind, roles ...string) jwtx.Token {
	t.Helper()
	tok, err := codec.Encode(jwtx.NewClaims("acc-1", "alice", roles, "sess-1"), kind, time.Minute)
	require.NoError(t, err)
	return tok
}

var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, _ := authn.IdentityFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"sub": id.Subject})
})

func TestAuthnMiddleware(t *testing.T) {
	v, codec := newAccessVerifier(t)
	cookies := &httpx.CookieConfig{Names: authn.DefaultCookieNames}
	h := httpx.Chain(whoami, httpx.AuthnMiddleware(v, cookies))

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mint(t, codec, jwtx.KindAccess).Raw)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "acc-1")
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "ACCESS_TOKEN", Value: mint(t, codec, jwtx.KindAccess).Raw})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("uniform 401", func(t *testing.T) {
		for name, value := range map[string]string{
			"missing":    "",
			"malformed":  "Bearer abc",
			"wrong kind": "Bearer " + mint(t, codec, jwtx.KindRefresh).Raw,
		} {
			t.Run(name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				if value != "" {
					req.Header.Set("Authorization", value)
				}
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)

				require.Equal(t, http.StatusUnauthorized, rec.Code)
				require.Equal(t, `Bearer error="invalid_token"`, rec.Header().Get("WWW-Authenticate"))
				require.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
			})
		}
	})

	t.Run("bad cookie is cleared", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "ACCESS_TOKEN", Value: "garbage"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		cleared := rec.Result().Cookies()
		require.Len(t, cleared, 1)
		require.Equal(t, "ACCESS_TOKEN", cleared[0].Name)
		require.Negative(t, cleared[0].MaxAge)
	})
}

func TestRequireAnyRole(t *testing.T) {
	v, codec := newAccessVerifier(t)
	h := httpx.Chain(whoami,
		httpx.AuthnMiddleware(v, nil),
		httpx.RequireAnyRole("ADMIN", "SUPPORT"),
	)

	call := func(roles ...string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mint(t, codec, jwtx.KindAccess, roles...).Raw)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, call("ADMIN").Code)
	require.Equal(t, http.StatusOK, call("SELLER", "SUPPORT").Code)

	rec := call("SELLER")
	require.Equal(t, http.StatusForbidden, rec.Code)
	var body httpx.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "forbidden", body.Code)
}

func TestRequireAllRoles(t *testing.T) {
	v, codec := newAccessVerifier(t)
	h := httpx.Chain(whoami, httpx.AuthnMiddleware(v, nil), httpx.RequireAllRoles("ADMIN", "SELLER"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mint(t, codec, jwtx.KindAccess, "ADMIN").Raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTokenCookies(t *testing.T) {
	cfg := httpx.CookieConfig{Names: authn.DefaultCookieNames, Domain: "example.com", Secure: true}
	tok := jwtx.Token{Raw: "abc", Kind: jwtx.KindRefresh, ExpiresAt: time.Now().Add(time.Hour)}

	rec := httptest.NewRecorder()
	httpx.SetTokenCookie(rec, cfg, tok)
	httpx.ClearTokenCookie(rec, cfg, jwtx.KindTwoFactorPending)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	set := cookies[0]
	require.Equal(t, "REFRESH_TOKEN", set.Name)
	require.Equal(t, "abc", set.Value)
	require.Equal(t, "/", set.Path)
	require.True(t, set.HttpOnly)
	require.True(t, set.Secure)
	require.Equal(t, http.SameSiteNoneMode, set.SameSite)
	require.InDelta(t, time.Hour.Seconds(), float64(set.MaxAge), 5)

	cleared := cookies[1]
	require.Equal(t, "TWO_FA_TOKEN", cleared.Name)
	require.Negative(t, cleared.MaxAge)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("first"), mark("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":" Alice ","password":"x"}`))
	key := httpx.JSONFieldKeyExtractor("username")(req)
	require.Equal(t, "alice", key)

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	require.NoError(t, httpx.DecodeJSON(req, &body, false), "body is restored for the handler")
	require.Equal(t, "x", body.Password)

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	require.Empty(t, httpx.JSONFieldKeyExtractor("username")(bad))
}
