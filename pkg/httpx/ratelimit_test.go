package httpx_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/httpx"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func hit(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func fromIP(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":40000"
	return req
}

func TestIPKeyExtractor(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"peer address", "10.0.0.7:5555", nil, "10.0.0.7"},
		{"peer without port", "10.0.0.7", nil, "10.0.0.7"},
		{"first forwarded hop", "10.0.0.7:5555", map[string]string{"X-Forwarded-For": " 203.0.113.9 , 10.0.0.1"}, "203.0.113.9"},
		{"empty forwarded hop", "10.0.0.7:5555", map[string]string{"X-Forwarded-For": ",10.0.0.1", "X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"real ip", "10.0.0.7:5555", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, httpx.IPKeyExtractor(req))
		})
	}
}

func TestCompositeKeyExtractor(t *testing.T) {
	static := func(s string) httpx.KeyExtractor { return func(*http.Request) string { return s } }
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	require.Equal(t, "a|b", httpx.CompositeKeyExtractor("|", static("a"), static(""), static("b"))(req))
	require.Empty(t, httpx.CompositeKeyExtractor("|", static(""))(req))
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := httpx.RateLimitConfig{Name: "test", RequestsPerWindow: 3, Window: time.Hour, Burst: 3}
	h := httpx.Chain(noContent, httpx.RateLimitByIP(cfg))

	for i := range 3 {
		require.Equal(t, http.StatusNoContent, hit(h, fromIP("10.0.0.1")).Code, "request %d", i+1)
	}

	t.Run("over the limit", func(t *testing.T) {
		rec := hit(h, fromIP("10.0.0.1"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
		require.NoError(t, err)
		require.Greater(t, retry, 60, "one token per 20 minutes")
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))

		var body httpx.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Equal(t, "rate_limit_exceeded", body.Code)
	})

	t.Run("other clients unaffected", func(t *testing.T) {
		require.Equal(t, http.StatusNoContent, hit(h, fromIP("10.0.0.2")).Code)
	})

	t.Run("missing key is not limited", func(t *testing.T) {
		none := httpx.Chain(noContent, httpx.RateLimitMiddleware(cfg, func(*http.Request) string { return "" }))
		for range 10 {
			require.Equal(t, http.StatusNoContent, hit(none, fromIP("10.0.0.1")).Code)
		}
	})
}

func TestRateLimitByIPAndJSONField(t *testing.T) {
	cfg := httpx.RateLimitConfig{Name: "login", RequestsPerWindow: 2, Window: time.Hour, Burst: 2}

	var seen []string
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = append(seen, string(b))
		w.WriteHeader(http.StatusNoContent)
	})
	h := httpx.Chain(echo, httpx.RateLimitByIPAndJSONField(cfg, "username"))

	login := func(username string) int {
		body := `{"username":"` + username + `","password":"hunter2hunter2"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
		req.RemoteAddr = "10.0.0.1:1234"
		return hit(h, req).Code
	}

	require.Equal(t, http.StatusNoContent, login("alice"))
	require.Equal(t, http.StatusNoContent, login("Alice "))
	require.Equal(t, http.StatusTooManyRequests, login("ALICE"))
	require.Equal(t, http.StatusNoContent, login("bob"), "same address, other account")

	require.Len(t, seen, 3)
	require.Contains(t, seen[0], `"password":"hunter2hunter2"`, "body is restored")
}

func TestRateLimitByUser(t *testing.T) {
	cfg := httpx.RateLimitConfig{Name: "user", RequestsPerWindow: 1, Window: time.Hour, Burst: 1}
	h := httpx.Chain(noContent, httpx.RateLimitByUser(cfg))

	as := func(subject string) *http.Request {
		req := fromIP("10.0.0.1")
		return req.WithContext(authn.WithIdentity(req.Context(), authn.Identity{Subject: subject}))
	}

	require.Equal(t, http.StatusNoContent, hit(h, as("acc-1")).Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, as("acc-1")).Code)
	require.Equal(t, http.StatusNoContent, hit(h, as("acc-2")).Code)
}

func TestRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{Name: "probe", RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	t.Run("no overrides", func(t *testing.T) {
		require.Equal(t, def, httpx.RateLimitFromEnv(def))
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("RATELIMIT_PROBE_REQUESTS", "50")
		t.Setenv("RATELIMIT_PROBE_WINDOW_SEC", "30")
		t.Setenv("RATELIMIT_PROBE_BURST", "7")

		got := httpx.RateLimitFromEnv(def)
		require.Equal(t, 50, got.RequestsPerWindow)
		require.Equal(t, 30*time.Second, got.Window)
		require.Equal(t, 7, got.Burst)
	})

	t.Run("non-positive keeps default", func(t *testing.T) {
		t.Setenv("RATELIMIT_PROBE_BURST", "0")
		t.Setenv("RATELIMIT_PROBE_REQUESTS", "-3")
		require.Equal(t, def, httpx.RateLimitFromEnv(def))
	})

	t.Run("malformed keeps default", func(t *testing.T) {
		t.Setenv("RATELIMIT_PROBE_REQUESTS", "lots")
		require.Equal(t, def, httpx.RateLimitFromEnv(def))
	})
}

func TestRateLimitProfiles(t *testing.T) {
	for _, p := range []httpx.RateLimitConfig{httpx.StrictLimit, httpx.ModerateLimit, httpx.LenientLimit, httpx.PublicLimit} {
		require.NotEmpty(t, p.Name)
		require.Positive(t, p.RequestsPerWindow)
		require.Positive(t, p.Burst)
		require.Positive(t, p.Window)
	}
	require.Less(t, httpx.StrictLimit.RequestsPerWindow, httpx.ModerateLimit.RequestsPerWindow)
}
