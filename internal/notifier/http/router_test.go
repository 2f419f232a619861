package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	notifierhttp "github.com/retrade/authmesh/internal/notifier/http"
	"github.com/retrade/authmesh/internal/notifier/store/sqlite"
	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/revocation"
	"github.com/retrade/authmesh/pkg/tokens"
)

const accessSecret = "access-secret-access-secret-0123"

type testEnv struct {
	srv     *httptest.Server
	cache   *sqlite.Store
	issuer  *tokens.Issuer
	checker *revocation.Checker
}

// newEnv mints tokens the way the auth service does and verifies them the
// way a dependent service does: a separate KeySet holding the shared secret.
func newEnv(t *testing.T) *testEnv {
	t.Helper()

	static := func(secret string) *jwtx.Codec {
		km, err := jwtx.NewStaticKeyManager([]byte(secret))
		require.NoError(t, err)
		return jwtx.NewCodec(km, jwtx.CodecOptions{Issuer: "authmesh"})
	}
	checker := revocation.NewChecker(revocation.NewMemoryStore(), revocation.CheckerOptions{})
	issuer, err := tokens.NewIssuer(tokens.Config{
		Access:     static(accessSecret),
		Refresh:    static("refresh-secret-refresh-secret-012"),
		TwoFactor:  static("pending-secret-pending-secret-012"),
		Revocation: checker,
		Proof: tokens.ProofVerifierFunc(func(context.Context, string, string) error {
			return nil
		}),
	})
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSecret("", []byte(accessSecret)))
	access, err := authn.NewVerifier(authn.Config{
		Codec:      jwtx.NewVerifyingCodec(keys, jwtx.CodecOptions{Issuer: "authmesh"}),
		Revocation: checker,
	})
	require.NoError(t, err)

	cache, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	require.NoError(t, cache.ApplyMigrations())

	router := notifierhttp.NewRouter(access, keys, cache, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, cache: cache, issuer: issuer, checker: checker}
}

func (e *testEnv) login(t *testing.T, subject, username string) tokens.TokenSet {
	t.Helper()
	set, err := e.issuer.Issue(context.Background(), tokens.Principal{
		Subject:  subject,
		Username: username,
		Roles:    []string{"BUYER"},
	}, "", false)
	require.NoError(t, err)
	return set
}

func (e *testEnv) me(t *testing.T, bearer string) (*http.Response, notifierhttp.MeResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/v1/me", nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body notifierhttp.MeResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestMe(t *testing.T) {
	e := newEnv(t)
	set := e.login(t, "acc-alice", "alice")

	t.Run("requires a token", func(t *testing.T) {
		resp, _ := e.me(t, "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("refresh token refused", func(t *testing.T) {
		resp, _ := e.me(t, set.Raw(jwtx.KindRefresh))
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("seeds the cache", func(t *testing.T) {
		resp, body := e.me(t, set.Raw(jwtx.KindAccess))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "acc-alice", body.Subject)
		require.Equal(t, "alice", body.Username)
		require.Equal(t, []string{"BUYER"}, body.Roles)

		cached, err := e.cache.Get(context.Background(), "acc-alice")
		require.NoError(t, err)
		require.Equal(t, "alice", cached.Username)
	})

	t.Run("cached username wins over the token", func(t *testing.T) {
		require.NoError(t, e.cache.UpdateUsername(context.Background(), "acc-alice", "alice-renamed", time.Now()))

		_, body := e.me(t, set.Raw(jwtx.KindAccess))
		require.Equal(t, "alice-renamed", body.Username)
		require.Equal(t, "alice", body.TokenUsername)
	})

	t.Run("revoked session", func(t *testing.T) {
		require.NoError(t, e.checker.Revoke(context.Background(), set.SessionID, time.Now().Add(time.Hour)))
		resp, _ := e.me(t, set.Raw(jwtx.KindAccess))
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func dial(t *testing.T, e *testEnv) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", e.srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStompSession(t *testing.T) {
	e := newEnv(t)
	set := e.login(t, "acc-bob", "bob")

	t.Run("connect, subscribe and disconnect", func(t *testing.T) {
		conn := dial(t, e)
		w, r := frame.NewWriter(conn), frame.NewReader(conn)

		require.NoError(t, w.Write(frame.New(frame.CONNECT,
			frame.AcceptVersion, "1.2",
			frame.Host, "notifier",
			"Authorization", "Bearer "+set.Raw(jwtx.KindAccess),
		)))
		reply, err := r.Read()
		require.NoError(t, err)
		require.Equal(t, frame.CONNECTED, reply.Command)
		require.Equal(t, "bob", reply.Header.Get("user-name"))

		require.NoError(t, w.Write(frame.New(frame.SUBSCRIBE,
			frame.Id, "sub-0",
			frame.Destination, "/user/queue/notifications",
			frame.Receipt, "r-1",
		)))
		reply, err = r.Read()
		require.NoError(t, err)
		require.Equal(t, frame.RECEIPT, reply.Command)
		require.Equal(t, "r-1", reply.Header.Get(frame.ReceiptId))

		require.NoError(t, w.Write(frame.New(frame.DISCONNECT, frame.Receipt, "r-2")))
		reply, err = r.Read()
		require.NoError(t, err)
		require.Equal(t, frame.RECEIPT, reply.Command)
		require.Equal(t, "r-2", reply.Header.Get(frame.ReceiptId))

		cached, err := e.cache.Get(context.Background(), "acc-bob")
		require.NoError(t, err)
		require.Equal(t, "bob", cached.Username)
	})

	t.Run("token inside the leeway keeps the session", func(t *testing.T) {
		km, err := jwtx.NewStaticKeyManager([]byte(accessSecret))
		require.NoError(t, err)
		past := jwtx.NewCodec(km, jwtx.CodecOptions{
			Issuer: "authmesh",
			Now:    func() time.Time { return time.Now().Add(-time.Minute - 5*time.Second) },
		})
		var claims jwtx.Claims
		claims.Subject, claims.Username = "acc-carol", "carol"
		tok, err := past.Encode(claims, jwtx.KindAccess, time.Minute)
		require.NoError(t, err)
		require.True(t, tok.ExpiresAt.Before(time.Now()))

		conn := dial(t, e)
		w, r := frame.NewWriter(conn), frame.NewReader(conn)

		require.NoError(t, w.Write(frame.New(frame.CONNECT, frame.Passcode, tok.Raw)))
		reply, err := r.Read()
		require.NoError(t, err)
		require.Equal(t, frame.CONNECTED, reply.Command)

		require.NoError(t, w.Write(frame.New(frame.SUBSCRIBE,
			frame.Id, "sub-0",
			frame.Destination, "/user/queue/notifications",
			frame.Receipt, "r-1",
		)))
		reply, err = r.Read()
		require.NoError(t, err)
		require.Equal(t, frame.RECEIPT, reply.Command)
	})

	t.Run("bad token gets an ERROR frame", func(t *testing.T) {
		conn := dial(t, e)
		w, r := frame.NewWriter(conn), frame.NewReader(conn)

		require.NoError(t, w.Write(frame.New(frame.CONNECT, frame.Passcode, "not-a-token")))
		reply, err := r.Read()
		require.NoError(t, err)
		require.Equal(t, frame.ERROR, reply.Command)
		require.Equal(t, "unauthorized", reply.Header.Get(frame.Message))
	})
}

func TestHealth(t *testing.T) {
	e := newEnv(t)

	for _, path := range []string{"/livez", "/readyz", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(e.srv.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}
