package app_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retrade/authmesh/internal/notifier/app"
	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/jwtx"
)

func TestJWKSRefresher(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmEdDSA})
	require.NoError(t, err)

	var empty atomic.Bool
	var notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if empty.Load() {
			httpx.WriteJSON(w, http.StatusOK, jwtx.JWKS{Keys: []jwtx.JWK{}})
			return
		}
		etag := `"` + strings.Join(km.KeySet.KIDs(), ",") + `"`
		if r.Header.Get("If-None-Match") == etag {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		httpx.WriteJSON(w, http.StatusOK, km.KeySet.PublicJWKS())
	}))
	t.Cleanup(srv.Close)

	keys := jwtx.NewKeySet()
	r := app.NewJWKSRefresher(authsdk.NewSDKClient(srv.URL), keys, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	ctx := context.Background()

	codec := jwtx.NewCodec(km, jwtx.CodecOptions{Issuer: "authmesh"})
	verifier := jwtx.NewVerifyingCodec(keys, jwtx.CodecOptions{Issuer: "authmesh"})

	t.Run("loads the published keys", func(t *testing.T) {
		require.False(t, keys.IsReady())
		require.NoError(t, r.Refresh(ctx))
		require.Equal(t, km.KeySet.KIDs(), keys.KIDs())

		tok, err := codec.Encode(jwtx.Claims{Username: "alice"}, jwtx.KindAccess, time.Minute)
		require.NoError(t, err)
		_, err = verifier.Decode(tok.Raw)
		require.NoError(t, err)
	})

	t.Run("unchanged set is not reloaded", func(t *testing.T) {
		require.NoError(t, r.Refresh(ctx))
		require.EqualValues(t, 1, notModified.Load())
		require.Equal(t, km.KeySet.KIDs(), keys.KIDs())
	})

	t.Run("picks up a rotated key", func(t *testing.T) {
		_, err := km.Rotate()
		require.NoError(t, err)

		tok, err := codec.Encode(jwtx.Claims{Username: "alice"}, jwtx.KindAccess, time.Minute)
		require.NoError(t, err)
		_, err = verifier.Decode(tok.Raw)
		require.Error(t, err, "unknown kid before refresh")

		require.NoError(t, r.Refresh(ctx))
		require.Len(t, keys.KIDs(), 2)
		_, err = verifier.Decode(tok.Raw)
		require.NoError(t, err)
	})

	t.Run("empty set keeps previous keys", func(t *testing.T) {
		empty.Store(true)
		require.Error(t, r.Refresh(ctx))
		require.Len(t, keys.KIDs(), 2)
	})
}

func TestConfigValidate(t *testing.T) {
	secret := "YWNjZXNzLXNlY3JldC1hY2Nlc3Mtc2VjcmV0LTAxMjM=" // 32 bytes

	t.Run("needs a key source", func(t *testing.T) {
		cfg := app.Config{RevocationPolicy: "fail_closed"}
		require.Error(t, cfg.Validate())
	})

	t.Run("not both", func(t *testing.T) {
		cfg := app.Config{AuthURL: "http://auth:8080", AccessSecrets: []string{secret}, JWKSRefresh: time.Minute, RevocationPolicy: "fail_closed"}
		require.Error(t, cfg.Validate())
	})

	t.Run("shared secret", func(t *testing.T) {
		cfg := app.Config{AccessSecrets: []string{secret}, RevocationPolicy: "fail_open"}
		require.NoError(t, cfg.Validate())
	})

	t.Run("short secret", func(t *testing.T) {
		cfg := app.Config{AccessSecrets: []string{"c2hvcnQ="}, RevocationPolicy: "fail_closed"}
		require.Error(t, cfg.Validate())
	})

	t.Run("jwks", func(t *testing.T) {
		cfg := app.Config{AuthURL: "http://auth:8080", JWKSRefresh: time.Minute, RevocationPolicy: "fail_closed"}
		require.NoError(t, cfg.Validate())
	})

	t.Run("unknown policy", func(t *testing.T) {
		cfg := app.Config{AuthURL: "http://auth:8080", JWKSRefresh: time.Minute, RevocationPolicy: "maybe"}
		require.Error(t, cfg.Validate())
	})
}
