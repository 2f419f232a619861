package authn_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/revocation"
	"github.com/retrade/authmesh/pkg/tokens"
	"github.com/stretchr/testify/require"
)

type env struct {
	issuer  *tokens.Issuer
	checker *revocation.Checker
	access  *authn.Verifier
	refresh *authn.Verifier
}

// newEnv builds an issuer plus verifiers sharing its per-kind codecs, the
// way the auth service wires itself.
func newEnv(t *testing.T) *env {
	t.Helper()

	codec := func(fill string) *jwtx.Codec {
		km, err := jwtx.NewStaticKeyManager([]byte(strings.Repeat(fill, 32)))
		require.NoError(t, err)
		return jwtx.NewCodec(km, jwtx.CodecOptions{Issuer: "auth"})
	}
	access, refresh, pending := codec("a"), codec("r"), codec("p")

	checker := revocation.NewChecker(revocation.NewMemoryStore(), revocation.CheckerOptions{})

	issuer, err := tokens.NewIssuer(tokens.Config{
		Access:     access,
		Refresh:    refresh,
		TwoFactor:  pending,
		Revocation: checker,
		Proof: tokens.ProofVerifierFunc(func(context.Context, string, string) error {
			return nil
		}),
	})
	require.NoError(t, err)

	av, err := authn.NewVerifier(authn.Config{Codec: access, Revocation: checker})
	require.NoError(t, err)
	rv, err := authn.NewVerifier(authn.Config{Kind: jwtx.KindRefresh, Codec: refresh, Revocation: checker})
	require.NoError(t, err)

	return &env{issuer: issuer, checker: checker, access: av, refresh: rv}
}

func (e *env) login(t *testing.T, twoFactor bool) tokens.TokenSet {
	t.Helper()
	set, err := e.issuer.Issue(context.Background(), tokens.Principal{
		Subject:  "acc-alice",
		Username: "alice",
		Roles:    []string{"SELLER"},
	}, "", twoFactor)
	require.NoError(t, err)
	return set
}

func TestVerifier_Access(t *testing.T) {
	e := newEnv(t)
	set := e.login(t, false)

	id, err := e.access.Verify(context.Background(), set.Raw(jwtx.KindAccess))
	require.NoError(t, err)
	require.Equal(t, "acc-alice", id.Subject)
	require.Equal(t, "alice", id.Username)
	require.True(t, id.HasRole("SELLER"))
	require.False(t, id.HasAnyRole("ADMIN", "BUYER"))
	require.NotEmpty(t, id.SessionID)
	require.WithinDuration(t, time.Now().Add(jwtx.DefaultAccessTokenTTL), id.ExpiresAt, 5*time.Second)
}

func TestVerifier_KindCrossRejection(t *testing.T) {
	e := newEnv(t)
	set := e.login(t, false)
	pending := e.login(t, true)

	tests := []struct {
		name     string
		verifier *authn.Verifier
		raw      string
	}{
		{"refresh at access site", e.access, set.Raw(jwtx.KindRefresh)},
		{"pending at access site", e.access, pending.Raw(jwtx.KindTwoFactorPending)},
		{"access at refresh site", e.refresh, set.Raw(jwtx.KindAccess)},
		{"pending at refresh site", e.refresh, pending.Raw(jwtx.KindTwoFactorPending)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(context.Background(), tt.raw)
			require.ErrorIs(t, err, authn.ErrUnauthenticated)
			require.ErrorIs(t, err, jwtx.ErrInvalidKind)
			require.Equal(t, jwtx.ErrorKindInvalidTokenKind, jwtx.KindOf(err))
		})
	}
}

func TestVerifier_Failures(t *testing.T) {
	e := newEnv(t)
	set := e.login(t, false)
	raw := set.Raw(jwtx.KindAccess)

	t.Run("missing credential", func(t *testing.T) {
		_, err := e.access.Verify(context.Background(), "")
		require.ErrorIs(t, err, authn.ErrUnauthenticated)
		require.ErrorIs(t, err, jwtx.ErrMissingToken)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := e.access.Verify(context.Background(), "not.a.token")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(raw, ".")
		payload := []byte(parts[1])
		if payload[5] == 'A' {
			payload[5] = 'B'
		} else {
			payload[5] = 'A'
		}
		_, err := e.access.Verify(context.Background(), parts[0]+"."+string(payload)+"."+parts[2])
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("revoked session", func(t *testing.T) {
		ctx := context.Background()
		id, err := e.access.Verify(ctx, raw)
		require.NoError(t, err)

		require.NoError(t, e.checker.Revoke(ctx, id.SessionID, time.Now().Add(time.Hour)))

		_, err = e.access.Verify(ctx, raw)
		require.ErrorIs(t, err, jwtx.ErrRevoked)
		_, err = e.refresh.Verify(ctx, set.Raw(jwtx.KindRefresh))
		require.ErrorIs(t, err, jwtx.ErrRevoked, "every token of the session is revoked")

		other := e.login(t, false)
		_, err = e.access.Verify(ctx, other.Raw(jwtx.KindAccess))
		require.NoError(t, err, "other sessions stay valid")
	})
}

func TestVerifier_Sources(t *testing.T) {
	e := newEnv(t)
	set := e.login(t, false)
	ctx := context.Background()

	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "bearer "+set.Raw(jwtx.KindAccess))
		_, err := e.access.Authenticate(ctx, authn.HeaderSource(r.Header))
		require.NoError(t, err)
	})

	t.Run("cookie per kind", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "ACCESS_TOKEN", Value: set.Raw(jwtx.KindAccess)})
		r.AddCookie(&http.Cookie{Name: "REFRESH_TOKEN", Value: set.Raw(jwtx.KindRefresh)})

		src := authn.CookieSource(r, authn.DefaultCookieNames)
		_, err := e.access.Authenticate(ctx, src)
		require.NoError(t, err)
		_, err = e.refresh.Authenticate(ctx, src)
		require.NoError(t, err)
	})

	t.Run("header wins over cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+set.Raw(jwtx.KindAccess))
		r.AddCookie(&http.Cookie{Name: "ACCESS_TOKEN", Value: "garbage"})

		src := authn.FirstOf(authn.HeaderSource(r.Header), authn.CookieSource(r, nil))
		_, err := e.access.Authenticate(ctx, src)
		require.NoError(t, err)
	})

	t.Run("nothing presented", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
		_, err := e.access.Authenticate(ctx, authn.FirstOf(authn.HeaderSource(r.Header), authn.CookieSource(r, nil)))
		require.ErrorIs(t, err, jwtx.ErrMissingToken)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc", "abc", true},
		{"BEARER   abc  ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := authn.BearerToken(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNewVerifier(t *testing.T) {
	_, err := authn.NewVerifier(authn.Config{})
	require.Error(t, err)

	km, err := jwtx.NewStaticKeyManager([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)
	codec := jwtx.NewCodec(km, jwtx.CodecOptions{})

	v, err := authn.NewVerifier(authn.Config{Codec: codec})
	require.NoError(t, err)
	require.Equal(t, jwtx.KindAccess, v.Kind())

	_, err = authn.NewVerifier(authn.Config{Codec: codec, Kind: "SESSION"})
	require.Error(t, err)
}
