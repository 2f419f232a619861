//go:build e2e

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/jwtx"
)

// TestJWKSOfflineVerification verifies ACCESS tokens the way a dependent
// service does: a KeySet loaded from the published JWKS and no call back to
// the auth service.
func TestJWKSOfflineVerification(t *testing.T) {
	baseURL := setupAuthContainer(t, ephemeralKeys(), relaxedRateLimits())
	client := authsdk.NewSDKClient(baseURL)

	jwks, err := client.GetJWKS(t.Context())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)

	key := jwks.Keys[0]
	require.Equal(t, "OKP", key.Kty)
	require.Equal(t, jwtx.AlgorithmEdDSA, key.Alg)
	require.NotEmpty(t, key.Kid)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.ResetFromJWKS(*jwks))
	verifier, err := authn.NewVerifier(authn.Config{
		Codec: jwtx.NewVerifyingCodec(keys, jwtx.CodecOptions{Issuer: "authmesh"}),
	})
	require.NoError(t, err)

	session := registerAndLogin(t, client, "erin")

	t.Run("access token verifies", func(t *testing.T) {
		id, err := verifier.Verify(t.Context(), session.AccessToken())
		require.NoError(t, err)
		require.Equal(t, "erin", id.Username)
		require.NotEmpty(t, id.SessionID)
	})

	t.Run("refresh token is refused", func(t *testing.T) {
		_, err := verifier.Verify(t.Context(), session.RefreshToken())
		require.ErrorIs(t, err, jwtx.ErrInvalidKind)
	})

	t.Run("refresh keys are not published", func(t *testing.T) {
		// A REFRESH token names a kid that is absent from the ACCESS JWKS.
		refreshVerifier, err := authn.NewVerifier(authn.Config{
			Kind:  jwtx.KindRefresh,
			Codec: jwtx.NewVerifyingCodec(keys, jwtx.CodecOptions{Issuer: "authmesh"}),
		})
		require.NoError(t, err)

		_, err = refreshVerifier.Verify(t.Context(), session.RefreshToken())
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})
}
