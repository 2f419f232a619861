package jwtx_test

import (
	"strings"
	"testing"

	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T, alg, kid string) jwtx.Signer {
	t.Helper()
	material, err := jwtx.GenerateKeyMaterial(alg, 2048)
	require.NoError(t, err)
	s, err := jwtx.NewSignerFromKeyMaterial(alg, kid, material)
	require.NoError(t, err)
	return s
}

func TestKeySet_NewestFirst(t *testing.T) {
	ks := jwtx.NewKeySet()
	require.False(t, ks.IsReady())

	require.NoError(t, ks.AddSigner(newSigner(t, jwtx.AlgorithmEdDSA, "one")))
	require.NoError(t, ks.AddSigner(newSigner(t, jwtx.AlgorithmEdDSA, "two")))
	require.NoError(t, ks.AddSigner(newSigner(t, jwtx.AlgorithmES256, "three")))

	require.True(t, ks.IsReady())
	require.Equal(t, []string{"three", "two", "one"}, ks.KIDs())

	jwks := ks.PublicJWKS()
	require.Len(t, jwks.Keys, 3)
	require.Equal(t, "three", jwks.Keys[0].Kid)
}

func TestKeySet_ReAddMovesToFront(t *testing.T) {
	ks := jwtx.NewKeySet()
	one := newSigner(t, jwtx.AlgorithmEdDSA, "one")
	require.NoError(t, ks.AddSigner(one))
	require.NoError(t, ks.AddSigner(newSigner(t, jwtx.AlgorithmEdDSA, "two")))
	require.NoError(t, ks.AddSigner(one))

	require.Equal(t, []string{"one", "two"}, ks.KIDs())
}

func TestKeySet_GetAndRemove(t *testing.T) {
	ks := jwtx.NewKeySet()
	require.NoError(t, ks.AddSigner(newSigner(t, jwtx.AlgorithmEdDSA, "one")))

	_, err := ks.Get("one")
	require.NoError(t, err)

	_, err = ks.Get("missing")
	require.ErrorIs(t, err, jwtx.ErrNoKey)

	require.True(t, ks.Remove("one"))
	require.False(t, ks.Remove("one"))
	require.False(t, ks.IsReady())
}

func TestKeySet_SecretsNeverPublished(t *testing.T) {
	ks := jwtx.NewKeySet()
	require.NoError(t, ks.AddSecret("", []byte(strings.Repeat("s", 32))))
	require.NoError(t, ks.AddSigner(newSigner(t, jwtx.AlgorithmEdDSA, "pub")))

	require.Len(t, ks.KIDs(), 2)
	jwks := ks.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "pub", jwks.Keys[0].Kid)

	require.Error(t, ks.AddSecret("short", []byte("tiny")))
}

func TestKeySet_ResetFromJWKS(t *testing.T) {
	src := jwtx.NewKeySet()
	require.NoError(t, src.AddSigner(newSigner(t, jwtx.AlgorithmRS256, "rsa")))
	require.NoError(t, src.AddSigner(newSigner(t, jwtx.AlgorithmES256, "ec")))
	require.NoError(t, src.AddSigner(newSigner(t, jwtx.AlgorithmEdDSA, "ed")))

	dst := jwtx.NewKeySet()
	require.NoError(t, dst.ResetFromJWKS(src.PublicJWKS()))
	require.Equal(t, src.KIDs(), dst.KIDs())
	require.Equal(t, src.PublicJWKS(), dst.PublicJWKS())

	t.Run("unsupported key type", func(t *testing.T) {
		err := dst.ResetFromJWKS(jwtx.JWKS{Keys: []jwtx.JWK{{Kty: "oct", Kid: "x"}}})
		require.Error(t, err)
		// Previous keys are untouched on failure.
		require.Len(t, dst.KIDs(), 3)
	})
}
