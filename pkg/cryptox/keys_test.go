package cryptox_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retrade/authmesh/pkg/cryptox"
)

func TestGenerateKeyPEM(t *testing.T) {
	tests := []struct {
		kt   cryptox.KeyType
		bits int
		want any
	}{
		{cryptox.KeyTypeRSA, 2048, &rsa.PrivateKey{}},
		{cryptox.KeyTypeP256, 0, &ecdsa.PrivateKey{}},
		{cryptox.KeyTypeEd25519, 0, ed25519.PrivateKey{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kt), func(t *testing.T) {
			pemKey, err := cryptox.GenerateKeyPEM(tt.kt, tt.bits)
			require.NoError(t, err)

			block, _ := pem.Decode(pemKey)
			require.NotNil(t, block)
			require.Equal(t, "PRIVATE KEY", block.Type)

			key, kt, err := cryptox.ParsePrivateKeyPEM(pemKey)
			require.NoError(t, err)
			require.Equal(t, tt.kt, kt)
			require.IsType(t, tt.want, key)
		})
	}

	t.Run("small RSA", func(t *testing.T) {
		_, err := cryptox.GenerateKeyPEM(cryptox.KeyTypeRSA, 1024)
		require.ErrorContains(t, err, "at least 2048 bits")
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := cryptox.GenerateKeyPEM("DSA", 0)
		require.Error(t, err)
	})
}

func TestParsePrivateKeyPEM(t *testing.T) {
	t.Run("PKCS1 RSA", func(t *testing.T) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		pemKey := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})

		_, kt, err := cryptox.ParsePrivateKeyPEM(pemKey)
		require.NoError(t, err)
		require.Equal(t, cryptox.KeyTypeRSA, kt)
	})

	t.Run("not PEM", func(t *testing.T) {
		_, _, err := cryptox.ParsePrivateKeyPEM([]byte("hello"))
		require.ErrorContains(t, err, "no PEM block")
	})

	t.Run("public key block", func(t *testing.T) {
		_, _, err := cryptox.ParsePrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{1}}))
		require.ErrorContains(t, err, "unsupported PEM type")
	})
}
