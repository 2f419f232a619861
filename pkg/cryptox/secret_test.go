package cryptox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret(32)
	require.NoError(t, err)
	require.Len(t, a, 32)

	b, err := GenerateSecret(32)
	require.NoError(t, err)
	require.NotEqual(t, a, b, "secrets should be unique")

	_, err = GenerateSecret(0)
	require.Error(t, err)
}

func TestDecodeSecrets(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef\xff\xfe")

	tests := []struct {
		name    string
		encoded string
	}{
		{"standard padded", base64.StdEncoding.EncodeToString(raw)},
		{"standard raw", base64.RawStdEncoding.EncodeToString(raw)},
		{"url padded", base64.URLEncoding.EncodeToString(raw)},
		{"url raw", base64.RawURLEncoding.EncodeToString(raw)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeSecrets(tt.encoded)
			require.NoError(t, err)
			require.Len(t, out, 1)
			require.Equal(t, raw, out[0])
		})
	}

	t.Run("keeps order and skips blanks", func(t *testing.T) {
		first := base64.StdEncoding.EncodeToString([]byte("first"))
		second := base64.StdEncoding.EncodeToString([]byte("second"))

		out, err := DecodeSecrets(" " + first + ", ," + second + " ")
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("first"), []byte("second")}, out)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := DecodeSecrets("not base64 !!")
		require.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		out, err := DecodeSecrets("")
		require.NoError(t, err)
		require.Empty(t, out)
	})
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(16)
	require.NoError(t, err)
	require.Len(t, a, 22)

	b, err := RandomToken(16)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	_, err = RandomToken(-1)
	require.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	require.Equal(t, Fingerprint("token"), Fingerprint("token"))
	require.NotEqual(t, Fingerprint("token"), Fingerprint("tokem"))
	require.Len(t, Fingerprint("token"), 16)
}
