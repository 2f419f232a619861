package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// RandomToken returns size random bytes, base64url encoded without padding.
func RandomToken(size int) (string, error) {
	raw, err := GenerateSecret(size)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Fingerprint returns a short non-reversible tag for a token, enough to
// correlate log lines about the same credential.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
