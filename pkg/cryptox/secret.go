package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// GenerateSecret returns size random bytes for use as an HMAC key.
func GenerateSecret(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cryptox: secret size must be positive, got %d", size)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate secret: %w", err)
	}
	return buf, nil
}

// DecodeSecrets parses a comma separated list of base64 secrets, keeping
// their order. Both the standard and the URL alphabet are accepted, padded
// or not, since secrets are usually pasted from whatever tool made them.
func DecodeSecrets(list string) ([][]byte, error) {
	var out [][]byte
	for i, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b, err := decodeAnyBase64(part)
		if err != nil {
			return nil, fmt.Errorf("cryptox: secret %d is not base64: %w", i+1, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func decodeAnyBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
