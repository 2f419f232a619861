package jwtx

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACSecretSize is the shortest secret accepted for HS256.
const MinHMACSecretSize = 32

// HS256Signer implements the Signer interface using HMAC SHA-256. Every
// service verifying these tokens needs the same secret, so it is only used
// where the secret is distributed out of band.
type HS256Signer struct {
	kid    string
	secret []byte
	alg    string
}

func newHS256Signer(kid string, secret []byte) (*HS256Signer, error) {
	if len(secret) < MinHMACSecretSize {
		return nil, fmt.Errorf("jwtx: HMAC secret must be at least %d bytes", MinHMACSecretSize)
	}
	if kid == "" {
		kid = SecretKID(secret)
	}

	return &HS256Signer{
		kid:    kid,
		secret: append([]byte(nil), secret...),
		alg:    jwt.SigningMethodHS256.Alg(),
	}, nil
}

func (s *HS256Signer) Alg() string { return s.alg }
func (s *HS256Signer) KID() string { return s.kid }

// Sign stamps kid and kind into the header and signs with the secret.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	return signToken(jwt.SigningMethodHS256, s.kid, claims, s.secret)
}

// VerifyKey returns the shared secret.
func (s *HS256Signer) VerifyKey() any { return s.secret }

// Validate does a quick sanity check to make sure we actually have a secret.
func (s *HS256Signer) Validate() error {
	if len(s.secret) < MinHMACSecretSize {
		return errors.New("jwtx: HMAC secret too short")
	}
	return nil
}

// SecretKID derives a stable, non-reversible key id from a shared secret so
// that every service configured with the same secret agrees on the kid.
func SecretKID(secret []byte) string {
	sum := sha256.Sum256(secret)
	return "hs-" + base64.RawURLEncoding.EncodeToString(sum[:8])
}
