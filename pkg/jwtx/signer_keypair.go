package jwtx

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/retrade/authmesh/pkg/cryptox"
)

// KeyPairSigner signs with a private key and publishes the public half. It
// backs RS256, ES256 and EdDSA.
type KeyPairSigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	pub    crypto.PublicKey
}

// keyTypeFor maps an asymmetric algorithm onto the key family it signs with.
var keyTypeFor = map[string]cryptox.KeyType{
	AlgorithmRS256: cryptox.KeyTypeRSA,
	AlgorithmES256: cryptox.KeyTypeP256,
	AlgorithmEdDSA: cryptox.KeyTypeEd25519,
}

func newKeyPairSigner(method jwt.SigningMethod, kid string, pemKey []byte) (*KeyPairSigner, error) {
	want, ok := keyTypeFor[method.Alg()]
	if !ok {
		return nil, fmt.Errorf("jwtx: %s is not an asymmetric algorithm", method.Alg())
	}

	key, got, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %s key: %w", method.Alg(), err)
	}
	if got != want {
		return nil, fmt.Errorf("jwtx: %s needs a %s key, got %s", method.Alg(), want, got)
	}

	return &KeyPairSigner{
		kid:    kid,
		method: method,
		key:    key,
		pub:    key.Public(),
	}, nil
}

func (s *KeyPairSigner) Alg() string { return s.method.Alg() }
func (s *KeyPairSigner) KID() string { return s.kid }

func (s *KeyPairSigner) Sign(claims Claims) (string, error) {
	return signToken(s.method, s.kid, claims, s.key)
}

func (s *KeyPairSigner) VerifyKey() any { return s.pub }

// PublicJWK returns the entry this key contributes to the JWKS.
func (s *KeyPairSigner) PublicJWK() JWK {
	j, _ := EncodeJWK(s.kid, s.Alg(), s.pub)
	return j
}

func (s *KeyPairSigner) Validate() error {
	if s.key == nil || s.pub == nil {
		return errors.New("jwtx: signer has no key")
	}
	switch key := s.key.(type) {
	case *rsa.PrivateKey:
		if key.N.BitLen() < cryptox.MinRSABits {
			return fmt.Errorf("jwtx: RSA key is %d bits", key.N.BitLen())
		}
		return key.Validate()
	case ed25519.PrivateKey:
		if len(key) != ed25519.PrivateKeySize {
			return errors.New("jwtx: invalid Ed25519 private key size")
		}
	}
	return nil
}
