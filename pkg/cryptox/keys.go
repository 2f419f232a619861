package cryptox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// KeyType names the private key families used for token signing.
type KeyType string

const (
	KeyTypeRSA     KeyType = "RSA"
	KeyTypeP256    KeyType = "P-256"
	KeyTypeEd25519 KeyType = "Ed25519"
)

// MinRSABits is the smallest RSA modulus GenerateKeyPEM will produce.
const MinRSABits = 2048

const (
	pemPKCS8 = "PRIVATE KEY"
	pemPKCS1 = "RSA PRIVATE KEY"
)

// GenerateKeyPEM creates a private key of type kt and returns it as a PKCS8
// PEM block. rsaBits is ignored for the elliptic curve types.
func GenerateKeyPEM(kt KeyType, rsaBits int) ([]byte, error) {
	var (
		key crypto.Signer
		err error
	)
	switch kt {
	case KeyTypeRSA:
		if rsaBits < MinRSABits {
			return nil, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
		}
		key, err = rsa.GenerateKey(rand.Reader, rsaBits)
	case KeyTypeP256:
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case KeyTypeEd25519:
		_, key, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, fmt.Errorf("cryptox: unknown key type %q", kt)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate %s key: %w", kt, err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal %s key: %w", kt, err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPKCS8, Bytes: der}), nil
}

// ParsePrivateKeyPEM decodes a PKCS8 private key. Legacy PKCS1 blocks are
// accepted for RSA only.
func ParsePrivateKeyPEM(data []byte) (crypto.Signer, KeyType, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, "", errors.New("cryptox: no PEM block found")
	}

	switch block.Type {
	case pemPKCS1:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, "", fmt.Errorf("cryptox: parse PKCS1: %w", err)
		}
		return key, KeyTypeRSA, nil
	case pemPKCS8:
	default:
		return nil, "", fmt.Errorf("cryptox: unsupported PEM type %q", block.Type)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, "", fmt.Errorf("cryptox: parse PKCS8: %w", err)
	}
	switch key := parsed.(type) {
	case *rsa.PrivateKey:
		return key, KeyTypeRSA, nil
	case *ecdsa.PrivateKey:
		if key.Curve != elliptic.P256() {
			return nil, "", fmt.Errorf("cryptox: unsupported curve %s", key.Curve.Params().Name)
		}
		return key, KeyTypeP256, nil
	case ed25519.PrivateKey:
		return key, KeyTypeEd25519, nil
	default:
		return nil, "", fmt.Errorf("cryptox: unsupported private key %T", parsed)
	}
}
