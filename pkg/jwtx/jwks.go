package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/retrade/authmesh/pkg/cryptox"
)

// JWK is a public key in JSON Web Key form (RFC 7517). Only asymmetric keys
// are published; HMAC secrets never leave the process.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`

	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// OKP and EC. X is the whole Ed25519 key for OKP.
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

var b64 = base64.RawURLEncoding

// EncodeJWK renders pub as a signing JWK. Supported keys are RSA, P-256
// ECDSA and Ed25519.
func EncodeJWK(kid, alg string, pub crypto.PublicKey) (JWK, error) {
	j := JWK{Use: "sig", Alg: alg, Kid: kid}
	switch pub := pub.(type) {
	case *rsa.PublicKey:
		j.Kty = "RSA"
		j.N = b64.EncodeToString(pub.N.Bytes())
		j.E = b64.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	case *ecdsa.PublicKey:
		if pub.Curve != elliptic.P256() {
			return JWK{}, fmt.Errorf("jwtx: EC key %s is not on P-256", kid)
		}
		raw, err := pub.Bytes()
		if err != nil {
			return JWK{}, fmt.Errorf("jwtx: encode EC key %s: %w", kid, err)
		}
		// raw is 0x04 || X || Y with fixed-width coordinates.
		j.Kty, j.Crv = "EC", "P-256"
		j.X = b64.EncodeToString(raw[1:33])
		j.Y = b64.EncodeToString(raw[33:])
	case ed25519.PublicKey:
		j.Kty, j.Crv = "OKP", "Ed25519"
		j.X = b64.EncodeToString(pub)
	default:
		return JWK{}, fmt.Errorf("jwtx: cannot publish %T as a JWK", pub)
	}
	return j, nil
}

// PublicKey decodes and validates the key. EC points must lie on P-256 and
// RSA moduli must be at least cryptox.MinRSABits long.
func (j JWK) PublicKey() (crypto.PublicKey, error) {
	if j.Use != "" && j.Use != "sig" {
		return nil, fmt.Errorf("jwtx: key %s is for %q, not signing", j.Kid, j.Use)
	}

	switch j.Kty {
	case "RSA":
		nb, err := b64.DecodeString(j.N)
		if err != nil {
			return nil, fmt.Errorf("jwtx: key %s modulus: %w", j.Kid, err)
		}
		eb, err := b64.DecodeString(j.E)
		if err != nil {
			return nil, fmt.Errorf("jwtx: key %s exponent: %w", j.Kid, err)
		}
		n := new(big.Int).SetBytes(nb)
		e := new(big.Int).SetBytes(eb)
		if n.BitLen() < cryptox.MinRSABits {
			return nil, fmt.Errorf("jwtx: key %s is a %d-bit RSA key", j.Kid, n.BitLen())
		}
		if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 || e.Bit(0) == 0 {
			return nil, fmt.Errorf("jwtx: key %s has an invalid RSA exponent", j.Kid)
		}
		return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil

	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, fmt.Errorf("jwtx: unsupported OKP curve %q", j.Crv)
		}
		xb, err := b64.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: key %s: %w", j.Kid, err)
		}
		if len(xb) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("jwtx: key %s has %d bytes, want %d", j.Kid, len(xb), ed25519.PublicKeySize)
		}
		return ed25519.PublicKey(xb), nil

	case "EC":
		if j.Crv != "P-256" {
			return nil, fmt.Errorf("jwtx: unsupported EC curve %q", j.Crv)
		}
		xb, err := b64.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: key %s x: %w", j.Kid, err)
		}
		yb, err := b64.DecodeString(j.Y)
		if err != nil {
			return nil, fmt.Errorf("jwtx: key %s y: %w", j.Kid, err)
		}
		if len(xb) != 32 || len(yb) != 32 {
			return nil, fmt.Errorf("jwtx: key %s has malformed P-256 coordinates", j.Kid)
		}
		pub, err := ecdsa.ParseUncompressedPublicKey(elliptic.P256(), append(append([]byte{4}, xb...), yb...))
		if err != nil {
			return nil, fmt.Errorf("jwtx: key %s: %w", j.Kid, err)
		}
		return pub, nil

	default:
		return nil, fmt.Errorf("jwtx: unsupported kty %q", j.Kty)
	}
}
