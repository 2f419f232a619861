package jwtx

import (
	"errors"
	"fmt"
	"sync"

	"github.com/retrade/authmesh/pkg/cryptox"
)

// Supported JWT signing algorithms
const (
	AlgorithmHS256 = "HS256"
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// KeyManager owns the signing keys of one scope. Exactly one signer is
// current and used for every new token; older keys stay in the KeySet so
// tokens they signed keep verifying until the key is retired.
type KeyManager struct {
	KeySet *KeySet

	algorithm string
	rsaBits   int
	static    bool

	mu      sync.RWMutex
	current Signer
}

// KeyManagerOptions configures the KeyManager for a specific use case.
type KeyManagerOptions struct {
	// Algorithm specifies which signing algorithm to use.
	// Supported values: "HS256", "RS256", "ES256", "EdDSA"
	Algorithm string

	// RSABits specifies the RSA key size for RS256 algorithm.
	// Only used when Algorithm is RS256. Defaults to 4096 if not specified.
	// Must be at least 2048.
	RSABits int
}

// NewEphemeralKeyManager creates a KeyManager with a freshly generated key
// that only exists in memory. Every token it signed becomes invalid when
// the process restarts.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	km := &KeyManager{
		KeySet:    NewKeySet(),
		algorithm: opts.Algorithm,
		rsaBits:   opts.RSABits,
	}

	if _, err := km.Rotate(); err != nil {
		return nil, err
	}

	return km, nil
}

// NewStaticKeyManager creates an HS256 KeyManager from shared secrets,
// newest first. The first secret signs; the rest only verify, which is how
// a secret is rotated across services without a flag day.
func NewStaticKeyManager(secrets ...[]byte) (*KeyManager, error) {
	if len(secrets) == 0 {
		return nil, errors.New("jwtx: at least one secret is required")
	}

	km := &KeyManager{
		KeySet:    NewKeySet(),
		algorithm: AlgorithmHS256,
		static:    true,
	}

	// Add oldest first so the newest ends up current and at the front.
	for i := len(secrets) - 1; i >= 0; i-- {
		signer, err := NewSignerHS256("", secrets[i])
		if err != nil {
			return nil, fmt.Errorf("jwtx: secret %d: %w", i+1, err)
		}
		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	return km, nil
}

// GenerateKeyMaterial creates new private key material for algorithm: a PEM
// block for asymmetric algorithms, a raw secret for HS256.
func GenerateKeyMaterial(algorithm string, rsaBits int) ([]byte, error) {
	switch algorithm {
	case AlgorithmHS256:
		return cryptox.GenerateSecret(MinHMACSecretSize)
	case AlgorithmRS256:
		if rsaBits == 0 {
			rsaBits = 4096
		}
		return cryptox.GenerateKeyPEM(cryptox.KeyTypeRSA, rsaBits)
	case AlgorithmES256, AlgorithmEdDSA:
		return cryptox.GenerateKeyPEM(keyTypeFor[algorithm], 0)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: HS256, RS256, ES256, EdDSA)", algorithm)
	}
}

// NewSignerFromKeyMaterial builds a signer from material produced by
// GenerateKeyMaterial.
func NewSignerFromKeyMaterial(algorithm, kid string, material []byte) (Signer, error) {
	switch algorithm {
	case AlgorithmHS256:
		return NewSignerHS256(kid, material)
	case AlgorithmRS256:
		return NewSignerRS256(kid, material)
	case AlgorithmES256:
		return NewSignerES256(kid, material)
	case AlgorithmEdDSA:
		return NewSignerEdDSA(kid, material)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", algorithm)
	}
}

// Algorithm returns the signing algorithm being used.
func (km *KeyManager) Algorithm() string {
	return km.algorithm
}

// IsStatic reports whether the keys are configured shared secrets. Peers
// hold the same secrets, so a new one can only arrive through configuration.
func (km *KeyManager) IsStatic() bool { return km.static }

// IsReady returns true if the KeyManager has a key to sign with.
func (km *KeyManager) IsReady() bool {
	return km.Current() != nil && km.KeySet.IsReady()
}

// Current returns the signer used for every new token.
func (km *KeyManager) Current() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.current
}

// AddSigner makes signer current. The previous key stays verifiable.
func (km *KeyManager) AddSigner(signer Signer) error {
	if signer == nil {
		return errors.New("jwtx: signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: add signer to keyset: %w", err)
	}
	km.current = signer
	return nil
}

// Rotate generates a new in-memory key and makes it current. Static
// managers refuse with ErrStaticKey.
func (km *KeyManager) Rotate() (Signer, error) {
	if km.static {
		return nil, ErrStaticKey
	}
	material, err := GenerateKeyMaterial(km.algorithm, km.rsaBits)
	if err != nil {
		return nil, err
	}
	kid, err := NewKeyID()
	if err != nil {
		return nil, err
	}
	signer, err := NewSignerFromKeyMaterial(km.algorithm, kid, material)
	if err != nil {
		return nil, err
	}
	if err := km.AddSigner(signer); err != nil {
		return nil, err
	}
	return signer, nil
}

// RetireKey removes a non-current key from verification. Tokens it signed
// stop verifying immediately, so callers wait out the longest TTL first.
func (km *KeyManager) RetireKey(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.current != nil && km.current.KID() == kid {
		return errors.New("jwtx: cannot retire the current signing key")
	}
	if !km.KeySet.Remove(kid) {
		return fmt.Errorf("jwtx: key %q not found", kid)
	}
	return nil
}

// NewKeyID creates a random key identifier using cryptographic entropy.
func NewKeyID() (string, error) {
	token, err := cryptox.RandomToken(16)
	if err != nil {
		return "", fmt.Errorf("jwtx: generate key ID: %w", err)
	}
	return "authmesh-" + token, nil
}
