package jwtx

import (
	"errors"
	"slices"
	"sync"
)

// verificationKey is one entry of a KeySet.
type verificationKey struct {
	kid string
	alg string
	key any // *rsa.PublicKey | ed25519.PublicKey | *ecdsa.PublicKey | []byte
}

// KeySet holds every key a Codec may verify with, newest first. It's
// thread-safe, so the auth service can rotate while requests verify, and
// resource services can swap in a freshly fetched JWKS.
type KeySet struct {
	mu   sync.RWMutex
	keys []verificationKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{}
}

// AddSigner registers a Signer's verification key as the newest key.
func (k *KeySet) AddSigner(s Signer) error {
	if err := s.Validate(); err != nil {
		return err
	}
	k.add(verificationKey{kid: s.KID(), alg: s.Alg(), key: s.VerifyKey()})
	return nil
}

// AddJWK parses a JWK into a usable crypto key and registers it as the
// newest key.
func (k *KeySet) AddJWK(j JWK) error {
	key, err := j.PublicKey()
	if err != nil {
		return err
	}
	k.add(verificationKey{kid: j.Kid, alg: j.Alg, key: key})
	return nil
}

// AddSecret registers a verify-only HMAC secret as the newest key.
func (k *KeySet) AddSecret(kid string, secret []byte) error {
	if len(secret) < MinHMACSecretSize {
		return errors.New("jwtx: HMAC secret too short")
	}
	if kid == "" {
		kid = SecretKID(secret)
	}
	k.add(verificationKey{kid: kid, alg: AlgorithmHS256, key: append([]byte(nil), secret...)})
	return nil
}

func (k *KeySet) add(v verificationKey) {
	k.mu.Lock()
	defer k.mu.Unlock()

	// Re-adding a kid moves it to the front instead of duplicating it.
	k.keys = slices.DeleteFunc(k.keys, func(e verificationKey) bool { return e.kid == v.kid })
	k.keys = append([]verificationKey{v}, k.keys...)
}

// Get returns the key registered under kid.
func (k *KeySet) Get(kid string) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, e := range k.keys {
		if e.kid == kid {
			return e.key, nil
		}
	}
	return nil, ErrNoKey
}

// Remove drops kid from the set. Tokens signed with it stop verifying.
func (k *KeySet) Remove(kid string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := len(k.keys)
	k.keys = slices.DeleteFunc(k.keys, func(e verificationKey) bool { return e.kid == kid })
	return len(k.keys) != n
}

// KIDs returns the key ids newest first.
func (k *KeySet) KIDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]string, len(k.keys))
	for i, e := range k.keys {
		out[i] = e.kid
	}
	return out
}

// candidates returns the keys a token may have been signed with. A token
// naming its kid only gets that key; otherwise every key is tried newest
// first.
func (k *KeySet) candidates(kid string) []verificationKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if kid != "" {
		for _, e := range k.keys {
			if e.kid == kid {
				return []verificationKey{e}
			}
		}
		return nil
	}
	return slices.Clone(k.keys)
}

// PublicJWKS returns the publishable keys newest first. HMAC secrets are
// never included.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := JWKS{Keys: []JWK{}}
	for _, e := range k.keys {
		if j, ok := publicJWK(e); ok {
			out.Keys = append(out.Keys, j)
		}
	}
	return out
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys) > 0
}

// ResetFromJWKS replaces all keys from a JWKS, keeping its order. We use
// this when fetching fresh keys from the auth service.
func (k *KeySet) ResetFromJWKS(jwks JWKS) error {
	keys := make([]verificationKey, 0, len(jwks.Keys))
	for _, j := range jwks.Keys {
		key, err := j.PublicKey()
		if err != nil {
			return err
		}
		keys = append(keys, verificationKey{kid: j.Kid, alg: j.Alg, key: key})
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = keys
	return nil
}

// publicJWK rebuilds the JWK for an asymmetric entry.
func publicJWK(e verificationKey) (JWK, bool) {
	if _, ok := e.key.([]byte); ok {
		return JWK{}, false
	}
	j, err := EncodeJWK(e.kid, e.alg, e.key)
	return j, err == nil
}
