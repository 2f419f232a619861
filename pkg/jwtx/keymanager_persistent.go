package jwtx

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/retrade/authmesh/pkg/cryptox"
	"github.com/retrade/authmesh/pkg/idx"
)

// SigningKeyRecord represents a signing key stored in the database.
// This type avoids importing the domain package, preventing circular dependencies.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Scope               Kind
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time
	ExpiresAt           time.Time
}

// Active reports whether the key still signs.
func (r SigningKeyRecord) Active() bool { return r.RetiredAt == nil }

// Expired reports whether a retired key has left its grace period.
func (r SigningKeyRecord) Expired(now time.Time) bool {
	return r.RetiredAt != nil && !r.ExpiresAt.After(now)
}

// KeyStore defines the minimal interface needed for persistent key management.
type KeyStore interface {
	// ListSigningKeys returns every unexpired key of scope, current and
	// retired, so tokens signed before a rotation keep verifying.
	ListSigningKeys(ctx context.Context, scope Kind) ([]SigningKeyRecord, error)

	// CreateSigningKey stores a new signing key with encrypted key material.
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
}

// PersistentKeyManagerOptions configures a KeyManager with persistent key storage.
type PersistentKeyManagerOptions struct {
	// Store provides access to the signing keys database.
	Store KeyStore

	// Scope is the token kind these keys sign.
	Scope Kind

	// Algorithm specifies which signing algorithm to use for NEW keys.
	// Loaded keys will use their stored algorithm.
	Algorithm string

	// RSABits specifies the RSA key size for RS256 when generating new keys.
	RSABits int

	// GracePeriod is how long a key stays in the database after it stops
	// being current. It must outlive the longest TTL of the scope.
	// Defaults to 30 days if not specified.
	GracePeriod time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewPersistentKeyManager loads the keys of one scope from the database.
// The newest non-retired key becomes current; every other unexpired key is
// kept for verification. A key is generated and stored when none is usable.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("jwtx: Store is required for persistent key manager")
	}
	if !opts.Scope.Valid() {
		return nil, fmt.Errorf("jwtx: unknown key scope %q", opts.Scope)
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 30 * 24 * time.Hour // 30 days default
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	records, err := opts.Store.ListSigningKeys(ctx, opts.Scope)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load keys from database: %w", err)
	}

	// Oldest first, so each AddSigner pushes a newer key to the front.
	slices.SortFunc(records, func(a, b SigningKeyRecord) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	km := &KeyManager{
		KeySet:    NewKeySet(),
		algorithm: opts.Algorithm,
		rsaBits:   opts.RSABits,
	}

	now := opts.Now()
	var current Signer
	for _, rec := range records {
		if rec.Expired(now) {
			continue
		}

		material, err := cryptox.OpenPrivateKey(rec.Kid, rec.PrivateKeyEncrypted)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to decrypt key %s: %w", rec.Kid, err)
		}
		signer, err := NewSignerFromKeyMaterial(rec.Algorithm, rec.Kid, material)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to create signer for key %s: %w", rec.Kid, err)
		}
		if err := km.KeySet.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add key %s to keyset: %w", rec.Kid, err)
		}
		if rec.Active() {
			current = signer
		}
	}

	if current == nil {
		signer, rec, err := NewStoredSigner(opts.Scope, opts.Algorithm, opts.RSABits, opts.GracePeriod, now)
		if err != nil {
			return nil, err
		}
		if err := opts.Store.CreateSigningKey(ctx, rec); err != nil {
			return nil, fmt.Errorf("jwtx: failed to store new key: %w", err)
		}
		current = signer
	}

	if err := km.AddSigner(current); err != nil {
		return nil, err
	}

	return km, nil
}

// NewStoredSigner generates a fresh key for scope and returns it alongside
// the encrypted record to persist.
func NewStoredSigner(scope Kind, algorithm string, rsaBits int, grace time.Duration, now time.Time) (Signer, SigningKeyRecord, error) {
	kid, err := NewKeyID()
	if err != nil {
		return nil, SigningKeyRecord{}, err
	}

	material, err := GenerateKeyMaterial(algorithm, rsaBits)
	if err != nil {
		return nil, SigningKeyRecord{}, fmt.Errorf("jwtx: failed to generate new key: %w", err)
	}

	signer, err := NewSignerFromKeyMaterial(algorithm, kid, material)
	if err != nil {
		return nil, SigningKeyRecord{}, err
	}

	encrypted, err := cryptox.SealPrivateKey(kid, material)
	if err != nil {
		return nil, SigningKeyRecord{}, fmt.Errorf("jwtx: failed to encrypt new key: %w", err)
	}

	return signer, SigningKeyRecord{
		ID:                  idx.New().String(),
		Kid:                 kid,
		Scope:               scope,
		Algorithm:           algorithm,
		PrivateKeyEncrypted: encrypted,
		CreatedAt:           now,
		ExpiresAt:           now.Add(grace), // only enforced once retired
	}, nil
}
