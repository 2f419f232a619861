package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retrade/authmesh/internal/auth/domain"
	"github.com/retrade/authmesh/internal/auth/store"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/slogx"
)

// ErrRotationUnsupported is returned for shared-secret key managers, whose
// secrets are rotated through configuration instead.
var ErrRotationUnsupported = errors.New("key rotation is not supported for shared secrets")

// KeyRotationService rotates the signing keys of one token scope.
//
// In ephemeral mode (Store == nil) keys only live in the KeyManager, and a
// replaced key keeps verifying until restart.
//
// In persistent mode keys are encrypted and stored. A retired key keeps
// verifying for GracePeriod, after which housekeeping deletes it.
type KeyRotationService struct {
	Store       store.Store // nil for ephemeral mode
	KeyManager  *jwtx.KeyManager
	Scope       jwtx.Kind
	RSABits     int
	GracePeriod time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// KeyInfo describes a signing key without its private material.
type KeyInfo struct {
	Kid       string     `json:"kid"`
	Scope     string     `json:"scope"`
	Algorithm string     `json:"algorithm"`
	Current   bool       `json:"current"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RotateKeyResponse is the result of a rotation.
type RotateKeyResponse struct {
	NewKey      KeyInfo   `json:"new_key"`
	RetiredKeys []KeyInfo `json:"retired_keys,omitempty"`
}

func (s *KeyRotationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *KeyRotationService) grace() time.Duration {
	if s.GracePeriod <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.GracePeriod
}

// RotateKey makes a fresh key current. Every other active key is retired and
// stays verifiable for the grace period.
func (s *KeyRotationService) RotateKey(ctx context.Context) (RotateKeyResponse, error) {
	if s.KeyManager == nil {
		return RotateKeyResponse{}, errors.New("KeyManager is required")
	}
	if s.KeyManager.IsStatic() {
		return RotateKeyResponse{}, ErrRotationUnsupported
	}

	l := slogx.FromContext(ctx)
	now := s.now()

	if s.Store == nil {
		previous := s.KeyManager.Current()
		signer, err := s.KeyManager.Rotate()
		if err != nil {
			return RotateKeyResponse{}, fmt.Errorf("failed to rotate key: %w", err)
		}

		resp := RotateKeyResponse{NewKey: s.info(signer.KID(), signer.Alg(), true)}
		resp.NewKey.CreatedAt = &now
		if previous != nil {
			retired := s.info(previous.KID(), previous.Alg(), false)
			retired.RetiredAt = &now
			resp.RetiredKeys = append(resp.RetiredKeys, retired)
		}
		l.Info("signing key rotated", "scope", s.Scope, "kid", signer.KID())
		return resp, nil
	}

	signer, rec, err := jwtx.NewStoredSigner(s.Scope, s.KeyManager.Algorithm(), s.RSABits, s.grace(), now)
	if err != nil {
		return RotateKeyResponse{}, err
	}

	var retired []KeyInfo
	expiresAt := now.Add(s.grace())
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.SigningKeys().ListSigningKeys(ctx, s.Scope)
		if err != nil {
			return fmt.Errorf("failed to list signing keys: %w", err)
		}

		if err := tx.SigningKeys().CreateSigningKey(ctx, rec); err != nil {
			return fmt.Errorf("failed to create signing key: %w", err)
		}

		for _, key := range existing {
			if !key.Active() {
				continue
			}
			if err := tx.SigningKeys().RetireSigningKey(ctx, key.Kid, expiresAt); err != nil {
				return fmt.Errorf("failed to retire key %s: %w", key.Kid, err)
			}
			key.RetiredAt = &now
			key.ExpiresAt = expiresAt
			retired = append(retired, keyInfo(key, false))
		}
		return nil
	})
	if err != nil {
		return RotateKeyResponse{}, err
	}

	if err := s.KeyManager.AddSigner(signer); err != nil {
		return RotateKeyResponse{}, fmt.Errorf("failed to add signer to key manager: %w", err)
	}

	l.Info("signing key rotated", "scope", s.Scope, "kid", rec.Kid, "retired", len(retired))
	return RotateKeyResponse{
		NewKey:      keyInfo(rec, true),
		RetiredKeys: retired,
	}, nil
}

// ListSigningKeys returns the keys of the scope that still verify, newest
// first.
func (s *KeyRotationService) ListSigningKeys(ctx context.Context) ([]KeyInfo, error) {
	if s.KeyManager == nil {
		return nil, errors.New("KeyManager is required")
	}

	var currentKID string
	if cur := s.KeyManager.Current(); cur != nil {
		currentKID = cur.KID()
	}

	if s.Store != nil {
		keys, err := s.Store.SigningKeys().ListSigningKeys(ctx, s.Scope)
		if err != nil {
			return nil, fmt.Errorf("failed to list signing keys: %w", err)
		}
		out := make([]KeyInfo, 0, len(keys))
		for _, k := range keys {
			out = append(out, keyInfo(k, k.Kid == currentKID))
		}
		return out, nil
	}

	kids := s.KeyManager.KeySet.KIDs()
	out := make([]KeyInfo, 0, len(kids))
	for _, kid := range kids {
		out = append(out, s.info(kid, s.KeyManager.Algorithm(), kid == currentKID))
	}
	return out, nil
}

func (s *KeyRotationService) info(kid, alg string, current bool) KeyInfo {
	return KeyInfo{Kid: kid, Scope: s.Scope.String(), Algorithm: alg, Current: current}
}

func keyInfo(k domain.SigningKey, current bool) KeyInfo {
	created := k.CreatedAt
	info := KeyInfo{
		Kid:       k.Kid,
		Scope:     k.Scope.String(),
		Algorithm: k.Algorithm,
		Current:   current,
		CreatedAt: &created,
		RetiredAt: k.RetiredAt,
	}
	if k.RetiredAt != nil {
		expires := k.ExpiresAt
		info.ExpiresAt = &expires
	}
	return info
}
