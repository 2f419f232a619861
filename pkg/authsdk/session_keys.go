package authsdk

import (
	"context"
	"net/http"
)

// RotateKey makes a fresh ACCESS signing key current. Requires the ADMIN role.
func (s *Session) RotateKey(ctx context.Context) (*RotateKeyResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/keys/rotate", nil)
	if err != nil {
		return nil, err
	}

	var out RotateKeyResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListKeys lists the ACCESS signing keys that still verify. Requires the
// ADMIN role.
func (s *Session) ListKeys(ctx context.Context) ([]SigningKeyInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/keys", nil)
	if err != nil {
		return nil, err
	}

	var keys []SigningKeyInfo
	if err := decodeJSON(resp, &keys, http.StatusOK); err != nil {
		return nil, err
	}
	return keys, nil
}
