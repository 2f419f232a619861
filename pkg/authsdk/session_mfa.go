package authsdk

import (
	"context"
	"net/http"
)

// EnrollTOTP generates a TOTP secret. TOTP stays off until EnableTOTP.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/totp/enroll", nil)
	if err != nil {
		return nil, err
	}

	var enroll TOTPEnrollResponse
	if err := decodeJSON(resp, &enroll, http.StatusOK); err != nil {
		return nil, err
	}
	return &enroll, nil
}

// EnableTOTP confirms the enrolled secret with a code.
func (s *Session) EnableTOTP(ctx context.Context, code string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/totp/enable", TOTPCodeRequest{Code: code})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// DisableTOTP turns TOTP off. The server revokes every session of the
// account.
func (s *Session) DisableTOTP(ctx context.Context, code string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/mfa/totp", TOTPCodeRequest{Code: code})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
